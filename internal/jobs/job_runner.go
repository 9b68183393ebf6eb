package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/metrics"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/order"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
)

// JobRunner holds the dependencies of the scheduled jobs.
type JobRunner struct {
	db         *gorm.DB
	ledger     *wallet.Ledger
	orders     *order.Service
	pendingTTL time.Duration
	now        func() time.Time
}

func NewJobRunner(db *gorm.DB, ledger *wallet.Ledger, orders *order.Service, pendingTTL time.Duration) *JobRunner {
	return &JobRunner{
		db:         db,
		ledger:     ledger,
		orders:     orders,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

// run wraps a job with panic recovery, logging and the run counter.
func (jr *JobRunner) run(name string, job func(ctx context.Context) error) {
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			logger.Error("job panicked", "job", name, "panic", r)
		}
		metrics.JobRuns.WithLabelValues(name, result).Inc()
	}()

	start := time.Now()
	logger.Info("starting job", "job", name)
	if err := job(context.Background()); err != nil {
		result = "error"
		logger.Error("job failed", "job", name, "error", err)
		return
	}
	logger.Info("job completed", "job", name, "took", time.Since(start))
}

// ReconcileSnapshots copies every profile's ledger balance into its
// balance_snapshot column.
func (jr *JobRunner) ReconcileSnapshots() {
	jr.run("reconcile_snapshots", func(ctx context.Context) error {
		n, err := jr.reconcile(ctx)
		if err != nil {
			return err
		}
		logger.Info("balance snapshots reconciled", "profiles", n)
		return nil
	})
}

// ExpireStaleOrders cancels pending orders nobody accepted within the TTL.
func (jr *JobRunner) ExpireStaleOrders() {
	jr.run("expire_stale_orders", func(ctx context.Context) error {
		n, err := jr.orders.ExpirePending(ctx, jr.now().Add(-jr.pendingTTL))
		if err != nil {
			return fmt.Errorf("expire pending orders: %w", err)
		}
		if n > 0 {
			logger.Info("stale orders expired", "count", n)
		}
		return nil
	})
}
