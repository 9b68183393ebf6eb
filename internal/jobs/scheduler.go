package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
)

// Scheduler runs the JobRunner's jobs on cron specs with seconds precision.
type Scheduler struct {
	cron *cron.Cron
	jobs *JobRunner
}

func NewScheduler(cfg *config.Config, runner *JobRunner) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		jobs: runner,
	}

	if _, err := s.cron.AddFunc(cfg.ReconcileSchedule, runner.ReconcileSnapshots); err != nil {
		return nil, fmt.Errorf("register reconcile job: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.OrderExpirySchedule, runner.ExpireStaleOrders); err != nil {
		return nil, fmt.Errorf("register order expiry job: %w", err)
	}

	logger.Info("cron jobs registered", "count", len(s.cron.Entries()))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("cron scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("cron scheduler stopped")
}
