package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/order"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/testutil"
)

func newRunner(gdb *gorm.DB) *JobRunner {
	ledger := wallet.NewLedger()
	return NewJobRunner(gdb, ledger, order.NewService(gdb, ledger, nil), 48*time.Hour)
}

func TestReconcileSnapshots(t *testing.T) {
	gdb := testutil.NewDB(t)
	user := testutil.CreateProfile(t, gdb, models.RoleUser)
	mitra := testutil.CreateProfile(t, gdb, models.RoleMitra)
	require.NoError(t, gdb.Create(&models.UserProfile{UserID: user.ID}).Error)
	require.NoError(t, gdb.Create(&models.MitraProfile{
		MitraID:         mitra.ID,
		BalanceSnapshot: decimal.NewFromInt(999),
	}).Error)

	testutil.Credit(t, gdb, user.ID, 150000)
	testutil.Credit(t, gdb, user.ID, -20000)

	jr := newRunner(gdb)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	jr.now = func() time.Time { return at }

	n, err := jr.reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var up models.UserProfile
	require.NoError(t, gdb.First(&up, "user_id = ?", user.ID).Error)
	assert.True(t, decimal.NewFromInt(130000).Equal(up.BalanceSnapshot), "got %s", up.BalanceSnapshot)
	require.NotNil(t, up.SnapshotAt)
	assert.True(t, at.Equal(*up.SnapshotAt))

	var mp models.MitraProfile
	require.NoError(t, gdb.First(&mp, "mitra_id = ?", mitra.ID).Error)
	assert.True(t, mp.BalanceSnapshot.IsZero(), "got %s", mp.BalanceSnapshot)
}

func TestExpireStaleOrders(t *testing.T) {
	gdb := testutil.NewDB(t)
	user := testutil.CreateProfile(t, gdb, models.RoleUser)
	svc := testutil.CreateService(t, gdb, 50000)

	jr := newRunner(gdb)
	o, err := jr.orders.Create(context.Background(), order.CreateInput{
		UserID:        user.ID,
		ServiceID:     svc.ID,
		ScheduledDate: "2026-11-02",
		ScheduledTime: "10:00",
		Address:       "Jl. Asia Afrika 8, Bandung",
		PaymentMethod: models.PaymentCash,
	})
	require.NoError(t, err)

	jr.ExpireStaleOrders()
	got, err := jr.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	jr.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	jr.ExpireStaleOrders()
	got, err = jr.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
}

func TestRunRecoversPanics(t *testing.T) {
	jr := &JobRunner{now: time.Now}
	assert.NotPanics(t, func() {
		jr.run("boom", func(context.Context) error { panic("boom") })
	})
}

func TestNewScheduler(t *testing.T) {
	jr := &JobRunner{now: time.Now}

	s, err := NewScheduler(&config.Config{
		ReconcileSchedule:   "0 */10 * * * *",
		OrderExpirySchedule: "0 0 * * * *",
	}, jr)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	_, err = NewScheduler(&config.Config{
		ReconcileSchedule:   "every ten minutes",
		OrderExpirySchedule: "0 0 * * * *",
	}, jr)
	assert.Error(t, err)
}
