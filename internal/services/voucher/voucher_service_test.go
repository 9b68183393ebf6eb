package voucher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/testutil"
)

func createVoucher(t *testing.T, gdb *gorm.DB, code string, mutate func(*models.Voucher)) models.Voucher {
	t.Helper()
	v := models.Voucher{
		Code:           code,
		Title:          "Diskon " + code,
		DiscountAmount: decimal.NewFromInt(15000),
		IsActive:       true,
	}
	if mutate != nil {
		mutate(&v)
	}
	require.NoError(t, gdb.Create(&v).Error)
	return v
}

func countUsage(t *testing.T, gdb *gorm.DB, voucherID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&models.VoucherUsage{}).Where("voucher_id = ?", voucherID).Count(&n).Error)
	return n
}

func TestVoucher_RedeemTwice(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewService(gdb, wallet.NewLedger(), nil)
	ctx := context.Background()
	user := testutil.CreateProfile(t, gdb, models.RoleUser)
	v := createVoucher(t, gdb, "HEMAT15", nil)

	usage, err := svc.Redeem(ctx, v.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, usage.VoucherID)
	assert.Equal(t, user.ID, usage.UserID)

	_, err = svc.Redeem(ctx, v.ID, user.ID)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPrecondition))

	assert.EqualValues(t, 1, countUsage(t, gdb, v.ID))
	assert.True(t, testutil.Sum(t, gdb, user.ID).Equal(decimal.NewFromInt(15000)))

	var stored models.Voucher
	require.NoError(t, gdb.First(&stored, "id = ?", v.ID).Error)
	assert.Equal(t, 1, stored.UsedCount)

	var trx models.BalanceTransaction
	require.NoError(t, gdb.First(&trx, "user_id = ?", user.ID).Error)
	assert.Equal(t, models.TrxVoucher, trx.Type)
	require.NotNil(t, trx.VoucherID)
	assert.Equal(t, v.ID, *trx.VoucherID)
}

func TestVoucher_RedeemGuards(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewService(gdb, wallet.NewLedger(), nil)
	ctx := context.Background()
	user := testutil.CreateProfile(t, gdb, models.RoleUser)

	past := time.Now().Add(-time.Hour)
	expired := createVoucher(t, gdb, "LEWAT", func(v *models.Voucher) { v.ValidUntil = &past })

	inactive := createVoucher(t, gdb, "MATI", nil)
	require.NoError(t, gdb.Model(&inactive).Update("is_active", false).Error)

	one := 1
	limited := createVoucher(t, gdb, "SEKALI", func(v *models.Voucher) { v.UsageLimit = &one })
	first := testutil.CreateProfile(t, gdb, models.RoleUser)
	_, err := svc.Redeem(ctx, limited.ID, first.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		id   uuid.UUID
		kind apperror.Kind
	}{
		{"missing", uuid.New(), apperror.KindNotFound},
		{"expired", expired.ID, apperror.KindPrecondition},
		{"inactive", inactive.ID, apperror.KindPrecondition},
		{"limit reached", limited.ID, apperror.KindPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Redeem(ctx, tt.id, user.ID)
			assert.True(t, apperror.Is(err, tt.kind), "got %v", err)
		})
	}

	assert.True(t, testutil.Sum(t, gdb, user.ID).IsZero())
	assert.EqualValues(t, 1, countUsage(t, gdb, limited.ID))
}

func TestVoucher_ListActive(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewService(gdb, wallet.NewLedger(), nil)
	ctx := context.Background()

	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)
	zero := 0

	createVoucher(t, gdb, "AKTIF", nil)
	createVoucher(t, gdb, "MASIH", func(v *models.Voucher) { v.ValidUntil = &future })
	createVoucher(t, gdb, "BASI", func(v *models.Voucher) { v.ValidUntil = &past })
	createVoucher(t, gdb, "HABIS", func(v *models.Voucher) { v.UsageLimit = &zero })
	off := createVoucher(t, gdb, "OFF", nil)
	require.NoError(t, gdb.Model(&off).Update("is_active", false).Error)

	vouchers, err := svc.ListActive(ctx)
	require.NoError(t, err)

	codes := make([]string, 0, len(vouchers))
	for _, v := range vouchers {
		codes = append(codes, v.Code)
	}
	assert.ElementsMatch(t, []string{"AKTIF", "MASIH"}, codes)
}

func TestVoucher_RedeemBlockedAccount(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewService(gdb, wallet.NewLedger(), nil)
	ctx := context.Background()
	mitra := testutil.CreateProfile(t, gdb, models.RoleMitra)
	require.NoError(t, gdb.Model(&mitra).Update("is_blocked", true).Error)
	v := createVoucher(t, gdb, "BLOKIR", nil)

	_, err := svc.Redeem(ctx, v.ID, mitra.ID)
	assert.True(t, apperror.Is(err, apperror.KindPrecondition), "got %v", err)

	assert.Zero(t, countUsage(t, gdb, v.ID))
	assert.True(t, testutil.Sum(t, gdb, mitra.ID).IsZero())
	var stored models.Voucher
	require.NoError(t, gdb.First(&stored, "id = ?", v.ID).Error)
	assert.Zero(t, stored.UsedCount)
}
