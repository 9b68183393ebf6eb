package voucher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/metrics"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
)

type Service struct {
	db       *gorm.DB
	ledger   *wallet.Ledger
	notifier realtime.Notifier
	now      func() time.Time
}

func NewService(db *gorm.DB, ledger *wallet.Ledger, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{db: db, ledger: ledger, notifier: notifier, now: time.Now}
}

// ListActive returns vouchers that can still be redeemed by someone.
func (s *Service) ListActive(ctx context.Context) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("valid_until IS NULL OR valid_until > ?", s.now()).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		Order("created_at DESC").
		Find(&vouchers).Error
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list vouchers: %w", err))
	}
	return vouchers, nil
}

// Redeem credits userID with the voucher's discount_amount. The voucher row
// is locked for the whole check so usage_limit holds under concurrent
// redemptions; the unique (voucher_id, user_id) index stops a user from
// redeeming twice.
func (s *Service) Redeem(ctx context.Context, voucherID, userID uuid.UUID) (*models.VoucherUsage, error) {
	var usage models.VoucherUsage
	var credited models.Voucher
	var credit *models.BalanceTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.Voucher
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, "id = ?", voucherID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("voucher not found")
		}
		if err != nil {
			return apperror.Internal(fmt.Errorf("lock voucher: %w", err))
		}

		switch {
		case !v.IsActive:
			return apperror.Precondition("voucher is not active")
		case v.ValidUntil != nil && v.ValidUntil.Before(s.now()):
			return apperror.Precondition("voucher has expired")
		case v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit:
			return apperror.Precondition("voucher usage limit reached")
		}

		var user models.Profile
		err = tx.Select("id", "is_blocked").First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("profile not found")
		}
		if err != nil {
			return apperror.Internal(fmt.Errorf("load profile: %w", err))
		}
		if user.IsBlocked {
			return apperror.Precondition("account is blocked")
		}

		var used int64
		err = tx.Model(&models.VoucherUsage{}).
			Where("voucher_id = ? AND user_id = ?", voucherID, userID).
			Count(&used).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("count voucher usage: %w", err))
		}
		if used > 0 {
			return apperror.Precondition("voucher already used")
		}

		usage = models.VoucherUsage{VoucherID: voucherID, UserID: userID}
		if err := tx.Create(&usage).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Precondition("voucher already used")
			}
			return apperror.Internal(fmt.Errorf("insert voucher usage: %w", err))
		}

		err = tx.Model(&v).Update("used_count", gorm.Expr("used_count + ?", 1)).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("increment voucher usage: %w", err))
		}

		if credit, err = s.ledger.Record(ctx, tx, wallet.Entry{
			UserID:      userID,
			Type:        models.TrxVoucher,
			Amount:      v.DiscountAmount,
			Description: "Voucher " + v.Code,
			VoucherID:   &v.ID,
		}); err != nil {
			return err
		}
		credited = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	wallet.Committed(credit)
	metrics.VoucherRedemptions.Inc()
	s.notifier.Notify(ctx, userID, realtime.Event{Type: realtime.EventBalanceChanged, Data: credited})
	return &usage, nil
}
