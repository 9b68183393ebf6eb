package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
)

type Service struct {
	db       *gorm.DB
	ledger   *wallet.Ledger
	notifier realtime.Notifier
}

func NewService(db *gorm.DB, ledger *wallet.Ledger, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{db: db, ledger: ledger, notifier: notifier}
}

type TransferInput struct {
	From        uuid.UUID
	To          uuid.UUID
	Amount      decimal.Decimal
	Description string
	AdminID     uuid.UUID
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	Debit  models.BalanceTransaction `json:"debit"`
	Credit models.BalanceTransaction `json:"credit"`
}

// Transfer moves Amount between two profiles as an administrative
// override: the sender's balance is not checked and may go negative.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if !in.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be greater than zero")
	}
	if in.From == uuid.Nil || in.To == uuid.Nil {
		return nil, apperror.Validation("from and to are required")
	}
	if in.From == in.To {
		return nil, apperror.Validation("cannot transfer to the same account")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = "Admin transfer"
	}

	var res TransferResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Profile{}).Where("id IN ?", []uuid.UUID{in.From, in.To}).Count(&n).Error; err != nil {
			return apperror.Internal(fmt.Errorf("load transfer parties: %w", err))
		}
		if n != 2 {
			return apperror.NotFound("profile not found")
		}

		approvedAt := time.Now()
		debit, err := s.ledger.Record(ctx, tx, wallet.Entry{
			UserID:      in.From,
			Type:        models.TrxTransfer,
			Amount:      in.Amount.Neg(),
			Description: desc,
			ApprovedBy:  &in.AdminID,
			ApprovedAt:  &approvedAt,
		})
		if err != nil {
			return err
		}
		credit, err := s.ledger.Record(ctx, tx, wallet.Entry{
			UserID:      in.To,
			Type:        models.TrxTransfer,
			Amount:      in.Amount,
			Description: desc,
			ApprovedBy:  &in.AdminID,
			ApprovedAt:  &approvedAt,
		})
		if err != nil {
			return err
		}

		res.Debit, res.Credit = *debit, *credit
		return nil
	})
	if err != nil {
		return nil, err
	}

	wallet.Committed(&res.Debit, &res.Credit)
	logger.Info("admin transfer", "admin_id", in.AdminID, "from", in.From, "to", in.To, "amount", in.Amount.String())
	s.notifier.Notify(ctx, in.From, realtime.Event{Type: realtime.EventBalanceChanged, Data: res.Debit})
	s.notifier.Notify(ctx, in.To, realtime.Event{Type: realtime.EventBalanceChanged, Data: res.Credit})
	return &res, nil
}

type Stats struct {
	TotalOrders          int64           `json:"totalOrders"`
	TotalUsers           int64           `json:"totalUsers"`
	TotalMitras          int64           `json:"totalMitras"`
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	PendingTopUps        int64           `json:"pendingTopUps"`
	PendingVerifications int64           `json:"pendingVerifications"`
	GeneratedAt          time.Time       `json:"generatedAt"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	st := Stats{GeneratedAt: time.Now()}

	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&st.TotalOrders, &models.Order{}, "", nil},
		{&st.TotalUsers, &models.Profile{}, "role = ?", []any{models.RoleUser}},
		{&st.TotalMitras, &models.Profile{}, "role = ?", []any{models.RoleMitra}},
		{&st.PendingTopUps, &models.TopUpRequest{}, "status = ?", []any{models.ApprovalPending}},
		{&st.PendingVerifications, &models.MitraVerification{}, "status = ?", []any{models.VerificationPending}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, apperror.Internal(fmt.Errorf("stats count: %w", err))
		}
	}

	err := db.Model(&models.Order{}).
		Select("COALESCE(SUM(total_price), 0)").
		Where("status = ?", models.OrderStatusCompleted).
		Row().
		Scan(&st.TotalRevenue)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("stats revenue: %w", err))
	}
	return &st, nil
}

// ToggleMitraStatus flips the block flag of a mitra and returns the
// updated profile.
func (s *Service) ToggleMitraStatus(ctx context.Context, mitraID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ? AND role = ?", mitraID, models.RoleMitra).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("mitra not found")
		}
		if err != nil {
			return apperror.Internal(err)
		}

		p.IsBlocked = !p.IsBlocked
		if err := tx.Model(&p).Update("is_blocked", p.IsBlocked).Error; err != nil {
			return apperror.Internal(fmt.Errorf("toggle mitra: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("mitra status toggled", "mitra_id", mitraID, "blocked", p.IsBlocked)
	return &p, nil
}
