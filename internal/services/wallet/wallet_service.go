package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/metrics"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

// Entry describes one ledger line to append.
type Entry struct {
	UserID      uuid.UUID
	Type        models.TransactionType
	Amount      decimal.Decimal // signed; negative is a debit
	Status      models.ApprovalStatus
	Description string
	OrderID     *uuid.UUID
	VoucherID   *uuid.UUID
	ApprovedBy  *uuid.UUID
	ApprovedAt  *time.Time // defaults to now when ApprovedBy is set
}

// Ledger appends balance transactions and derives balances from them. It
// holds no state of its own; callers hand in the *gorm.DB to use so a ledger
// write can join an enclosing transaction.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends e using tx. It must be called inside the same database
// transaction as any status change it accompanies.
func (l *Ledger) Record(ctx context.Context, tx *gorm.DB, e Entry) (*models.BalanceTransaction, error) {
	if e.UserID == uuid.Nil {
		return nil, apperror.Validation("ledger entry needs a user")
	}
	if !e.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction type %q", e.Type))
	}
	if e.Status == "" {
		e.Status = models.ApprovalApproved
	}
	if !e.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction status %q", e.Status))
	}
	if e.Amount.IsZero() {
		return nil, apperror.Validation("ledger amount must not be zero")
	}

	trx := models.BalanceTransaction{
		UserID:      e.UserID,
		Type:        e.Type,
		Amount:      e.Amount,
		Description: e.Description,
		OrderID:     e.OrderID,
		VoucherID:   e.VoucherID,
		Status:      e.Status,
		ApprovedBy:  e.ApprovedBy,
	}
	if e.Status == models.ApprovalApproved && e.ApprovedBy != nil {
		trx.ApprovedAt = e.ApprovedAt
		if trx.ApprovedAt == nil {
			now := time.Now()
			trx.ApprovedAt = &now
		}
	}

	if err := tx.WithContext(ctx).Create(&trx).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("insert balance transaction: %w", err))
	}

	return &trx, nil
}

// Committed counts lines whose transaction has committed. Nil entries are
// skipped.
func Committed(entries ...*models.BalanceTransaction) {
	for _, e := range entries {
		if e != nil {
			metrics.LedgerEntries.WithLabelValues(string(e.Type), string(e.Status)).Inc()
		}
	}
}

// Balance sums the approved amounts of userID. Pending and rejected lines
// never count. Called with a transaction handle it sees that transaction's
// own writes.
func (l *Ledger) Balance(ctx context.Context, db *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.WithContext(ctx).
		Model(&models.BalanceTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status = ?", userID, models.ApprovalApproved).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, apperror.Internal(fmt.Errorf("sum balance: %w", err))
	}
	return total, nil
}

// History lists every ledger line of userID, newest first.
func (l *Ledger) History(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]models.BalanceTransaction, error) {
	var rows []models.BalanceTransaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list balance transactions: %w", err))
	}
	return rows, nil
}

// Balances derives the balance of every user with at least one approved
// line. Used by the snapshot job.
func (l *Ledger) Balances(ctx context.Context, db *gorm.DB) (map[uuid.UUID]decimal.Decimal, error) {
	type row struct {
		UserID uuid.UUID
		Total  decimal.Decimal
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&models.BalanceTransaction{}).
		Select("user_id, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", models.ApprovalApproved).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("sum balances: %w", err))
	}

	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Total
	}
	return out, nil
}
