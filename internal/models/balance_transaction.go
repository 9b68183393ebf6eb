package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// amounts travel as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

type TransactionType string

const (
	TrxTopUp      TransactionType = "topup"
	TrxPayment    TransactionType = "payment"    // order payment, mitra deposit and their refunds
	TrxCommission TransactionType = "commission" // payout to mitra on completion
	TrxVoucher    TransactionType = "voucher"
	TrxWithdrawal TransactionType = "withdrawal"
	TrxTransfer   TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TrxTopUp, TrxPayment, TrxCommission, TrxVoucher, TrxWithdrawal, TrxTransfer:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

// BalanceTransaction is one immutable ledger line. Negative amounts are
// debits. A user's balance is the sum of their approved lines.
type BalanceTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Type        TransactionType `gorm:"type:varchar(20);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	OrderID     *uuid.UUID      `gorm:"type:uuid;index" json:"order_id,omitempty"`
	VoucherID   *uuid.UUID      `gorm:"type:uuid;index" json:"voucher_id,omitempty"`
	Status      ApprovalStatus  `gorm:"type:varchar(20);not null;default:'approved';index" json:"status"`
	ApprovedBy  *uuid.UUID      `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

func (t *BalanceTransaction) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

type TopUpRequest struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status     ApprovalStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ApprovedBy *uuid.UUID      `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt *time.Time      `json:"approved_at"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}

func (r *TopUpRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
