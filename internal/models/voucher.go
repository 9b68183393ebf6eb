package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Voucher struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Code           string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"code"`
	Title          string          `gorm:"type:varchar(150);not null" json:"title"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	IsActive       bool            `gorm:"not null;default:true" json:"is_active"`
	UsageLimit     *int            `json:"usage_limit"`
	UsedCount      int             `gorm:"not null;default:0" json:"used_count"`
	ValidUntil     *time.Time      `json:"valid_until"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (v *Voucher) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return
}

// VoucherUsage records a redemption; (voucher_id, user_id) is unique so a user
// redeems a voucher at most once.
type VoucherUsage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VoucherID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_voucher_usage_voucher_user" json:"voucher_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_voucher_usage_voucher_user" json:"user_id"`
	UsedAt    time.Time `gorm:"autoCreateTime" json:"used_at"`
}

func (u *VoucherUsage) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
