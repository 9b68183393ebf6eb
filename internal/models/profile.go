package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleMitra Role = "mitra"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleMitra, RoleAdmin:
		return true
	}
	return false
}

// Profile is the identity record every other entity points back to.
type Profile struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:text" json:"-"`
	FullName     string    `gorm:"type:varchar(150)" json:"full_name"`
	Phone        string    `gorm:"type:varchar(30)" json:"phone"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'user';index" json:"role"`
	IsVerified   bool      `gorm:"not null;default:false" json:"is_verified"`
	IsBlocked    bool      `gorm:"not null;default:false" json:"is_blocked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Role == "" {
		p.Role = RoleUser
	}
	return
}

// UserProfile holds customer specific data. BalanceSnapshot is written by the
// reconcile job for display only; the ledger sum is authoritative.
type UserProfile struct {
	UserID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"user_id"`
	Address         string          `gorm:"type:text" json:"address"`
	BalanceSnapshot decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance_snapshot"`
	SnapshotAt      *time.Time      `json:"snapshot_at,omitempty"`
}
