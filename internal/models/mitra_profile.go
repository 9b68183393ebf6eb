package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MitraProfile struct {
	MitraID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"mitra_id"`
	IsActive     bool           `gorm:"not null;default:false" json:"is_active"`
	ServiceTypes datatypes.JSON `json:"service_types"` // ["cleaning","laundry",...]
	ProfileImage string         `gorm:"type:text" json:"profile_image"`
	Description  string         `gorm:"type:text" json:"description"`

	BalanceSnapshot decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance_snapshot"`
	SnapshotAt      *time.Time      `json:"snapshot_at,omitempty"`
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

type MitraVerification struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	MitraID         uuid.UUID          `gorm:"type:uuid;index;not null" json:"mitra_id"`
	KTPImage        string             `gorm:"type:text" json:"ktp_image"`
	KKImage         string             `gorm:"type:text" json:"kk_image"`
	Status          VerificationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RejectionReason string             `gorm:"type:text" json:"rejection_reason"`
	SubmittedAt     time.Time          `gorm:"autoCreateTime" json:"submitted_at"`
	ReviewedAt      *time.Time         `json:"reviewed_at"`
	ReviewedBy      *uuid.UUID         `gorm:"type:uuid" json:"reviewed_by"`
}

func (v *MitraVerification) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return
}
