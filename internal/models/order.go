// internal/models/order.go
package models

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"     // waiting for a mitra
	OrderStatusAccepted   OrderStatus = "accepted"    // mitra took the job, deposit held
	OrderStatusInProgress OrderStatus = "in_progress" // work started
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]bool{
	OrderStatusPending:    true,
	OrderStatusAccepted:   true,
	OrderStatusInProgress: true,
	OrderStatusCompleted:  true,
	OrderStatusCancelled:  true,
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Transitions only move forward.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch next {
	case OrderStatusAccepted:
		return s == OrderStatusPending
	case OrderStatusInProgress:
		return s == OrderStatusAccepted
	case OrderStatusCompleted:
		return s == OrderStatusAccepted || s == OrderStatusInProgress
	case OrderStatusCancelled:
		return s == OrderStatusPending || s == OrderStatusAccepted
	}
	return false
}

func (s OrderStatus) Valid() bool {
	return orderStatuses[s]
}

type PaymentMethod string

const (
	PaymentBalance PaymentMethod = "balance"
	PaymentCash    PaymentMethod = "cash"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentBalance || p == PaymentCash
}

type Order struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderCode string     `gorm:"uniqueIndex;size:10" json:"order_code"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	MitraID   *uuid.UUID `gorm:"type:uuid;index" json:"mitra_id"`
	ServiceID uuid.UUID  `gorm:"type:uuid;index;not null" json:"service_id"`

	ServiceName     string          `gorm:"type:varchar(150);not null" json:"service_name"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	DurationMinutes int             `gorm:"not null" json:"duration_minutes"`
	ScheduledDate   string          `gorm:"type:varchar(10)" json:"scheduled_date"` // 2026-01-03
	ScheduledTime   string          `gorm:"type:varchar(8)" json:"scheduled_time"`  // 09:30
	Address         string          `gorm:"type:text;not null" json:"address"`
	Latitude        *float64        `json:"latitude"`
	Longitude       *float64        `json:"longitude"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`

	Rating *int   `json:"rating"`
	Review string `gorm:"type:text" json:"review"`

	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason,omitempty"`
	InvoiceURL         string     `gorm:"type:text" json:"invoice_url"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OrderCode == "" {
		o.OrderCode = GenerateOrderCode()
	}
	return
}

// GenerateOrderCode generates a random alphanumeric code
func GenerateOrderCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
