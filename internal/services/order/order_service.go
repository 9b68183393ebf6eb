package order

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
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/metrics"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
)

var (
	// DepositRate is the share of total_price a mitra puts down on accept.
	DepositRate = decimal.RequireFromString("0.2")
	// PayoutRate is credited on completion: the deposit back plus the price.
	PayoutRate = decimal.RequireFromString("1.2")
)

// orderCodeAttempts bounds the retries when a generated order code is
// already taken.
const orderCodeAttempts = 3

var errOrderCodeTaken = errors.New("order code already taken")

type Service struct {
	db       *gorm.DB
	ledger   *wallet.Ledger
	notifier realtime.Notifier
	newCode  func() string
}

func NewService(db *gorm.DB, ledger *wallet.Ledger, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{db: db, ledger: ledger, notifier: notifier, newCode: models.GenerateOrderCode}
}

type CreateInput struct {
	UserID        uuid.UUID
	ServiceID     uuid.UUID
	ScheduledDate string
	ScheduledTime string
	Address       string
	Latitude      *float64
	Longitude     *float64
	PaymentMethod models.PaymentMethod
	Notes         string
}

func (in *CreateInput) validate() error {
	in.Address = strings.TrimSpace(in.Address)
	if in.UserID == uuid.Nil {
		return apperror.Validation("user is required")
	}
	if in.ServiceID == uuid.Nil {
		return apperror.Validation("service_id is required")
	}
	if in.Address == "" {
		return apperror.Validation("address is required")
	}
	if !in.PaymentMethod.Valid() {
		return apperror.Validation("payment_method must be balance or cash")
	}
	return validateSchedule(in.ScheduledDate, in.ScheduledTime)
}

func validateSchedule(date, clock string) error {
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return apperror.Validation("scheduled_date must be YYYY-MM-DD")
		}
	}
	if clock != "" {
		if _, err := time.Parse("15:04", clock); err != nil {
			return apperror.Validation("scheduled_time must be HH:MM")
		}
	}
	return nil
}

// Create inserts a pending order priced from the catalogue. Balance orders
// are paid up front with an approved debit tagged to the order.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var order models.Order
	var payment *models.BalanceTransaction
	var err error
	for attempt := 1; attempt <= orderCodeAttempts; attempt++ {
		order, payment = models.Order{}, nil
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.create(ctx, tx, in, &order, &payment)
		})
		if !errors.Is(err, errOrderCodeTaken) {
			break
		}
		logger.Warn("order code collision", "attempt", attempt, "code", order.OrderCode)
	}
	if errors.Is(err, errOrderCodeTaken) {
		err = apperror.Internal(err)
	}
	if err != nil {
		return nil, err
	}

	wallet.Committed(payment)
	metrics.OrderTransitions.WithLabelValues(string(models.OrderStatusPending)).Inc()
	s.notifier.Notify(ctx, order.UserID, realtime.Event{Type: realtime.EventOrderCreated, Data: order})
	return &order, nil
}

// create inserts the order and its prepayment inside tx.
func (s *Service) create(ctx context.Context, tx *gorm.DB, in CreateInput, order *models.Order, payment **models.BalanceTransaction) error {
	var user models.Profile
	if err := tx.First(&user, "id = ?", in.UserID).Error; err != nil {
		return notFound(err, "user not found")
	}
	if user.IsBlocked {
		return apperror.Precondition("account is blocked")
	}

	var svc models.Service
	if err := tx.First(&svc, "id = ?", in.ServiceID).Error; err != nil {
		return notFound(err, "service not found")
	}
	if !svc.IsActive {
		return apperror.Precondition("service is not available")
	}

	*order = models.Order{
		OrderCode:       s.newCode(),
		UserID:          in.UserID,
		ServiceID:       svc.ID,
		ServiceName:     svc.Name,
		TotalPrice:      svc.BasePrice,
		DurationMinutes: svc.DurationMinutes,
		ScheduledDate:   in.ScheduledDate,
		ScheduledTime:   in.ScheduledTime,
		Address:         in.Address,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		PaymentMethod:   in.PaymentMethod,
		Status:          models.OrderStatusPending,
		Notes:           in.Notes,
	}
	err := tx.Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errOrderCodeTaken
	}
	if err != nil {
		return apperror.Internal(fmt.Errorf("insert order: %w", err))
	}

	if order.PaymentMethod == models.PaymentBalance {
		*payment, err = s.ledger.Record(ctx, tx, wallet.Entry{
			UserID:      order.UserID,
			Type:        models.TrxPayment,
			Amount:      order.TotalPrice.Neg(),
			Description: "Payment for order " + order.OrderCode,
			OrderID:     &order.ID,
		})
		return err
	}
	return nil
}

// Accept assigns mitraID to a pending order after taking the mitra's
// deposit. The balance check runs inside the transaction with the mitra
// row locked, so two concurrent accepts cannot both spend the same funds.
func (s *Service) Accept(ctx context.Context, orderID, mitraID uuid.UUID) (*models.Order, error) {
	var order models.Order
	var depositTrx *models.BalanceTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending {
			return apperror.Precondition(fmt.Sprintf("order is %s, not pending", order.Status))
		}

		var mitra models.Profile
		if err := tx.First(&mitra, "id = ?", mitraID).Error; err != nil {
			return notFound(err, "mitra not found")
		}
		if mitra.Role != models.RoleMitra {
			return apperror.Precondition("only a mitra can accept orders")
		}
		if mitra.IsBlocked {
			return apperror.Precondition("mitra is blocked")
		}

		var mp models.MitraProfile
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.MitraProfile{MitraID: mitraID}).
			FirstOrCreate(&mp).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("lock mitra profile: %w", err))
		}

		deposit := order.TotalPrice.Mul(DepositRate).Round(2)
		balance, err := s.ledger.Balance(ctx, tx, mitraID)
		if err != nil {
			return err
		}
		if balance.LessThan(deposit) {
			return apperror.Precondition("insufficient balance")
		}

		if depositTrx, err = s.ledger.Record(ctx, tx, wallet.Entry{
			UserID:      mitraID,
			Type:        models.TrxPayment,
			Amount:      deposit.Neg(),
			Description: "Deposit for order " + order.OrderCode,
			OrderID:     &order.ID,
		}); err != nil {
			return err
		}

		order.Status = models.OrderStatusAccepted
		order.MitraID = &mitraID
		return saveOrder(tx, &order, map[string]any{
			"status":   order.Status,
			"mitra_id": mitraID,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet.Committed(depositTrx)
	s.transitioned(ctx, &order)
	return &order, nil
}

// Start moves an accepted order to in_progress.
func (s *Service) Start(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if !order.Status.CanTransition(models.OrderStatusInProgress) {
			return apperror.Precondition(fmt.Sprintf("cannot start a %s order", order.Status))
		}

		now := time.Now()
		order.Status = models.OrderStatusInProgress
		order.StartedAt = &now
		return saveOrder(tx, &order, map[string]any{
			"status":     order.Status,
			"started_at": now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.transitioned(ctx, &order)
	return &order, nil
}

// Complete finishes the order and credits the mitra once with
// PayoutRate × total_price. A second call fails on the status guard.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	var payout *models.BalanceTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if !order.Status.CanTransition(models.OrderStatusCompleted) {
			return apperror.Precondition(fmt.Sprintf("cannot complete a %s order", order.Status))
		}
		if order.MitraID == nil {
			return apperror.Precondition("order has no mitra")
		}

		var err error
		if payout, err = s.ledger.Record(ctx, tx, wallet.Entry{
			UserID:      *order.MitraID,
			Type:        models.TrxCommission,
			Amount:      order.TotalPrice.Mul(PayoutRate).Round(2),
			Description: "Payout for order " + order.OrderCode,
			OrderID:     &order.ID,
		}); err != nil {
			return err
		}

		now := time.Now()
		order.Status = models.OrderStatusCompleted
		order.CompletedAt = &now
		order.InvoiceURL = InvoiceURL(order.ID)
		return saveOrder(tx, &order, map[string]any{
			"status":       order.Status,
			"completed_at": now,
			"invoice_url":  order.InvoiceURL,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet.Committed(payout)
	s.transitioned(ctx, &order)
	if order.MitraID != nil {
		s.notifier.Notify(ctx, *order.MitraID, realtime.Event{Type: realtime.EventBalanceChanged})
	}
	return &order, nil
}

func InvoiceURL(orderID uuid.UUID) string {
	return "/invoices/" + orderID.String() + ".pdf"
}

// Rate records the customer's rating of a completed order. An order is
// rated once.
func (s *Service) Rate(ctx context.Context, orderID uuid.UUID, rating int, review string) (*models.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.Validation("rating must be between 1 and 5")
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.Status != models.OrderStatusCompleted {
			return apperror.Precondition("only completed orders can be rated")
		}
		if order.Rating != nil {
			return apperror.Precondition("order already rated")
		}

		order.Rating = &rating
		order.Review = strings.TrimSpace(review)
		return saveOrder(tx, &order, map[string]any{
			"rating": rating,
			"review": order.Review,
		})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Cancel stops a pending or accepted order. Money already taken for the
// order goes back through offsetting payment entries: the customer's
// prepayment and, once accepted, the mitra's deposit.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	var order models.Order
	var refunds []*models.BalanceTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if !order.Status.CanTransition(models.OrderStatusCancelled) {
			return apperror.Precondition(fmt.Sprintf("cannot cancel a %s order", order.Status))
		}

		trx, err := s.refund(ctx, tx, &order, order.UserID, "Refund for order ")
		if err != nil {
			return err
		}
		refunds = append(refunds, trx)
		if order.MitraID != nil {
			if trx, err = s.refund(ctx, tx, &order, *order.MitraID, "Deposit returned for order "); err != nil {
				return err
			}
			refunds = append(refunds, trx)
		}

		now := time.Now()
		order.Status = models.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancellationReason = strings.TrimSpace(reason)
		return saveOrder(tx, &order, map[string]any{
			"status":              order.Status,
			"cancelled_at":        now,
			"cancellation_reason": order.CancellationReason,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet.Committed(refunds...)
	s.transitioned(ctx, &order)
	return &order, nil
}

// refund credits back whatever net amount userID has paid for the order.
func (s *Service) refund(ctx context.Context, tx *gorm.DB, order *models.Order, userID uuid.UUID, desc string) (*models.BalanceTransaction, error) {
	var paid decimal.Decimal
	err := tx.Model(&models.BalanceTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("order_id = ? AND user_id = ? AND type = ? AND status = ?",
			order.ID, userID, models.TrxPayment, models.ApprovalApproved).
		Row().
		Scan(&paid)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("sum order payments: %w", err))
	}
	if !paid.IsNegative() {
		return nil, nil
	}

	return s.ledger.Record(ctx, tx, wallet.Entry{
		UserID:      userID,
		Type:        models.TrxPayment,
		Amount:      paid.Neg(),
		Description: desc + order.OrderCode,
		OrderID:     &order.ID,
	})
}

// ExpirePending cancels every pending order created before cutoff and
// returns how many were cancelled. Orders that change state concurrently
// are skipped.
func (s *Service) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, apperror.Internal(fmt.Errorf("list stale orders: %w", err))
	}

	cancelled := 0
	for _, id := range ids {
		if _, err := s.Cancel(ctx, id, "expired: no mitra accepted in time"); err != nil {
			if apperror.Is(err, apperror.KindPrecondition) {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, notFound(err, "order not found")
	}
	return &order, nil
}

type ListFilter struct {
	UserID  *uuid.UUID
	MitraID *uuid.UUID
	Status  models.OrderStatus
}

// List returns orders matching f, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.MitraID != nil {
		q = q.Where("mitra_id = ?", *f.MitraID)
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, apperror.Validation(fmt.Sprintf("unknown status %q", f.Status))
		}
		q = q.Where("status = ?", f.Status)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("list orders: %w", err))
	}
	return orders, nil
}

// UpdateInput carries the non-financial fields a customer may change.
// Nil fields are left alone.
type UpdateInput struct {
	Notes         *string
	Address       *string
	ScheduledDate *string
	ScheduledTime *string
}

func (s *Service) Update(ctx context.Context, orderID uuid.UUID, in UpdateInput) (*models.Order, error) {
	updates := map[string]any{}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if in.Address != nil {
		addr := strings.TrimSpace(*in.Address)
		if addr == "" {
			return nil, apperror.Validation("address must not be empty")
		}
		updates["address"] = addr
	}
	if in.ScheduledDate != nil {
		if err := validateSchedule(*in.ScheduledDate, ""); err != nil {
			return nil, err
		}
		updates["scheduled_date"] = *in.ScheduledDate
	}
	if in.ScheduledTime != nil {
		if err := validateSchedule("", *in.ScheduledTime); err != nil {
			return nil, err
		}
		updates["scheduled_time"] = *in.ScheduledTime
	}
	if len(updates) == 0 {
		return nil, apperror.Validation("nothing to update")
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusCancelled {
			return apperror.Precondition(fmt.Sprintf("cannot edit a %s order", order.Status))
		}
		if err := saveOrder(tx, &order, updates); err != nil {
			return err
		}
		return tx.First(&order, "id = ?", orderID).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func lockOrder(tx *gorm.DB, orderID uuid.UUID, order *models.Order) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(order, "id = ?", orderID).Error
	return notFound(err, "order not found")
}

func saveOrder(tx *gorm.DB, order *models.Order, updates map[string]any) error {
	if err := tx.Model(order).Updates(updates).Error; err != nil {
		return apperror.Internal(fmt.Errorf("update order %s: %w", order.ID, err))
	}
	return nil
}

// notFound maps gorm.ErrRecordNotFound to a NotFound error; other
// failures become internal. A nil err stays nil.
func notFound(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(msg)
	default:
		return apperror.Internal(err)
	}
}

func (s *Service) transitioned(ctx context.Context, order *models.Order) {
	metrics.OrderTransitions.WithLabelValues(string(order.Status)).Inc()
	logger.Info("order status changed", "order_id", order.ID, "status", order.Status)

	ev := realtime.Event{Type: realtime.EventOrderStatus, Data: order}
	s.notifier.Notify(ctx, order.UserID, ev)
	if order.MitraID != nil {
		s.notifier.Notify(ctx, *order.MitraID, ev)
	}
}
