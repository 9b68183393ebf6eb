package topup

import (
	"context"
	"errors"
	"fmt"
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

// MaxAmount caps a single top-up request.
var MaxAmount = decimal.NewFromInt(100_000_000)

// TopUpResult is what an admin decision returns: the request in its final
// state and, for approvals, the ledger line it produced.
type TopUpResult struct {
	Request     models.TopUpRequest        `json:"request"`
	Transaction *models.BalanceTransaction `json:"transaction,omitempty"`
}

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

func (s *Service) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.TopUpRequest, error) {
	if !amount.IsPositive() {
		return nil, apperror.Validation("amount must be greater than zero")
	}
	if amount.GreaterThan(MaxAmount) {
		return nil, apperror.Validation("amount exceeds the top-up limit")
	}
	if amount.Exponent() < -2 {
		return nil, apperror.Validation("amount has more than two decimals")
	}

	var user models.Profile
	err := s.db.WithContext(ctx).Select("id", "is_blocked").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("profile not found")
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load profile: %w", err))
	}
	if user.IsBlocked {
		return nil, apperror.Precondition("account is blocked")
	}

	req := models.TopUpRequest{
		UserID: userID,
		Amount: amount,
		Status: models.ApprovalPending,
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("insert topup request: %w", err))
	}
	return &req, nil
}

// List returns every request, newest first.
func (s *Service) List(ctx context.Context) ([]models.TopUpRequest, error) {
	var reqs []models.TopUpRequest
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("list topup requests: %w", err))
	}
	return reqs, nil
}

// Approve credits the requester with exactly one topup entry. Only pending
// requests can be decided; anything else fails with "invalid state" and
// changes nothing.
func (s *Service) Approve(ctx context.Context, requestID, adminID uuid.UUID) (*TopUpResult, error) {
	res, err := s.decide(ctx, requestID, adminID, models.ApprovalApproved)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, res.Request.UserID, realtime.Event{Type: realtime.EventBalanceChanged, Data: res.Transaction})
	return res, nil
}

// Reject closes a pending request without touching the ledger.
func (s *Service) Reject(ctx context.Context, requestID, adminID uuid.UUID) (*TopUpResult, error) {
	return s.decide(ctx, requestID, adminID, models.ApprovalRejected)
}

func (s *Service) decide(ctx context.Context, requestID, adminID uuid.UUID, decision models.ApprovalStatus) (*TopUpResult, error) {
	var res TopUpResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req := &res.Request
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(req, "id = ?", requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("topup request not found")
		}
		if err != nil {
			return apperror.Internal(fmt.Errorf("lock topup request: %w", err))
		}
		if req.Status != models.ApprovalPending {
			return apperror.Precondition("invalid state")
		}

		now := time.Now()
		req.Status = decision
		req.ApprovedBy = &adminID
		req.ApprovedAt = &now
		err = tx.Model(req).Updates(map[string]any{
			"status":      decision,
			"approved_by": adminID,
			"approved_at": now,
		}).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("update topup request: %w", err))
		}

		if decision != models.ApprovalApproved {
			return nil
		}
		res.Transaction, err = s.ledger.Record(ctx, tx, wallet.Entry{
			UserID:      req.UserID,
			Type:        models.TrxTopUp,
			Amount:      req.Amount,
			Description: "Top-up approved",
			ApprovedBy:  &adminID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	wallet.Committed(res.Transaction)
	metrics.Approvals.WithLabelValues("topup", string(decision)).Inc()
	logger.Info("topup request decided", "request_id", requestID, "admin_id", adminID, "decision", decision)
	s.notifier.Notify(ctx, res.Request.UserID, realtime.Event{Type: realtime.EventTopUpDecided, Data: res.Request})
	return &res, nil
}
