package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/metrics"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
)

// VerificationResult is returned by admin decisions. ProfileVerified is
// the mitra's is_verified flag after the decision.
type VerificationResult struct {
	Verification    models.MitraVerification `json:"verification"`
	ProfileVerified bool                     `json:"profile_verified"`
}

type Service struct {
	db       *gorm.DB
	notifier realtime.Notifier
}

func NewService(db *gorm.DB, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{db: db, notifier: notifier}
}

// Submit files identity documents for review. A mitra has at most one
// pending submission at a time.
func (s *Service) Submit(ctx context.Context, mitraID uuid.UUID, ktpImage, kkImage string) (*models.MitraVerification, error) {
	ktpImage = strings.TrimSpace(ktpImage)
	kkImage = strings.TrimSpace(kkImage)
	if ktpImage == "" || kkImage == "" {
		return nil, apperror.Validation("ktp_image and kk_image are required")
	}

	var v models.MitraVerification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mitra models.Profile
		if err := tx.First(&mitra, "id = ?", mitraID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("mitra not found")
			}
			return apperror.Internal(err)
		}
		if mitra.Role != models.RoleMitra {
			return apperror.Precondition("only a mitra can submit verification")
		}
		if mitra.IsVerified {
			return apperror.Precondition("mitra is already verified")
		}

		var pending int64
		err := tx.Model(&models.MitraVerification{}).
			Where("mitra_id = ? AND status = ?", mitraID, models.VerificationPending).
			Count(&pending).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("count pending verifications: %w", err))
		}
		if pending > 0 {
			return apperror.Precondition("a verification is already pending")
		}

		v = models.MitraVerification{
			MitraID:  mitraID,
			KTPImage: ktpImage,
			KKImage:  kkImage,
			Status:   models.VerificationPending,
		}
		if err := tx.Create(&v).Error; err != nil {
			return apperror.Internal(fmt.Errorf("insert verification: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) List(ctx context.Context) ([]models.MitraVerification, error) {
	var rows []models.MitraVerification
	if err := s.db.WithContext(ctx).Order("submitted_at DESC").Find(&rows).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("list verifications: %w", err))
	}
	return rows, nil
}

// Approve marks the submission approved and sets the mitra's is_verified
// flag in the same transaction.
func (s *Service) Approve(ctx context.Context, id, adminID uuid.UUID) (*VerificationResult, error) {
	return s.decide(ctx, id, adminID, models.VerificationApproved, "")
}

// Reject only changes the submission; the profile is left as is.
func (s *Service) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*VerificationResult, error) {
	return s.decide(ctx, id, adminID, models.VerificationRejected, strings.TrimSpace(reason))
}

func (s *Service) decide(ctx context.Context, id, adminID uuid.UUID, decision models.VerificationStatus, reason string) (*VerificationResult, error) {
	var res VerificationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v := &res.Verification
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(v, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("verification not found")
		}
		if err != nil {
			return apperror.Internal(fmt.Errorf("lock verification: %w", err))
		}
		if v.Status != models.VerificationPending {
			return apperror.Precondition("invalid state")
		}

		now := time.Now()
		v.Status = decision
		v.ReviewedBy = &adminID
		v.ReviewedAt = &now
		v.RejectionReason = reason
		err = tx.Model(v).Updates(map[string]any{
			"status":           decision,
			"reviewed_by":      adminID,
			"reviewed_at":      now,
			"rejection_reason": reason,
		}).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("update verification: %w", err))
		}

		if decision == models.VerificationApproved {
			err := tx.Model(&models.Profile{}).
				Where("id = ?", v.MitraID).
				Update("is_verified", true).Error
			if err != nil {
				return apperror.Internal(fmt.Errorf("mark profile verified: %w", err))
			}
		}

		var p models.Profile
		if err := tx.Select("is_verified").First(&p, "id = ?", v.MitraID).Error; err != nil {
			return apperror.Internal(fmt.Errorf("reload profile: %w", err))
		}
		res.ProfileVerified = p.IsVerified
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Approvals.WithLabelValues("verification", string(decision)).Inc()
	logger.Info("verification decided", "verification_id", id, "admin_id", adminID, "decision", decision)
	s.notifier.Notify(ctx, res.Verification.MitraID, realtime.Event{Type: realtime.EventVerificationDecided, Data: res})
	return &res, nil
}
