package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

// reconcile rewrites the snapshot columns of user and mitra sub-profiles
// from the ledger. Profiles without entries get zero.
func (jr *JobRunner) reconcile(ctx context.Context) (int, error) {
	at := jr.now()
	updated := 0

	err := jr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balances, err := jr.ledger.Balances(ctx, tx)
		if err != nil {
			return err
		}

		var userIDs []uuid.UUID
		if err := tx.Model(&models.UserProfile{}).Pluck("user_id", &userIDs).Error; err != nil {
			return fmt.Errorf("list user profiles: %w", err)
		}
		for _, id := range userIDs {
			if err := snapshot(tx, &models.UserProfile{}, "user_id", id, balances[id], at); err != nil {
				return err
			}
			updated++
		}

		var mitraIDs []uuid.UUID
		if err := tx.Model(&models.MitraProfile{}).Pluck("mitra_id", &mitraIDs).Error; err != nil {
			return fmt.Errorf("list mitra profiles: %w", err)
		}
		for _, id := range mitraIDs {
			if err := snapshot(tx, &models.MitraProfile{}, "mitra_id", id, balances[id], at); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func snapshot(tx *gorm.DB, model any, key string, id uuid.UUID, bal decimal.Decimal, at time.Time) error {
	err := tx.Model(model).
		Where(key+" = ?", id).
		Updates(map[string]any{"balance_snapshot": bal, "snapshot_at": at}).Error
	if err != nil {
		return fmt.Errorf("snapshot %s %s: %w", key, id, err)
	}
	return nil
}
