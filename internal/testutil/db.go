// Package testutil provides an in-memory database for service and handler
// tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/db"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

// NewDB returns a migrated SQLite database private to the test. A single
// connection is used so the in-memory database lives as long as the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func CreateProfile(t *testing.T, gdb *gorm.DB, role models.Role) models.Profile {
	t.Helper()

	p := models.Profile{
		Email:    uuid.NewString() + "@example.com",
		FullName: string(role) + " test",
		Role:     role,
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}

func CreateService(t *testing.T, gdb *gorm.DB, price int64) models.Service {
	t.Helper()

	s := models.Service{
		Name:            "Cuci AC",
		BasePrice:       decimal.NewFromInt(price),
		DurationMinutes: 90,
		IsActive:        true,
	}
	require.NoError(t, gdb.Create(&s).Error)
	return s
}

// Credit seeds an approved ledger line for userID.
func Credit(t *testing.T, gdb *gorm.DB, userID uuid.UUID, amount int64) {
	t.Helper()

	trx := models.BalanceTransaction{
		UserID:      userID,
		Type:        models.TrxTopUp,
		Amount:      decimal.NewFromInt(amount),
		Description: "seed",
		Status:      models.ApprovalApproved,
	}
	require.NoError(t, gdb.Create(&trx).Error)
}

// Sum adds up approved ledger lines for userID directly from the table.
func Sum(t *testing.T, gdb *gorm.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()

	var rows []models.BalanceTransaction
	require.NoError(t, gdb.Where("user_id = ?", userID).Find(&rows).Error)

	total := decimal.Zero
	for _, r := range rows {
		if r.Status == models.ApprovalApproved {
			total = total.Add(r.Amount)
		}
	}
	return total
}
