package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

// Connect opens the postgres pool used by every service.
func Connect(dsn string, logLevel string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}

func NewGormLogger(level string) gormlogger.Interface {
	lvl := gormlogger.Warn
	switch level {
	case "debug":
		lvl = gormlogger.Info
	case "error":
		lvl = gormlogger.Error
	case "silent":
		lvl = gormlogger.Silent
	}
	return gormlogger.New(log.New(os.Stdout, "[gorm] ", log.LstdFlags), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Profile{},
		&models.UserProfile{},
		&models.MitraProfile{},
		&models.MitraVerification{},
		&models.Service{},
		&models.Order{},
		&models.Voucher{},
		&models.VoucherUsage{},
		&models.BalanceTransaction{},
		&models.TopUpRequest{},
		&models.Banner{},
		&models.ChatMessage{},
	)
}
