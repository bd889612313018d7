package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/models"
)

// ErrDisabled no DSN configured; the transaction journal is off
var ErrDisabled = errors.New("database disabled")

// Open connects to Postgres and migrates the journal schema
func Open(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, ErrDisabled
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	log.Info("✅ Database connected successfully")

	if err := db.AutoMigrate(&models.TransactionRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate failed: %w", err)
	}
	log.Info("✅ Database schema migrated successfully")
	return db, nil
}

// Close releases the pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
