package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/viktsys/tradejournal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres, sizes the pool and migrates the journal tables.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Ingest writes one day per transaction; reads come from the stats endpoint
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().Msg("Database connected and migrated successfully")
	return db, nil
}

// Migrate creates or updates the journal tables and their indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.TradeRecord{}, &models.DailyAggregate{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Apply database optimizations
	if err := OptimizeIndexes(db); err != nil {
		log.Warn().Err(err).Msg("Failed to optimize indexes")
	}
	return nil
}
