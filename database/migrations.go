package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OptimizeIndexes adds the indexes used by the stats query and by the
// per-day replacement done on every ingest.
func OptimizeIndexes(db *gorm.DB) error {
	// Symbol first, then date: stats always filter by one contract
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_daily_symbol_date
		ON daily_aggregates (base_symbol, trade_date DESC)
	`).Error; err != nil {
		return fmt.Errorf("failed to create daily aggregates symbol index: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_daily_symbol_pnl
		ON daily_aggregates (base_symbol, pnl DESC)
		WHERE pnl IS NOT NULL
	`).Error; err != nil {
		return fmt.Errorf("failed to create daily aggregates pnl index: %w", err)
	}

	// Lookups of notes by trade identity
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_trade_records_key
		ON trade_records (trade_key)
	`).Error; err != nil {
		return fmt.Errorf("failed to create trade key index: %w", err)
	}

	log.Debug().Msg("Database indexes optimized successfully")
	return nil
}
