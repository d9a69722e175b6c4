package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/metrics"
	"github.com/viktsys/tradejournal/models"
	"github.com/viktsys/tradejournal/trades"
	"gorm.io/gorm"
)

const (
	dateLayout = "2006-01-02"
	batchSize  = 500
)

var ErrNoStats = errors.New("no stored days for contract")

// Repository stores processed days and answers per-contract statistics.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveDay replaces every stored row of date with the given trades and the
// per-symbol totals of summary, inside one transaction.
func (r *Repository) SaveDay(ctx context.Context, runID, date string, dayTrades []models.Trade, summary models.DaySummary) error {
	tradeDate, err := time.Parse(dateLayout, date)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}

	records := make([]models.TradeRecord, 0, len(dayTrades))
	for _, t := range dayTrades {
		records = append(records, tradeRecord(runID, date, tradeDate, t))
	}
	aggregates := dailyAggregates(runID, tradeDate, summary)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trade_date = ?", tradeDate).Delete(&models.TradeRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear trades: %w", err)
		}
		if err := tx.Where("trade_date = ?", tradeDate).Delete(&models.DailyAggregate{}).Error; err != nil {
			return fmt.Errorf("failed to clear daily aggregates: %w", err)
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, batchSize).Error; err != nil {
				return fmt.Errorf("failed to insert trades: %w", err)
			}
		}
		if len(aggregates) > 0 {
			if err := tx.CreateInBatches(aggregates, batchSize).Error; err != nil {
				return fmt.Errorf("failed to insert daily aggregates: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RowsStored.WithLabelValues("trade_records").Add(float64(len(records)))
	metrics.RowsStored.WithLabelValues("daily_aggregates").Add(float64(len(aggregates)))
	return nil
}

// ContractStats summarizes the stored days of one base symbol from the given
// date on.
func (r *Repository) ContractStats(ctx context.Context, contract string, from time.Time) (*models.ContractStats, error) {
	type statsResult struct {
		TradingDays int             `gorm:"column:trading_days"`
		TradeCount  int             `gorm:"column:trade_count"`
		TotalPnL    decimal.Decimal `gorm:"column:total_pnl"`
		BestDayPnL  decimal.Decimal `gorm:"column:best_day_pnl"`
		WorstDayPnL decimal.Decimal `gorm:"column:worst_day_pnl"`
	}

	var result statsResult
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS trading_days,
			COALESCE(SUM(trade_count), 0) AS trade_count,
			COALESCE(SUM(pnl), 0) AS total_pnl,
			COALESCE(MAX(pnl), 0) AS best_day_pnl,
			COALESCE(MIN(pnl), 0) AS worst_day_pnl
		FROM daily_aggregates
		WHERE base_symbol = ? AND trade_date >= ?
	`, contract, from).Scan(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stats for %s: %w", contract, err)
	}
	if result.TradingDays == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStats, contract)
	}

	return &models.ContractStats{
		Contract:    contract,
		TradingDays: result.TradingDays,
		TradeCount:  result.TradeCount,
		TotalPnL:    result.TotalPnL,
		BestDayPnL:  result.BestDayPnL,
		WorstDayPnL: result.WorstDayPnL,
	}, nil
}

func tradeRecord(runID, date string, tradeDate time.Time, t models.Trade) models.TradeRecord {
	return models.TradeRecord{
		RunID:           runID,
		TradeDate:       tradeDate,
		BaseSymbol:      t.BaseSymbol(),
		TradeKey:        trades.ID(date, t),
		Contract:        t.Contract,
		Direction:       string(t.Direction),
		EntryTime:       t.EntryTime,
		ExitTime:        t.ExitTime,
		DurationSeconds: t.Duration.Seconds(),
		EntryPrice:      t.EntryPrice,
		ExitPrice:       t.ExitPrice,
		Quantity:        t.Quantity,
		PnL:             t.PnL,
		MissingSpec:     t.MissingSpec,
		NumExits:        t.NumExits,
	}
}

func dailyAggregates(runID string, tradeDate time.Time, summary models.DaySummary) []models.DailyAggregate {
	symbols := make([]string, 0, len(summary.Contracts))
	for symbol := range summary.Contracts {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	out := make([]models.DailyAggregate, 0, len(symbols))
	for _, symbol := range symbols {
		total := summary.Contracts[symbol]
		out = append(out, models.DailyAggregate{
			RunID:      runID,
			TradeDate:  tradeDate,
			BaseSymbol: symbol,
			TradeCount: total.Trades,
			PnL:        total.PnL,
		})
	}
	return out
}
