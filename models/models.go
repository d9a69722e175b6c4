package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the buy/sell flag of an execution.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// ParseSide accepts the short (B/S) and long (Buy/Sell) spellings used by the exports.
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "B", "BUY", "BOT", "BOUGHT":
		return SideBuy, nil
	case "S", "SELL", "SLD", "SOLD":
		return SideSell, nil
	}
	return "", fmt.Errorf("invalid side %q", raw)
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() int64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// Direction is the side of a round trip, decided by its opening execution.
type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
)

// DirectionOf maps the opening side to the trade direction.
func DirectionOf(entry Side) Direction {
	if entry == SideBuy {
		return Long
	}
	return Short
}

// BaseSymbol returns the root ticker of a display contract ("ES MAR25" -> "ES").
func BaseSymbol(contract string) string {
	fields := strings.Fields(contract)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Fill is one execution of the flat chronological log.
type Fill struct {
	Contract  string
	Exchange  string
	Side      Side
	Quantity  int64
	Price     decimal.Decimal
	Timestamp time.Time
	Line      int
}

func (f Fill) BaseSymbol() string {
	return BaseSymbol(f.Contract)
}

// TradeDetail is one decoded detail line of a sectioned export. Times are kept
// raw because the export mixes layouts; they are resolved during aggregation.
type TradeDetail struct {
	Contract         string
	TradeDate        string
	EntryOrderNumber string
	EntrySide        Side
	EntryTime        string
	EntryPrice       decimal.Decimal
	ExitOrderNumber  string
	ExitSide         Side
	ExitTime         string
	ExitPrice        decimal.Decimal
	LifeSpan         time.Duration
	FillSize         int64
	TradePnL         decimal.Decimal
	Fees             decimal.Decimal
	NetPnL           decimal.Decimal
	Line             int
}

// SectionSummary holds the aggregate line that follows a contract header.
type SectionSummary struct {
	Label      string
	GrossPnL   decimal.Decimal
	Fees       decimal.Decimal
	NetPnL     decimal.Decimal
	TradeCount int
}

// Section groups the detail lines found under one contract header.
type Section struct {
	Contract string
	Summary  SectionSummary
	Details  []TradeDetail
}

// Trade is a closed round trip.
type Trade struct {
	Contract     string          `json:"contract"`
	EntryTime    time.Time       `json:"entry_time"`
	ExitTime     time.Time       `json:"exit_time"`
	Duration     time.Duration   `json:"duration"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	ExitPrice    decimal.Decimal `json:"exit_price"`
	Quantity     int64           `json:"quantity"`
	PeakQuantity int64           `json:"peak_quantity,omitempty"`
	PnL          decimal.Decimal `json:"pnl"`
	Direction    Direction       `json:"direction"`
	MissingSpec  bool            `json:"missing_spec,omitempty"`
	NumExits     int             `json:"num_exits,omitempty"`
	Fees         decimal.Decimal `json:"fees"`
	NetPnL       decimal.Decimal `json:"net_pnl"`
}

func (t Trade) BaseSymbol() string {
	return BaseSymbol(t.Contract)
}

// ContractTotal is the per-instrument share of a day.
type ContractTotal struct {
	PnL    decimal.Decimal `json:"pnl"`
	Trades int             `json:"trades"`
}

// DaySummary is derived from one day's trade table.
type DaySummary struct {
	Date       string                   `json:"date"`
	TotalPnL   decimal.Decimal          `json:"total_pnl"`
	TradeCount int                      `json:"trade_count"`
	Fees       decimal.Decimal          `json:"fees"`
	NetPnL     decimal.Decimal          `json:"net_pnl"`
	Contracts  map[string]ContractTotal `json:"contracts"`
}

// TradeRecord is a stored round trip.
type TradeRecord struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	RunID           string          `gorm:"size:36;index" json:"run_id"`
	TradeDate       time.Time       `gorm:"type:date;index:idx_trade_records_date_symbol" json:"trade_date"`
	BaseSymbol      string          `gorm:"size:20;index:idx_trade_records_date_symbol" json:"base_symbol"`
	TradeKey        string          `gorm:"size:160" json:"trade_key"`
	Contract        string          `gorm:"size:40" json:"contract"`
	Direction       string          `gorm:"size:5" json:"direction"`
	EntryTime       time.Time       `json:"entry_time"`
	ExitTime        time.Time       `json:"exit_time"`
	DurationSeconds float64         `json:"duration_seconds"`
	EntryPrice      decimal.Decimal `gorm:"type:numeric(18,6)" json:"entry_price"`
	ExitPrice       decimal.Decimal `gorm:"type:numeric(18,6)" json:"exit_price"`
	Quantity        int64           `json:"quantity"`
	PnL             decimal.Decimal `gorm:"column:pnl;type:numeric(18,2)" json:"pnl"`
	MissingSpec     bool            `json:"missing_spec"`
	NumExits        int             `json:"num_exits"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DailyAggregate stores the P&L of one base symbol on one day.
type DailyAggregate struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	RunID      string          `gorm:"size:36" json:"run_id"`
	TradeDate  time.Time       `gorm:"type:date;uniqueIndex:uidx_daily_date_symbol" json:"trade_date"`
	BaseSymbol string          `gorm:"size:20;uniqueIndex:uidx_daily_date_symbol" json:"base_symbol"`
	TradeCount int             `json:"trade_count"`
	PnL        decimal.Decimal `gorm:"column:pnl;type:numeric(18,2)" json:"pnl"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ContractStats is returned by the stats endpoint.
type ContractStats struct {
	Contract    string          `json:"contract"`
	TradingDays int             `json:"trading_days"`
	TradeCount  int             `json:"trade_count"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	BestDayPnL  decimal.Decimal `json:"best_day_pnl"`
	WorstDayPnL decimal.Decimal `json:"worst_day_pnl"`
}
