package summary

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/models"
)

// Day folds one day's trade table into its summary. Per-contract totals are
// keyed by base symbol.
func Day(date string, trades []models.Trade) models.DaySummary {
	s := models.DaySummary{
		Date:       date,
		TradeCount: len(trades),
		Contracts:  make(map[string]models.ContractTotal),
	}
	for _, t := range trades {
		s.TotalPnL = s.TotalPnL.Add(t.PnL)
		s.Fees = s.Fees.Add(t.Fees)
		s.NetPnL = s.NetPnL.Add(t.NetPnL)

		symbol := t.BaseSymbol()
		ct := s.Contracts[symbol]
		ct.PnL = ct.PnL.Add(t.PnL)
		ct.Trades++
		s.Contracts[symbol] = ct
	}
	return s
}

// DayPnL is one point of the daily or cumulative series.
type DayPnL struct {
	Date string          `json:"date"`
	PnL  decimal.Decimal `json:"pnl"`
}

// Month holds the statistics of a set of trading days.
type Month struct {
	TotalPnL    decimal.Decimal                 `json:"total_pnl"`
	TradingDays int                             `json:"trading_days"`
	WinningDays int                             `json:"winning_days"`
	LosingDays  int                             `json:"losing_days"`
	TotalTrades int                             `json:"total_trades"`
	WinRate     float64                         `json:"win_rate"`
	AvgDailyPnL decimal.Decimal                 `json:"avg_daily_pnl"`
	BestDay     *DayPnL                         `json:"best_day,omitempty"`
	WorstDay    *DayPnL                         `json:"worst_day,omitempty"`
	Daily       []DayPnL                        `json:"daily"`
	Cumulative  []DayPnL                        `json:"cumulative"`
	Contracts   map[string]models.ContractTotal `json:"contracts"`
}

// Monthly aggregates day summaries keyed by YYYY-MM-DD. Days are visited in
// ascending date order, so ties for best and worst day go to the earlier date.
func Monthly(days map[string]models.DaySummary) Month {
	m := Month{
		Contracts:  make(map[string]models.ContractTotal),
		Daily:      []DayPnL{},
		Cumulative: []DayPnL{},
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	running := decimal.Zero
	for _, date := range dates {
		day := days[date]
		pnl := day.TotalPnL

		m.TotalPnL = m.TotalPnL.Add(pnl)
		m.TradingDays++
		m.TotalTrades += day.TradeCount
		switch pnl.Sign() {
		case 1:
			m.WinningDays++
		case -1:
			m.LosingDays++
		}

		if m.BestDay == nil || pnl.GreaterThan(m.BestDay.PnL) {
			m.BestDay = &DayPnL{Date: date, PnL: pnl}
		}
		if m.WorstDay == nil || pnl.LessThan(m.WorstDay.PnL) {
			m.WorstDay = &DayPnL{Date: date, PnL: pnl}
		}

		running = running.Add(pnl)
		m.Daily = append(m.Daily, DayPnL{Date: date, PnL: pnl})
		m.Cumulative = append(m.Cumulative, DayPnL{Date: date, PnL: running})

		for symbol, ct := range day.Contracts {
			total := m.Contracts[symbol]
			total.PnL = total.PnL.Add(ct.PnL)
			total.Trades += ct.Trades
			m.Contracts[symbol] = total
		}
	}

	if m.TradingDays > 0 {
		m.WinRate = float64(m.WinningDays) / float64(m.TradingDays) * 100
		m.AvgDailyPnL = m.TotalPnL.Div(decimal.NewFromInt(int64(m.TradingDays)))
	}
	return m
}
