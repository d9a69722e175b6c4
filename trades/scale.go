package trades

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/metrics"
	"github.com/viktsys/tradejournal/models"
)

var (
	dateTimeLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"01/02/2006 15:04:05",
		"1/2/2006 15:04:05",
		"01/02/2006 03:04:05 PM",
		"1/2/2006 3:04:05 PM",
		"20060102 15:04:05",
	}
	dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "20060102"}
	timeLayouts = []string{"15:04:05", "03:04:05 PM", "3:04:05 PM"}
)

// ParseTradeTime resolves an export timestamp. Full date-time values are tried
// first; bare times of day are anchored on tradeDate.
func ParseTradeTime(tradeDate, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	var day time.Time
	found := false
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, strings.TrimSpace(tradeDate)); err == nil {
			day, found = d, true
			break
		}
	}
	if !found {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return day.Add(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second +
				time.Duration(t.Nanosecond())), true
		}
	}
	return time.Time{}, false
}

// AggregateSection merges the detail lines of one contract section into one
// trade per entry order number. Prices are size-weighted; pnl, fees and net
// pnl are the sums reported by the export.
func AggregateSection(section models.Section) []models.Trade {
	groups := make(map[string][]models.TradeDetail)
	var order []string
	for _, d := range section.Details {
		if _, ok := groups[d.EntryOrderNumber]; !ok {
			order = append(order, d.EntryOrderNumber)
		}
		groups[d.EntryOrderNumber] = append(groups[d.EntryOrderNumber], d)
	}

	out := make([]models.Trade, 0, len(order))
	for _, orderNumber := range order {
		trade, ok := aggregateGroup(section.Contract, groups[orderNumber])
		if !ok {
			log.Warn().Str("contract", section.Contract).Str("entry_order", orderNumber).
				Msg("Skipping entry order with zero total fill size")
			continue
		}
		out = append(out, trade)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	metrics.TradesReconstructed.WithLabelValues("sectioned").Add(float64(len(out)))
	return out
}

type timedDetail struct {
	models.TradeDetail
	entry, exit     time.Time
	entryOK, exitOK bool
}

func aggregateGroup(contract string, details []models.TradeDetail) (models.Trade, bool) {
	group := make([]timedDetail, len(details))
	allExitsParsed := true
	for i, d := range details {
		td := timedDetail{TradeDetail: d}
		td.entry, td.entryOK = ParseTradeTime(d.TradeDate, d.EntryTime)
		td.exit, td.exitOK = ParseTradeTime(d.TradeDate, d.ExitTime)
		allExitsParsed = allExitsParsed && td.exitOK
		group[i] = td
	}

	if allExitsParsed {
		sort.SliceStable(group, func(i, j int) bool { return group[i].exit.Before(group[j].exit) })
	} else {
		sort.SliceStable(group, func(i, j int) bool { return group[i].ExitTime < group[j].ExitTime })
	}

	var (
		quantity       int64
		pnl, fees, net decimal.Decimal
		entryNotional  decimal.Decimal
		exitNotional   decimal.Decimal
		lifeSpan       time.Duration
	)
	for _, d := range group {
		size := decimal.NewFromInt(d.FillSize)
		quantity += d.FillSize
		pnl = pnl.Add(d.TradePnL)
		fees = fees.Add(d.Fees)
		net = net.Add(d.NetPnL)
		entryNotional = entryNotional.Add(d.EntryPrice.Mul(size))
		exitNotional = exitNotional.Add(d.ExitPrice.Mul(size))
		lifeSpan = max(lifeSpan, d.LifeSpan)
	}
	if quantity <= 0 {
		return models.Trade{}, false
	}

	first, last := group[0], group[len(group)-1]
	total := decimal.NewFromInt(quantity)
	trade := models.Trade{
		Contract:     contract,
		EntryTime:    first.entry,
		ExitTime:     last.exit,
		EntryPrice:   entryNotional.Div(total),
		ExitPrice:    exitNotional.Div(total),
		Quantity:     quantity,
		PeakQuantity: quantity,
		PnL:          pnl,
		Fees:         fees,
		NetPnL:       net,
		Direction:    models.DirectionOf(first.EntrySide),
		NumExits:     len(group),
	}
	if first.entryOK && last.exitOK {
		trade.Duration = last.exit.Sub(first.entry)
	} else {
		trade.Duration = lifeSpan
	}
	return trade, true
}
