package trades

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/contracts"
	"github.com/viktsys/tradejournal/metrics"
	"github.com/viktsys/tradejournal/models"
)

// FlipPolicy decides what happens when a fill carries a position through zero
// to the opposite side.
type FlipPolicy int

const (
	// FlipAbsorb keeps the position open with the new signed size and the
	// original entry. No trade is emitted for the crossing.
	FlipAbsorb FlipPolicy = iota
	// FlipReverse closes the old position at the crossing fill's price and
	// opens the residual in the opposite direction at the same price.
	FlipReverse
)

func (p FlipPolicy) String() string {
	if p == FlipReverse {
		return "reverse"
	}
	return "absorb"
}

// ParseFlipPolicy accepts "absorb" (or empty) and "reverse".
func ParseFlipPolicy(s string) (FlipPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absorb":
		return FlipAbsorb, nil
	case "reverse":
		return FlipReverse, nil
	}
	return FlipAbsorb, fmt.Errorf("unknown flip policy %q", s)
}

// OpenPosition is the net position of one base symbol between two flat states.
type OpenPosition struct {
	Symbol     string
	Contract   string
	Quantity   int64
	Peak       int64
	EntryPrice decimal.Decimal
	EntryTime  time.Time
	EntrySide  models.Side
}

// Result is the outcome of reconstructing one day.
type Result struct {
	Trades []models.Trade
	// Residual holds positions still open at the end of the fills. They are
	// never turned into trades.
	Residual      map[string]OpenPosition
	MissingSpecs  []string
	AbsorbedFlips int
}

// Reconstructor turns an ordered fill stream into round trips, tracking one
// net position per base symbol.
type Reconstructor struct {
	specs contracts.Lookup
	flip  FlipPolicy
}

type Option func(*Reconstructor)

func WithFlipPolicy(p FlipPolicy) Option {
	return func(r *Reconstructor) { r.flip = p }
}

func NewReconstructor(specs contracts.Lookup, opts ...Option) *Reconstructor {
	r := &Reconstructor{specs: specs}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconstruct processes one day of fills, which must already be in timestamp
// order. Position state lives only for the duration of the call.
func (r *Reconstructor) Reconstruct(fills []models.Fill) Result {
	positions := make(map[string]OpenPosition)
	res := Result{}
	missing := make(map[string]bool)
	emit := func(symbol string, trade models.Trade) {
		if trade.MissingSpec && !missing[symbol] {
			missing[symbol] = true
			res.MissingSpecs = append(res.MissingSpecs, symbol)
		}
		res.Trades = append(res.Trades, trade)
	}

	for _, fill := range fills {
		if fill.Quantity <= 0 {
			log.Warn().Str("contract", fill.Contract).Int("line", fill.Line).
				Int64("quantity", fill.Quantity).Msg("Skipping fill with non-positive quantity")
			continue
		}

		symbol := fill.BaseSymbol()
		pos := positions[symbol]
		prev := pos.Quantity
		next := prev + fill.Side.Sign()*fill.Quantity

		switch {
		case prev == 0:
			positions[symbol] = openAt(symbol, fill, next)

		case next == 0:
			emit(symbol, r.close(pos, fill, abs(prev)))
			delete(positions, symbol)

		case (prev > 0) != (next > 0):
			if r.flip == FlipReverse {
				emit(symbol, r.close(pos, fill, abs(prev)))
				positions[symbol] = openAt(symbol, fill, next)
				continue
			}
			res.AbsorbedFlips++
			metrics.AbsorbedFlips.Inc()
			log.Warn().Str("symbol", symbol).Int64("from", prev).Int64("to", next).
				Time("at", fill.Timestamp).Msg("Position crossed zero without flattening; keeping original entry")
			pos.Quantity = next
			pos.Peak = max(pos.Peak, abs(next))
			positions[symbol] = pos

		default:
			pos.Quantity = next
			pos.Peak = max(pos.Peak, abs(next))
			positions[symbol] = pos
		}
	}

	res.Residual = positions
	for symbol, pos := range positions {
		log.Debug().Str("symbol", symbol).Int64("quantity", pos.Quantity).
			Msg("Dropping position still open at end of day")
	}
	metrics.TradesReconstructed.WithLabelValues("flat").Add(float64(len(res.Trades)))
	return res
}

func openAt(symbol string, fill models.Fill, signed int64) OpenPosition {
	side := models.SideBuy
	if signed < 0 {
		side = models.SideSell
	}
	return OpenPosition{
		Symbol:     symbol,
		Contract:   fill.Contract,
		Quantity:   signed,
		Peak:       abs(signed),
		EntryPrice: fill.Price,
		EntryTime:  fill.Timestamp,
		EntrySide:  side,
	}
}

func (r *Reconstructor) close(pos OpenPosition, fill models.Fill, quantity int64) models.Trade {
	trade := models.Trade{
		Contract:     fill.Contract,
		EntryTime:    pos.EntryTime,
		ExitTime:     fill.Timestamp,
		Duration:     fill.Timestamp.Sub(pos.EntryTime),
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    fill.Price,
		Quantity:     quantity,
		PeakQuantity: max(pos.Peak, quantity),
		Direction:    models.DirectionOf(pos.EntrySide),
		PnL:          decimal.Zero,
	}

	spec, err := r.specs.Lookup(pos.Symbol)
	if err != nil {
		if !errors.Is(err, contracts.ErrMissingSpec) {
			log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Contract lookup failed")
		} else {
			log.Warn().Str("symbol", pos.Symbol).Str("contract", fill.Contract).
				Msg("No tick spec for contract; reporting zero pnl")
		}
		metrics.MissingSpecs.WithLabelValues(pos.Symbol).Inc()
		trade.MissingSpec = true
	} else {
		trade.PnL = PnL(spec, pos.EntrySide, pos.EntryPrice, fill.Price, quantity)
	}
	trade.NetPnL = trade.PnL
	return trade
}

// PnL converts a price move into money: ticks moved in the position's favour
// times tick value times quantity.
func PnL(spec contracts.Spec, entrySide models.Side, entry, exit decimal.Decimal, quantity int64) decimal.Decimal {
	diff := exit.Sub(entry)
	if entrySide != models.SideBuy {
		diff = entry.Sub(exit)
	}
	ticks := diff.Div(spec.TickSize)
	return ticks.Mul(spec.TickValue).Mul(decimal.NewFromInt(quantity))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
