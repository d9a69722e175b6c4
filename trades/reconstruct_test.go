package trades

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viktsys/tradejournal/contracts"
	"github.com/viktsys/tradejournal/models"
)

var day = time.Date(2025, 2, 5, 9, 30, 0, 0, time.UTC)

func fill(contract string, side models.Side, qty int64, price string, minute int) models.Fill {
	return models.Fill{
		Contract:  contract,
		Side:      side,
		Quantity:  qty,
		Price:     decimal.RequireFromString(price),
		Timestamp: day.Add(time.Duration(minute) * time.Minute),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newReconstructor(opts ...Option) *Reconstructor {
	return NewReconstructor(contracts.NewRegistry(contracts.Defaults()), opts...)
}

func TestReconstructLongProfitable(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 2, "100.00", 0),
		fill("ES MAR25", models.SideSell, 2, "101.00", 5),
	})

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, models.Long, trade.Direction)
	assert.Equal(t, int64(2), trade.Quantity)
	assert.True(t, trade.PnL.Equal(dec("100")), "pnl = %s", trade.PnL)
	assert.Equal(t, 5*time.Minute, trade.Duration)
	assert.Equal(t, "ES MAR25", trade.Contract)
	assert.Empty(t, res.Residual)
}

func TestReconstructShortProfitable(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideSell, 1, "100.00", 0),
		fill("ES MAR25", models.SideBuy, 1, "99.00", 1),
	})

	require.Len(t, res.Trades, 1)
	assert.Equal(t, models.Short, res.Trades[0].Direction)
	assert.True(t, res.Trades[0].PnL.Equal(dec("50")), "pnl = %s", res.Trades[0].PnL)
}

func TestReconstructScaleInKeepsFirstEntry(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 1, "100.00", 0),
		fill("ES MAR25", models.SideBuy, 1, "101.00", 1),
		fill("ES MAR25", models.SideSell, 2, "102.00", 2),
	})

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.True(t, trade.EntryPrice.Equal(dec("100")))
	assert.Equal(t, int64(2), trade.Quantity)
	assert.Equal(t, int64(2), trade.PeakQuantity)
	assert.True(t, trade.PnL.Equal(dec("200")), "pnl = %s", trade.PnL)
}

func TestReconstructScaleOutUsesClosingQuantity(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 2, "100.00", 0),
		fill("ES MAR25", models.SideSell, 1, "100.50", 1),
		fill("ES MAR25", models.SideSell, 1, "101.00", 2),
	})

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, int64(1), trade.Quantity)
	assert.Equal(t, int64(2), trade.PeakQuantity)
	assert.True(t, trade.ExitPrice.Equal(dec("101")))
	assert.True(t, trade.PnL.Equal(dec("50")), "pnl = %s", trade.PnL)
}

func TestReconstructMissingSpecDoesNotStopDay(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("NQ MAR25", models.SideBuy, 1, "20000.00", 0),
		fill("ES MAR25", models.SideBuy, 1, "100.00", 1),
		fill("NQ MAR25", models.SideSell, 1, "20010.00", 2),
		fill("ES MAR25", models.SideSell, 1, "101.00", 3),
	})

	require.Len(t, res.Trades, 2)
	nq, es := res.Trades[0], res.Trades[1]
	assert.True(t, nq.MissingSpec)
	assert.True(t, nq.PnL.IsZero())
	assert.False(t, es.MissingSpec)
	assert.True(t, es.PnL.Equal(dec("50")))
	assert.Equal(t, []string{"NQ"}, res.MissingSpecs)
}

func TestReconstructDropsTrailingOpenPosition(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 1, "100.00", 0),
		fill("ES MAR25", models.SideSell, 1, "100.25", 1),
		fill("ES MAR25", models.SideBuy, 3, "100.00", 2),
	})

	require.Len(t, res.Trades, 1)
	require.Contains(t, res.Residual, "ES")
	assert.Equal(t, int64(3), res.Residual["ES"].Quantity)
}

func TestReconstructTracksSymbolsIndependently(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 1, "100.00", 0),
		fill("GC APR25", models.SideSell, 2, "2900.0", 1),
		fill("ES MAR25", models.SideSell, 1, "100.50", 2),
		fill("GC APR25", models.SideBuy, 2, "2899.0", 3),
	})

	require.Len(t, res.Trades, 2)
	assert.Equal(t, "ES MAR25", res.Trades[0].Contract)
	assert.True(t, res.Trades[0].PnL.Equal(dec("25")))
	assert.Equal(t, "GC APR25", res.Trades[1].Contract)
	assert.Equal(t, models.Short, res.Trades[1].Direction)
	// 1.0 / 0.10 = 10 ticks * 10.00 * 2
	assert.True(t, res.Trades[1].PnL.Equal(dec("200")), "pnl = %s", res.Trades[1].PnL)
}

func TestReconstructAbsorbsSignFlip(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 1, "100.00", 0),
		fill("ES MAR25", models.SideSell, 3, "101.00", 1),
	})

	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.AbsorbedFlips)
	pos := res.Residual["ES"]
	assert.Equal(t, int64(-2), pos.Quantity)
	assert.Equal(t, models.SideBuy, pos.EntrySide)
	assert.True(t, pos.EntryPrice.Equal(dec("100")))

	res = newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 1, "100.00", 0),
		fill("ES MAR25", models.SideSell, 3, "101.00", 1),
		fill("ES MAR25", models.SideBuy, 2, "99.00", 2),
	})
	require.Len(t, res.Trades, 1)
	assert.Equal(t, models.Long, res.Trades[0].Direction)
	assert.Equal(t, int64(2), res.Trades[0].Quantity)
	assert.True(t, res.Trades[0].PnL.Equal(dec("-100")), "pnl = %s", res.Trades[0].PnL)
}

func TestReconstructReversesSignFlip(t *testing.T) {
	res := newReconstructor(WithFlipPolicy(FlipReverse)).Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 1, "100.00", 0),
		fill("ES MAR25", models.SideSell, 3, "101.00", 1),
		fill("ES MAR25", models.SideBuy, 2, "99.00", 2),
	})

	require.Len(t, res.Trades, 2)
	assert.Equal(t, models.Long, res.Trades[0].Direction)
	assert.True(t, res.Trades[0].PnL.Equal(dec("50")))
	assert.Equal(t, models.Short, res.Trades[1].Direction)
	assert.Equal(t, int64(2), res.Trades[1].Quantity)
	assert.True(t, res.Trades[1].PnL.Equal(dec("200")))
	assert.Zero(t, res.AbsorbedFlips)
	assert.Empty(t, res.Residual)
}

func TestReconstructNetExposure(t *testing.T) {
	fills := []models.Fill{
		fill("ES MAR25", models.SideBuy, 2, "100.00", 0),
		fill("ES MAR25", models.SideBuy, 1, "100.25", 1),
		fill("ES MAR25", models.SideSell, 3, "100.50", 2),
		fill("ES MAR25", models.SideSell, 1, "100.50", 3),
	}
	res := newReconstructor().Reconstruct(fills)

	var net int64
	for _, f := range fills {
		net += f.Side.Sign() * f.Quantity
	}
	var residual int64
	for _, pos := range res.Residual {
		residual += pos.Quantity
	}
	assert.Equal(t, net, residual)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(3), res.Trades[0].Quantity)
}

func TestReconstructSkipsNonPositiveQuantity(t *testing.T) {
	res := newReconstructor().Reconstruct([]models.Fill{
		fill("ES MAR25", models.SideBuy, 0, "100.00", 0),
	})
	assert.Empty(t, res.Trades)
	assert.Empty(t, res.Residual)
}

func TestPnL(t *testing.T) {
	es := contracts.Defaults()["ES"]
	assert.True(t, PnL(es, models.SideBuy, dec("100"), dec("101"), 2).Equal(dec("100")))
	assert.True(t, PnL(es, models.SideSell, dec("100"), dec("99"), 1).Equal(dec("50")))
	assert.True(t, PnL(es, models.SideSell, dec("100"), dec("100.5"), 1).Equal(dec("-25")))
}

func TestParseFlipPolicy(t *testing.T) {
	p, err := ParseFlipPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FlipAbsorb, p)

	p, err = ParseFlipPolicy("Reverse")
	require.NoError(t, err)
	assert.Equal(t, FlipReverse, p)
	assert.Equal(t, "reverse", p.String())

	_, err = ParseFlipPolicy("close")
	assert.Error(t, err)
}
