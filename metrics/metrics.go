package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesDropped counts input lines or rows rejected by the parsers.
	LinesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradejournal_lines_dropped_total",
			Help: "Input lines dropped by the parsers, by dialect and reason",
		},
		[]string{"dialect", "reason"},
	)

	TradesReconstructed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradejournal_trades_reconstructed_total",
			Help: "Round trips produced, by source layout",
		},
		[]string{"source"},
	)

	MissingSpecs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradejournal_missing_specs_total",
			Help: "Trades closed without a tick specification for their symbol",
		},
		[]string{"symbol"},
	)

	AbsorbedFlips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tradejournal_absorbed_flips_total",
			Help: "Fills that carried a position through zero without closing it",
		},
	)

	DaysProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradejournal_days_processed_total",
			Help: "Processed days by outcome (ok, empty, failed)",
		},
		[]string{"outcome"},
	)

	DayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradejournal_day_duration_seconds",
			Help:    "Time spent parsing and reconstructing one day file",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
	)

	RowsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradejournal_rows_stored_total",
			Help: "Rows written to the database, by table",
		},
		[]string{"table"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradejournal_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		},
		[]string{"method", "route", "status"},
	)
)
