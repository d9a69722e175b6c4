package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/viktsys/tradejournal/ingest"
	"github.com/viktsys/tradejournal/models"
	"github.com/viktsys/tradejournal/trades"
)

var dayFormat string

var dayCMD = &cobra.Command{
	Use:   "day YYYY-MM-DD",
	Short: "Print the reconstructed trades of one day",
	Long:  `Find the export file of the given day in the data directory, reconstruct its round trip trades and print them with the day summary.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		result, err := newProcessor(registry).ProcessDay(cmd.Context(), args[0])
		if err != nil && result.Date == "" {
			return err
		}
		if err != nil {
			log.Warn().Err(err).Str("date", args[0]).Msg("Day could not be processed; showing empty table")
		}

		return printDay(cmd.OutOrStdout(), result, dayFormat)
	},
}

func init() {
	dayCMD.Flags().StringVar(&dayFormat, "format", "table", "output format: table, csv or json")
}

// tradeRow is the flat export shape of one trade.
type tradeRow struct {
	ID          string `csv:"id"`
	Contract    string `csv:"contract"`
	Direction   string `csv:"direction"`
	EntryTime   string `csv:"entry_time"`
	ExitTime    string `csv:"exit_time"`
	Duration    string `csv:"duration"`
	EntryPrice  string `csv:"entry_price"`
	ExitPrice   string `csv:"exit_price"`
	Quantity    int64  `csv:"quantity"`
	PnL         string `csv:"pnl"`
	MissingSpec bool   `csv:"missing_spec"`
}

func tradeRows(date string, dayTrades []models.Trade) []*tradeRow {
	rows := make([]*tradeRow, 0, len(dayTrades))
	for _, t := range dayTrades {
		rows = append(rows, &tradeRow{
			ID:          trades.ID(date, t),
			Contract:    t.Contract,
			Direction:   string(t.Direction),
			EntryTime:   t.EntryTime.Format(trades.ClockLayout),
			ExitTime:    t.ExitTime.Format(trades.ClockLayout),
			Duration:    t.Duration.String(),
			EntryPrice:  t.EntryPrice.String(),
			ExitPrice:   t.ExitPrice.String(),
			Quantity:    t.Quantity,
			PnL:         t.PnL.StringFixed(2),
			MissingSpec: t.MissingSpec,
		})
	}
	return rows
}

func printDay(w io.Writer, result ingest.DayResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "csv":
		return gocsv.Marshal(tradeRows(result.Date, result.Trades), w)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if len(result.Trades) == 0 {
		fmt.Fprintf(w, "No trades found for %s\n", result.Date)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRACT\tDIRECTION\tENTRY\tEXIT\tDURATION\tENTRY PX\tEXIT PX\tQTY\tP&L")
	for _, row := range tradeRows(result.Date, result.Trades) {
		pnl := row.PnL
		if row.MissingSpec {
			pnl += " (no spec)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			row.Contract, row.Direction, row.EntryTime, row.ExitTime, row.Duration,
			row.EntryPrice, row.ExitPrice, row.Quantity, pnl)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := result.Summary
	fmt.Fprintf(w, "\n%s  trades: %d  total P&L: %s", s.Date, s.TradeCount, s.TotalPnL.StringFixed(2))
	if !s.Fees.IsZero() {
		fmt.Fprintf(w, "  fees: %s  net: %s", s.Fees.StringFixed(2), s.NetPnL.StringFixed(2))
	}
	fmt.Fprintln(w)

	symbols := make([]string, 0, len(s.Contracts))
	for symbol := range s.Contracts {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		ct := s.Contracts[symbol]
		fmt.Fprintf(w, "  %-6s %3d trades  %s\n", symbol, ct.Trades, ct.PnL.StringFixed(2))
	}
	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(w, "%d input lines dropped\n", len(result.Diagnostics))
	}
	return nil
}
