package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/viktsys/tradejournal/ingest"
)

var monthJSON bool

var monthCMD = &cobra.Command{
	Use:   "month YYYY-MM",
	Short: "Print the statistics of one month",
	Long:  `Process every calendar day of the month and print the monthly statistics, the daily P&L and the cumulative P&L series.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		month, err := time.Parse("2006-01", args[0])
		if err != nil {
			return fmt.Errorf("invalid month %q, use YYYY-MM", args[0])
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		result, err := newProcessor(registry).ProcessMonth(cmd.Context(), month.Year(), month.Month())
		if err != nil {
			return err
		}

		if monthJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		return printMonth(cmd.OutOrStdout(), result)
	},
}

func init() {
	monthCMD.Flags().BoolVar(&monthJSON, "json", false, "print the month as JSON")
}

func printMonth(w io.Writer, result ingest.MonthResult) error {
	title := time.Date(result.Year, time.Month(result.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	s := result.Summary

	if s.TradingDays == 0 {
		fmt.Fprintf(w, "%s: no trading data available for this month\n", title)
		return nil
	}

	fmt.Fprintf(w, "%s Statistics\n", title)
	fmt.Fprintf(w, "  Total P&L:     %s\n", s.TotalPnL.StringFixed(2))
	fmt.Fprintf(w, "  Trading days:  %d\n", s.TradingDays)
	fmt.Fprintf(w, "  Win rate:      %.1f%% (%dW / %dL)\n", s.WinRate, s.WinningDays, s.LosingDays)
	fmt.Fprintf(w, "  Avg daily P&L: %s\n", s.AvgDailyPnL.StringFixed(2))
	fmt.Fprintf(w, "  Total trades:  %d\n", s.TotalTrades)
	if s.BestDay != nil {
		fmt.Fprintf(w, "  Best day:      %s (%s)\n", s.BestDay.Date, s.BestDay.PnL.StringFixed(2))
	}
	if s.WorstDay != nil {
		fmt.Fprintf(w, "  Worst day:     %s (%s)\n", s.WorstDay.Date, s.WorstDay.PnL.StringFixed(2))
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tP&L\tCUMULATIVE")
	for i, day := range s.Daily {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", day.Date, day.PnL.StringFixed(2), s.Cumulative[i].PnL.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	symbols := make([]string, 0, len(s.Contracts))
	for symbol := range s.Contracts {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	fmt.Fprintln(w)
	for _, symbol := range symbols {
		ct := s.Contracts[symbol]
		fmt.Fprintf(w, "  %-6s %3d trades  %s\n", symbol, ct.Trades, ct.PnL.StringFixed(2))
	}

	if len(result.Failed) > 0 {
		fmt.Fprintf(w, "\nDays that could not be processed: %v\n", result.Failed)
	}
	return nil
}
