package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var contractsCMD = &cobra.Command{
	Use:   "contracts",
	Short: "Manage instrument tick specifications",
}

var contractsListCMD = &cobra.Command{
	Use:   "list",
	Short: "List the registered instruments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tTICK VALUE\tTICK SIZE")
		for _, spec := range registry.All() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", spec.Symbol, spec.TickValue.StringFixed(2), spec.TickSize.String())
		}
		return tw.Flush()
	},
}

var contractsSetCMD = &cobra.Command{
	Use:   "set SYMBOL TICK_VALUE TICK_SIZE",
	Short: "Add or update an instrument",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tickValue, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid tick value %q: %w", args[1], err)
		}
		tickSize, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("invalid tick size %q: %w", args[2], err)
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		spec, err := registry.Save(strings.ToUpper(args[0]), tickValue, tickSize)
		if err != nil {
			return err
		}

		log.Info().Str("symbol", spec.Symbol).Str("file", contractsFile).Msg("Contract spec saved")
		return nil
	},
}

func init() {
	contractsCMD.AddCommand(contractsListCMD, contractsSetCMD)
}
