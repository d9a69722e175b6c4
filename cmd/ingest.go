package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/viktsys/tradejournal/database"
	"github.com/viktsys/tradejournal/ingest"
)

var (
	ingestFrom   string
	ingestTo     string
	ingestDryRun bool
)

var ingestCMD = &cobra.Command{
	Use:   "ingest",
	Short: "Process a range of days and store them in the database",
	Long:  `Process every day between --from and --to in parallel and store the trades and per-contract daily totals in postgres, replacing rows stored earlier for the same dates.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse(ingest.DateLayout, ingestFrom)
		if err != nil {
			return fmt.Errorf("invalid --from %q: %w", ingestFrom, err)
		}
		to := from
		if ingestTo != "" {
			if to, err = time.Parse(ingest.DateLayout, ingestTo); err != nil {
				return fmt.Errorf("invalid --to %q: %w", ingestTo, err)
			}
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		var store ingest.DayStore
		if !ingestDryRun {
			log.Info().Msg("Initializing database...")
			db, err := database.Open(cfg.DSN())
			if err != nil {
				return err
			}
			store = database.NewRepository(db)
		}

		log.Info().Str("data_dir", dataDir).Str("from", ingestFrom).Str("to", to.Format(ingest.DateLayout)).
			Msg("Starting ingestion")

		report, err := newProcessor(registry).ProcessRange(cmd.Context(), from, to, store)
		if err != nil {
			return fmt.Errorf("failed to process data: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Ingestion completed: %d days, %d stored, %d empty, %d failed (run %s)\n",
			report.Days, report.Stored, report.Empty, report.Failed, report.RunID)
		return nil
	},
}

func init() {
	ingestCMD.Flags().StringVar(&ingestFrom, "from", "", "first day to process (YYYY-MM-DD)")
	ingestCMD.Flags().StringVar(&ingestTo, "to", "", "last day to process (YYYY-MM-DD), defaults to --from")
	ingestCMD.Flags().BoolVar(&ingestDryRun, "dry-run", false, "process without storing anything")
	ingestCMD.MarkFlagRequired("from")
}
