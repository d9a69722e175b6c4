package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/viktsys/tradejournal/config"
	"github.com/viktsys/tradejournal/contracts"
	"github.com/viktsys/tradejournal/ingest"
	"github.com/viktsys/tradejournal/trades"
)

var (
	cfg = config.Load()

	dataDir       string
	contractsFile string
	flipPolicy    string
	logLevel      string
)

var rootCMD = &cobra.Command{
	Use:   "tradejournal",
	Short: "Futures trade journal",
	Long: `A CLI application that turns broker fill exports into a futures trade journal.
It reconstructs round trip trades per day, aggregates them per month, keeps
notes per day and per trade, and can store processed days in postgres and
serve them through a REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(logLevel, cfg.LogFormat)
		if _, err := trades.ParseFlipPolicy(flipPolicy); err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	err := rootCMD.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.PersistentFlags().StringVar(&dataDir, "data-dir", cfg.DataDir, "directory holding the daily export files")
	rootCMD.PersistentFlags().StringVar(&contractsFile, "contracts", cfg.ContractsFile, "instrument registry file (.json or .yaml)")
	rootCMD.PersistentFlags().StringVar(&flipPolicy, "flip-policy", cfg.FlipPolicy, "what a fill crossing zero does: absorb or reverse")
	rootCMD.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	rootCMD.AddCommand(dayCMD, monthCMD, ingestCMD, serverCMD, contractsCMD)
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func loadRegistry() (*contracts.Registry, error) {
	registry, err := contracts.Load(contractsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}
	return registry, nil
}

func newProcessor(registry *contracts.Registry) *ingest.Processor {
	policy, _ := trades.ParseFlipPolicy(flipPolicy)
	return ingest.NewProcessor(dataDir, registry,
		ingest.WithFlipPolicy(policy),
		ingest.WithWorkers(cfg.DayWorkers),
	)
}
