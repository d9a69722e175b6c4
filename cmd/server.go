package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/viktsys/tradejournal/api"
	"github.com/viktsys/tradejournal/database"
	"github.com/viktsys/tradejournal/notes"
	"golang.org/x/sync/errgroup"
)

var (
	serverPort string
	serverNoDB bool
)

var serverCMD = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long:  `Start the HTTP API server serving day and month journals, contract specs, notes and stored trade statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		journal := notes.NewJournal(cfg.NotesFile, cfg.TradeNotesFile, cfg.TradeColorsFile)

		var stats api.StatsStore
		if !serverNoDB {
			log.Info().Msg("Initializing database...")
			if db, err := database.Open(cfg.DSN()); err != nil {
				log.Warn().Err(err).Msg("Database unavailable; stats endpoint disabled")
			} else {
				stats = database.NewRepository(db)
			}
		}

		gin.SetMode(gin.ReleaseMode)
		h := api.NewHandler(newProcessor(registry), registry, journal, stats)
		srv := &http.Server{
			Addr:              ":" + serverPort,
			Handler:           h.SetupRoutes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("Starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("Shutting down server")
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serverCMD.Flags().StringVar(&serverPort, "port", cfg.Port, "port to listen on")
	serverCMD.Flags().BoolVar(&serverNoDB, "no-db", false, "run without a database")
}
