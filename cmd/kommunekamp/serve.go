package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/abelzeko/kommunekamp/internal/api"
	"github.com/abelzeko/kommunekamp/internal/repository"
	"github.com/abelzeko/kommunekamp/internal/usecases"
)

func newServeCmd() *cobra.Command {
	var pruneSpec string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireServe(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, wireOptions{reports: true})
			if err != nil {
				return err
			}
			defer a.Close()

			c := cron.New()
			if _, ok := a.history.(repository.NoopComparisonRepository); !ok {
				retention, err := usecases.NewHistoryRetention(a.history, cfg.HistoryRetention)
				if err != nil {
					return err
				}
				if _, err := retention.Schedule(c, pruneSpec); err != nil {
					return err
				}
				log.Info().Str("schedule", pruneSpec).Dur("retention", cfg.HistoryRetention).Msg("History pruning scheduled")
			}
			c.Start()
			defer c.Stop()

			server := api.NewServer(a.useCase, api.ServerConfig{
				Addr:    cfg.HTTPAddr,
				Metrics: a.metrics.Handler(),
			})

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pruneSpec, "prune-schedule", "@daily", "Cron schedule for pruning old comparisons")
	return cmd
}
