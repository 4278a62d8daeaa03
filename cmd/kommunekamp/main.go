package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abelzeko/kommunekamp/internal/config"
)

var cfg config.Config

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	setupLogging(zerolog.InfoLevel)

	rootCmd := &cobra.Command{
		Use:   "kommunekamp",
		Short: "Compare two Norwegian municipalities",
		Long: `Kommunekamp compares two municipalities on breweries, foot trails, rain and the
share of inhabitants under 35, picks a weighted winner and renders a PDF report.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.AddCommand(newServeCmd(), newBotCmd(), newCompareCmd(), newHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// setupLogging writes human readable logs to a terminal and JSON otherwise
func setupLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
