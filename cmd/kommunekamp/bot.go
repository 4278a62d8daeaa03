package main

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/abelzeko/kommunekamp/internal/api"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireBot(); err != nil {
				return err
			}
			log.Info().Msg("Starting Kommunekamp bot...")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, wireOptions{reports: true, interpreter: true})
			if err != nil {
				return err
			}
			defer a.Close()

			telegramBot, err := api.NewTelegramBot(cfg.TelegramBotToken, a.useCase)
			if err != nil {
				return err
			}

			telegramBot.Start(ctx)
			return nil
		},
	}
}
