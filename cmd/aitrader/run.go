package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/app"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/config"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop and the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stdout, cfg.LogLevel)
			logger.Info("ai trader starting",
				slog.String("config", opts.configPath),
				slog.Any("settings", config.RedactedConfig(cfg)),
			)

			application := app.New(cfg, logger)
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				// context.Canceled is expected on clean shutdown.
				if errors.Is(err, context.Canceled) {
					logger.Info("application shut down gracefully")
					return nil
				}
				logger.Error("application exited with error", slog.String("error", err.Error()))
				return err
			}

			logger.Info("ai trader stopped")
			return nil
		},
	}
}
