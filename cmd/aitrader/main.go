// Command aitrader is the entry point for the crypto trading agent. It loads
// configuration, validates it, and runs the trading loop or one of the
// offline reporting commands.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "aitrader",
		Short: "Risk-gated crypto futures trading agent",
		Long: `aitrader runs a decision loop against one Binance USDT-M futures symbol.

Every decision passes the risk gate before it can open a position or place a
limit order. Trading starts on paper; live trading requires an enabled
exchange, explicit approval and enough completed paper cycles.

Subcommands:
  run          - start the trading loop and the dashboard API
  stats        - print performance statistics from the store
  export       - write the trade history to .xlsx or .jsonl
  encrypt-key  - seal the exchange API secret into a keystore file`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.toml", "path to configuration file (TOML or YAML)")

	cmd.AddCommand(
		newRunCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
		newEncryptKeyCmd(),
	)
	return cmd
}

// load reads and validates the configuration. A missing default config file
// falls back to defaults plus environment overrides.
func (o *rootOptions) load() (*config.Config, error) {
	path := o.configPath
	if _, err := os.Stat(path); err != nil && path == "config.toml" {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the JSON logger at the configured level. The offline
// commands log to stderr so their reports stay clean on stdout.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return logger
}
