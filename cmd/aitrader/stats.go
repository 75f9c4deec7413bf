package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/app"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/config"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/engine"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/report"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var trades int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print performance statistics and the risk summary",
		Long: `Print the saved ledger's performance, cycle progress and today's risk
allowance, followed by the most recent closed trades.

Example:
  aitrader stats --config config.toml --trades 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.LogLevel)
			ctx := cmd.Context()

			view, err := openView(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer view.close()

			out := cmd.OutOrStdout()
			report.WriteSummary(out, view.eng.Symbol(), view.eng.Statistics(), view.eng.Cycle())
			report.WriteRisk(out, view.eng.Risk())

			if trades > 0 {
				recent, err := view.stores.History.ListTrades(ctx, view.eng.Symbol(), domain.ListOpts{Limit: trades})
				if err != nil {
					return fmt.Errorf("list trades: %w", err)
				}
				report.WriteTrades(out, recent)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&trades, "trades", "n", 20, "number of recent trades to list (0 hides the list)")
	return cmd
}

// ledgerView is a read-only engine over the saved state.
type ledgerView struct {
	eng    *engine.Engine
	stores *app.Stores
	close  func()
}

// openView loads the saved state without touching the exchange. A symbol
// with no saved state shows the configured starting balance.
func openView(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ledgerView, error) {
	stores, cleanup, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	state, err := stores.State.LoadState(ctx, cfg.App.Symbol)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("no saved state, showing a fresh ledger", slog.String("symbol", cfg.App.Symbol))
		state = domain.NewLedgerState(cfg.App.Symbol, cfg.App.InitialBalance)
	case err != nil:
		cleanup()
		return nil, fmt.Errorf("load state: %w", err)
	}

	eng, err := engine.New(state, stores.State, app.Policy(cfg), app.EngineConfig(cfg), logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return &ledgerView{eng: eng, stores: stores, close: cleanup}, nil
}
