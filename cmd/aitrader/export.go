package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/finetune"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/report"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		out           string
		format        string
		limit         int
		minConfidence float64
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the trade history to an Excel workbook or a JSONL dataset",
		Long: `Export closed trades, oldest first.

The format follows the output extension unless --format is given:
  .xlsx   - summary and trades sheets
  .jsonl  - chat fine-tuning examples, filtered by decision confidence

Examples:
  aitrader export --out trades.xlsx
  aitrader export --out dataset.jsonl --min-confidence 0.7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
			}
			if format != "xlsx" && format != "jsonl" {
				return fmt.Errorf("export: unsupported format %q (valid: xlsx, jsonl)", format)
			}

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

			trades, err := view.stores.History.ListTrades(ctx, view.eng.Symbol(), domain.ListOpts{Limit: limit})
			if err != nil {
				return fmt.Errorf("list trades: %w", err)
			}
			slices.Reverse(trades)

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("export: create %s: %w", out, err)
			}
			defer f.Close()

			switch format {
			case "xlsx":
				err = report.WriteXLSX(f, view.eng.Symbol(), view.eng.Statistics(), trades)
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %d trades to %s\n", len(trades), out)
				}
			case "jsonl":
				var n int
				n, err = finetune.WriteJSONL(f, trades, finetune.Options{MinConfidence: minConfidence})
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %d of %d trades to %s\n", n, len(trades), out)
				}
			}
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "trades.xlsx", "output file")
	cmd.Flags().StringVar(&format, "format", "", "xlsx or jsonl (default: from the output extension)")
	cmd.Flags().IntVar(&limit, "limit", 0, "export only the most recent N trades (0 exports all)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", finetune.DefaultMinConfidence, "minimum decision confidence for jsonl examples")
	return cmd
}
