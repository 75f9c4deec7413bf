// Package report renders trade statistics for the terminal and as Excel
// workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/tradecycle"
)

// WriteSummary renders the statistics and cycle progress as a table.
func WriteSummary(w io.Writer, symbol string, st ledger.Statistics, cyc tradecycle.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(symbol + " PERFORMANCE")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Balance", usd(st.CurrentBalance)},
		{"Total P&L", fmt.Sprintf("%s (%.2f%%)", usd(st.TotalPnLUSD), st.TotalPnLPercent)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Trades", st.TotalTrades},
		{"Wins / Losses", fmt.Sprintf("%d / %d", st.Wins, st.Losses)},
		{"Win rate", fmt.Sprintf("%.1f%%", st.WinRate)},
		{"Avg win / loss", fmt.Sprintf("%s / %s", usd(st.AvgWin), usd(st.AvgLoss))},
		{"Largest win / loss", fmt.Sprintf("%s / %s", usd(st.LargestWin), usd(st.LargestLoss))},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Cycle", fmt.Sprintf("%d (%s)", cyc.Number, cyc.Mode)},
		{"Cycle progress", fmt.Sprintf("%d/%d trades", cyc.TradesInCycle, cyc.TradesPerCycle)},
		{"Completed cycles", cyc.Completed},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	})
	t.Render()
}

// WriteRisk renders today's loss allowance against the limits in force.
func WriteRisk(w io.Writer, sum risk.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("RISK")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Limit", "Percent", "USD"})
	t.AppendRows([]table.Row{
		{"Max risk per trade", fmt.Sprintf("%.2f%%", sum.MaxRiskPerTradePercent), usd(sum.MaxRiskPerTradeUSD)},
		{"Max daily loss", fmt.Sprintf("%.2f%%", sum.MaxDailyLossPercent), usd(sum.MaxDailyLossUSD)},
		{"Daily P&L", fmt.Sprintf("%.2f%%", sum.DailyPnLPercent), usd(sum.DailyPnLUSD)},
		{"Loss allowance left", fmt.Sprintf("%.2f%%", sum.RemainingLossAllowancePercent), usd(sum.RemainingLossAllowanceUSD)},
	})
	t.AppendFooter(table.Row{"Min R:R / max leverage", fmt.Sprintf("%.1f", sum.MinRiskRewardRatio), fmt.Sprintf("%.0fx", sum.MaxLeverage)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.Render()
}

// WriteTrades renders trades, one per row, in the order given.
func WriteTrades(w io.Writer, trades []domain.TradeRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Closed", "Side", "Entry", "Exit", "P&L", "P&L %", "Reason", "Held"})

	var total float64
	for _, tr := range trades {
		total += tr.PnLUSD
		t.AppendRow(table.Row{
			tr.ClosedAt.UTC().Format("2006-01-02 15:04"),
			tr.Side,
			fmt.Sprintf("%.2f", tr.EntryPrice),
			fmt.Sprintf("%.2f", tr.ExitPrice),
			usd(tr.PnLUSD),
			fmt.Sprintf("%.2f%%", tr.PnLPercent),
			tr.CloseReason,
			tr.Duration.Round(time.Minute).String(),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", usd(total), "", "", ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()
}

func usd(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
