package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/tradecycle"
)

var sampleTrades = []domain.TradeRecord{
	{
		ID: "t1", Symbol: "BTCUSDT", Side: domain.SideLong,
		EntryPrice: 50000, ExitPrice: 51000, PnLUSD: 10.5, PnLPercent: 2,
		CloseReason: domain.CloseTakeProfit,
		OpenedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ClosedAt:    time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		Duration:    2 * time.Hour,
		CycleNumber: 1,
	},
	{
		ID: "t2", Symbol: "BTCUSDT", Side: domain.SideShort,
		EntryPrice: 51000, ExitPrice: 51500, PnLUSD: -5, PnLPercent: -1,
		CloseReason: domain.CloseStopLoss,
		ClosedAt:    time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		CycleNumber: 1,
	},
}

func TestWriteTrades(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	WriteTrades(&buf, sampleTrades)
	out := buf.String()
	assert.Contains(t, out, "2026-03-01 11:00")
	assert.Contains(t, out, "$10.50")
	assert.Contains(t, out, "-$5.00")
	assert.Contains(t, out, "$5.50", "footer carries the total")
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	WriteSummary(&buf, "BTCUSDT",
		ledger.Statistics{TotalTrades: 2, Wins: 1, Losses: 1, WinRate: 50, CurrentBalance: 1005.5},
		tradecycle.Stats{Number: 1, Mode: domain.ModePaper, TradesInCycle: 2, TradesPerCycle: 100},
	)
	out := buf.String()
	assert.Contains(t, out, "BTCUSDT PERFORMANCE")
	assert.Contains(t, out, "$1005.50")
	assert.Contains(t, out, "1 / 1")
	assert.Contains(t, out, "2/100 trades")
}

func TestWriteRisk(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	WriteRisk(&buf, risk.Default().Summarize(10000, -150))
	out := buf.String()
	assert.Contains(t, out, "Max daily loss")
	assert.Contains(t, out, "-$150.00")
	assert.Contains(t, out, "Loss allowance left")
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "BTCUSDT", ledger.Statistics{TotalTrades: 2}, sampleTrades))

	fx, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{summarySheet, tradesSheet}, fx.GetSheetList())

	sym, err := fx.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", sym)

	rows, err := fx.GetRows(tradesSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "t1", rows[1][0])
	assert.Equal(t, "LONG", rows[1][3])
	assert.Equal(t, "10.5", rows[1][11])
	assert.Equal(t, "STOP_LOSS", rows[2][13])
}
