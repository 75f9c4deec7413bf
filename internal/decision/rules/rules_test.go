package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/depth"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/gate"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/pattern"
)

func snapshot(signal string, patterns ...domain.Pattern) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol:   "BTCUSDT",
		Price:    50000,
		Patterns: patterns,
		Pressure: &domain.Pressure{Signal: signal, Imbalance: 0.4},
	}
}

func TestDecideLong(t *testing.T) {
	t.Parallel()

	snap := snapshot(depth.SignalBullish,
		domain.Pattern{Kind: pattern.KindOrderBlock, Direction: pattern.Bullish, Price: 49800, Strength: 0.8, Description: "Bullish OB at 49800.00"},
		domain.Pattern{Kind: pattern.KindOrderBlock, Direction: pattern.Bullish, Price: 49900, Strength: 0.6},
		domain.Pattern{Kind: pattern.KindOrderBlock, Direction: pattern.Bearish, Price: 50200, Strength: 0.9},
	)
	raw, err := New(Config{}).Decide(context.Background(), snap)
	require.NoError(t, err)

	d, ok := gate.Parse(raw).(gate.PlaceLimitOrder)
	require.True(t, ok, "got %#v", raw)
	assert.Equal(t, domain.OrderSideBuy, d.Side)
	assert.InDelta(t, 49800, d.EntryPrice, 1e-9)
	assert.InDelta(t, 49551, d.StopLoss, 1e-9)
	assert.InDelta(t, 50422.5, d.TakeProfit, 1e-9)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
}

func TestDecideShortFromGap(t *testing.T) {
	t.Parallel()

	snap := snapshot(depth.SignalBearish,
		domain.Pattern{Kind: pattern.KindFairValueGap, Direction: pattern.Bearish, Top: 50400, Bottom: 50200, Strength: 0.7},
	)
	raw, err := New(Config{}).Decide(context.Background(), snap)
	require.NoError(t, err)

	d, ok := gate.Parse(raw).(gate.PlaceLimitOrder)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSideSell, d.Side)
	assert.InDelta(t, 50200, d.EntryPrice, 1e-9)
	assert.InDelta(t, 50451, d.StopLoss, 1e-9)
	assert.InDelta(t, 49572.5, d.TakeProfit, 1e-9)
}

func TestDecideWaits(t *testing.T) {
	t.Parallel()

	ob := domain.Pattern{Kind: pattern.KindOrderBlock, Direction: pattern.Bullish, Price: 49800, Strength: 0.8}
	withPosition := snapshot(depth.SignalBullish, ob)
	withPosition.OpenPosition = &domain.Position{ID: "p"}
	withOrder := snapshot(depth.SignalBullish, ob)
	withOrder.PendingOrders = []domain.PendingOrder{{ID: "o"}}
	noPressure := snapshot(depth.SignalBullish, ob)
	noPressure.Pressure = nil

	tests := []struct {
		name string
		snap domain.MarketSnapshot
	}{
		{"position open", withPosition},
		{"order pending", withOrder},
		{"no pressure", noPressure},
		{"neutral pressure", snapshot(depth.SignalNeutral, ob)},
		{"disagreeing pressure", snapshot(depth.SignalBearish, ob)},
		{"weak pattern", snapshot(depth.SignalBullish, domain.Pattern{Kind: pattern.KindOrderBlock, Direction: pattern.Bullish, Price: 49800, Strength: 0.3})},
		{"too far", snapshot(depth.SignalBullish, domain.Pattern{Kind: pattern.KindOrderBlock, Direction: pattern.Bullish, Price: 48000, Strength: 0.9})},
		{"wrong side of price", snapshot(depth.SignalBullish, domain.Pattern{Kind: pattern.KindOrderBlock, Direction: pattern.Bullish, Price: 50100, Strength: 0.9})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw, err := New(Config{}).Decide(context.Background(), tt.snap)
			require.NoError(t, err)
			assert.Equal(t, string(domain.ActionWait), raw.Action)
			assert.NotEmpty(t, raw.Reasoning)
		})
	}
}
