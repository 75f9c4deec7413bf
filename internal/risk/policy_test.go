package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

func TestSizeFromRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stop     float64
		wantDist float64
		wantRisk float64
		wantSize float64
		wantLev  float64
	}{
		{"one percent stop", 49500, 1.0, 20, 2000, 2},
		{"wide stop floors leverage", 47500, 5.0, 20, 400, 1},
		{"tight stop hits leverage ceiling", 49900, 0.2, 20, 10000, 10},
	}

	p := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.SizeFromRisk(1000, 50000, tt.stop, domain.SideLong)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantDist, got.StopDistancePercent, 1e-9)
			assert.InDelta(t, tt.wantRisk, got.RiskAmountUSD, 1e-6)
			assert.InDelta(t, tt.wantSize, got.PositionSizeUSD, 1e-6)
			assert.InDelta(t, tt.wantLev, got.Leverage, 1e-9)
			assert.LessOrEqual(t, got.Leverage, MaxLeverage)
		})
	}
}

func TestSizeFromRiskRecomputesAboveCeiling(t *testing.T) {
	t.Parallel()

	got, err := Default().SizeFromRisk(1000, 50000, 49950, domain.SideLong)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Leverage)
	assert.InDelta(t, 10000, got.PositionSizeUSD, 1e-9)
	assert.InDelta(t, 10, got.RiskAmountUSD, 1e-6)
}

func TestSizeFromRiskShort(t *testing.T) {
	t.Parallel()

	got, err := Default().SizeFromRisk(1000, 50000, 50500, domain.SideShort)
	require.NoError(t, err)
	assert.InDelta(t, 2000, got.PositionSizeUSD, 1e-6)
	assert.InDelta(t, 2, got.Leverage, 1e-9)
}

func TestSizeFromRiskWrongStopSide(t *testing.T) {
	t.Parallel()

	p := Default()
	_, err := p.SizeFromRisk(1000, 50000, 50500, domain.SideLong)
	assert.ErrorIs(t, err, domain.ErrInvalidStopSide)

	_, err = p.SizeFromRisk(1000, 50000, 49500, domain.SideShort)
	assert.ErrorIs(t, err, domain.ErrInvalidStopSide)
}

func TestValidateStopLoss(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stop float64
		side domain.Side
		want error
	}{
		{"missing", 0, domain.SideLong, domain.ErrStopLossMissing},
		{"negative", -1, domain.SideLong, domain.ErrStopLossMissing},
		{"wrong side long", 50100, domain.SideLong, domain.ErrInvalidStopSide},
		{"wrong side short", 49900, domain.SideShort, domain.ErrInvalidStopSide},
		{"too tight", 49900, domain.SideLong, domain.ErrStopLossTooTight},
		{"too wide", 47000, domain.SideLong, domain.ErrStopLossTooWide},
		{"ok long", 49500, domain.SideLong, nil},
		{"ok short", 51000, domain.SideShort, nil},
		{"inside band", 47600, domain.SideLong, nil},
	}

	p := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := p.ValidateStopLoss(50000, tt.stop, tt.side)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateRiskReward(t *testing.T) {
	t.Parallel()

	p := Default()

	ratio, err := p.ValidateRiskReward(50000, 49500, 51000, domain.SideLong)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, ratio, 1e-9)

	ratio, err = p.ValidateRiskReward(50000, 49500, 50900, domain.SideLong)
	assert.ErrorIs(t, err, domain.ErrRiskRewardTooLow)
	assert.InDelta(t, 1.8, ratio, 1e-9)

	ratio, err = p.ValidateRiskReward(50000, 50500, 48500, domain.SideShort)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, ratio, 1e-9)

	_, err = p.ValidateRiskReward(50000, 49500, 49000, domain.SideLong)
	assert.ErrorIs(t, err, domain.ErrInvalidTakeProfit)
}

func TestCanOpenTradeDailyLossBoundary(t *testing.T) {
	t.Parallel()

	p := Default()

	v, err := p.CanOpenTrade(1000, -40)
	assert.ErrorIs(t, err, domain.ErrDailyLossLimitReached)
	assert.False(t, v.Allowed)
	assert.NotEmpty(t, v.Reason)

	v, err = p.CanOpenTrade(1000, -39.9)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.NotEmpty(t, v.Warning)

	v, err = p.CanOpenTrade(1000, -10)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Empty(t, v.Warning)

	_, err = p.CanOpenTrade(0, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestValidateTradeOrder(t *testing.T) {
	t.Parallel()

	base := Proposal{
		Capital:     1000,
		SizePercent: 100,
		Entry:       50000,
		StopLoss:    49500,
		TakeProfit:  51500,
		Side:        domain.SideLong,
	}

	tests := []struct {
		name   string
		mutate func(*Proposal)
		want   error
	}{
		{"valid", func(*Proposal) {}, nil},
		{"daily loss checked first", func(p *Proposal) { p.DailyPnL = -50; p.StopLoss = 0 }, domain.ErrDailyLossLimitReached},
		{"stop before risk reward", func(p *Proposal) { p.StopLoss = 49950; p.TakeProfit = 50010 }, domain.ErrStopLossTooTight},
		{"risk reward", func(p *Proposal) { p.TakeProfit = 50500 }, domain.ErrRiskRewardTooLow},
		{"combined risk exceeds limit", func(p *Proposal) { p.SizePercent = 300 }, domain.ErrRiskPerTradeExceeded},
		{"non positive size", func(p *Proposal) { p.SizePercent = 0 }, domain.ErrInvalidSize},
	}

	pol := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := base
			tt.mutate(&in)
			_, err := pol.ValidateTrade(in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestValidateTradeRaisesSizeFloor(t *testing.T) {
	t.Parallel()

	a, err := Default().ValidateTrade(Proposal{
		Capital:     1000,
		SizePercent: 0.1,
		Entry:       50000,
		StopLoss:    49500,
		TakeProfit:  51000,
		Side:        domain.SideLong,
	})
	require.NoError(t, err)
	assert.Equal(t, MinPositionSizePercent, a.SizePercent)
	assert.InDelta(t, 5, a.PositionSizeUSD, 1e-9)
	assert.Len(t, a.Warnings, 1)
}

func TestValidateTradeFigures(t *testing.T) {
	t.Parallel()

	a, err := Default().ValidateTrade(Proposal{
		Capital:     1000,
		SizePercent: 200,
		Entry:       50000,
		StopLoss:    49500,
		TakeProfit:  51000,
		Side:        domain.SideLong,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2000, a.PositionSizeUSD, 1e-9)
	assert.InDelta(t, 1.0, a.StopDistancePercent, 1e-9)
	assert.InDelta(t, 20, a.RiskAmountUSD, 1e-9)
	assert.InDelta(t, 2.0, a.RiskPercent, 1e-9)
	assert.InDelta(t, 2.0, a.RiskRewardRatio, 1e-9)
}

func TestNewTightensLooseLimits(t *testing.T) {
	t.Parallel()

	p := New(Limits{MaxRiskPerTradePercent: 5, MaxDailyLossPercent: 3, MaxLeverage: 20, MinRiskRewardRatio: 1})
	l := p.Limits()
	assert.Equal(t, MaxRiskPerTradePercent, l.MaxRiskPerTradePercent)
	assert.Equal(t, 3.0, l.MaxDailyLossPercent)
	assert.Equal(t, MaxLeverage, l.MaxLeverage)
	assert.Equal(t, MinRiskRewardRatio, l.MinRiskRewardRatio)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Default().Summarize(1000, -15)
	assert.InDelta(t, 20, s.MaxRiskPerTradeUSD, 1e-9)
	assert.InDelta(t, 40, s.MaxDailyLossUSD, 1e-9)
	assert.InDelta(t, 25, s.RemainingLossAllowanceUSD, 1e-9)
	assert.InDelta(t, -1.5, s.DailyPnLPercent, 1e-9)
}

func TestFailureMatchesByCode(t *testing.T) {
	t.Parallel()

	err := domain.Failf(domain.CodeStopLossTooWide, "x")
	wrapped := errors.Join(errors.New("ctx"), err)
	assert.ErrorIs(t, wrapped, domain.ErrStopLossTooWide)
	assert.NotErrorIs(t, wrapped, domain.ErrStopLossTooTight)
}
