package risk

import (
	"fmt"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// riskTolerance absorbs float noise when a size was derived from the risk
// budget itself.
const riskTolerance = 1e-9

// ValidateStopLoss checks that stop is present, on the loss side of entry
// and within the allowed distance band. It returns the distance in percent.
func (p Policy) ValidateStopLoss(entry, stop float64, side domain.Side) (float64, error) {
	if stop <= 0 {
		return 0, domain.Failf(domain.CodeStopLossMissing, "stop loss is mandatory")
	}
	dist, err := stopDistancePercent(entry, stop, side)
	if err != nil {
		return 0, err
	}
	if dist < p.limits.MinStopDistancePercent {
		return dist, domain.Failf(domain.CodeStopLossTooTight,
			"stop loss too tight (%.2f%%), minimum %.1f%%", dist, p.limits.MinStopDistancePercent)
	}
	if dist > p.limits.MaxStopDistancePercent {
		return dist, domain.Failf(domain.CodeStopLossTooWide,
			"stop loss too wide (%.2f%%), maximum %.1f%%", dist, p.limits.MaxStopDistancePercent)
	}
	return dist, nil
}

// ValidateRiskReward returns reward/risk and fails when it is below the
// minimum ratio.
func (p Policy) ValidateRiskReward(entry, stop, takeProfit float64, side domain.Side) (float64, error) {
	var riskDist, reward float64
	if side == domain.SideShort {
		riskDist, reward = stop-entry, entry-takeProfit
	} else {
		riskDist, reward = entry-stop, takeProfit-entry
	}
	if riskDist <= 0 {
		return 0, domain.Failf(domain.CodeInvalidStopSide, "stop loss %.2f is on the wrong side of entry %.2f", stop, entry)
	}
	if reward <= 0 {
		return 0, domain.Failf(domain.CodeInvalidTakeProfit, "take profit %.2f is on the wrong side of entry %.2f", takeProfit, entry)
	}
	ratio := reward / riskDist
	if ratio < p.limits.MinRiskRewardRatio {
		return ratio, domain.Failf(domain.CodeRiskRewardTooLow,
			"risk/reward ratio %.2f below minimum %.1f", ratio, p.limits.MinRiskRewardRatio)
	}
	return ratio, nil
}

// Verdict is the outcome of the daily loss gate.
type Verdict struct {
	Allowed         bool    `json:"allowed"`
	Reason          string  `json:"reason"`
	Warning         string  `json:"warning,omitempty"`
	DailyPnLPercent float64 `json:"daily_pnl_percent"`
}

// CanOpenTrade blocks new exposure once today's realized P&L has reached the
// daily loss limit. Past 80% of the limit it allows the trade with a warning.
func (p Policy) CanOpenTrade(capital, dailyPnL float64) (Verdict, error) {
	if capital <= 0 {
		err := domain.Failf(domain.CodeInsufficientBalance, "capital %.2f must be positive", capital)
		return Verdict{Reason: err.Error()}, err
	}
	limit := capital * p.limits.MaxDailyLossPercent / 100
	pct := dailyPnL / capital * 100
	v := Verdict{Allowed: true, Reason: "ok to trade", DailyPnLPercent: pct}

	if dailyPnL <= -limit {
		err := domain.Failf(domain.CodeDailyLossLimitReached,
			"daily loss limit reached (%.2f%% of %.1f%%)", pct, p.limits.MaxDailyLossPercent)
		v.Allowed = false
		v.Reason = err.Error()
		return v, err
	}
	if dailyPnL <= -limit*warnFraction {
		v.Warning = fmt.Sprintf("close to daily loss limit (%.2f%% of %.1f%%)", pct, p.limits.MaxDailyLossPercent)
	}
	return v, nil
}

// Proposal is a candidate trade submitted to ValidateTrade. SizePercent is the
// notional as a percent of capital (200 means 2x).
type Proposal struct {
	Capital     float64
	SizePercent float64
	Entry       float64
	StopLoss    float64
	TakeProfit  float64
	Side        domain.Side
	DailyPnL    float64
}

// Assessment carries the derived figures of a validated proposal. On failure
// it holds whatever was computed before the failing check.
type Assessment struct {
	SizePercent         float64  `json:"size_percent"`
	PositionSizeUSD     float64  `json:"position_size_usd"`
	StopDistancePercent float64  `json:"stop_distance_percent"`
	RiskRewardRatio     float64  `json:"risk_reward_ratio"`
	RiskAmountUSD       float64  `json:"risk_amount_usd"`
	RiskPercent         float64  `json:"risk_percent"`
	Warnings            []string `json:"warnings,omitempty"`
}

// ValidateTrade runs, in order: daily loss gate, size floor, stop loss,
// risk/reward, and the final check that the implied loss at the stop stays
// within the per-trade risk limit.
func (p Policy) ValidateTrade(in Proposal) (Assessment, error) {
	var a Assessment

	v, err := p.CanOpenTrade(in.Capital, in.DailyPnL)
	if err != nil {
		return a, err
	}
	if v.Warning != "" {
		a.Warnings = append(a.Warnings, v.Warning)
	}

	if in.SizePercent <= 0 {
		return a, domain.Failf(domain.CodeInvalidSize, "position size %.2f%% must be positive", in.SizePercent)
	}
	a.SizePercent = in.SizePercent
	if a.SizePercent < p.limits.MinPositionSizePercent {
		a.SizePercent = p.limits.MinPositionSizePercent
		a.Warnings = append(a.Warnings, fmt.Sprintf("position size %.2f%% raised to minimum %.1f%%",
			in.SizePercent, p.limits.MinPositionSizePercent))
	}
	a.PositionSizeUSD = in.Capital * a.SizePercent / 100

	dist, err := p.ValidateStopLoss(in.Entry, in.StopLoss, in.Side)
	if err != nil {
		return a, err
	}
	a.StopDistancePercent = dist

	ratio, err := p.ValidateRiskReward(in.Entry, in.StopLoss, in.TakeProfit, in.Side)
	if err != nil {
		return a, err
	}
	a.RiskRewardRatio = ratio

	a.RiskAmountUSD = a.PositionSizeUSD * dist / 100
	a.RiskPercent = a.RiskAmountUSD / in.Capital * 100
	if a.RiskPercent > p.limits.MaxRiskPerTradePercent+riskTolerance {
		return a, domain.Failf(domain.CodeRiskPerTradeExceeded,
			"risk amount %.2f%% exceeds %.1f%% limit", a.RiskPercent, p.limits.MaxRiskPerTradePercent)
	}
	return a, nil
}

// Summary is a read-only view of the limits applied to capital and today's
// realized P&L.
type Summary struct {
	Capital                       float64 `json:"capital"`
	MaxRiskPerTradePercent        float64 `json:"max_risk_per_trade_percent"`
	MaxRiskPerTradeUSD            float64 `json:"max_risk_per_trade_usd"`
	MaxDailyLossPercent           float64 `json:"max_daily_loss_percent"`
	MaxDailyLossUSD               float64 `json:"max_daily_loss_usd"`
	DailyPnLUSD                   float64 `json:"daily_pnl_usd"`
	DailyPnLPercent               float64 `json:"daily_pnl_percent"`
	RemainingLossAllowanceUSD     float64 `json:"remaining_loss_allowance_usd"`
	RemainingLossAllowancePercent float64 `json:"remaining_loss_allowance_percent"`
	MinRiskRewardRatio            float64 `json:"min_risk_reward_ratio"`
	MaxLeverage                   float64 `json:"max_leverage"`
}

// Summarize reports the limits in USD and how much daily loss remains.
func (p Policy) Summarize(capital, dailyPnL float64) Summary {
	s := Summary{
		Capital:                capital,
		MaxRiskPerTradePercent: p.limits.MaxRiskPerTradePercent,
		MaxDailyLossPercent:    p.limits.MaxDailyLossPercent,
		DailyPnLUSD:            dailyPnL,
		MinRiskRewardRatio:     p.limits.MinRiskRewardRatio,
		MaxLeverage:            p.limits.MaxLeverage,
	}
	if capital <= 0 {
		return s
	}
	s.MaxRiskPerTradeUSD = capital * p.limits.MaxRiskPerTradePercent / 100
	s.MaxDailyLossUSD = capital * p.limits.MaxDailyLossPercent / 100
	s.DailyPnLPercent = dailyPnL / capital * 100
	s.RemainingLossAllowanceUSD = s.MaxDailyLossUSD + dailyPnL
	s.RemainingLossAllowancePercent = s.RemainingLossAllowanceUSD / capital * 100
	return s
}
