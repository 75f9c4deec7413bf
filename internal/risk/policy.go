// Package risk evaluates proposed trades against fixed risk limits. Every
// function is pure: inputs in, a typed result or *domain.Failure out.
package risk

import (
	"math"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Hard limits. A Policy may be configured tighter than these but never looser.
const (
	MaxRiskPerTradePercent = 2.0
	MaxDailyLossPercent    = 4.0
	MinRiskRewardRatio     = 2.0
	MinPositionSizePercent = 0.5
	MaxLeverage            = 10.0
	MinLeverage            = 1.0
	MinStopDistancePercent = 0.3
	MaxStopDistancePercent = 5.0

	// warnFraction of the daily loss limit raises a soft warning.
	warnFraction = 0.8
)

// Limits holds the thresholds a Policy enforces. Percent values are in
// percent units (2.0 means 2%).
type Limits struct {
	MaxRiskPerTradePercent float64
	MaxDailyLossPercent    float64
	MinRiskRewardRatio     float64
	MinPositionSizePercent float64
	MaxLeverage            float64
	MinStopDistancePercent float64
	MaxStopDistancePercent float64
}

// DefaultLimits returns the hard limits.
func DefaultLimits() Limits {
	return Limits{
		MaxRiskPerTradePercent: MaxRiskPerTradePercent,
		MaxDailyLossPercent:    MaxDailyLossPercent,
		MinRiskRewardRatio:     MinRiskRewardRatio,
		MinPositionSizePercent: MinPositionSizePercent,
		MaxLeverage:            MaxLeverage,
		MinStopDistancePercent: MinStopDistancePercent,
		MaxStopDistancePercent: MaxStopDistancePercent,
	}
}

// Policy is a stateless rule evaluator.
type Policy struct {
	limits Limits
}

// New returns a Policy for l. Zero fields take the hard limit and values
// looser than a hard limit are tightened back to it.
func New(l Limits) Policy {
	d := DefaultLimits()
	l.MaxRiskPerTradePercent = tighterMax(l.MaxRiskPerTradePercent, d.MaxRiskPerTradePercent)
	l.MaxDailyLossPercent = tighterMax(l.MaxDailyLossPercent, d.MaxDailyLossPercent)
	l.MaxLeverage = tighterMax(l.MaxLeverage, d.MaxLeverage)
	l.MaxStopDistancePercent = tighterMax(l.MaxStopDistancePercent, d.MaxStopDistancePercent)
	l.MinRiskRewardRatio = tighterMin(l.MinRiskRewardRatio, d.MinRiskRewardRatio)
	l.MinPositionSizePercent = tighterMin(l.MinPositionSizePercent, d.MinPositionSizePercent)
	l.MinStopDistancePercent = tighterMin(l.MinStopDistancePercent, d.MinStopDistancePercent)
	return Policy{limits: l}
}

// Default returns a Policy enforcing the hard limits.
func Default() Policy {
	return Policy{limits: DefaultLimits()}
}

// Limits returns the thresholds in force.
func (p Policy) Limits() Limits {
	return p.limits
}

// ClampLeverage bounds lev to [MinLeverage, MaxLeverage].
func (p Policy) ClampLeverage(lev float64) float64 {
	return math.Min(math.Max(lev, MinLeverage), p.limits.MaxLeverage)
}

func tighterMax(v, ceiling float64) float64 {
	if v <= 0 || v > ceiling {
		return ceiling
	}
	return v
}

func tighterMin(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}

// stopDistancePercent returns |entry-stop|/entry in percent, or a failure
// when the stop sits on the profit side of entry.
func stopDistancePercent(entry, stop float64, side domain.Side) (float64, error) {
	if entry <= 0 {
		return 0, domain.Failf(domain.CodeInvalidPrice, "entry price %.4f must be positive", entry)
	}
	switch side {
	case domain.SideLong:
		if stop >= entry {
			return 0, domain.Failf(domain.CodeInvalidStopSide, "stop loss %.2f must be below entry %.2f for LONG", stop, entry)
		}
		return (entry - stop) / entry * 100, nil
	case domain.SideShort:
		if stop <= entry {
			return 0, domain.Failf(domain.CodeInvalidStopSide, "stop loss %.2f must be above entry %.2f for SHORT", stop, entry)
		}
		return (stop - entry) / entry * 100, nil
	default:
		return 0, domain.Failf(domain.CodeInvalidStopSide, "unknown side %q", side)
	}
}
