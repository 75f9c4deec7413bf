package risk

import (
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Sizing is the position implied by risking a fixed share of capital
// between entry and stop.
type Sizing struct {
	PositionSizeUSD     float64 `json:"position_size_usd"`
	SizePercent         float64 `json:"size_percent"`
	Leverage            float64 `json:"leverage"`
	RiskAmountUSD       float64 `json:"risk_amount_usd"`
	RiskPercent         float64 `json:"risk_percent"`
	StopDistancePercent float64 `json:"stop_distance_percent"`
}

// SizeFromRisk sizes a position risking the maximum per-trade percent.
func (p Policy) SizeFromRisk(capital, entry, stop float64, side domain.Side) (Sizing, error) {
	return p.SizeFromRiskPercent(capital, p.limits.MaxRiskPerTradePercent, entry, stop, side)
}

// SizeFromRiskPercent sizes a position so that a stop-out loses riskPct of
// capital. Leverage is floored at 1x; above the leverage ceiling the size is
// recomputed from the clamped leverage.
func (p Policy) SizeFromRiskPercent(capital, riskPct, entry, stop float64, side domain.Side) (Sizing, error) {
	if capital <= 0 {
		return Sizing{}, domain.Failf(domain.CodeInsufficientBalance, "capital %.2f must be positive", capital)
	}
	if riskPct <= 0 {
		return Sizing{}, domain.Failf(domain.CodeInvalidSize, "risk percent %.2f must be positive", riskPct)
	}
	dist, err := stopDistancePercent(entry, stop, side)
	if err != nil {
		return Sizing{}, err
	}

	riskUSD := capital * riskPct / 100
	size := riskUSD / (dist / 100)
	lev := size / capital
	if lev > p.limits.MaxLeverage {
		lev = p.limits.MaxLeverage
		size = capital * lev
		riskUSD = size * dist / 100
	}
	lev = p.ClampLeverage(lev)

	return Sizing{
		PositionSizeUSD:     size,
		SizePercent:         size / capital * 100,
		Leverage:            lev,
		RiskAmountUSD:       riskUSD,
		RiskPercent:         riskUSD / capital * 100,
		StopDistancePercent: dist,
	}, nil
}
