// Package rules is a deterministic decision source used when no language
// model is configured. It only trades when a chart pattern and order book
// pressure agree.
package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/depth"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/pattern"
)

// Config tunes the rule set. Zero values take the defaults.
type Config struct {
	// MinStrength is the minimum pattern strength considered.
	MinStrength float64
	// MaxDistancePercent is how far from price an entry level may be.
	MaxDistancePercent float64
	// StopBufferPercent places the stop this far beyond the entry level.
	StopBufferPercent float64
	// RewardRatio is the take-profit distance in multiples of the risk.
	RewardRatio float64
}

// Source is a domain.DecisionSource.
type Source struct {
	cfg Config
}

var _ domain.DecisionSource = (*Source)(nil)

// New creates a Source.
func New(cfg Config) *Source {
	if cfg.MinStrength <= 0 {
		cfg.MinStrength = 0.5
	}
	if cfg.MaxDistancePercent <= 0 {
		cfg.MaxDistancePercent = 2
	}
	if cfg.StopBufferPercent <= 0 {
		cfg.StopBufferPercent = 0.5
	}
	if cfg.RewardRatio <= 0 {
		cfg.RewardRatio = 2.5
	}
	return &Source{cfg: cfg}
}

// Decide returns WAIT unless an entry pattern lines up with the pressure
// signal, in which case it places a limit order at the pattern level.
func (s *Source) Decide(_ context.Context, snap domain.MarketSnapshot) (domain.RawDecision, error) {
	switch {
	case snap.OpenPosition != nil:
		return wait("position open"), nil
	case len(snap.PendingOrders) > 0:
		return wait("order pending"), nil
	case snap.Pressure == nil || snap.Pressure.Signal == depth.SignalNeutral:
		return wait("no order book pressure"), nil
	case snap.Price <= 0:
		return wait("no price"), nil
	}

	dir := pattern.Bullish
	if snap.Pressure.Signal == depth.SignalBearish {
		dir = pattern.Bearish
	}

	best, entry, ok := s.pick(snap.Patterns, dir, snap.Price)
	if !ok {
		return wait("no pattern agrees with " + snap.Pressure.Signal + " pressure"), nil
	}

	buffer := entry * s.cfg.StopBufferPercent / 100
	side, stop, target := domain.SideLong, entry-buffer, entry+buffer*s.cfg.RewardRatio
	if dir == pattern.Bearish {
		side, stop, target = domain.SideShort, entry+buffer, entry-buffer*s.cfg.RewardRatio
	}

	return domain.RawDecision{
		Action: string(domain.ActionPlaceLimitOrder),
		Params: map[string]any{
			"side":        string(side),
			"entry_price": round2(entry),
			"stop_loss":   round2(stop),
			"take_profit": round2(target),
		},
		Confidence: best.Strength,
		Reasoning:  fmt.Sprintf("%s with %s pressure (imbalance %.2f)", best.Description, snap.Pressure.Signal, snap.Pressure.Imbalance),
	}, nil
}

// pick returns the strongest entry pattern in dir whose level sits on the
// retracement side of price and within reach.
func (s *Source) pick(patterns []domain.Pattern, dir string, price float64) (domain.Pattern, float64, bool) {
	var (
		best  domain.Pattern
		entry float64
		found bool
	)
	for _, p := range patterns {
		if p.Direction != dir || p.Strength < s.cfg.MinStrength {
			continue
		}
		level, ok := entryLevel(p)
		if !ok {
			continue
		}
		if dir == pattern.Bullish && level >= price || dir == pattern.Bearish && level <= price {
			continue
		}
		if math.Abs(price-level)/price*100 > s.cfg.MaxDistancePercent {
			continue
		}
		if !found || p.Strength > best.Strength {
			best, entry, found = p, level, true
		}
	}
	return best, entry, found
}

// entryLevel is where price is expected to react to p.
func entryLevel(p domain.Pattern) (float64, bool) {
	switch p.Kind {
	case pattern.KindOrderBlock, pattern.KindSupport, pattern.KindResistance:
		return p.Price, p.Price > 0
	case pattern.KindFairValueGap:
		if p.Direction == pattern.Bullish {
			return p.Top, p.Top > 0
		}
		return p.Bottom, p.Bottom > 0
	}
	return 0, false
}

func wait(reason string) domain.RawDecision {
	return domain.RawDecision{
		Action:    string(domain.ActionWait),
		Params:    map[string]any{"reason": reason},
		Reasoning: reason,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
