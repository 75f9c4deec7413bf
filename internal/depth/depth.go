// Package depth derives buy/sell pressure from order book snapshots.
package depth

import (
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Signals.
const (
	SignalBullish = "BULLISH"
	SignalBearish = "BEARISH"
	SignalNeutral = "NEUTRAL"
)

const (
	// ImbalanceThreshold is the imbalance beyond which pressure is
	// directional.
	ImbalanceThreshold = 0.2
	// WallMultiple is how many times the mean level size a level must be to
	// count as a wall.
	WallMultiple = 3.0
)

// Analyze computes volumes, imbalance, spread, signal and walls. Bids are
// expected best first (descending price), asks best first (ascending).
func Analyze(snap domain.DepthSnapshot) domain.Pressure {
	p := domain.Pressure{Signal: SignalNeutral}
	p.BidVolume = volume(snap.Bids)
	p.AskVolume = volume(snap.Asks)

	if total := p.BidVolume + p.AskVolume; total > 0 {
		p.Imbalance = (p.BidVolume - p.AskVolume) / total
	}
	switch {
	case p.Imbalance > ImbalanceThreshold:
		p.Signal = SignalBullish
	case p.Imbalance < -ImbalanceThreshold:
		p.Signal = SignalBearish
	}

	if len(snap.Bids) > 0 && len(snap.Asks) > 0 && snap.Bids[0].Price > 0 {
		bid, ask := snap.Bids[0].Price, snap.Asks[0].Price
		p.SpreadPercent = (ask - bid) / bid * 100
	}

	n := len(snap.Bids) + len(snap.Asks)
	if n > 0 {
		mean := (p.BidVolume + p.AskVolume) / float64(n)
		p.BidWalls = walls(snap.Bids, mean)
		p.AskWalls = walls(snap.Asks, mean)
	}
	return p
}

func volume(levels []domain.DepthLevel) float64 {
	var v float64
	for _, l := range levels {
		v += l.Quantity
	}
	return v
}

func walls(levels []domain.DepthLevel, mean float64) []domain.DepthLevel {
	if mean <= 0 {
		return nil
	}
	var out []domain.DepthLevel
	for _, l := range levels {
		if l.Quantity >= mean*WallMultiple {
			out = append(out, l)
		}
	}
	return out
}
