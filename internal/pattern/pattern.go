// Package pattern detects Smart Money Concepts structures in candle series
// with fixed rules: order blocks, fair value gaps, liquidity sweeps, breaks of
// structure and support/resistance levels.
package pattern

import (
	"fmt"
	"math"
	"sort"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Pattern kinds.
const (
	KindOrderBlock       = "order_block"
	KindFairValueGap     = "fair_value_gap"
	KindLiquiditySweep   = "liquidity_sweep"
	KindBreakOfStructure = "break_of_structure"
	KindSupport          = "support"
	KindResistance       = "resistance"
)

// Directions.
const (
	Bullish = "BULLISH"
	Bearish = "BEARISH"
)

const (
	orderBlockMinBody  = 0.6
	orderBlocksKept    = 5
	gapMinStrength     = 0.3
	gapsKept           = 3
	sweepLookback      = 20
	sweepWindow        = 5
	sweepTolerance     = 0.001
	swingWindow        = 2
	swingsConsidered   = 3
	levelLookback      = 50
	levelBucketPercent = 0.2
	levelMinTouches    = 3
	levelsKept         = 5
)

// Detect runs every detector over candles, oldest first.
func Detect(candles []domain.Candle) []domain.Pattern {
	var out []domain.Pattern
	out = append(out, OrderBlocks(candles)...)
	out = append(out, FairValueGaps(candles)...)
	out = append(out, LiquiditySweeps(candles)...)
	out = append(out, BreakOfStructure(candles)...)
	out = append(out, SupportResistance(candles)...)
	return out
}

// OrderBlocks finds strong-bodied candles that break the previous candle's
// extreme and are not revisited by the next one. The last five are returned.
func OrderBlocks(candles []domain.Candle) []domain.Pattern {
	var out []domain.Pattern
	for i := 2; i < len(candles)-1; i++ {
		prev, cur, next := candles[i-1], candles[i], candles[i+1]
		rng := cur.High - cur.Low
		if rng <= 0 {
			continue
		}
		switch {
		case cur.Close > cur.Open && cur.Close > prev.High && next.Low > cur.Low:
			if s := (cur.Close - cur.Open) / rng; s > orderBlockMinBody {
				out = append(out, domain.Pattern{
					Kind: KindOrderBlock, Direction: Bullish, Price: cur.Low, Strength: round2(s),
					Description: fmt.Sprintf("Bullish OB at %.2f", cur.Low),
				})
			}
		case cur.Close < cur.Open && cur.Close < prev.Low && next.High < cur.High:
			if s := (cur.Open - cur.Close) / rng; s > orderBlockMinBody {
				out = append(out, domain.Pattern{
					Kind: KindOrderBlock, Direction: Bearish, Price: cur.High, Strength: round2(s),
					Description: fmt.Sprintf("Bearish OB at %.2f", cur.High),
				})
			}
		}
	}
	return last(out, orderBlocksKept)
}

// FairValueGaps finds three-candle imbalances where the outer candles do not
// overlap. Strength is the gap relative to the outer candles' mean range,
// capped at 1. The last three are returned.
func FairValueGaps(candles []domain.Candle) []domain.Pattern {
	var out []domain.Pattern
	for i := 1; i < len(candles)-1; i++ {
		prev, next := candles[i-1], candles[i+1]
		avg := ((prev.High - prev.Low) + (next.High - next.Low)) / 2
		if avg <= 0 {
			continue
		}
		switch {
		case prev.High < next.Low:
			if s := math.Min((next.Low-prev.High)/avg, 1); s > gapMinStrength {
				out = append(out, domain.Pattern{
					Kind: KindFairValueGap, Direction: Bullish, Top: next.Low, Bottom: prev.High,
					Price: (next.Low + prev.High) / 2, Strength: round2(s),
					Description: fmt.Sprintf("Bullish FVG: %.2f - %.2f", prev.High, next.Low),
				})
			}
		case prev.Low > next.High:
			if s := math.Min((prev.Low-next.High)/avg, 1); s > gapMinStrength {
				out = append(out, domain.Pattern{
					Kind: KindFairValueGap, Direction: Bearish, Top: prev.Low, Bottom: next.High,
					Price: (prev.Low + next.High) / 2, Strength: round2(s),
					Description: fmt.Sprintf("Bearish FVG: %.2f - %.2f", next.High, prev.Low),
				})
			}
		}
	}
	return last(out, gapsKept)
}

// LiquiditySweeps flags any of the last five candles that wicks through the
// extreme of the 20 candles before them and closes back inside it in the
// opposite direction.
func LiquiditySweeps(candles []domain.Candle) []domain.Pattern {
	if len(candles) <= sweepWindow {
		return nil
	}
	end := len(candles) - sweepWindow
	ref := candles[max(0, end-sweepLookback):end]
	high, low := ref[0].High, ref[0].Low
	for _, c := range ref[1:] {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}

	var out []domain.Pattern
	for _, c := range candles[end:] {
		switch {
		case c.Low <= low*(1-sweepTolerance) && c.Close > c.Open && c.Close > low:
			out = append(out, domain.Pattern{
				Kind: KindLiquiditySweep, Direction: Bullish, Price: c.Low, Strength: 0.7,
				Description: fmt.Sprintf("Bullish liquidity sweep at %.2f", c.Low),
			})
		case c.High >= high*(1+sweepTolerance) && c.Close < c.Open && c.Close < high:
			out = append(out, domain.Pattern{
				Kind: KindLiquiditySweep, Direction: Bearish, Price: c.High, Strength: 0.7,
				Description: fmt.Sprintf("Bearish liquidity sweep at %.2f", c.High),
			})
		}
	}
	return out
}

// BreakOfStructure reports when the last close is beyond the most extreme of
// the three latest swing highs (bullish) or swing lows (bearish).
func BreakOfStructure(candles []domain.Candle) []domain.Pattern {
	var highs, lows []float64
	for i := swingWindow; i < len(candles)-swingWindow; i++ {
		if isSwing(candles, i, func(c domain.Candle) float64 { return c.High }, 1) {
			highs = append(highs, candles[i].High)
		}
		if isSwing(candles, i, func(c domain.Candle) float64 { return c.Low }, -1) {
			lows = append(lows, candles[i].Low)
		}
	}
	if len(candles) == 0 {
		return nil
	}
	price := candles[len(candles)-1].Close

	var out []domain.Pattern
	if len(highs) > 0 {
		level := highs[len(highs)-1]
		for _, h := range last(highs, swingsConsidered) {
			level = math.Max(level, h)
		}
		if price > level {
			out = append(out, domain.Pattern{
				Kind: KindBreakOfStructure, Direction: Bullish, Price: level, Strength: 0.8,
				Description: fmt.Sprintf("Bullish BOS at %.2f", level),
			})
		}
	}
	if len(lows) > 0 {
		level := lows[len(lows)-1]
		for _, l := range last(lows, swingsConsidered) {
			level = math.Min(level, l)
		}
		if price < level {
			out = append(out, domain.Pattern{
				Kind: KindBreakOfStructure, Direction: Bearish, Price: level, Strength: 0.8,
				Description: fmt.Sprintf("Bearish BOS at %.2f", level),
			})
		}
	}
	return out
}

// isSwing reports whether candle i is strictly more extreme than the
// swingWindow candles on each side. sign is 1 for highs and -1 for lows.
func isSwing(candles []domain.Candle, i int, v func(domain.Candle) float64, sign float64) bool {
	x := v(candles[i]) * sign
	for k := 1; k <= swingWindow; k++ {
		if x <= v(candles[i-k])*sign || x <= v(candles[i+k])*sign {
			return false
		}
	}
	return true
}

// SupportResistance buckets the highs and lows of the last 50 candles into
// 0.2% price bands and reports bands touched at least three times, strongest
// first, top five. Strength is touches/10 capped at 1.
func SupportResistance(candles []domain.Candle) []domain.Pattern {
	if len(candles) == 0 {
		return nil
	}
	window := candles[max(0, len(candles)-levelLookback):]
	step := math.Log1p(levelBucketPercent / 100)
	touches := make(map[int]int)
	for _, c := range window {
		if c.High > 0 {
			touches[int(math.Round(math.Log(c.High)/step))]++
		}
		if c.Low > 0 {
			touches[int(math.Round(math.Log(c.Low)/step))]++
		}
	}

	price := candles[len(candles)-1].Close
	var out []domain.Pattern
	for bucket, n := range touches {
		if n < levelMinTouches {
			continue
		}
		level := math.Exp(float64(bucket) * step)
		kind, dir := KindSupport, Bullish
		if level > price {
			kind, dir = KindResistance, Bearish
		}
		out = append(out, domain.Pattern{
			Kind: kind, Direction: dir, Price: level, Strength: round2(math.Min(float64(n)/10, 1)), Touches: n,
			Description: fmt.Sprintf("%s at %.2f (%d touches)", kind, level, n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Touches != out[j].Touches {
			return out[i].Touches > out[j].Touches
		}
		return math.Abs(out[i].Price-price) < math.Abs(out[j].Price-price)
	})
	if len(out) > levelsKept {
		out = out[:levelsKept]
	}
	return out
}

func last[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
