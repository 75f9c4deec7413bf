// Package market assembles the market half of a decision snapshot: candles,
// chart patterns and order book pressure.
package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/depth"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/pattern"
)

// Defaults give the decision source one day of 15 minute bars.
const (
	DefaultInterval    = "15m"
	DefaultCandleLimit = 96
	DefaultDepthLimit  = 20
)

// Config selects how much history a snapshot carries.
type Config struct {
	Interval    string
	CandleLimit int
	DepthLimit  int
}

// Builder builds market snapshots. A nil depth source leaves Pressure empty.
type Builder struct {
	feed   domain.PriceFeed
	depth  domain.DepthSource
	cfg    Config
	logger *slog.Logger
}

// NewBuilder creates a Builder. depthSrc may be nil.
func NewBuilder(feed domain.PriceFeed, depthSrc domain.DepthSource, cfg Config, logger *slog.Logger) *Builder {
	if cfg.Interval == "" {
		cfg.Interval = DefaultInterval
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = DefaultCandleLimit
	}
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = DefaultDepthLimit
	}
	return &Builder{
		feed:   feed,
		depth:  depthSrc,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "market")),
	}
}

// Build fetches candles and depth for symbol. Candles are required; a depth
// failure is logged and the snapshot goes out without pressure.
func (b *Builder) Build(ctx context.Context, symbol string, price float64) (domain.MarketSnapshot, error) {
	candles, err := b.feed.GetCandles(ctx, symbol, b.cfg.Interval, b.cfg.CandleLimit)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("market: candles: %w", err)
	}

	snap := domain.MarketSnapshot{
		Symbol:    symbol,
		Price:     price,
		Change24h: Change(candles, price),
		Candles:   candles,
		Patterns:  pattern.Detect(candles),
	}

	if b.depth != nil {
		book, err := b.depth.GetDepth(ctx, symbol, b.cfg.DepthLimit)
		if err != nil {
			b.logger.WarnContext(ctx, "depth unavailable",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		} else {
			p := depth.Analyze(book)
			snap.Pressure = &p
		}
	}
	return snap, nil
}

// Change returns the percent move from the first candle's open to price.
func Change(candles []domain.Candle, price float64) float64 {
	if len(candles) == 0 || candles[0].Open <= 0 {
		return 0
	}
	open := candles[0].Open
	return (price - open) / open * 100
}
