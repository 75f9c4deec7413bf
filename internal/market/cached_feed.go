package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// CachedFeed serves current prices from a shared cache while they are
// fresher than maxAge and writes every live fetch back. Candles always go to
// the underlying feed.
type CachedFeed struct {
	feed   domain.PriceFeed
	cache  domain.PriceCache
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

var _ domain.PriceFeed = (*CachedFeed)(nil)

// NewCachedFeed wraps feed with cache.
func NewCachedFeed(feed domain.PriceFeed, cache domain.PriceCache, maxAge time.Duration, logger *slog.Logger) *CachedFeed {
	return &CachedFeed{
		feed:   feed,
		cache:  cache,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.With(slog.String("component", "price_cache")),
	}
}

// GetCurrentPrice returns a fresh cached price or fetches a live one. Cache
// errors never fail the call.
func (f *CachedFeed) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if price, ts, err := f.cache.GetPrice(ctx, symbol); err == nil && price > 0 && f.now().Sub(ts) <= f.maxAge {
		return price, nil
	}

	price, err := f.feed.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if err := f.cache.SetPrice(ctx, symbol, price, f.now().UTC()); err != nil {
		f.logger.WarnContext(ctx, "cache price failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	return price, nil
}

// GetCandles delegates to the wrapped feed.
func (f *CachedFeed) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return f.feed.GetCandles(ctx, symbol, interval, limit)
}
