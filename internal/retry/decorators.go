package retry

import (
	"context"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// PriceFeed retries a wrapped feed.
type PriceFeed struct {
	inner  domain.PriceFeed
	policy Policy
}

var _ domain.PriceFeed = (*PriceFeed)(nil)

// WrapFeed decorates feed with p.
func WrapFeed(feed domain.PriceFeed, p Policy) *PriceFeed {
	return &PriceFeed{inner: feed, policy: p}
}

func (f *PriceFeed) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return Value(ctx, f.policy, func(ctx context.Context) (float64, error) {
		return f.inner.GetCurrentPrice(ctx, symbol)
	})
}

func (f *PriceFeed) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return Value(ctx, f.policy, func(ctx context.Context) ([]domain.Candle, error) {
		return f.inner.GetCandles(ctx, symbol, interval, limit)
	})
}

// Store retries a wrapped persistence store.
type Store struct {
	inner  domain.PersistenceStore
	policy Policy
}

var _ domain.PersistenceStore = (*Store)(nil)

// WrapStore decorates store with p.
func WrapStore(store domain.PersistenceStore, p Policy) *Store {
	return &Store{inner: store, policy: p}
}

func (s *Store) LoadState(ctx context.Context, symbol string) (domain.LedgerState, error) {
	return Value(ctx, s.policy, func(ctx context.Context) (domain.LedgerState, error) {
		return s.inner.LoadState(ctx, symbol)
	})
}

func (s *Store) SaveState(ctx context.Context, state domain.LedgerState) error {
	return s.policy.Do(ctx, func(ctx context.Context) error {
		return s.inner.SaveState(ctx, state)
	})
}
