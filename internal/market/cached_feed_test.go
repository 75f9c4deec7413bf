package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

type memCache struct {
	price  float64
	ts     time.Time
	setErr error
	sets   int
}

func (c *memCache) SetPrice(_ context.Context, _ string, price float64, ts time.Time) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.price, c.ts = price, ts
	return nil
}

func (c *memCache) GetPrice(context.Context, string) (float64, time.Time, error) {
	if c.price == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return c.price, c.ts, nil
}

type countingFeed struct {
	price float64
	err   error
	calls int
}

func (f *countingFeed) GetCurrentPrice(context.Context, string) (float64, error) {
	f.calls++
	return f.price, f.err
}

func (f *countingFeed) GetCandles(context.Context, string, string, int) ([]domain.Candle, error) {
	return []domain.Candle{{Open: 1}}, nil
}

func TestCachedFeed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	feed := &countingFeed{price: 50000}
	cache := &memCache{}
	f := NewCachedFeed(feed, cache, 5*time.Second, discard())
	f.now = func() time.Time { return now }
	ctx := context.Background()

	p, err := f.GetCurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 50000, p, 1e-9)
	assert.Equal(t, 1, feed.calls)
	assert.Equal(t, now, cache.ts)

	feed.price = 50100
	p, err = f.GetCurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 50000, p, 1e-9, "served from cache")
	assert.Equal(t, 1, feed.calls)

	now = now.Add(6 * time.Second)
	p, err = f.GetCurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 50100, p, 1e-9, "stale entry refetched")
	assert.Equal(t, 2, feed.calls)

	candles, err := f.GetCandles(ctx, "BTCUSDT", "15m", 1)
	require.NoError(t, err)
	assert.Len(t, candles, 1)
}

func TestCachedFeedErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	f := NewCachedFeed(&countingFeed{price: 50000}, &memCache{setErr: errors.New("redis down")}, time.Second, discard())
	p, err := f.GetCurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err, "cache write failures are ignored")
	assert.InDelta(t, 50000, p, 1e-9)

	f = NewCachedFeed(&countingFeed{err: errors.New("timeout")}, &memCache{}, time.Second, discard())
	_, err = f.GetCurrentPrice(ctx, "BTCUSDT")
	assert.Error(t, err)
}
