package orderbook

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

type fakeProbe struct{ open bool }

func (f *fakeProbe) HasOpenPosition() bool { return f.open }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type countingPersister struct{ calls int }

func (c *countingPersister) Persist(context.Context) error {
	c.calls++
	return nil
}

func newTestBook(probe PositionProbe, clock *fakeClock, opts ...Option) *Book {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return New(nil, probe, logger, opts...)
}

func buyParams() OrderParams {
	return OrderParams{
		Symbol:      "BTCUSDT",
		Side:        domain.OrderSideBuy,
		EntryPrice:  49800,
		StopLoss:    49300,
		TakeProfit:  51000,
		SizePercent: 100,
		Reason:      "retest of order block",
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock)

	o, err := b.Create(context.Background(), buyParams())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, clock.t.Add(DefaultExpiry), o.ExpiresAt)
	assert.True(t, b.HasPending("BTCUSDT"))
	assert.False(t, b.HasPending("ETHUSDT"))
}

func TestCreateRejectsExistingExposure(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	probe := &fakeProbe{open: true}
	b := newTestBook(probe, clock)

	_, err := b.Create(context.Background(), buyParams())
	assert.ErrorIs(t, err, domain.ErrPositionAlreadyOpen)
	assert.Empty(t, b.Orders())

	probe.open = false
	_, err = b.Create(context.Background(), buyParams())
	require.NoError(t, err)

	second := buyParams()
	second.Side = domain.OrderSideSell
	second.EntryPrice = 50500
	_, err = b.Create(context.Background(), second)
	assert.ErrorIs(t, err, domain.ErrPositionAlreadyOpen)
	assert.Len(t, b.Orders(), 1)

	other := buyParams()
	other.Symbol = "ETHUSDT"
	_, err = b.Create(context.Background(), other)
	assert.NoError(t, err)
}

func TestCheckTriggers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		side    domain.OrderSide
		entry   float64
		price   float64
		trigger bool
	}{
		{"buy above entry waits", domain.OrderSideBuy, 49800, 49900, false},
		{"buy at entry fills", domain.OrderSideBuy, 49800, 49800, true},
		{"buy below entry fills", domain.OrderSideBuy, 49800, 49750, true},
		{"sell below entry waits", domain.OrderSideSell, 50500, 50400, false},
		{"sell at entry fills", domain.OrderSideSell, 50500, 50500, true},
		{"sell above entry fills", domain.OrderSideSell, 50500, 50620, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
			b := newTestBook(&fakeProbe{}, clock)
			p := buyParams()
			p.Side, p.EntryPrice = tt.side, tt.entry
			o, err := b.Create(context.Background(), p)
			require.NoError(t, err)

			clock.advance(time.Minute)
			got := b.CheckOrders(context.Background(), tt.price)
			if !tt.trigger {
				assert.Empty(t, got)
				assert.True(t, b.HasPending("BTCUSDT"))
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, o.ID, got[0].ID)
			assert.Equal(t, domain.OrderTriggered, got[0].Status)
			assert.Equal(t, tt.price, got[0].FillPrice, "fill is the checking price")
			assert.Equal(t, tt.entry, got[0].EntryPrice)
			assert.False(t, b.HasPending("BTCUSDT"))
		})
	}
}

func TestCheckExpiresBeforeTriggering(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock, WithExpiry(30*time.Minute))
	o, err := b.Create(context.Background(), buyParams())
	require.NoError(t, err)

	clock.advance(31 * time.Minute)
	res := b.Check(context.Background(), 49000)
	assert.Empty(t, res.Triggered)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, o.ID, res.Expired[0].ID)

	got, ok := b.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderExpired, got.Status)

	assert.Empty(t, b.CheckOrders(context.Background(), 48000))
	got, _ = b.Get(o.ID)
	assert.Equal(t, domain.OrderExpired, got.Status)
	assert.Zero(t, got.FillPrice)
}

func TestCheckBeforeExpiryStillTriggers(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock)
	_, err := b.Create(context.Background(), buyParams())
	require.NoError(t, err)

	clock.advance(29 * time.Minute)
	assert.Len(t, b.CheckOrders(context.Background(), 49700), 1)
}

func TestPerOrderExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock)
	p := buyParams()
	p.Expiry = 5 * time.Minute
	o, err := b.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(5*time.Minute), o.ExpiresAt)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock)
	o, err := b.Create(context.Background(), buyParams())
	require.NoError(t, err)

	assert.False(t, b.Cancel(context.Background(), "ord_missing"))
	assert.True(t, b.Cancel(context.Background(), o.ID))
	assert.False(t, b.Cancel(context.Background(), o.ID), "already cancelled")
	assert.Empty(t, b.CheckOrders(context.Background(), 1))
}

func TestHistoryKeepsRecentTerminalOrders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock, WithHistory(2))

	var ids []string
	for range 4 {
		o, err := b.Create(ctx, buyParams())
		require.NoError(t, err)
		require.True(t, b.Cancel(ctx, o.ID))
		ids = append(ids, o.ID)
	}
	live, err := b.Create(ctx, buyParams())
	require.NoError(t, err)

	got := b.Orders()
	require.Len(t, got, 3)
	assert.Equal(t, []string{ids[2], ids[3], live.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
	_, ok := b.Get(ids[0])
	assert.False(t, ok)
	kept, ok := b.Get(live.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderPending, kept.Status)
	assert.Equal(t, 2, b.Summary().Cancelled)
}

func TestRestorePrunesTerminalOrders(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := []domain.PendingOrder{
		{ID: "ord_1", Symbol: "BTCUSDT", Status: domain.OrderExpired},
		{ID: "ord_2", Symbol: "BTCUSDT", Status: domain.OrderCancelled},
		{ID: "ord_3", Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Status: domain.OrderPending, EntryPrice: 1,
			ExpiresAt: time.Now().Add(time.Hour)},
	}
	b := New(orders, nil, logger, WithHistory(0))
	assert.Equal(t, orders[2:], b.Orders())
	assert.Equal(t, orders[2:], b.Pending())
}

func TestCancelAll(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock)
	for _, sym := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		p := buyParams()
		p.Symbol = sym
		_, err := b.Create(context.Background(), p)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, b.CancelAll(context.Background(), "ETHUSDT"))
	assert.Equal(t, 2, b.CancelAll(context.Background(), ""))
	assert.Equal(t, 0, b.CancelAll(context.Background(), ""))

	s := b.Summary()
	assert.Equal(t, 3, s.Cancelled)
	assert.Equal(t, 0, s.Pending)
	assert.Equal(t, 3, s.Total)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newTestBook(&fakeProbe{}, clock)
	o, err := b.Create(context.Background(), buyParams())
	require.NoError(t, err)

	got, err := b.Update(context.Background(), o.ID, OrderUpdate{EntryPrice: 49700})
	require.NoError(t, err)
	assert.Equal(t, 49700.0, got.EntryPrice)
	assert.Equal(t, 49300.0, got.StopLoss)

	b.Cancel(context.Background(), o.ID)
	_, err = b.Update(context.Background(), o.ID, OrderUpdate{EntryPrice: 49600})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPersistsAfterEveryMutation(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	p := &countingPersister{}
	b := newTestBook(&fakeProbe{}, clock, WithPersister(p))

	o, err := b.Create(context.Background(), buyParams())
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	b.CheckOrders(context.Background(), 60000)
	assert.Equal(t, 1, p.calls, "no transition, no write")

	b.CheckOrders(context.Background(), 49000)
	assert.Equal(t, 2, p.calls)

	assert.False(t, b.Cancel(context.Background(), o.ID))
	assert.Equal(t, 2, p.calls)
}

func TestRestorePreservesOrder(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := []domain.PendingOrder{
		{ID: "ord_1", Symbol: "BTCUSDT", Status: domain.OrderExpired},
		{ID: "ord_2", Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Status: domain.OrderPending, EntryPrice: 1,
			ExpiresAt: time.Now().Add(time.Hour)},
	}
	b := New(orders, nil, logger)
	assert.Equal(t, orders, b.Orders())
	assert.True(t, b.HasPending("BTCUSDT"))
	require.Len(t, b.Pending(), 1)
	assert.Equal(t, "ord_2", b.Pending()[0].ID)
}
