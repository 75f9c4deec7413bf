package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingPersister struct {
	calls int
	err   error
}

func (c *countingPersister) Persist(context.Context) error {
	c.calls++
	return c.err
}

func newTestLedger(t *testing.T, state domain.LedgerState, opts ...Option) *Ledger {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	l, err := New(state, risk.Default(), discardLogger(), opts...)
	require.NoError(t, err)
	return l
}

func longParams() OpenParams {
	return OpenParams{
		Side:        domain.SideLong,
		EntryPrice:  50000,
		StopLoss:    49000,
		TakeProfit:  52000,
		SizePercent: 100,
		Confidence:  0.7,
		Reasoning:   "breakout",
	}
}

func snapshot(l *Ledger) domain.LedgerState {
	var s domain.LedgerState
	l.Snapshot(&s)
	return s
}

func TestOpenRejectsSecondPosition(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
	first, err := l.Open(context.Background(), longParams())
	require.NoError(t, err)
	before := snapshot(l)

	for _, side := range []domain.Side{domain.SideLong, domain.SideShort} {
		p := longParams()
		p.Side = side
		p.StopLoss, p.TakeProfit = 51000, 48000
		_, err = l.Open(context.Background(), p)
		assert.ErrorIs(t, err, domain.ErrPositionAlreadyOpen)
	}

	assert.Equal(t, before, snapshot(l))
	open, ok := l.OpenPosition()
	require.True(t, ok)
	assert.Equal(t, first.ID, open.ID)
	assert.Len(t, snapshot(l).OpenPositions(), 1)
}

func TestOpenSizing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sizePct  float64
		wantSize float64
		wantQty  float64
		wantLev  float64
	}{
		{"one x", 100, 1000, 0.02, 1},
		{"three x", 300, 3000, 0.06, 3},
		{"half x floors displayed leverage", 50, 500, 0.01, 1},
		{"clamped at ten x", 1500, 10000, 0.2, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
			p := longParams()
			p.SizePercent = tt.sizePct
			pos, err := l.Open(context.Background(), p)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantSize, pos.PositionSizeUSD, 1e-9)
			assert.InDelta(t, tt.wantQty, pos.Quantity, 1e-12)
			assert.InDelta(t, tt.wantLev, pos.Leverage, 1e-12)
			assert.InDelta(t, pos.PositionSizeUSD, pos.Quantity*pos.EntryPrice, 1e-9)
		})
	}
}

func TestOpenValidatesLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*OpenParams)
		want   error
	}{
		{"missing stop", func(p *OpenParams) { p.StopLoss = 0 }, domain.ErrStopLossMissing},
		{"stop above entry for long", func(p *OpenParams) { p.StopLoss = 50500 }, domain.ErrInvalidStopSide},
		{"target below entry for long", func(p *OpenParams) { p.TakeProfit = 49500 }, domain.ErrInvalidTakeProfit},
		{"zero size", func(p *OpenParams) { p.SizePercent = 0 }, domain.ErrInvalidSize},
		{"zero entry", func(p *OpenParams) { p.EntryPrice = 0 }, domain.ErrInvalidPrice},
		{"short with long levels", func(p *OpenParams) { p.Side = domain.SideShort }, domain.ErrInvalidStopSide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
			p := longParams()
			tt.mutate(&p)
			_, err := l.Open(context.Background(), p)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, l.HasOpenPosition())
		})
	}
}

func TestClosePnL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("long", func(t *testing.T) {
		t.Parallel()
		l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
		pos, err := l.Open(ctx, longParams())
		require.NoError(t, err)

		rec, err := l.Close(ctx, pos.ID, 51000, domain.CloseManual)
		require.NoError(t, err)
		assert.Equal(t, (51000.0-50000.0)*pos.Quantity, rec.PnLUSD)
		assert.InDelta(t, 20, rec.PnLUSD, 1e-9)
		assert.InDelta(t, 2, rec.PnLPercent, 1e-9)
		assert.InDelta(t, 1020, l.Balance(), 1e-9)
		assert.InDelta(t, 20, l.TodayPnL(), 1e-9)
		assert.False(t, l.HasOpenPosition())
	})

	t.Run("short", func(t *testing.T) {
		t.Parallel()
		l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
		p := longParams()
		p.Side, p.StopLoss, p.TakeProfit = domain.SideShort, 51000, 48000
		pos, err := l.Open(ctx, p)
		require.NoError(t, err)

		rec, err := l.Close(ctx, pos.ID, 51000, domain.CloseManual)
		require.NoError(t, err)
		assert.Equal(t, (50000.0-51000.0)*pos.Quantity, rec.PnLUSD)
		assert.InDelta(t, -20, rec.PnLUSD, 1e-9)
		assert.Equal(t, 1, l.DailyLossTrades(testNow))
	})
}

func TestCloseIsDeterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))

	var pnls []float64
	for i := 0; i < 2; i++ {
		pos, err := l.Open(ctx, longParams())
		require.NoError(t, err)
		rec, err := l.Close(ctx, pos.ID, 50750, domain.CloseManual)
		require.NoError(t, err)
		pnls = append(pnls, rec.PnLUSD)
	}
	assert.Equal(t, pnls[0], pnls[1])
	assert.Len(t, l.Trades(), 2)
}

func TestCloseUnknownPosition(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
	_, err := l.Close(context.Background(), "pos_missing", 50000, domain.CloseManual)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)

	pos, err := l.Open(context.Background(), longParams())
	require.NoError(t, err)
	_, err = l.Close(context.Background(), "pos_other", 50000, domain.CloseManual)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
	assert.True(t, l.HasOpenPosition())
	_, err = l.Close(context.Background(), pos.ID, 0, domain.CloseManual)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestCheckPositions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		side   domain.Side
		price  float64
		reason domain.CloseReason
	}{
		{"long stop", domain.SideLong, 48900, domain.CloseStopLoss},
		{"long stop exact", domain.SideLong, 49000, domain.CloseStopLoss},
		{"long target", domain.SideLong, 52100, domain.CloseTakeProfit},
		{"long inside", domain.SideLong, 50500, ""},
		{"short stop", domain.SideShort, 51000, domain.CloseStopLoss},
		{"short target", domain.SideShort, 47900, domain.CloseTakeProfit},
		{"short inside", domain.SideShort, 49500, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
			p := longParams()
			if tt.side == domain.SideShort {
				p.Side, p.StopLoss, p.TakeProfit = domain.SideShort, 51000, 48000
			}
			_, err := l.Open(ctx, p)
			require.NoError(t, err)

			rec, err := l.CheckPositions(ctx, tt.price)
			require.NoError(t, err)
			if tt.reason == "" {
				assert.Nil(t, rec)
				assert.True(t, l.HasOpenPosition())
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, tt.reason, rec.CloseReason)
			assert.Equal(t, tt.price, rec.ExitPrice)
			assert.False(t, l.HasOpenPosition())
		})
	}
}

func TestDailyLossGate(t *testing.T) {
	t.Parallel()

	day := domain.DateKey(testNow)

	t.Run("at limit blocks", func(t *testing.T) {
		t.Parallel()
		st := domain.NewLedgerState("BTCUSDT", 1000)
		st.DailyPnL[day] = -40
		l := newTestLedger(t, st)
		assert.ErrorIs(t, l.CanOpen(100), domain.ErrDailyLossLimitReached)
		_, err := l.Open(context.Background(), longParams())
		assert.ErrorIs(t, err, domain.ErrDailyLossLimitReached)
	})

	t.Run("just inside allows", func(t *testing.T) {
		t.Parallel()
		st := domain.NewLedgerState("BTCUSDT", 1000)
		st.DailyPnL[day] = -39.9
		l := newTestLedger(t, st)
		assert.NoError(t, l.CanOpen(100))
	})

	t.Run("yesterday does not count", func(t *testing.T) {
		t.Parallel()
		st := domain.NewLedgerState("BTCUSDT", 1000)
		st.DailyPnL[domain.DateKey(testNow.AddDate(0, 0, -1))] = -100
		l := newTestLedger(t, st)
		assert.NoError(t, l.CanOpen(100))
	})

	t.Run("crossing close blocks the next open only", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		st := domain.NewLedgerState("BTCUSDT", 1000)
		st.DailyPnL[day] = -30
		l := newTestLedger(t, st)

		pos, err := l.Open(ctx, longParams())
		require.NoError(t, err)
		rec, err := l.Close(ctx, pos.ID, 48500, domain.CloseStopLoss)
		require.NoError(t, err)
		assert.InDelta(t, -30, rec.PnLUSD, 1e-9)
		assert.InDelta(t, -60, l.TodayPnL(), 1e-9)

		assert.ErrorIs(t, l.CanOpen(100), domain.ErrDailyLossLimitReached)
	})

	t.Run("no balance", func(t *testing.T) {
		t.Parallel()
		st := domain.NewLedgerState("BTCUSDT", 1000)
		st.CurrentBalance = 0
		l := newTestLedger(t, st)
		assert.ErrorIs(t, l.CanOpen(100), domain.ErrInsufficientBalance)
	})
}

func TestModifyStops(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
	pos, err := l.Open(ctx, longParams())
	require.NoError(t, err)

	got, err := l.ModifyStops(ctx, pos.ID, 49500, 0)
	require.NoError(t, err)
	assert.Equal(t, 49500.0, got.StopLoss)
	assert.Equal(t, 52000.0, got.TakeProfit)

	_, err = l.ModifyStops(ctx, pos.ID, 50500, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidStopSide)
	open, _ := l.OpenPosition()
	assert.Equal(t, 49500.0, open.StopLoss)

	_, err = l.ModifyStops(ctx, "pos_other", 49600, 0)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000))
	for _, exit := range []float64{51000, 49500, 52000, 49000} {
		pos, err := l.Open(ctx, longParams())
		require.NoError(t, err)
		_, err = l.Close(ctx, pos.ID, exit, domain.CloseManual)
		require.NoError(t, err)
	}

	st := l.Statistics()
	assert.Equal(t, 4, st.TotalTrades)
	assert.Equal(t, 2, st.Wins)
	assert.Equal(t, 2, st.Losses)
	assert.InDelta(t, 50, st.WinRate, 1e-9)
	assert.InDelta(t, 30, st.TotalPnLUSD, 1e-9)
	assert.InDelta(t, 3, st.TotalPnLPercent, 1e-9)
	assert.InDelta(t, 30, st.AvgWin, 1e-9)
	assert.InDelta(t, -15, st.AvgLoss, 1e-9)
	assert.InDelta(t, 40, st.LargestWin, 1e-9)
	assert.InDelta(t, -20, st.LargestLoss, 1e-9)
	assert.InDelta(t, 1030, st.CurrentBalance, 1e-9)
}

func TestStatisticsEmpty(t *testing.T) {
	t.Parallel()

	st := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000)).Statistics()
	assert.Zero(t, st.TotalTrades)
	assert.Zero(t, st.WinRate)
	assert.Equal(t, 1000.0, st.CurrentBalance)
}

func TestPersistAndHooks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &countingPersister{err: errors.New("db down")}
	var closed []domain.TradeRecord
	l := newTestLedger(t, domain.NewLedgerState("BTCUSDT", 1000),
		WithPersister(p),
		WithCloseHook(func(_ context.Context, rec domain.TradeRecord) { closed = append(closed, rec) }),
	)
	l.SetCycleNumber(3)

	pos, err := l.Open(ctx, longParams())
	require.NoError(t, err, "persistence failure must not fail the mutation")
	_, err = l.Close(ctx, pos.ID, 51000, domain.CloseTakeProfit)
	require.NoError(t, err)

	assert.Equal(t, 2, p.calls)
	require.Len(t, closed, 1)
	assert.Equal(t, 3, closed[0].CycleNumber)
}

func TestRestore(t *testing.T) {
	t.Parallel()

	open := domain.Position{ID: "pos_a", Symbol: "BTCUSDT", Side: domain.SideLong, EntryPrice: 50000,
		StopLoss: 49000, TakeProfit: 52000, Quantity: 0.02, PositionSizeUSD: 1000, Status: domain.PositionOpen}

	st := domain.NewLedgerState("BTCUSDT", 1000)
	st.Positions = []domain.Position{open}
	l := newTestLedger(t, st)
	got, ok := l.OpenPosition()
	require.True(t, ok)
	assert.Equal(t, "pos_a", got.ID)
	assert.Equal(t, st.Positions, snapshot(l).Positions)

	second := open
	second.ID = "pos_b"
	st.Positions = []domain.Position{open, second}
	_, err := New(st, risk.Default(), discardLogger())
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}
