package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/engine"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/gate"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/orderbook"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/tradecycle"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeEngine struct {
	pos        *domain.Position
	orders     []domain.PendingOrder
	trades     []domain.TradeRecord
	closePrice float64
	modeErr    error
}

func (f *fakeEngine) Symbol() string { return "BTCUSDT" }
func (f *fakeEngine) Status() engine.Status { return engine.Status{Symbol: "BTCUSDT", Balance: 1000} }
func (f *fakeEngine) Statistics() ledger.Statistics {
	return ledger.Statistics{TotalTrades: len(f.trades)}
}
func (f *fakeEngine) Risk() risk.Summary { return risk.Summary{Capital: 1000} }
func (f *fakeEngine) Cycle() tradecycle.Stats { return tradecycle.Stats{Number: 1} }
func (f *fakeEngine) OrderSummary() orderbook.Summary {
	return orderbook.Summary{Total: len(f.orders)}
}
func (f *fakeEngine) Orders() []domain.PendingOrder { return f.orders }

func (f *fakeEngine) Position() (domain.Position, bool) {
	if f.pos == nil {
		return domain.Position{}, false
	}
	return *f.pos, true
}

func (f *fakeEngine) Trades(limit int) []domain.TradeRecord {
	if limit > 0 && limit < len(f.trades) {
		return f.trades[:limit]
	}
	return f.trades
}

func (f *fakeEngine) CancelOrder(_ context.Context, id string) gate.Outcome {
	for _, o := range f.orders {
		if o.ID == id {
			return gate.Outcome{Action: domain.ActionCancelOrder, Applied: true, OrderID: id}
		}
	}
	return gate.Outcome{Action: domain.ActionCancelOrder, Code: domain.CodeOrderNotFound, Reason: "no such order"}
}

func (f *fakeEngine) ClosePosition(_ context.Context, price float64) gate.Outcome {
	f.closePrice = price
	if f.pos == nil {
		return gate.Outcome{Action: domain.ActionClosePosition, Code: domain.CodePositionNotFound}
	}
	return gate.Outcome{Action: domain.ActionClosePosition, Applied: true}
}

func (f *fakeEngine) SetMode(context.Context, domain.TradingMode, bool) error { return f.modeErr }

type fixedFeed float64

func (p fixedFeed) GetCurrentPrice(context.Context, string) (float64, error) { return float64(p), nil }
func (p fixedFeed) GetCandles(context.Context, string, string, int) ([]domain.Candle, error) {
	return nil, nil
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+strings.SplitN(target, "?", 2)[0], h)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPositionView(t *testing.T) {
	t.Parallel()

	h := NewTradingHandler(&fakeEngine{}, nil, nil, discard())
	rec := do(t, h.Position, http.MethodGet, "/api/position", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"open":false,"position":null}`, rec.Body.String())
}

func TestClosePositionUsesMarketPrice(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{pos: &domain.Position{ID: "p1"}}
	h := NewTradingHandler(eng, fixedFeed(50500), nil, discard())

	rec := do(t, h.ClosePosition, http.MethodPost, "/api/position/close", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 50500, eng.closePrice, 1e-9)

}

func TestClosePositionIgnoresClientPrice(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{pos: &domain.Position{ID: "p1"}}
	h := NewTradingHandler(eng, fixedFeed(50500), nil, discard())

	rec := do(t, h.ClosePosition, http.MethodPost, "/api/position/close", `{"price":1000000}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 50500, eng.closePrice, 1e-9)
}

func TestClosePositionWithoutPosition(t *testing.T) {
	t.Parallel()

	h := NewTradingHandler(&fakeEngine{}, fixedFeed(50500), nil, discard())
	rec := do(t, h.ClosePosition, http.MethodPost, "/api/position/close", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClosePositionWithoutFeed(t *testing.T) {
	t.Parallel()

	h := NewTradingHandler(&fakeEngine{pos: &domain.Position{ID: "p1"}}, nil, nil, discard())
	rec := do(t, h.ClosePosition, http.MethodPost, "/api/position/close", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestOrders(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{orders: []domain.PendingOrder{
		{ID: "o1", Status: domain.OrderPending},
		{ID: "o2", Status: domain.OrderExpired},
	}}
	h := NewTradingHandler(eng, nil, nil, discard())

	rec := do(t, h.ListOrders, http.MethodGet, "/api/orders?status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Orders  []domain.PendingOrder `json:"orders"`
		Summary orderbook.Summary     `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Orders, 1)
	assert.Equal(t, "o1", body.Orders[0].ID)
	assert.Equal(t, 2, body.Summary.Total)

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/orders/{id}", h.CancelOrder)
	for id, want := range map[string]int{"o1": http.StatusOK, "nope": http.StatusNotFound} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/"+id, nil))
		assert.Equal(t, want, rec.Code, id)
	}
}

type fakeHistory struct {
	opts domain.ListOpts
	err  error
}

func (f *fakeHistory) ListTrades(_ context.Context, _ string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	f.opts = opts
	return nil, f.err
}

func TestListTradesFromHistory(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{}
	h := NewTradingHandler(&fakeEngine{}, nil, hist, discard())

	rec := do(t, h.ListTrades, http.MethodGet, "/api/trades?limit=900&offset=5&since=2026-03-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"trades":[]}`, rec.Body.String())
	assert.Equal(t, 500, hist.opts.Limit)
	assert.Equal(t, 5, hist.opts.Offset)
	require.NotNil(t, hist.opts.Since)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *hist.opts.Since)

	rec = do(t, h.ListTrades, http.MethodGet, "/api/trades?until=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hist.err = errors.New("db down")
	rec = do(t, h.ListTrades, http.MethodGet, "/api/trades", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListTradesFromEngine(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{trades: []domain.TradeRecord{{ID: "t3"}, {ID: "t2"}, {ID: "t1"}}}
	h := NewTradingHandler(eng, nil, nil, discard())

	rec := do(t, h.ListTrades, http.MethodGet, "/api/trades?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Trades []domain.TradeRecord `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Trades, 1)
	assert.Equal(t, "t2", body.Trades[0].ID)
}

func TestSetMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"ok", nil, `{"mode":"paper"}`, http.StatusOK},
		{"not approved", fmt.Errorf("%w: manual approval required", domain.ErrLiveNotApproved), `{"mode":"REAL"}`, http.StatusForbidden},
		{"exposure open", domain.Failf(domain.CodePositionAlreadyOpen, "close first"), `{"mode":"REAL","approved":true}`, http.StatusConflict},
		{"unknown mode", domain.Failf(domain.CodeInvalidDecision, "unknown mode"), `{"mode":"LIVE"}`, http.StatusBadRequest},
		{"bad body", nil, `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewAccountHandler(&fakeEngine{modeErr: tt.err}, discard())
			rec := do(t, h.SetMode, http.MethodPost, "/api/cycle/mode", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(map[string]Check{
		"store": func(context.Context) error { return nil },
	}, discard())
	rec := do(t, h.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHealthHandler(map[string]Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}, discard())
	rec = do(t, h.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Dependencies["store"])
	assert.Equal(t, "connection refused", body.Dependencies["redis"])
}

type fakeLog [][]byte

func (f fakeLog) Recent(_ context.Context, _ string, count int64) ([][]byte, error) {
	return f[:min(int(count), len(f))], nil
}

func TestRecentEvents(t *testing.T) {
	t.Parallel()

	h := NewEventsHandler(fakeLog{[]byte(`{"type":"error"}`), []byte(`not json`), []byte(`{"type":"order_placed"}`)}, "s", discard())
	rec := do(t, h.Recent, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[{"type":"error"},{"type":"order_placed"}]}`, rec.Body.String())
}
