package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/engine"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/metrics"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/server/handler"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/server/ws"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/store/sqlite"
)

func newTestServer(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng, err := engine.Load(ctx, store, risk.Default(), engine.Config{Symbol: "BTCUSDT", InitialBalance: 1000}, logger)
	require.NoError(t, err)

	hub := ws.NewHub(nil, "", func() any { return eng.Status() }, logger)
	srv := NewServer(Config{APIKey: apiKey}, Handlers{
		Health:  handler.NewHealthHandler(nil, logger),
		Account: handler.NewAccountHandler(eng, logger),
		Trading: handler.NewTradingHandler(eng, nil, store, logger),
		Events:  handler.NewEventsHandler(hub, "", logger),
		Metrics: metrics.Handler(),
	}, hub, nil, logger)
	return srv.Handler()
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, "")
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/status", http.StatusOK},
		{http.MethodGet, "/api/position", http.StatusOK},
		{http.MethodGet, "/api/orders", http.StatusOK},
		{http.MethodDelete, "/api/orders/missing", http.StatusNotFound},
		{http.MethodGet, "/api/trades", http.StatusOK},
		{http.MethodGet, "/api/stats", http.StatusOK},
		{http.MethodGet, "/api/risk", http.StatusOK},
		{http.MethodGet, "/api/cycle", http.StatusOK},
		{http.MethodGet, "/api/events", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/api/status", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestStatusReflectsEngine(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "BTCUSDT", st.Symbol)
	assert.InDelta(t, 1000, st.Balance, 1e-9)
	assert.False(t, st.HasOpenPosition)
}

func TestRealModeRefusedWithoutExchange(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cycle/mode", strings.NewReader(`{"mode":"REAL","approved":true}`))
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthProtectsAPI(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
