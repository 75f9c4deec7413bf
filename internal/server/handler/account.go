package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/engine"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/gate"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/orderbook"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/tradecycle"
)

// Engine is the part of the trading engine the API reads and drives.
type Engine interface {
	Symbol() string
	Status() engine.Status
	Position() (domain.Position, bool)
	Orders() []domain.PendingOrder
	OrderSummary() orderbook.Summary
	Trades(limit int) []domain.TradeRecord
	Statistics() ledger.Statistics
	Risk() risk.Summary
	Cycle() tradecycle.Stats
	CancelOrder(ctx context.Context, orderID string) gate.Outcome
	ClosePosition(ctx context.Context, price float64) gate.Outcome
	SetMode(ctx context.Context, mode domain.TradingMode, approved bool) error
}

var _ Engine = (*engine.Engine)(nil)

// AccountHandler serves balance, risk and trade-cycle views.
type AccountHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(eng Engine, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{engine: eng, logger: logger.With(slog.String("handler", "account"))}
}

// Status returns the headline dashboard view.
// GET /api/status
func (h *AccountHandler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Stats returns trade statistics.
// GET /api/stats
func (h *AccountHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Statistics())
}

// Risk returns the risk limits against today's P&L.
// GET /api/risk
func (h *AccountHandler) Risk(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Risk())
}

// Cycle returns trade-cycle progress.
// GET /api/cycle
func (h *AccountHandler) Cycle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Cycle())
}

type setModeRequest struct {
	Mode     domain.TradingMode `json:"mode"`
	Approved bool               `json:"approved"`
}

// SetMode switches between paper and real trading.
// POST /api/cycle/mode
func (h *AccountHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Mode = domain.TradingMode(strings.ToUpper(strings.TrimSpace(string(req.Mode))))

	if err := h.engine.SetMode(r.Context(), req.Mode, req.Approved); err != nil {
		h.logger.WarnContext(r.Context(), "mode change refused",
			slog.String("mode", string(req.Mode)),
			slog.String("error", err.Error()),
		)
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Cycle())
}
