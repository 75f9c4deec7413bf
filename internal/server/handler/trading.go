package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/orderbook"
)

// TradingHandler serves the position, order and trade endpoints.
type TradingHandler struct {
	engine  Engine
	feed    domain.PriceFeed
	history domain.TradeHistory
	logger  *slog.Logger
}

// NewTradingHandler creates a TradingHandler. history may be nil, in which
// case trades are served from the engine's in-memory journal.
func NewTradingHandler(eng Engine, feed domain.PriceFeed, history domain.TradeHistory, logger *slog.Logger) *TradingHandler {
	return &TradingHandler{
		engine:  eng,
		feed:    feed,
		history: history,
		logger:  logger.With(slog.String("handler", "trading")),
	}
}

// Position returns the open position, if any.
// GET /api/position
func (h *TradingHandler) Position(w http.ResponseWriter, _ *http.Request) {
	pos, ok := h.engine.Position()
	resp := map[string]any{"open": ok, "position": nil}
	if ok {
		resp["position"] = pos
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClosePosition closes the open position at the current market price, or at
// the exchange fill when trading live. Any request body is ignored.
// POST /api/position/close
func (h *TradingHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	price, err := h.price(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "close: price unavailable", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "market price unavailable")
		return
	}

	out := h.engine.ClosePosition(r.Context(), price)
	writeJSON(w, outcomeStatus(out), out)
}

func (h *TradingHandler) price(ctx context.Context) (float64, error) {
	if h.feed == nil {
		return 0, errors.New("no price feed configured")
	}
	return h.feed.GetCurrentPrice(ctx, h.engine.Symbol())
}

// ListOrders returns orders, optionally filtered by ?status=PENDING.
// GET /api/orders
func (h *TradingHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(strings.ToUpper(r.URL.Query().Get("status")))
	orders := h.engine.Orders()
	if status != "" {
		filtered := orders[:0:0]
		for _, o := range orders {
			if o.Status == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	writeJSON(w, http.StatusOK, struct {
		Orders  []domain.PendingOrder `json:"orders"`
		Summary orderbook.Summary     `json:"summary"`
	}{Orders: orders, Summary: h.engine.OrderSummary()})
}

// CancelOrder cancels one pending order.
// DELETE /api/orders/{id}
func (h *TradingHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	out := h.engine.CancelOrder(r.Context(), id)
	writeJSON(w, outcomeStatus(out), out)
}

// ListTrades returns closed trades, newest first.
// GET /api/trades?limit=&offset=&since=&until=
func (h *TradingHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.history == nil {
		trades := h.engine.Trades(opts.Limit + opts.Offset)
		if opts.Offset >= len(trades) {
			trades = nil
		} else {
			trades = trades[opts.Offset:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"trades": nonNil(trades)})
		return
	}

	trades, err := h.history.ListTrades(r.Context(), h.engine.Symbol(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": nonNil(trades)})
}

func nonNil(trades []domain.TradeRecord) []domain.TradeRecord {
	if trades == nil {
		return []domain.TradeRecord{}
	}
	return trades
}
