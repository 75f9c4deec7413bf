package engine

import (
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/orderbook"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/tradecycle"
)

// Status is the dashboard headline view.
type Status struct {
	Symbol          string             `json:"symbol"`
	Mode            domain.TradingMode `json:"mode"`
	Live            bool               `json:"live"`
	Balance         float64            `json:"balance"`
	InitialBalance  float64            `json:"initial_balance"`
	DailyPnL        float64            `json:"daily_pnl"`
	HasOpenPosition bool               `json:"has_open_position"`
	PendingOrders   int                `json:"pending_orders"`
	TotalTrades     int                `json:"total_trades"`
	Cycle           int                `json:"cycle"`
	SaveFailures    int                `json:"save_failures"`
	LastSaveError   string             `json:"last_save_error,omitempty"`
	LastSavedAt     time.Time          `json:"last_saved_at,omitzero"`
}

// Status returns the headline view.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		Symbol:          e.ledger.Symbol(),
		Mode:            e.cycles.Mode(),
		Live:            e.gate.Live(),
		Balance:         e.ledger.Balance(),
		InitialBalance:  e.ledger.InitialBalance(),
		DailyPnL:        e.ledger.TodayPnL(),
		HasOpenPosition: e.ledger.HasOpenPosition(),
		PendingOrders:   len(e.book.Pending()),
		TotalTrades:     e.ledger.TradeCount(),
		Cycle:           e.cycles.Number(),
		SaveFailures:    e.saveFailures,
		LastSavedAt:     e.lastSavedAt,
	}
	if e.lastSaveErr != nil {
		s.LastSaveError = e.lastSaveErr.Error()
	}
	return s
}

// Position returns the open position, if any.
func (e *Engine) Position() (domain.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.OpenPosition()
}

// Orders returns every order, terminal ones included.
func (e *Engine) Orders() []domain.PendingOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Orders()
}

// PendingOrders returns the resting orders.
func (e *Engine) PendingOrders() []domain.PendingOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Pending()
}

// OrderSummary counts orders by status.
func (e *Engine) OrderSummary() orderbook.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Summary()
}

// Trades returns up to limit closed trades, newest first. A non-positive
// limit returns all of them.
func (e *Engine) Trades(limit int) []domain.TradeRecord {
	e.mu.Lock()
	trades := e.ledger.Trades()
	e.mu.Unlock()

	out := make([]domain.TradeRecord, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, trades[i])
	}
	return out
}

// Statistics summarizes the trade history.
func (e *Engine) Statistics() ledger.Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Statistics()
}

// Risk summarizes the risk limits against today's P&L.
func (e *Engine) Risk() risk.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.Summarize(e.ledger.InitialBalance(), e.ledger.TodayPnL())
}

// Cycle summarizes trade-cycle progress.
func (e *Engine) Cycle() tradecycle.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycles.Stats()
}

// State returns a copy of the full persisted state.
func (e *Engine) State() domain.LedgerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Exposure is what a decision source sees of the account.
type Exposure struct {
	OpenPosition  *domain.Position
	PendingOrders []domain.PendingOrder
	Account       domain.AccountSummary
}

// Exposure returns the open position, the resting orders and an account
// summary.
func (e *Engine) Exposure() Exposure {
	e.mu.Lock()
	defer e.mu.Unlock()

	var x Exposure
	if pos, ok := e.ledger.OpenPosition(); ok {
		x.OpenPosition = &pos
	}
	x.PendingOrders = e.book.Pending()

	initial := e.ledger.InitialBalance()
	today := e.ledger.TodayPnL()
	sum := e.policy.Summarize(initial, today)
	st := e.ledger.Statistics()
	x.Account = domain.AccountSummary{
		Balance:                e.ledger.Balance(),
		InitialBalance:         initial,
		DailyPnLUSD:            today,
		DailyPnLPercent:        sum.DailyPnLPercent,
		RemainingLossAllowance: sum.RemainingLossAllowanceUSD,
		TotalTrades:            st.TotalTrades,
		WinRate:                st.WinRate,
		Mode:                   e.cycles.Mode(),
	}
	return x
}
