package domain

import (
	"fmt"
	"time"
)

// DateKey returns the calendar bucket used by the daily P&L ledger.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// LedgerState is the complete persisted state for one trading instrument.
// It is loaded once at startup, owned by a single ledger instance and saved
// explicitly after every mutation.
type LedgerState struct {
	Symbol          string             `json:"symbol"`
	InitialBalance  float64            `json:"initial_balance"`
	CurrentBalance  float64            `json:"current_balance"`
	Positions       []Position         `json:"positions"`
	PendingOrders   []PendingOrder     `json:"pending_orders"`
	DailyPnL        map[string]float64 `json:"daily_pnl"`
	DailyLossTrades map[string]int     `json:"daily_loss_trades"`
	Trades          []TradeRecord      `json:"trades"`
	Cycle           CycleState         `json:"cycle"`
	UpdatedAt       time.Time          `json:"updated_at,omitzero"`
}

// NewLedgerState returns an empty state funded with balance.
func NewLedgerState(symbol string, balance float64) LedgerState {
	return LedgerState{
		Symbol:          symbol,
		InitialBalance:  balance,
		CurrentBalance:  balance,
		Positions:       []Position{},
		PendingOrders:   []PendingOrder{},
		DailyPnL:        map[string]float64{},
		DailyLossTrades: map[string]int{},
		Trades:          []TradeRecord{},
		Cycle:           NewCycleState(balance, time.Time{}),
	}
}

// OpenPositions returns the positions currently marked OPEN.
func (s LedgerState) OpenPositions() []Position {
	var out []Position
	for _, p := range s.Positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

// Validate refuses states that cannot be reconciled automatically: more than
// one open position, or a position id that appears both open and in the trade
// history.
func (s LedgerState) Validate() error {
	open := s.OpenPositions()
	if len(open) > 1 {
		return fmt.Errorf("%w: %d open positions for %s (%s, %s)",
			ErrInvariantViolation, len(open), s.Symbol, open[0].ID, open[1].ID)
	}
	if len(open) == 1 {
		for _, t := range s.Trades {
			if t.ID == open[0].ID {
				return fmt.Errorf("%w: position %s is both open and closed",
					ErrInvariantViolation, t.ID)
			}
		}
	}
	if s.InitialBalance <= 0 {
		return fmt.Errorf("%w: initial balance %.2f must be positive",
			ErrInvariantViolation, s.InitialBalance)
	}
	return nil
}

// Normalized fills nil collections so a freshly loaded state compares equal
// to one built with NewLedgerState.
func (s LedgerState) Normalized() LedgerState {
	if s.Positions == nil {
		s.Positions = []Position{}
	}
	if s.PendingOrders == nil {
		s.PendingOrders = []PendingOrder{}
	}
	if s.DailyPnL == nil {
		s.DailyPnL = map[string]float64{}
	}
	if s.DailyLossTrades == nil {
		s.DailyLossTrades = map[string]int{}
	}
	if s.Trades == nil {
		s.Trades = []TradeRecord{}
	}
	if s.Cycle.History == nil {
		s.Cycle.History = []CycleSummary{}
	}
	if s.Cycle.Mode == "" {
		s.Cycle.Mode = ModePaper
	}
	if s.Cycle.Number == 0 {
		s.Cycle.Number = 1
	}
	return s
}

// Clone returns a deep copy of the state.
func (s LedgerState) Clone() LedgerState {
	out := s
	out.Positions = append([]Position(nil), s.Positions...)
	out.PendingOrders = append([]PendingOrder(nil), s.PendingOrders...)
	out.Trades = append([]TradeRecord(nil), s.Trades...)
	out.DailyPnL = make(map[string]float64, len(s.DailyPnL))
	for k, v := range s.DailyPnL {
		out.DailyPnL[k] = v
	}
	out.DailyLossTrades = make(map[string]int, len(s.DailyLossTrades))
	for k, v := range s.DailyLossTrades {
		out.DailyLossTrades[k] = v
	}
	out.Cycle.History = append([]CycleSummary(nil), s.Cycle.History...)
	return out.Normalized()
}
