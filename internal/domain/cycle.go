package domain

import "time"

// TradingMode selects paper simulation or live exchange execution.
type TradingMode string

const (
	ModePaper TradingMode = "PAPER"
	ModeReal  TradingMode = "REAL"
)

// CycleSummary is the archived result of one completed trade cycle.
type CycleSummary struct {
	Number       int         `json:"number"`
	Mode         TradingMode `json:"mode"`
	Trades       int         `json:"trades"`
	Wins         int         `json:"wins"`
	WinRate      float64     `json:"win_rate"`
	PnLUSD       float64     `json:"pnl_usd"`
	StartBalance float64     `json:"start_balance"`
	EndBalance   float64     `json:"end_balance"`
	StartedAt    time.Time   `json:"started_at,omitzero"`
	CompletedAt  time.Time   `json:"completed_at,omitzero"`
}

// CycleState tracks progress through the current trade cycle.
type CycleState struct {
	Number         int            `json:"number"`
	TradesInCycle  int            `json:"trades_in_cycle"`
	WinsInCycle    int            `json:"wins_in_cycle"`
	PnLInCycle     float64        `json:"pnl_in_cycle"`
	Mode           TradingMode    `json:"mode"`
	StartBalance   float64        `json:"start_balance"`
	StartedAt      time.Time      `json:"started_at,omitzero"`
	History        []CycleSummary `json:"history"`
	ExportedTrades int            `json:"exported_trades"`
}

// NewCycleState returns the first paper cycle.
func NewCycleState(balance float64, now time.Time) CycleState {
	return CycleState{
		Number:       1,
		Mode:         ModePaper,
		StartBalance: balance,
		StartedAt:    now,
		History:      []CycleSummary{},
	}
}
