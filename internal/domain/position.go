package domain

import "time"

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// OrderSide returns the entry order side for s.
func (s Side) OrderSide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// CloseReason records why a position was closed.
type CloseReason string

const (
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseTakeProfit CloseReason = "TAKE_PROFIT"
	CloseManual     CloseReason = "MANUAL"
	CloseExpired    CloseReason = "EXPIRED"
)

// Position is an open or closed trade on a single instrument.
type Position struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	Side            Side           `json:"side"`
	EntryPrice      float64        `json:"entry_price"`
	StopLoss        float64        `json:"stop_loss"`
	TakeProfit      float64        `json:"take_profit"`
	PositionSizeUSD float64        `json:"position_size_usd"`
	Quantity        float64        `json:"quantity"`
	Leverage        float64        `json:"leverage"`
	Confidence      float64        `json:"confidence"`
	Reasoning       string         `json:"reasoning"`
	OpenedAt        time.Time      `json:"opened_at"`
	Status          PositionStatus `json:"status"`
	ExchangeOrderID string         `json:"exchange_order_id,omitempty"`

	ExitPrice   float64       `json:"exit_price,omitempty"`
	PnLUSD      float64       `json:"pnl_usd,omitempty"`
	PnLPercent  float64       `json:"pnl_percent,omitempty"`
	CloseReason CloseReason   `json:"close_reason,omitempty"`
	ClosedAt    time.Time     `json:"closed_at,omitzero"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// IsOpen reports whether the position is still open.
func (p Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// PnLAt returns the P&L the position would realize at price, using the
// stored entry and quantity.
func (p Position) PnLAt(price float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - price) * p.Quantity
	}
	return (price - p.EntryPrice) * p.Quantity
}

// StopHit reports whether price has reached the stop-loss level.
func (p Position) StopHit(price float64) bool {
	if p.Side == SideShort {
		return price >= p.StopLoss
	}
	return price <= p.StopLoss
}

// TargetHit reports whether price has reached the take-profit level.
func (p Position) TargetHit(price float64) bool {
	if p.Side == SideShort {
		return price <= p.TakeProfit
	}
	return price >= p.TakeProfit
}
