package domain

import "time"

// OrderSide is the side of an entry order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// PositionSide returns the position side a filled order of this side opens.
func (s OrderSide) PositionSide() Side {
	if s == OrderSideSell {
		return SideShort
	}
	return SideLong
}

// OrderStatus represents the lifecycle state of a pending order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderTriggered OrderStatus = "TRIGGERED"
	OrderExpired   OrderStatus = "EXPIRED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PendingOrder is a resting limit entry that has not become a Position yet.
type PendingOrder struct {
	ID              string      `json:"id"`
	Symbol          string      `json:"symbol"`
	Side            OrderSide   `json:"side"`
	EntryPrice      float64     `json:"entry_price"`
	StopLoss        float64     `json:"stop_loss"`
	TakeProfit      float64     `json:"take_profit"`
	Leverage        float64     `json:"leverage"`
	SizePercent     float64     `json:"size_percent"`
	PositionSizeUSD float64     `json:"position_size_usd"`
	Confidence      float64     `json:"confidence"`
	Reason          string      `json:"reason"`
	CreatedAt       time.Time   `json:"created_at"`
	ExpiresAt       time.Time   `json:"expires_at"`
	Status          OrderStatus `json:"status"`
	FillPrice       float64     `json:"fill_price,omitempty"`
	ClosedAt        time.Time   `json:"closed_at,omitzero"`
}

// IsPending reports whether the order is still resting.
func (o PendingOrder) IsPending() bool {
	return o.Status == OrderPending
}

// ExpiredAt reports whether the order has passed its expiry at now.
func (o PendingOrder) ExpiredAt(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Triggers reports whether price crosses the entry level: BUY fills at or
// below entry, SELL at or above.
func (o PendingOrder) Triggers(price float64) bool {
	if o.Side == OrderSideSell {
		return price >= o.EntryPrice
	}
	return price <= o.EntryPrice
}

// OrderResult is the outcome of an exchange order placement.
type OrderResult struct {
	Success     bool    `json:"success"`
	OrderID     string  `json:"order_id"`
	FilledPrice float64 `json:"filled_price"`
	Quantity    float64 `json:"quantity"`
	Message     string  `json:"message,omitempty"`
}
