package domain

import "time"

// TradeRecord is the immutable history entry written when a position closes.
type TradeRecord struct {
	ID              string        `json:"id"`
	Symbol          string        `json:"symbol"`
	Side            Side          `json:"side"`
	EntryPrice      float64       `json:"entry_price"`
	ExitPrice       float64       `json:"exit_price"`
	StopLoss        float64       `json:"stop_loss"`
	TakeProfit      float64       `json:"take_profit"`
	Quantity        float64       `json:"quantity"`
	PositionSizeUSD float64       `json:"position_size_usd"`
	Leverage        float64       `json:"leverage"`
	PnLUSD          float64       `json:"pnl_usd"`
	PnLPercent      float64       `json:"pnl_percent"`
	CloseReason     CloseReason   `json:"close_reason"`
	Confidence      float64       `json:"confidence"`
	Reasoning       string        `json:"reasoning"`
	OpenedAt        time.Time     `json:"opened_at"`
	ClosedAt        time.Time     `json:"closed_at"`
	Duration        time.Duration `json:"duration"`
	CycleNumber     int           `json:"cycle_number"`
}

// Win reports whether the trade realized a profit.
func (t TradeRecord) Win() bool {
	return t.PnLUSD > 0
}

// NewTradeRecord copies a closed position into a trade record.
func NewTradeRecord(p Position) TradeRecord {
	return TradeRecord{
		ID:              p.ID,
		Symbol:          p.Symbol,
		Side:            p.Side,
		EntryPrice:      p.EntryPrice,
		ExitPrice:       p.ExitPrice,
		StopLoss:        p.StopLoss,
		TakeProfit:      p.TakeProfit,
		Quantity:        p.Quantity,
		PositionSizeUSD: p.PositionSizeUSD,
		Leverage:        p.Leverage,
		PnLUSD:          p.PnLUSD,
		PnLPercent:      p.PnLPercent,
		CloseReason:     p.CloseReason,
		Confidence:      p.Confidence,
		Reasoning:       p.Reasoning,
		OpenedAt:        p.OpenedAt,
		ClosedAt:        p.ClosedAt,
		Duration:        p.Duration,
	}
}
