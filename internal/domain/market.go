package domain

import "time"

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// DepthLevel is a single price level of an order book side.
type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// DepthSnapshot is a point-in-time view of the exchange order book.
type DepthSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// Pressure summarizes buy/sell pressure derived from a depth snapshot.
type Pressure struct {
	BidVolume     float64      `json:"bid_volume"`
	AskVolume     float64      `json:"ask_volume"`
	Imbalance     float64      `json:"imbalance"`
	SpreadPercent float64      `json:"spread_percent"`
	Signal        string       `json:"signal"`
	BidWalls      []DepthLevel `json:"bid_walls,omitempty"`
	AskWalls      []DepthLevel `json:"ask_walls,omitempty"`
}

// Pattern is a detected chart structure.
type Pattern struct {
	Kind        string  `json:"kind"`
	Direction   string  `json:"direction"`
	Price       float64 `json:"price"`
	Top         float64 `json:"top,omitempty"`
	Bottom      float64 `json:"bottom,omitempty"`
	Strength    float64 `json:"strength"`
	Touches     int     `json:"touches,omitempty"`
	Description string  `json:"description"`
}

// AccountSummary is the account view handed to a decision source.
type AccountSummary struct {
	Balance                float64     `json:"balance"`
	InitialBalance         float64     `json:"initial_balance"`
	DailyPnLUSD            float64     `json:"daily_pnl_usd"`
	DailyPnLPercent        float64     `json:"daily_pnl_percent"`
	RemainingLossAllowance float64     `json:"remaining_loss_allowance_usd"`
	TotalTrades            int         `json:"total_trades"`
	WinRate                float64     `json:"win_rate"`
	Mode                   TradingMode `json:"mode"`
}

// MarketSnapshot bundles everything a decision source sees for one tick.
type MarketSnapshot struct {
	Symbol        string         `json:"symbol"`
	Price         float64        `json:"price"`
	Change24h     float64        `json:"change_24h_percent"`
	Candles       []Candle       `json:"candles"`
	Patterns      []Pattern      `json:"patterns"`
	Pressure      *Pressure      `json:"pressure,omitempty"`
	OpenPosition  *Position      `json:"open_position,omitempty"`
	PendingOrders []PendingOrder `json:"pending_orders"`
	Account       AccountSummary `json:"account"`
	Timestamp     time.Time      `json:"timestamp"`
}
