package domain

import "context"

// PriceFeed supplies live prices and historical candles, oldest first.
type PriceFeed interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// DepthSource supplies order book snapshots.
type DepthSource interface {
	GetDepth(ctx context.Context, symbol string, limit int) (DepthSnapshot, error)
}

// DecisionSource is the trading brain. It is opaque to the core.
type DecisionSource interface {
	Decide(ctx context.Context, snap MarketSnapshot) (RawDecision, error)
}

// Exchange places live orders. Paper trading runs without one.
type Exchange interface {
	OpenMarketPosition(ctx context.Context, symbol string, side Side, quantity, leverage float64) (OrderResult, error)
	PlaceStopOrder(ctx context.Context, symbol string, side Side, quantity, stopPrice float64) (OrderResult, error)
	PlaceTakeProfitOrder(ctx context.Context, symbol string, side Side, quantity, price float64) (OrderResult, error)
	ClosePosition(ctx context.Context, symbol string, side Side, quantity float64) (OrderResult, error)
	// CancelProtectiveOrders cancels the resting stop and target on symbol.
	CancelProtectiveOrders(ctx context.Context, symbol string) error
}
