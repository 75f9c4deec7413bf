package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// GetCurrentPrice returns the last traded price for symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance: price %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("binance: price %s: empty response", symbol)
	}
	p := parseFloat(prices[0].Price)
	if p <= 0 {
		return 0, fmt.Errorf("binance: price %s: invalid value %q", symbol, prices[0].Price)
	}
	return p, nil
}

// GetCandles returns up to limit klines, oldest first.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, interval, err)
	}
	out := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, domain.Candle{
			OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		})
	}
	return out, nil
}

// GetDepth returns the top limit levels of each book side.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (domain.DepthSnapshot, error) {
	res, err := c.api.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}
	ts := time.Now().UTC()
	if res.Time > 0 {
		ts = time.UnixMilli(res.Time).UTC()
	}
	return domain.DepthSnapshot{
		Symbol:    symbol,
		Bids:      levels(res.Bids),
		Asks:      levels(res.Asks),
		Timestamp: ts,
	}, nil
}

func levels(in []common.PriceLevel) []domain.DepthLevel {
	out := make([]domain.DepthLevel, 0, len(in))
	for _, l := range in {
		out = append(out, domain.DepthLevel{Price: parseFloat(l.Price), Quantity: parseFloat(l.Quantity)})
	}
	return out
}
