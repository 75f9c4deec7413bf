package binance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// entrySide is the order side that opens a position of side s.
func entrySide(s domain.Side) futures.SideType {
	if s == domain.SideShort {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

// exitSide is the order side that reduces a position of side s.
func exitSide(s domain.Side) futures.SideType {
	if s == domain.SideShort {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

// OpenMarketPosition sets leverage and opens a position at market.
func (c *Client) OpenMarketPosition(ctx context.Context, symbol string, side domain.Side, quantity, leverage float64) (domain.OrderResult, error) {
	lev := int(math.Max(1, math.Round(leverage)))
	if _, err := c.api.NewChangeLeverageService().Symbol(symbol).Leverage(lev).Do(ctx); err != nil {
		if res, ok := rejected(err); ok {
			return res, nil
		}
		return domain.OrderResult{}, fmt.Errorf("binance: set leverage %s: %w", symbol, err)
	}

	rules := c.symbolRules(ctx, symbol)
	qty := rules.formatQuantity(quantity)
	order, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(entrySide(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		if res, ok := rejected(err); ok {
			return res, nil
		}
		return domain.OrderResult{}, fmt.Errorf("binance: open %s %s: %w", side, symbol, err)
	}

	res := orderResult(order)
	if res.FilledPrice <= 0 {
		// RESULT responses normally carry avgPrice; fall back to last price.
		if p, perr := c.GetCurrentPrice(ctx, symbol); perr == nil {
			res.FilledPrice = p
		}
	}
	c.logger.InfoContext(ctx, "market position opened",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("quantity", qty),
		slog.Int("leverage", lev),
		slog.String("order_id", res.OrderID),
		slog.Float64("fill", res.FilledPrice),
	)
	return res, nil
}

// PlaceStopOrder places a close-position stop market order.
func (c *Client) PlaceStopOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) (domain.OrderResult, error) {
	return c.placeTrigger(ctx, symbol, side, quantity, stopPrice, futures.OrderTypeStopMarket)
}

// PlaceTakeProfitOrder places a close-position take-profit market order.
func (c *Client) PlaceTakeProfitOrder(ctx context.Context, symbol string, side domain.Side, quantity, price float64) (domain.OrderResult, error) {
	return c.placeTrigger(ctx, symbol, side, quantity, price, futures.OrderTypeTakeProfitMarket)
}

func (c *Client) placeTrigger(ctx context.Context, symbol string, side domain.Side, quantity, trigger float64, typ futures.OrderType) (domain.OrderResult, error) {
	rules := c.symbolRules(ctx, symbol)
	order, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(exitSide(side)).
		Type(typ).
		StopPrice(rules.formatPrice(trigger)).
		WorkingType(futures.WorkingTypeMarkPrice).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		if res, ok := rejected(err); ok {
			return res, nil
		}
		return domain.OrderResult{}, fmt.Errorf("binance: %s %s: %w", typ, symbol, err)
	}
	res := orderResult(order)
	res.Quantity = quantity
	return res, nil
}

// ClosePosition reduces the position by quantity at market.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side domain.Side, quantity float64) (domain.OrderResult, error) {
	rules := c.symbolRules(ctx, symbol)
	order, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(exitSide(side)).
		Type(futures.OrderTypeMarket).
		Quantity(rules.formatQuantity(quantity)).
		ReduceOnly(true).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		if res, ok := rejected(err); ok {
			return res, nil
		}
		return domain.OrderResult{}, fmt.Errorf("binance: close %s %s: %w", side, symbol, err)
	}
	return orderResult(order), nil
}

// CancelProtectiveOrders cancels every open order on symbol. The only orders
// this client leaves resting are the close-position stop and target.
func (c *Client) CancelProtectiveOrders(ctx context.Context, symbol string) error {
	if err := c.api.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return fmt.Errorf("binance: cancel open orders %s: %w", symbol, err)
	}
	c.logger.InfoContext(ctx, "open orders cancelled", slog.String("symbol", symbol))
	return nil
}

func orderResult(o *futures.CreateOrderResponse) domain.OrderResult {
	return domain.OrderResult{
		Success:     true,
		OrderID:     strconv.FormatInt(o.OrderID, 10),
		FilledPrice: parseFloat(o.AvgPrice),
		Quantity:    parseFloat(o.ExecutedQuantity),
	}
}

// rejected converts an exchange API rejection into an unsuccessful result.
// Transport errors are left to the caller.
func rejected(err error) (domain.OrderResult, bool) {
	if !common.IsAPIError(err) {
		return domain.OrderResult{}, false
	}
	return domain.OrderResult{Success: false, Message: err.Error()}, true
}
