// Package binance adapts Binance USDT-M futures to the engine's market data
// and execution interfaces.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

const testnetURL = "https://testnet.binancefuture.com"

// Config holds Binance credentials and endpoint selection.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// BaseURL overrides the REST endpoint. Empty uses production, or the
	// testnet when Testnet is set.
	BaseURL string
}

// symbolRules are the order filters Binance enforces for one symbol.
type symbolRules struct {
	step decimal.Decimal
	tick decimal.Decimal
}

var defaultRules = symbolRules{
	step: decimal.New(1, -3),
	tick: decimal.New(1, -2),
}

// Client talks to the futures REST API. It implements domain.PriceFeed,
// domain.DepthSource and domain.Exchange.
type Client struct {
	api    *futures.Client
	logger *slog.Logger

	mu    sync.Mutex
	rules map[string]symbolRules
}

var (
	_ domain.PriceFeed   = (*Client)(nil)
	_ domain.DepthSource = (*Client)(nil)
	_ domain.Exchange    = (*Client)(nil)
)

// New creates a Client. Market data endpoints work without credentials.
func New(cfg Config, logger *slog.Logger) *Client {
	api := futures.NewClient(cfg.APIKey, cfg.APISecret)
	switch {
	case strings.TrimSpace(cfg.BaseURL) != "":
		api.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Testnet:
		api.BaseURL = testnetURL
	}
	return &Client{
		api:    api,
		logger: logger.With(slog.String("component", "binance")),
		rules:  make(map[string]symbolRules),
	}
}

// symbolRules returns the cached filters for symbol, fetching exchange info
// on first use. Lookup failures fall back to conservative defaults.
func (c *Client) symbolRules(ctx context.Context, symbol string) symbolRules {
	c.mu.Lock()
	r, ok := c.rules[symbol]
	c.mu.Unlock()
	if ok {
		return r
	}

	r, err := c.fetchRules(ctx, symbol)
	if err != nil {
		c.logger.WarnContext(ctx, "symbol filters unavailable, using defaults",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return defaultRules
	}
	c.mu.Lock()
	c.rules[symbol] = r
	c.mu.Unlock()
	return r
}

func (c *Client) fetchRules(ctx context.Context, symbol string) (symbolRules, error) {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return symbolRules{}, fmt.Errorf("binance: exchange info: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		return parseRules(s.Filters), nil
	}
	return symbolRules{}, fmt.Errorf("binance: symbol %s not listed", symbol)
}

// parseRules reads LOT_SIZE and PRICE_FILTER from raw filter maps.
func parseRules(filters []map[string]interface{}) symbolRules {
	r := defaultRules
	for _, f := range filters {
		switch f["filterType"] {
		case "LOT_SIZE":
			if d, ok := positiveDecimal(f["stepSize"]); ok {
				r.step = d
			}
		case "PRICE_FILTER":
			if d, ok := positiveDecimal(f["tickSize"]); ok {
				r.tick = d
			}
		}
	}
	return r
}

func positiveDecimal(v interface{}) (decimal.Decimal, bool) {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// formatQuantity floors qty to the lot step so the order never exceeds the
// requested size.
func (r symbolRules) formatQuantity(qty float64) string {
	d := decimal.NewFromFloat(qty)
	return d.Div(r.step).Floor().Mul(r.step).String()
}

// formatPrice rounds price to the nearest tick.
func (r symbolRules) formatPrice(price float64) string {
	d := decimal.NewFromFloat(price)
	return d.Div(r.tick).Round(0).Mul(r.tick).String()
}

func parseFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
