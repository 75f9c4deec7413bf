// Package gate turns one decision from the trading brain into at most one
// state transition. Every exposure-creating decision is re-checked against
// the single-position rule and the risk policy before anything is touched,
// and a rejected decision leaves the ledger and order book unchanged.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/orderbook"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
)

// Positions is the part of the ledger the gate drives.
type Positions interface {
	Symbol() string
	HasOpenPosition() bool
	OpenPosition() (domain.Position, bool)
	InitialBalance() float64
	TodayPnL() float64
	CanOpen(sizePct float64) error
	Size(sizePct, entry float64) ledger.Sizing
	Open(ctx context.Context, in ledger.OpenParams) (domain.Position, error)
	Close(ctx context.Context, positionID string, exitPrice float64, reason domain.CloseReason) (domain.TradeRecord, error)
	ModifyStops(ctx context.Context, positionID string, stopLoss, takeProfit float64) (domain.Position, error)
}

// Orders is the part of the order book the gate drives.
type Orders interface {
	HasPending(symbol string) bool
	Create(ctx context.Context, in orderbook.OrderParams) (domain.PendingOrder, error)
	Cancel(ctx context.Context, orderID string) bool
	CancelAll(ctx context.Context, symbol string) int
}

var (
	_ Positions = (*ledger.Ledger)(nil)
	_ Orders    = (*orderbook.Book)(nil)
)

// Outcome is the result of applying one decision.
type Outcome struct {
	Action     domain.Action       `json:"action"`
	Applied    bool                `json:"applied"`
	Reason     string              `json:"reason,omitempty"`
	Code       domain.FailureCode  `json:"code,omitempty"`
	PositionID string              `json:"position_id,omitempty"`
	OrderID    string              `json:"order_id,omitempty"`
	Sizing     *risk.Assessment    `json:"sizing,omitempty"`
	Trade      *domain.TradeRecord `json:"trade,omitempty"`
	Cancelled  int                 `json:"cancelled,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// Option configures a Gate.
type Option func(*Gate)

// WithExchange routes fills through a live exchange while live reports true.
func WithExchange(ex domain.Exchange, live func() bool) Option {
	return func(g *Gate) {
		g.exchange = ex
		g.live = live
	}
}

// WithOrderExpiry sets the resting time given to new limit orders when the
// decision does not carry one.
func WithOrderExpiry(d time.Duration) Option {
	return func(g *Gate) { g.expiry = d }
}

// Gate validates and dispatches decisions for one instrument. It is not safe
// for concurrent use; the engine serializes calls.
type Gate struct {
	policy    risk.Policy
	positions Positions
	orders    Orders
	exchange  domain.Exchange
	live      func() bool
	expiry    time.Duration
	logger    *slog.Logger
}

// New creates a Gate over a ledger and order book.
func New(policy risk.Policy, positions Positions, orders Orders, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		policy:    policy,
		positions: positions,
		orders:    orders,
		logger:    logger.With(slog.String("component", "gate")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Live reports whether fills currently go to the exchange.
func (g *Gate) Live() bool {
	return g.exchange != nil && g.live != nil && g.live()
}

// Apply executes d against the current price. It never returns an error: a
// rejected decision is an unapplied Outcome carrying the reason.
func (g *Gate) Apply(ctx context.Context, d Decision, price float64) Outcome {
	var out Outcome
	switch d := d.(type) {
	case Wait:
		out = Outcome{Action: d.Action(), Applied: true, Reason: d.Reason}
	case PlaceLimitOrder:
		out = g.placeLimit(ctx, d)
	case OpenMarket:
		out = g.openMarket(ctx, d, price)
	case ClosePosition:
		out = g.closePosition(ctx, d, price)
	case ModifyStops:
		out = g.modifyStops(ctx, d)
	case CancelOrder:
		out = g.cancelOrder(ctx, d)
	case nil:
		out = Outcome{Action: domain.ActionWait, Applied: true, Reason: "no decision"}
	default:
		out = reject(d.Action(), domain.Failf(domain.CodeInvalidDecision, "unsupported decision %T", d))
	}

	if !out.Applied {
		g.logger.WarnContext(ctx, "decision rejected",
			slog.String("action", string(out.Action)),
			slog.String("code", string(out.Code)),
			slog.String("reason", out.Reason),
		)
	}
	return out
}

func reject(action domain.Action, err error) Outcome {
	return Outcome{Action: action, Reason: err.Error(), Code: domain.CodeOf(err)}
}

// admit re-checks the exposure invariants and runs the full risk validation.
// A zero size percent is derived from the per-trade risk budget.
func (g *Gate) admit(side domain.Side, entry, sl, tp, sizePct float64) (risk.Assessment, error) {
	symbol := g.positions.Symbol()
	if g.positions.HasOpenPosition() {
		return risk.Assessment{}, domain.Failf(domain.CodePositionAlreadyOpen, "a position is already open on %s", symbol)
	}
	if g.orders.HasPending(symbol) {
		return risk.Assessment{}, domain.Failf(domain.CodePositionAlreadyOpen, "an order is already pending on %s", symbol)
	}
	if entry <= 0 {
		return risk.Assessment{}, domain.Failf(domain.CodeInvalidPrice, "entry price %.4f must be positive", entry)
	}
	// Sizing divides by the stop distance, so a missing stop is reported first.
	if sl <= 0 {
		return risk.Assessment{}, domain.Failf(domain.CodeStopLossMissing, "stop loss is mandatory")
	}

	if err := g.positions.CanOpen(sizePct); err != nil {
		return risk.Assessment{}, err
	}

	capital := g.positions.InitialBalance()
	if sizePct <= 0 {
		sz, err := g.policy.SizeFromRisk(capital, entry, sl, side)
		if err != nil {
			return risk.Assessment{}, err
		}
		sizePct = sz.SizePercent
	}
	return g.policy.ValidateTrade(risk.Proposal{
		Capital:     capital,
		SizePercent: sizePct,
		Entry:       entry,
		StopLoss:    sl,
		TakeProfit:  tp,
		Side:        side,
		DailyPnL:    g.positions.TodayPnL(),
	})
}

func (g *Gate) placeLimit(ctx context.Context, d PlaceLimitOrder) Outcome {
	a, err := g.admit(d.Side.PositionSide(), d.EntryPrice, d.StopLoss, d.TakeProfit, d.SizePercent)
	if err != nil {
		return reject(d.Action(), err)
	}
	sz := g.positions.Size(a.SizePercent, d.EntryPrice)
	expiry := d.Expiry
	if expiry <= 0 {
		expiry = g.expiry
	}
	o, err := g.orders.Create(ctx, orderbook.OrderParams{
		Symbol:          g.positions.Symbol(),
		Side:            d.Side,
		EntryPrice:      d.EntryPrice,
		StopLoss:        d.StopLoss,
		TakeProfit:      d.TakeProfit,
		Leverage:        sz.Leverage,
		SizePercent:     a.SizePercent,
		PositionSizeUSD: sz.PositionSizeUSD,
		Confidence:      d.Confidence,
		Reason:          d.Reasoning,
		Expiry:          expiry,
	})
	if err != nil {
		return reject(d.Action(), err)
	}
	return Outcome{
		Action:   d.Action(),
		Applied:  true,
		Reason:   fmt.Sprintf("%s limit at %.2f", d.Side, d.EntryPrice),
		OrderID:  o.ID,
		Sizing:   &a,
		Warnings: a.Warnings,
	}
}

func (g *Gate) openMarket(ctx context.Context, d OpenMarket, price float64) Outcome {
	a, err := g.admit(d.Side, price, d.StopLoss, d.TakeProfit, d.SizePercent)
	if err != nil {
		return reject(d.Action(), err)
	}
	pos, err := g.Execute(ctx, ledger.OpenParams{
		Side:        d.Side,
		EntryPrice:  price,
		StopLoss:    d.StopLoss,
		TakeProfit:  d.TakeProfit,
		SizePercent: a.SizePercent,
		Confidence:  d.Confidence,
		Reasoning:   d.Reasoning,
	})
	if err != nil {
		return reject(d.Action(), err)
	}
	return Outcome{
		Action:     d.Action(),
		Applied:    true,
		Reason:     fmt.Sprintf("%s opened at %.2f", pos.Side, pos.EntryPrice),
		PositionID: pos.ID,
		Sizing:     &a,
		Warnings:   a.Warnings,
	}
}

func (g *Gate) closePosition(ctx context.Context, d ClosePosition, price float64) Outcome {
	pos, ok := g.positions.OpenPosition()
	if !ok || (d.PositionID != "" && d.PositionID != pos.ID) {
		return reject(d.Action(), domain.Failf(domain.CodePositionNotFound, "no open position %q", d.PositionID))
	}
	rec, err := g.Flatten(ctx, pos, price, domain.CloseManual)
	if err != nil {
		return reject(d.Action(), err)
	}
	return Outcome{
		Action:     d.Action(),
		Applied:    true,
		Reason:     fmt.Sprintf("closed at %.2f, pnl %.2f", rec.ExitPrice, rec.PnLUSD),
		PositionID: rec.ID,
		Trade:      &rec,
	}
}

func (g *Gate) modifyStops(ctx context.Context, d ModifyStops) Outcome {
	pos, err := g.positions.ModifyStops(ctx, "", d.StopLoss, d.TakeProfit)
	if err != nil {
		return reject(d.Action(), err)
	}
	out := Outcome{
		Action:     d.Action(),
		Applied:    true,
		Reason:     fmt.Sprintf("stop %.2f target %.2f", pos.StopLoss, pos.TakeProfit),
		PositionID: pos.ID,
	}
	if g.Live() {
		// Binance refuses a second close-position trigger on the same side.
		if err := g.exchange.CancelProtectiveOrders(ctx, pos.Symbol); err != nil {
			out.Warnings = append(out.Warnings, "cancel resting stop and target: "+err.Error())
		}
		out.Warnings = append(out.Warnings, g.protect(ctx, pos)...)
	}
	return out
}

func (g *Gate) cancelOrder(ctx context.Context, d CancelOrder) Outcome {
	if d.OrderID == "" {
		n := g.orders.CancelAll(ctx, g.positions.Symbol())
		return Outcome{Action: d.Action(), Applied: true, Reason: fmt.Sprintf("cancelled %d orders", n), Cancelled: n}
	}
	if !g.orders.Cancel(ctx, d.OrderID) {
		return reject(d.Action(), domain.Failf(domain.CodeOrderNotFound, "no pending order %q", d.OrderID))
	}
	return Outcome{Action: d.Action(), Applied: true, Reason: "cancelled " + d.OrderID, OrderID: d.OrderID, Cancelled: 1}
}

// Execute opens a position, through the exchange when live. The ledger
// records the exchange fill price. If the ledger refuses the fill the
// exchange position is flattened again so nothing is left half applied.
func (g *Gate) Execute(ctx context.Context, in ledger.OpenParams) (domain.Position, error) {
	if !g.Live() {
		return g.positions.Open(ctx, in)
	}
	if err := g.positions.CanOpen(in.SizePercent); err != nil {
		return domain.Position{}, err
	}

	symbol := g.positions.Symbol()
	sz := g.positions.Size(in.SizePercent, in.EntryPrice)
	res, err := g.exchange.OpenMarketPosition(ctx, symbol, in.Side, sz.Quantity, sz.Leverage)
	if err != nil {
		return domain.Position{}, fmt.Errorf("gate: open on exchange: %w", err)
	}
	if !res.Success {
		return domain.Position{}, fmt.Errorf("gate: open on exchange: %s", res.Message)
	}
	if res.FilledPrice > 0 {
		in.EntryPrice = res.FilledPrice
	}
	in.ExchangeOrderID = res.OrderID

	pos, err := g.positions.Open(ctx, in)
	if err != nil {
		qty := res.Quantity
		if qty <= 0 {
			qty = sz.Quantity
		}
		if _, cerr := g.exchange.ClosePosition(ctx, symbol, in.Side, qty); cerr != nil {
			err = errors.Join(err, fmt.Errorf("gate: unwind exchange fill: %w", cerr))
		}
		g.unprotect(ctx, symbol)
		return domain.Position{}, err
	}
	for _, w := range g.protect(ctx, pos) {
		g.logger.WarnContext(ctx, "protective order failed",
			slog.String("position_id", pos.ID),
			slog.String("error", w),
		)
	}
	return pos, nil
}

// protect places the exchange-side stop and target for pos. Failures are
// reported, the position stays open and the ledger keeps monitoring levels.
func (g *Gate) protect(ctx context.Context, pos domain.Position) []string {
	var warnings []string
	if res, err := g.exchange.PlaceStopOrder(ctx, pos.Symbol, pos.Side, pos.Quantity, pos.StopLoss); err != nil || !res.Success {
		warnings = append(warnings, fmt.Sprintf("stop order at %.2f: %s", pos.StopLoss, failureText(res, err)))
	}
	if res, err := g.exchange.PlaceTakeProfitOrder(ctx, pos.Symbol, pos.Side, pos.Quantity, pos.TakeProfit); err != nil || !res.Success {
		warnings = append(warnings, fmt.Sprintf("take profit order at %.2f: %s", pos.TakeProfit, failureText(res, err)))
	}
	return warnings
}

func failureText(res domain.OrderResult, err error) string {
	if err != nil {
		return err.Error()
	}
	return res.Message
}

// Flatten closes pos at price, routing through the exchange when live. The
// exchange fill price, when reported, becomes the exit price.
func (g *Gate) Flatten(ctx context.Context, pos domain.Position, price float64, reason domain.CloseReason) (domain.TradeRecord, error) {
	exit := price
	if g.Live() {
		res, err := g.exchange.ClosePosition(ctx, pos.Symbol, pos.Side, pos.Quantity)
		switch {
		case err != nil || !res.Success:
			if reason == domain.CloseManual {
				return domain.TradeRecord{}, fmt.Errorf("gate: close on exchange: %s", failureText(res, err))
			}
			// The exchange-side stop or target most likely closed it already.
			g.logger.WarnContext(ctx, "exchange close failed, recording level exit",
				slog.String("position_id", pos.ID),
				slog.String("error", failureText(res, err)),
			)
		case res.FilledPrice > 0:
			exit = res.FilledPrice
		}
		// The triggers close whatever position is open, so none may outlive
		// this one.
		g.unprotect(ctx, pos.Symbol)
	}
	return g.positions.Close(ctx, pos.ID, exit, reason)
}

// unprotect cancels the exchange-side stop and target on symbol. A failure is
// logged; the next protect call reports any conflict it causes.
func (g *Gate) unprotect(ctx context.Context, symbol string) {
	if err := g.exchange.CancelProtectiveOrders(ctx, symbol); err != nil {
		g.logger.WarnContext(ctx, "cancel protective orders failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}

// CheckStops closes the open position when price reaches its stop or target.
// The stop wins when both are reached.
func (g *Gate) CheckStops(ctx context.Context, price float64) (*domain.TradeRecord, error) {
	pos, ok := g.positions.OpenPosition()
	if !ok || price <= 0 {
		return nil, nil
	}
	var reason domain.CloseReason
	switch {
	case pos.StopHit(price):
		reason = domain.CloseStopLoss
	case pos.TargetHit(price):
		reason = domain.CloseTakeProfit
	default:
		return nil, nil
	}
	rec, err := g.Flatten(ctx, pos, price, reason)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
