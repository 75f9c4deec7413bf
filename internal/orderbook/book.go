// Package orderbook holds pending limit entry orders for one instrument. It
// triggers them against live price, expires stale ones and enforces that a
// pending order never coexists with an open position or another pending
// order on the same symbol. A Book is not safe for concurrent use.
package orderbook

import (
	"context"
	"log/slog"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/id"
)

const (
	// DefaultExpiry is how long an order rests when no expiry is configured.
	DefaultExpiry = 30 * time.Minute
	// DefaultHistory is how many terminal orders a Book keeps in memory.
	// Older ones are only in the audit log.
	DefaultHistory = 50
)

// PositionProbe reports whether the account already holds exposure.
type PositionProbe interface {
	HasOpenPosition() bool
}

// Option configures a Book.
type Option func(*Book)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// WithExpiry sets the default resting time of new orders.
func WithExpiry(d time.Duration) Option {
	return func(b *Book) {
		if d > 0 {
			b.expiry = d
		}
	}
}

// WithHistory sets how many terminal orders are kept after they leave the
// PENDING state. Zero keeps none.
func WithHistory(n int) Option {
	return func(b *Book) {
		if n >= 0 {
			b.history = n
		}
	}
}

// WithPersister sets the state flusher invoked after each mutation.
func WithPersister(p domain.Persister) Option {
	return func(b *Book) { b.persister = p }
}

// Book is an ordered collection of orders keyed by id. Only the most recent
// terminal orders are kept, up to the history limit.
type Book struct {
	orders []domain.PendingOrder
	index  map[string]int

	probe     PositionProbe
	expiry    time.Duration
	history   int
	now       func() time.Time
	persister domain.Persister
	logger    *slog.Logger
}

// New restores a Book from previously persisted orders.
func New(orders []domain.PendingOrder, probe PositionProbe, logger *slog.Logger, opts ...Option) *Book {
	b := &Book{
		index:  make(map[string]int, len(orders)),
		probe:   probe,
		expiry:  DefaultExpiry,
		history: DefaultHistory,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "orderbook")),
	}
	for _, o := range orders {
		b.index[o.ID] = len(b.orders)
		b.orders = append(b.orders, o)
	}
	for _, opt := range opts {
		opt(b)
	}
	b.prune()
	return b
}

// prune drops the oldest terminal orders beyond the history limit.
func (b *Book) prune() {
	drop := -b.history
	for _, o := range b.orders {
		if !o.IsPending() {
			drop++
		}
	}
	if drop <= 0 {
		return
	}
	kept := b.orders[:0]
	for _, o := range b.orders {
		if drop > 0 && !o.IsPending() {
			drop--
			continue
		}
		kept = append(kept, o)
	}
	clear(b.orders[len(kept):])
	b.orders = kept
	clear(b.index)
	for i, o := range b.orders {
		b.index[o.ID] = i
	}
}

func (b *Book) stamp() time.Time {
	return b.now().UTC().Truncate(time.Microsecond)
}

// OrderParams describes a limit entry order.
type OrderParams struct {
	Symbol          string
	Side            domain.OrderSide
	EntryPrice      float64
	StopLoss        float64
	TakeProfit      float64
	Leverage        float64
	SizePercent     float64
	PositionSizeUSD float64
	Confidence      float64
	Reason          string
	// Expiry overrides the book default when positive.
	Expiry time.Duration
}

// Create places a new PENDING order. It fails with PositionAlreadyOpen when a
// position is open or another order is pending on the symbol.
func (b *Book) Create(ctx context.Context, in OrderParams) (domain.PendingOrder, error) {
	if b.probe != nil && b.probe.HasOpenPosition() {
		return domain.PendingOrder{}, domain.Failf(domain.CodePositionAlreadyOpen,
			"cannot place order on %s while a position is open", in.Symbol)
	}
	if existing, ok := b.pendingFor(in.Symbol); ok {
		return domain.PendingOrder{}, domain.Failf(domain.CodePositionAlreadyOpen,
			"order %s already pending on %s", existing.ID, in.Symbol)
	}
	if in.Side != domain.OrderSideBuy && in.Side != domain.OrderSideSell {
		return domain.PendingOrder{}, domain.Failf(domain.CodeInvalidDecision, "unknown order side %q", in.Side)
	}
	if in.EntryPrice <= 0 {
		return domain.PendingOrder{}, domain.Failf(domain.CodeInvalidPrice, "entry price %.4f must be positive", in.EntryPrice)
	}

	expiry := b.expiry
	if in.Expiry > 0 {
		expiry = in.Expiry
	}
	now := b.stamp()
	o := domain.PendingOrder{
		ID:              id.WithPrefix("ord"),
		Symbol:          in.Symbol,
		Side:            in.Side,
		EntryPrice:      in.EntryPrice,
		StopLoss:        in.StopLoss,
		TakeProfit:      in.TakeProfit,
		Leverage:        in.Leverage,
		SizePercent:     in.SizePercent,
		PositionSizeUSD: in.PositionSizeUSD,
		Confidence:      in.Confidence,
		Reason:          in.Reason,
		CreatedAt:       now,
		ExpiresAt:       now.Add(expiry),
		Status:          domain.OrderPending,
	}
	b.index[o.ID] = len(b.orders)
	b.orders = append(b.orders, o)

	b.logger.InfoContext(ctx, "limit order placed",
		slog.String("order_id", o.ID),
		slog.String("side", string(o.Side)),
		slog.Float64("entry", o.EntryPrice),
		slog.Time("expires_at", o.ExpiresAt),
	)
	b.persist(ctx)
	return o, nil
}

// CheckResult reports the transitions made by one Check call.
type CheckResult struct {
	Triggered []domain.PendingOrder
	Expired   []domain.PendingOrder
}

// Check expires stale orders and triggers the rest against price. Expiry is
// evaluated first so an expired order never triggers. A triggered order's fill
// price is the checking price.
func (b *Book) Check(ctx context.Context, price float64) CheckResult {
	var res CheckResult
	now := b.stamp()
	for i := range b.orders {
		o := &b.orders[i]
		if !o.IsPending() {
			continue
		}
		switch {
		case o.ExpiredAt(now):
			o.Status = domain.OrderExpired
			o.ClosedAt = now
			res.Expired = append(res.Expired, *o)
			b.logger.InfoContext(ctx, "limit order expired", slog.String("order_id", o.ID))
		case price > 0 && o.Triggers(price):
			o.Status = domain.OrderTriggered
			o.FillPrice = price
			o.ClosedAt = now
			res.Triggered = append(res.Triggered, *o)
			b.logger.InfoContext(ctx, "limit order triggered",
				slog.String("order_id", o.ID),
				slog.Float64("entry", o.EntryPrice),
				slog.Float64("fill", price),
			)
		}
	}
	if len(res.Triggered) > 0 || len(res.Expired) > 0 {
		b.prune()
		b.persist(ctx)
	}
	return res
}

// CheckOrders is Check returning only the triggered orders.
func (b *Book) CheckOrders(ctx context.Context, price float64) []domain.PendingOrder {
	return b.Check(ctx, price).Triggered
}

// Cancel cancels a pending order. It reports false when the id is unknown or
// the order is no longer pending.
func (b *Book) Cancel(ctx context.Context, orderID string) bool {
	i, ok := b.index[orderID]
	if !ok || !b.orders[i].IsPending() {
		return false
	}
	b.orders[i].Status = domain.OrderCancelled
	b.orders[i].ClosedAt = b.stamp()
	b.logger.InfoContext(ctx, "limit order cancelled", slog.String("order_id", orderID))
	b.prune()
	b.persist(ctx)
	return true
}

// CancelAll cancels every pending order on symbol, or on all symbols when
// symbol is empty, and returns how many were cancelled.
func (b *Book) CancelAll(ctx context.Context, symbol string) int {
	now := b.stamp()
	n := 0
	for i := range b.orders {
		o := &b.orders[i]
		if !o.IsPending() || (symbol != "" && o.Symbol != symbol) {
			continue
		}
		o.Status = domain.OrderCancelled
		o.ClosedAt = now
		n++
	}
	if n > 0 {
		b.logger.InfoContext(ctx, "limit orders cancelled",
			slog.String("symbol", symbol),
			slog.Int("count", n),
		)
		b.prune()
		b.persist(ctx)
	}
	return n
}

// OrderUpdate changes the levels of a pending order. Zero fields are left
// unchanged.
type OrderUpdate struct {
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// Update modifies a pending order in place.
func (b *Book) Update(ctx context.Context, orderID string, u OrderUpdate) (domain.PendingOrder, error) {
	i, ok := b.index[orderID]
	if !ok || !b.orders[i].IsPending() {
		return domain.PendingOrder{}, domain.Failf(domain.CodeOrderNotFound, "no pending order %q", orderID)
	}
	o := &b.orders[i]
	if u.EntryPrice > 0 {
		o.EntryPrice = u.EntryPrice
	}
	if u.StopLoss > 0 {
		o.StopLoss = u.StopLoss
	}
	if u.TakeProfit > 0 {
		o.TakeProfit = u.TakeProfit
	}
	b.persist(ctx)
	return *o, nil
}

func (b *Book) persist(ctx context.Context) {
	if b.persister == nil {
		return
	}
	if err := b.persister.Persist(ctx); err != nil {
		b.logger.WarnContext(ctx, "persist after order mutation failed",
			slog.String("error", err.Error()),
		)
	}
}
