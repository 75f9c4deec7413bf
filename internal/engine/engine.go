// Package engine owns the trading state of one instrument. It bundles the
// ledger, the order book, the decision gate and the trade-cycle manager
// behind one mutex so the loop and the HTTP API never race, and it flushes
// the full state to the persistence store after every mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/gate"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/ledger"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/metrics"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/orderbook"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/tradecycle"
)

// Config holds the per-instrument engine settings.
type Config struct {
	Symbol         string
	InitialBalance float64
	OrderExpiry    time.Duration
	TradesPerCycle int
	MinRealCycle   int
	SaveTimeout    time.Duration
	// FailureAlertAfter is the number of consecutive failed saves that
	// raises a persistence alert.
	FailureAlertAfter int
}

func (c Config) withDefaults() Config {
	if c.OrderExpiry <= 0 {
		c.OrderExpiry = orderbook.DefaultExpiry
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 5 * time.Second
	}
	if c.FailureAlertAfter <= 0 {
		c.FailureAlertAfter = 3
	}
	return c
}

// Option configures an Engine.
type Option func(*Engine)

// WithExchange enables live execution once the trade cycle allows it.
func WithExchange(ex domain.Exchange) Option {
	return func(e *Engine) { e.exchange = ex }
}

// WithSink sets where events are delivered.
func WithSink(s domain.NotificationSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithAudit records every event in an audit store as well.
func WithAudit(a domain.AuditStore) Option {
	return func(e *Engine) { e.audit = a }
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	policy   risk.Policy
	store    domain.PersistenceStore
	ledger   *ledger.Ledger
	book     *orderbook.Book
	gate     *gate.Gate
	cycles   *tradecycle.Manager
	exchange domain.Exchange
	sink     domain.NotificationSink
	audit    domain.AuditStore
	now      func() time.Time
	logger   *slog.Logger

	saveFailures int
	lastSaveErr  error
	lastSavedAt  time.Time
	alerted      map[domain.EventType]string
}

// Load restores the engine for cfg.Symbol from store, starting fresh when no
// state exists. A stored state with two open positions is refused with
// domain.ErrInvariantViolation.
func Load(ctx context.Context, store domain.PersistenceStore, policy risk.Policy, cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	state, err := store.LoadState(ctx, cfg.Symbol)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		state = domain.NewLedgerState(cfg.Symbol, cfg.InitialBalance)
		logger.InfoContext(ctx, "no stored state, starting fresh",
			slog.String("symbol", cfg.Symbol),
			slog.Float64("balance", cfg.InitialBalance),
		)
	case err != nil:
		return nil, fmt.Errorf("engine: load state: %w", err)
	}
	return New(state, store, policy, cfg, logger, opts...)
}

// New builds an engine over an already loaded state.
func New(state domain.LedgerState, store domain.PersistenceStore, policy risk.Policy, cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if state.Symbol == "" {
		state.Symbol = cfg.Symbol
	}
	e := &Engine{
		cfg:     cfg.withDefaults(),
		policy:  policy,
		store:   store,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "engine"), slog.String("symbol", state.Symbol)),
		alerted: make(map[domain.EventType]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	if state.Cycle.StartedAt.IsZero() {
		state.Cycle.StartedAt = e.stamp()
	}
	e.cycles = tradecycle.New(state.Cycle,
		tradecycle.WithTradesPerCycle(e.cfg.TradesPerCycle),
		tradecycle.WithMinRealCycle(e.cfg.MinRealCycle),
		tradecycle.WithClock(e.now),
	)
	if e.cycles.Mode() == domain.ModeReal && e.exchange == nil {
		e.logger.Warn("stored mode is REAL but no exchange is configured, falling back to PAPER")
		e.cycles.SwitchToPaper()
	}

	p := saver{e}
	l, err := ledger.New(state, policy, logger,
		ledger.WithClock(e.now),
		ledger.WithPersister(p),
		ledger.WithCloseHook(e.onClose),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	l.SetCycleNumber(e.cycles.Number())
	e.ledger = l
	e.book = orderbook.New(state.PendingOrders, l, logger,
		orderbook.WithClock(e.now),
		orderbook.WithExpiry(e.cfg.OrderExpiry),
		orderbook.WithPersister(p),
	)

	gopts := []gate.Option{gate.WithOrderExpiry(e.cfg.OrderExpiry)}
	if e.exchange != nil {
		gopts = append(gopts, gate.WithExchange(e.exchange, e.live))
	}
	e.gate = gate.New(policy, l, e.book, logger, gopts...)
	return e, nil
}

func (e *Engine) stamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// live is called by the gate with e.mu held.
func (e *Engine) live() bool {
	return e.cycles.Mode() == domain.ModeReal
}

// Symbol returns the traded instrument.
func (e *Engine) Symbol() string {
	return e.ledger.Symbol()
}

// MonitorReport lists what one monitoring sweep changed.
type MonitorReport struct {
	Expired      []domain.PendingOrder `json:"expired,omitempty"`
	Triggered    []domain.PendingOrder `json:"triggered,omitempty"`
	Opened       []domain.Position     `json:"opened,omitempty"`
	OpenFailures []string              `json:"open_failures,omitempty"`
	Closed       *domain.TradeRecord   `json:"closed,omitempty"`
}

// Monitor checks pending orders against price, opens a position for each
// triggered order at its fill price, then checks the open position's stop
// and target.
func (e *Engine) Monitor(ctx context.Context, price float64) (MonitorReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rep MonitorReport
	res := e.book.Check(ctx, price)
	rep.Expired = res.Expired
	rep.Triggered = res.Triggered
	for _, o := range res.Expired {
		e.emit(ctx, domain.Event{
			Type:     domain.EventOrderExpired,
			Severity: domain.SeverityInfo,
			Title:    "Order expired",
			Message:  fmt.Sprintf("%s limit at %.2f expired unfilled", o.Side, o.EntryPrice),
			Detail:   map[string]any{"order_id": o.ID},
		})
	}
	for _, o := range res.Triggered {
		e.emit(ctx, domain.Event{
			Type:     domain.EventOrderTriggered,
			Severity: domain.SeverityInfo,
			Title:    "Order triggered",
			Message:  fmt.Sprintf("%s limit at %.2f filled at %.2f", o.Side, o.EntryPrice, o.FillPrice),
			Detail:   map[string]any{"order_id": o.ID, "fill_price": o.FillPrice},
		})
		pos, err := e.gate.Execute(ctx, ledger.OpenParams{
			Symbol:      o.Symbol,
			Side:        o.Side.PositionSide(),
			EntryPrice:  o.FillPrice,
			StopLoss:    o.StopLoss,
			TakeProfit:  o.TakeProfit,
			SizePercent: o.SizePercent,
			Confidence:  o.Confidence,
			Reasoning:   o.Reason,
		})
		if err != nil {
			rep.OpenFailures = append(rep.OpenFailures, fmt.Sprintf("%s: %v", o.ID, err))
			e.logger.WarnContext(ctx, "triggered order could not open",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
			e.emit(ctx, domain.Event{
				Type:     domain.EventDecisionRejected,
				Severity: domain.SeverityWarning,
				Title:    "Triggered order not opened",
				Message:  err.Error(),
				Detail:   map[string]any{"order_id": o.ID, "code": string(domain.CodeOf(err))},
			})
			continue
		}
		rep.Opened = append(rep.Opened, pos)
		e.emitOpened(ctx, pos)
	}

	rec, err := e.gate.CheckStops(ctx, price)
	rep.Closed = rec
	e.updateGauges(price)
	if err != nil {
		return rep, fmt.Errorf("engine: check stops: %w", err)
	}
	return rep, nil
}

// Apply parses and applies a raw decision from the decision source.
func (e *Engine) Apply(ctx context.Context, raw domain.RawDecision, price float64) gate.Outcome {
	return e.ApplyDecision(ctx, gate.Parse(raw), price)
}

// ApplyDecision applies an already typed decision.
func (e *Engine) ApplyDecision(ctx context.Context, d gate.Decision, price float64) gate.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.gate.Apply(ctx, d, price)
	symbol := e.ledger.Symbol()
	if !out.Applied {
		metrics.RecordRejection(symbol, string(out.Code))
		e.emit(ctx, domain.Event{
			Type:     domain.EventDecisionRejected,
			Severity: domain.SeverityWarning,
			Title:    "Decision rejected",
			Message:  fmt.Sprintf("%s: %s", out.Action, out.Reason),
			Detail:   map[string]any{"action": string(out.Action), "code": string(out.Code)},
		})
		return out
	}

	metrics.RecordDecision(symbol, string(out.Action))
	switch out.Action {
	case domain.ActionPlaceLimitOrder:
		e.emit(ctx, domain.Event{
			Type:     domain.EventOrderPlaced,
			Severity: domain.SeverityInfo,
			Title:    "Limit order placed",
			Message:  out.Reason,
			Detail:   map[string]any{"order_id": out.OrderID},
		})
	case domain.ActionOpenMarket:
		if pos, ok := e.ledger.OpenPosition(); ok {
			e.emitOpened(ctx, pos)
		}
	case domain.ActionModifyStops:
		e.emit(ctx, domain.Event{
			Type:     domain.EventStopsModified,
			Severity: domain.SeverityInfo,
			Title:    "Stops modified",
			Message:  out.Reason,
			Detail:   map[string]any{"position_id": out.PositionID},
		})
	case domain.ActionCancelOrder:
		e.emit(ctx, domain.Event{
			Type:     domain.EventOrderCancelled,
			Severity: domain.SeverityInfo,
			Title:    "Order cancelled",
			Message:  out.Reason,
			Detail:   map[string]any{"cancelled": out.Cancelled},
		})
	}
	e.updateGauges(price)
	return out
}

// CancelOrder cancels one pending order by id.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) gate.Outcome {
	return e.ApplyDecision(ctx, gate.CancelOrder{OrderID: orderID, Meta: gate.Meta{Reasoning: "operator"}}, 0)
}

// ClosePosition closes the open position at price on operator request.
func (e *Engine) ClosePosition(ctx context.Context, price float64) gate.Outcome {
	return e.ApplyDecision(ctx, gate.ClosePosition{Meta: gate.Meta{Reasoning: "operator"}}, price)
}

// SetMode switches between paper and real execution. Real trading needs an
// exchange, operator approval and enough completed cycles. The mode cannot
// change while exposure exists.
func (e *Engine) SetMode(ctx context.Context, mode domain.TradingMode, approved bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ledger.HasOpenPosition() || e.book.HasPending(e.ledger.Symbol()) {
		return domain.Failf(domain.CodePositionAlreadyOpen, "close the position and pending orders before switching mode")
	}
	switch mode {
	case domain.ModeReal:
		if e.exchange == nil {
			return fmt.Errorf("%w: no exchange configured", domain.ErrLiveNotApproved)
		}
		if err := e.cycles.SwitchToReal(approved); err != nil {
			return err
		}
		e.emit(ctx, domain.Event{
			Type:     domain.EventRiskLimitWarning,
			Severity: domain.SeverityWarning,
			Title:    "Real trading enabled",
			Message:  fmt.Sprintf("Cycle %d now trades real money", e.cycles.Number()),
		})
	case domain.ModePaper:
		e.cycles.SwitchToPaper()
	default:
		return domain.Failf(domain.CodeInvalidDecision, "unknown mode %q", mode)
	}
	e.logger.InfoContext(ctx, "trading mode changed", slog.String("mode", string(mode)))
	return e.save(ctx)
}

// CheckRiskLimits raises the daily-limit alert, or the early warning at 80%
// of the limit, at most once per UTC day each.
func (e *Engine) CheckRiskLimits(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := e.ledger.TodayPnL()
	limit := e.ledger.InitialBalance() * e.policy.Limits().MaxDailyLossPercent / 100
	day := domain.DateKey(e.now())
	switch {
	case today <= -limit:
		if e.once(domain.EventDailyLimitReached, day) {
			e.emit(ctx, domain.Event{
				Type:     domain.EventDailyLimitReached,
				Severity: domain.SeverityError,
				Title:    "Daily loss limit reached",
				Message:  fmt.Sprintf("Daily P&L %.2f hit the %.2f limit, trading paused until tomorrow (UTC)", today, -limit),
				Detail:   map[string]any{"daily_pnl": today, "limit": -limit},
			})
		}
	case today <= -limit*0.8:
		if e.once(domain.EventRiskLimitWarning, day) {
			e.emit(ctx, domain.Event{
				Type:     domain.EventRiskLimitWarning,
				Severity: domain.SeverityWarning,
				Title:    "Approaching daily loss limit",
				Message:  fmt.Sprintf("Daily P&L %.2f is past 80%% of the %.2f limit", today, -limit),
				Detail:   map[string]any{"daily_pnl": today, "limit": -limit},
			})
		}
	}
}

func (e *Engine) once(ev domain.EventType, day string) bool {
	if e.alerted[ev] == day {
		return false
	}
	e.alerted[ev] = day
	return true
}

// PendingExport returns the trades not yet exported once a full cycle's
// worth has accumulated, along with the total to pass to MarkExported.
func (e *Engine) PendingExport() ([]domain.TradeRecord, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := e.ledger.TradeCount()
	if !e.cycles.ShouldExport(total) {
		return nil, 0, false
	}
	trades := e.ledger.Trades()
	return trades[e.cycles.ExportedTrades():], total, true
}

// MarkExported records a completed export and persists it.
func (e *Engine) MarkExported(ctx context.Context, total int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cycles.MarkExported(total)
	return e.save(ctx)
}

// Flush saves the full state now.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.save(ctx)
}

func (e *Engine) onClose(ctx context.Context, rec domain.TradeRecord) {
	metrics.RecordTradeClosed(rec.Symbol, string(rec.CloseReason), rec.PnLUSD)
	if s := e.cycles.RecordTrade(rec, e.ledger.Balance()); s != nil {
		e.ledger.SetCycleNumber(e.cycles.Number())
		e.emit(ctx, domain.Event{
			Type:     domain.EventCycleCompleted,
			Severity: domain.SeverityInfo,
			Title:    fmt.Sprintf("Cycle %d completed", s.Number),
			Message: fmt.Sprintf("%d trades, win rate %.1f%%, P&L %.2f, balance %.2f",
				s.Trades, s.WinRate, s.PnLUSD, s.EndBalance),
			Detail: map[string]any{"cycle": s.Number, "ready_for_real": e.cycles.ReadyForReal()},
		})
	}
	e.emit(ctx, domain.Event{
		Type:     domain.EventPositionClosed,
		Severity: domain.SeverityInfo,
		Title:    "Position closed",
		Message: fmt.Sprintf("%s %s closed by %s at %.2f, P&L %.2f (%.2f%%)",
			rec.Side, rec.Symbol, rec.CloseReason, rec.ExitPrice, rec.PnLUSD, rec.PnLPercent),
		Detail: map[string]any{"position_id": rec.ID, "pnl_usd": rec.PnLUSD, "reason": string(rec.CloseReason)},
	})
}

func (e *Engine) emitOpened(ctx context.Context, pos domain.Position) {
	e.emit(ctx, domain.Event{
		Type:     domain.EventPositionOpened,
		Severity: domain.SeverityInfo,
		Title:    "Position opened",
		Message: fmt.Sprintf("%s %s at %.2f, SL %.2f, TP %.2f, size $%.2f",
			pos.Side, pos.Symbol, pos.EntryPrice, pos.StopLoss, pos.TakeProfit, pos.PositionSizeUSD),
		Detail: map[string]any{"position_id": pos.ID, "leverage": pos.Leverage},
	})
}

func (e *Engine) updateGauges(price float64) {
	symbol := e.ledger.Symbol()
	if price > 0 {
		metrics.SetPrice(symbol, price)
	}
	open := 0
	if e.ledger.HasOpenPosition() {
		open = 1
	}
	metrics.SetAccount(symbol, e.ledger.Balance(), e.ledger.TodayPnL(), open, len(e.book.Pending()))
}
