// Package ledger is the paper-trading engine. It owns the single open
// position, the realized P&L bookkeeping, the trade history and the daily
// P&L map. A Ledger is not safe for concurrent use; callers serialize access.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/id"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
)

// CloseHook observes every trade record right after it is appended.
type CloseHook func(ctx context.Context, rec domain.TradeRecord)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithPersister sets the state flusher invoked after each mutation.
func WithPersister(p domain.Persister) Option {
	return func(l *Ledger) { l.persister = p }
}

// WithCloseHook registers a hook run after each close, before persisting.
func WithCloseHook(h CloseHook) Option {
	return func(l *Ledger) { l.hooks = append(l.hooks, h) }
}

// Ledger tracks balance, the open position and closed trades for one symbol.
type Ledger struct {
	symbol          string
	policy          risk.Policy
	initialBalance  float64
	balance         float64
	open            *domain.Position
	trades          []domain.TradeRecord
	dailyPnL        map[string]float64
	dailyLossTrades map[string]int
	cycleNumber     int

	now       func() time.Time
	persister domain.Persister
	hooks     []CloseHook
	logger    *slog.Logger
}

// New restores a Ledger from state. A state with more than one open position
// is refused.
func New(state domain.LedgerState, policy risk.Policy, logger *slog.Logger, opts ...Option) (*Ledger, error) {
	state = state.Clone()
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: restore %s: %w", state.Symbol, err)
	}

	l := &Ledger{
		symbol:          state.Symbol,
		policy:          policy,
		initialBalance:  state.InitialBalance,
		balance:         state.CurrentBalance,
		trades:          state.Trades,
		dailyPnL:        state.DailyPnL,
		dailyLossTrades: state.DailyLossTrades,
		cycleNumber:     state.Cycle.Number,
		now:             time.Now,
		logger:          logger.With(slog.String("component", "ledger")),
	}
	if open := state.OpenPositions(); len(open) == 1 {
		p := open[0]
		l.open = &p
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Ledger) stamp() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

// OpenParams describes a position to open.
type OpenParams struct {
	Symbol          string
	Side            domain.Side
	EntryPrice      float64
	StopLoss        float64
	TakeProfit      float64
	SizePercent     float64
	Confidence      float64
	Reasoning       string
	ExchangeOrderID string
}

// Sizing holds the notional, quantity and leverage derived for an open.
type Sizing struct {
	PositionSizeUSD float64
	Quantity        float64
	Leverage        float64
}

// Size applies the ledger sizing rule: notional is sizePct of the initial
// balance; leverage above the ceiling is clamped and notional recomputed.
func (l *Ledger) Size(sizePct, entry float64) Sizing {
	size := l.initialBalance * sizePct / 100
	lev := size / l.initialBalance
	maxLev := l.policy.Limits().MaxLeverage
	if lev > maxLev {
		lev = maxLev
		size = l.initialBalance * lev
	}
	return Sizing{
		PositionSizeUSD: size,
		Quantity:        size / entry,
		Leverage:        l.policy.ClampLeverage(lev),
	}
}

// Open opens a position. The single-position rule is checked before anything
// else; on any failure the ledger is unchanged.
func (l *Ledger) Open(ctx context.Context, in OpenParams) (domain.Position, error) {
	if l.open != nil {
		return domain.Position{}, domain.Failf(domain.CodePositionAlreadyOpen,
			"position %s already open on %s", l.open.ID, l.open.Symbol)
	}
	if err := l.CanOpen(in.SizePercent); err != nil {
		return domain.Position{}, err
	}
	if err := validateOpen(in); err != nil {
		return domain.Position{}, err
	}

	symbol := in.Symbol
	if symbol == "" {
		symbol = l.symbol
	}
	sz := l.Size(in.SizePercent, in.EntryPrice)
	pos := domain.Position{
		ID:              id.WithPrefix("pos"),
		Symbol:          symbol,
		Side:            in.Side,
		EntryPrice:      in.EntryPrice,
		StopLoss:        in.StopLoss,
		TakeProfit:      in.TakeProfit,
		PositionSizeUSD: sz.PositionSizeUSD,
		Quantity:        sz.Quantity,
		Leverage:        sz.Leverage,
		Confidence:      in.Confidence,
		Reasoning:       in.Reasoning,
		OpenedAt:        l.stamp(),
		Status:          domain.PositionOpen,
		ExchangeOrderID: in.ExchangeOrderID,
	}
	l.open = &pos

	l.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", pos.ID),
		slog.String("side", string(pos.Side)),
		slog.Float64("entry", pos.EntryPrice),
		slog.Float64("stop_loss", pos.StopLoss),
		slog.Float64("take_profit", pos.TakeProfit),
		slog.Float64("size_usd", pos.PositionSizeUSD),
		slog.Float64("leverage", pos.Leverage),
	)
	l.persist(ctx)
	return pos, nil
}

func validateOpen(in OpenParams) error {
	if !in.Side.Valid() {
		return domain.Failf(domain.CodeInvalidDecision, "unknown side %q", in.Side)
	}
	if in.EntryPrice <= 0 {
		return domain.Failf(domain.CodeInvalidPrice, "entry price %.4f must be positive", in.EntryPrice)
	}
	if in.SizePercent <= 0 {
		return domain.Failf(domain.CodeInvalidSize, "position size %.2f%% must be positive", in.SizePercent)
	}
	return validateStops(in.Side, in.EntryPrice, in.StopLoss, in.TakeProfit)
}

func validateStops(side domain.Side, entry, sl, tp float64) error {
	if sl <= 0 {
		return domain.Failf(domain.CodeStopLossMissing, "stop loss is mandatory")
	}
	if tp <= 0 {
		return domain.Failf(domain.CodeInvalidTakeProfit, "take profit is mandatory")
	}
	if side == domain.SideLong {
		if sl >= entry {
			return domain.Failf(domain.CodeInvalidStopSide, "stop loss %.2f must be below entry %.2f for LONG", sl, entry)
		}
		if tp <= entry {
			return domain.Failf(domain.CodeInvalidTakeProfit, "take profit %.2f must be above entry %.2f for LONG", tp, entry)
		}
		return nil
	}
	if sl <= entry {
		return domain.Failf(domain.CodeInvalidStopSide, "stop loss %.2f must be above entry %.2f for SHORT", sl, entry)
	}
	if tp >= entry {
		return domain.Failf(domain.CodeInvalidTakeProfit, "take profit %.2f must be below entry %.2f for SHORT", tp, entry)
	}
	return nil
}

// Close realizes the open position at exitPrice. P&L uses the stored entry
// and quantity only.
func (l *Ledger) Close(ctx context.Context, positionID string, exitPrice float64, reason domain.CloseReason) (domain.TradeRecord, error) {
	if l.open == nil || l.open.ID != positionID {
		return domain.TradeRecord{}, domain.Failf(domain.CodePositionNotFound, "no open position %q", positionID)
	}
	if exitPrice <= 0 {
		return domain.TradeRecord{}, domain.Failf(domain.CodeInvalidPrice, "exit price %.4f must be positive", exitPrice)
	}

	pos := *l.open
	closedAt := l.stamp()
	pos.ExitPrice = exitPrice
	pos.PnLUSD = pos.PnLAt(exitPrice)
	pos.PnLPercent = pos.PnLUSD / pos.PositionSizeUSD * 100
	pos.CloseReason = reason
	pos.ClosedAt = closedAt
	pos.Duration = closedAt.Sub(pos.OpenedAt)
	pos.Status = domain.PositionClosed

	day := domain.DateKey(closedAt)
	l.balance += pos.PnLUSD
	l.dailyPnL[day] += pos.PnLUSD
	if pos.PnLUSD < 0 {
		l.dailyLossTrades[day]++
	}

	rec := domain.NewTradeRecord(pos)
	rec.CycleNumber = l.cycleNumber
	l.trades = append(l.trades, rec)
	l.open = nil

	l.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", rec.ID),
		slog.String("reason", string(reason)),
		slog.Float64("exit", exitPrice),
		slog.Float64("pnl_usd", rec.PnLUSD),
		slog.Float64("pnl_percent", rec.PnLPercent),
		slog.Float64("balance", l.balance),
	)
	for _, h := range l.hooks {
		h(ctx, rec)
	}
	l.persist(ctx)
	return rec, nil
}

// CheckPositions closes the open position when price reaches its stop or
// target. The stop wins if both are reached.
func (l *Ledger) CheckPositions(ctx context.Context, price float64) (*domain.TradeRecord, error) {
	if l.open == nil || price <= 0 {
		return nil, nil
	}
	var reason domain.CloseReason
	switch {
	case l.open.StopHit(price):
		reason = domain.CloseStopLoss
	case l.open.TargetHit(price):
		reason = domain.CloseTakeProfit
	default:
		return nil, nil
	}
	rec, err := l.Close(ctx, l.open.ID, price, reason)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CanOpen reports whether a new position may be opened now.
func (l *Ledger) CanOpen(sizePct float64) error {
	if l.open != nil {
		return domain.Failf(domain.CodePositionAlreadyOpen, "position %s already open", l.open.ID)
	}
	limit := l.initialBalance * l.policy.Limits().MaxDailyLossPercent / 100
	if today := l.TodayPnL(); today <= -limit {
		return domain.Failf(domain.CodeDailyLossLimitReached,
			"daily loss %.2f reached limit %.2f", today, -limit)
	}
	if l.balance <= 0 {
		return domain.Failf(domain.CodeInsufficientBalance, "balance %.2f", l.balance)
	}
	return nil
}

// ModifyStops moves the stop and target of the open position. Zero leaves a
// level unchanged. The side invariants must still hold against entry.
func (l *Ledger) ModifyStops(ctx context.Context, positionID string, stopLoss, takeProfit float64) (domain.Position, error) {
	if l.open == nil || (positionID != "" && l.open.ID != positionID) {
		return domain.Position{}, domain.Failf(domain.CodePositionNotFound, "no open position %q", positionID)
	}
	sl, tp := l.open.StopLoss, l.open.TakeProfit
	if stopLoss > 0 {
		sl = stopLoss
	}
	if takeProfit > 0 {
		tp = takeProfit
	}
	if err := validateStops(l.open.Side, l.open.EntryPrice, sl, tp); err != nil {
		return domain.Position{}, err
	}
	l.open.StopLoss, l.open.TakeProfit = sl, tp

	l.logger.InfoContext(ctx, "stops modified",
		slog.String("position_id", l.open.ID),
		slog.Float64("stop_loss", sl),
		slog.Float64("take_profit", tp),
	)
	l.persist(ctx)
	return *l.open, nil
}

// SetCycleNumber sets the cycle stamped onto subsequent trade records.
func (l *Ledger) SetCycleNumber(n int) {
	l.cycleNumber = n
}

func (l *Ledger) persist(ctx context.Context) {
	if l.persister == nil {
		return
	}
	if err := l.persister.Persist(ctx); err != nil {
		l.logger.WarnContext(ctx, "persist after ledger mutation failed",
			slog.String("error", err.Error()),
		)
	}
}
