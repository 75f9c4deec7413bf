// Package cycle drives the trading loop: a periodic tick that monitors
// orders and stops, asks the decision source for one action and applies it.
package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/engine"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/gate"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/metrics"
)

// Snapshotter gathers the market half of a snapshot.
type Snapshotter interface {
	Build(ctx context.Context, symbol string, price float64) (domain.MarketSnapshot, error)
}

// Exporter ships closed trades somewhere for offline learning. It returns
// the location written.
type Exporter interface {
	Export(ctx context.Context, symbol string, trades []domain.TradeRecord) (string, error)
}

// Config controls tick timing and collaborator budgets.
type Config struct {
	Interval        time.Duration
	PriceTimeout    time.Duration
	DecisionTimeout time.Duration
	ExportTimeout   time.Duration
	// DecisionsPerHour caps decision-source calls when a rate limiter is
	// configured. Zero disables the cap.
	DecisionsPerHour int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.PriceTimeout <= 0 {
		c.PriceTimeout = 10 * time.Second
	}
	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = 60 * time.Second
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 30 * time.Second
	}
	return c
}

// Option configures a Driver.
type Option func(*Driver)

// WithSnapshotter sets the market snapshot builder. Without one the decision
// source only sees price and account state.
func WithSnapshotter(s Snapshotter) Option {
	return func(d *Driver) { d.snapshots = s }
}

// WithRateLimiter caps decision-source calls.
func WithRateLimiter(l domain.RateLimiter) Option {
	return func(d *Driver) { d.limiter = l }
}

// WithExporter enables the trade export every completed cycle's worth of
// trades.
func WithExporter(x Exporter) Option {
	return func(d *Driver) { d.exporter = x }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// Driver runs ticks against one engine.
type Driver struct {
	engine    *engine.Engine
	feed      domain.PriceFeed
	brain     domain.DecisionSource
	snapshots Snapshotter
	limiter   domain.RateLimiter
	exporter  Exporter
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger

	tickMu sync.Mutex
	lastMu sync.RWMutex
	last   *TickReport
}

// New creates a Driver.
func New(eng *engine.Engine, feed domain.PriceFeed, brain domain.DecisionSource, cfg Config, logger *slog.Logger, opts ...Option) *Driver {
	d := &Driver{
		engine: eng,
		feed:   feed,
		brain:  brain,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: logger.With(slog.String("component", "cycle"), slog.String("symbol", eng.Symbol())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TickReport describes what one tick did.
type TickReport struct {
	At         time.Time            `json:"at"`
	Price      float64              `json:"price,omitempty"`
	Skipped    bool                 `json:"skipped"`
	SkipReason string               `json:"skip_reason,omitempty"`
	Monitor    engine.MonitorReport `json:"monitor"`
	Decision   *domain.RawDecision  `json:"decision,omitempty"`
	Outcome    *gate.Outcome        `json:"outcome,omitempty"`
	ExportPath string               `json:"export_path,omitempty"`
	Duration   time.Duration        `json:"duration"`
	Errors     []string             `json:"errors,omitempty"`
}

// Run ticks immediately and then every interval until ctx is done. A tick
// in flight when ctx ends runs to completion before Run returns.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "trading loop started", slog.Duration("interval", d.cfg.Interval))
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(context.WithoutCancel(ctx), "trading loop stopped")
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Last returns the most recent tick report.
func (d *Driver) Last() (TickReport, bool) {
	d.lastMu.RLock()
	defer d.lastMu.RUnlock()
	if d.last == nil {
		return TickReport{}, false
	}
	return *d.last, true
}

// Tick runs one evaluate-and-act pass. Concurrent calls are skipped while a
// tick is running. Collaborator calls honour ctx and their timeouts; state
// mutations run on a context detached from ctx's cancellation.
func (d *Driver) Tick(ctx context.Context) TickReport {
	start := d.now()
	rep := TickReport{At: start.UTC()}
	if !d.tickMu.TryLock() {
		rep.Skipped, rep.SkipReason = true, "previous tick still running"
		return rep
	}
	defer d.tickMu.Unlock()
	defer func() {
		rep.Duration = d.now().Sub(start)
		result := "ok"
		if rep.Skipped {
			result = "skipped"
		}
		metrics.RecordTick(d.engine.Symbol(), result)
		d.lastMu.Lock()
		d.last = &rep
		d.lastMu.Unlock()
	}()

	mctx := context.WithoutCancel(ctx)
	symbol := d.engine.Symbol()

	price, err := d.fetchPrice(ctx, symbol)
	if err != nil {
		rep.Skipped, rep.SkipReason = true, err.Error()
		d.logger.WarnContext(ctx, "tick skipped", slog.String("reason", rep.SkipReason))
		return rep
	}
	rep.Price = price

	// Orders and stops are always checked before a new decision.
	mon, err := d.engine.Monitor(mctx, price)
	rep.Monitor = mon
	if err != nil {
		rep.Errors = append(rep.Errors, err.Error())
		d.logger.ErrorContext(ctx, "monitor failed", slog.String("error", err.Error()))
	}
	d.engine.CheckRiskLimits(mctx)

	if raw, ok := d.decide(ctx, &rep, symbol, price); ok {
		rep.Decision = &raw
		out := d.engine.Apply(mctx, raw, price)
		rep.Outcome = &out
		d.logger.InfoContext(ctx, "decision applied",
			slog.String("action", string(out.Action)),
			slog.Bool("applied", out.Applied),
			slog.String("reason", out.Reason),
		)
	}

	if err := d.engine.Flush(mctx); err != nil {
		rep.Errors = append(rep.Errors, err.Error())
	}
	rep.ExportPath = d.export(mctx, &rep, symbol)
	return rep
}

func (d *Driver) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	pctx, cancel := context.WithTimeout(ctx, d.cfg.PriceTimeout)
	defer cancel()
	price, err := d.feed.GetCurrentPrice(pctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("price fetch: %w", err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price fetch: non-positive price %.8f", price)
	}
	return price, nil
}

// decide builds the snapshot and asks the decision source. Any failure skips
// the decision for this tick only.
func (d *Driver) decide(ctx context.Context, rep *TickReport, symbol string, price float64) (domain.RawDecision, bool) {
	if d.brain == nil {
		return domain.RawDecision{}, false
	}
	if d.limiter != nil && d.cfg.DecisionsPerHour > 0 {
		ok, err := d.limiter.Allow(ctx, "decide:"+symbol, d.cfg.DecisionsPerHour, time.Hour)
		if err != nil {
			d.logger.WarnContext(ctx, "rate limiter unavailable, deciding anyway", slog.String("error", err.Error()))
		} else if !ok {
			rep.SkipReason = "decision budget exhausted"
			return domain.RawDecision{}, false
		}
	}

	dctx, cancel := context.WithTimeout(ctx, d.cfg.DecisionTimeout)
	defer cancel()

	snap := domain.MarketSnapshot{Symbol: symbol, Price: price}
	if d.snapshots != nil {
		s, err := d.snapshots.Build(dctx, symbol, price)
		if err != nil {
			rep.SkipReason = "snapshot: " + err.Error()
			d.logger.WarnContext(ctx, "decision skipped", slog.String("reason", rep.SkipReason))
			return domain.RawDecision{}, false
		}
		snap = s
	}
	x := d.engine.Exposure()
	snap.OpenPosition = x.OpenPosition
	snap.PendingOrders = x.PendingOrders
	snap.Account = x.Account
	snap.Timestamp = d.now().UTC()

	raw, err := d.brain.Decide(dctx, snap)
	if err != nil {
		rep.SkipReason = "decide: " + err.Error()
		d.logger.WarnContext(ctx, "decision skipped", slog.String("reason", rep.SkipReason))
		return domain.RawDecision{}, false
	}
	return raw, true
}

func (d *Driver) export(ctx context.Context, rep *TickReport, symbol string) string {
	if d.exporter == nil {
		return ""
	}
	trades, total, ok := d.engine.PendingExport()
	if !ok {
		return ""
	}
	xctx, cancel := context.WithTimeout(ctx, d.cfg.ExportTimeout)
	defer cancel()
	path, err := d.exporter.Export(xctx, symbol, trades)
	if err != nil {
		rep.Errors = append(rep.Errors, err.Error())
		d.logger.WarnContext(ctx, "trade export failed, will retry next tick", slog.String("error", err.Error()))
		return ""
	}
	if err := d.engine.MarkExported(ctx, total); err != nil {
		rep.Errors = append(rep.Errors, err.Error())
	}
	d.logger.InfoContext(ctx, "trades exported",
		slog.String("path", path),
		slog.Int("count", len(trades)),
	)
	return path
}
