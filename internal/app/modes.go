package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/cache/redis"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/config"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/cycle"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/engine"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/market"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/metrics"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/notify"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/server"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/server/handler"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// ErrInstanceRunning is returned when another process holds the symbol lock.
var ErrInstanceRunning = errors.New("app: another instance is trading this symbol")

// TradeMode loads the engine and runs the decision loop, the notifier, the
// WebSocket hub and the dashboard API until ctx is cancelled. The engine's
// state is flushed on the way out.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	symbol := a.cfg.App.Symbol
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.String("symbol", symbol),
		slog.Bool("live_exchange", deps.Exchange != nil),
	)

	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, "engine:"+symbol, a.cfg.App.LockTTL.Duration)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return ErrInstanceRunning
			}
			return fmt.Errorf("app: acquire lock: %w", err)
		}
		defer unlock()
	}

	// With a bus the hub relays the bus channel, so every instance's
	// dashboard sees the events. Without one it is fed directly.
	var (
		eng     *engine.Engine
		channel string
	)
	if deps.SignalBus != nil {
		channel = redis.EventsChannel(symbol)
	}
	hub := ws.NewHub(deps.SignalBus, channel, func() any { return eng.Status() }, a.logger)

	sinks := notify.Fanout{deps.Notifier}
	if deps.SignalBus != nil {
		sinks = append(sinks, redis.NewEventSink(deps.SignalBus, a.logger))
	} else {
		sinks = append(sinks, hub)
	}

	opts := []engine.Option{
		engine.WithSink(sinks),
		engine.WithAudit(deps.Audit),
	}
	if deps.Exchange != nil {
		opts = append(opts, engine.WithExchange(deps.Exchange))
	}

	eng, err := engine.Load(ctx, deps.Store, Policy(a.cfg), EngineConfig(a.cfg), a.logger, opts...)
	if err != nil {
		return fmt.Errorf("app: load engine: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := eng.Flush(flushCtx); err != nil {
			a.logger.Error("final flush failed", slog.String("error", err.Error()))
		}
	}()

	driver := a.newDriver(eng, deps)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Notifier.Run(ctx)
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return driver.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, eng, deps, hub)
	}

	return g.Wait()
}

func (a *App) newDriver(eng *engine.Engine, deps *Dependencies) *cycle.Driver {
	builder := market.NewBuilder(deps.Feed, deps.Depth, market.Config{
		Interval:    a.cfg.Market.CandleInterval,
		CandleLimit: a.cfg.Market.CandleLimit,
		DepthLimit:  a.cfg.Market.DepthLimit,
	}, a.logger)

	opts := []cycle.Option{cycle.WithSnapshotter(builder)}
	if deps.RateLimiter != nil {
		opts = append(opts, cycle.WithRateLimiter(deps.RateLimiter))
	}
	if deps.Exporter != nil {
		opts = append(opts, cycle.WithExporter(deps.Exporter))
	}

	return cycle.New(eng, deps.Feed, deps.Brain, cycle.Config{
		Interval:         a.cfg.App.Interval.Duration,
		DecisionTimeout:  a.cfg.Decision.LLM.Timeout.Duration,
		DecisionsPerHour: a.cfg.Decision.DecisionsPerHour,
	}, a.logger, opts...)
}

// startServer runs the dashboard API inside g and shuts it down when ctx
// ends.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, eng *engine.Engine, deps *Dependencies, hub *ws.Hub) {
	var events handler.EventLog = hub
	stream := ""
	if bus, ok := deps.SignalBus.(*redis.SignalBus); ok {
		events = bus
		stream = redis.EventsStream(eng.Symbol())
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks, a.logger),
		Account: handler.NewAccountHandler(eng, a.logger),
		Trading: handler.NewTradingHandler(eng, deps.Feed, deps.History, a.logger),
		Events:  handler.NewEventsHandler(events, stream, a.logger),
		Metrics: metrics.Handler(),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// Policy tightens the hard risk limits with the configured overrides.
func Policy(cfg *config.Config) risk.Policy {
	return risk.New(risk.Limits{
		MaxRiskPerTradePercent: cfg.Risk.MaxRiskPerTradePercent,
		MaxDailyLossPercent:    cfg.Risk.MaxDailyLossPercent,
		MinRiskRewardRatio:     cfg.Risk.MinRiskRewardRatio,
		MaxLeverage:            cfg.Risk.MaxLeverage,
	})
}

// EngineConfig maps the configuration onto the engine's settings.
func EngineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Symbol:            cfg.App.Symbol,
		InitialBalance:    cfg.App.InitialBalance,
		OrderExpiry:       cfg.App.OrderExpiry.Duration,
		TradesPerCycle:    cfg.App.TradesPerCycle,
		MinRealCycle:      cfg.App.MinRealCycle,
		SaveTimeout:       cfg.Store.SaveTimeout.Duration,
		FailureAlertAfter: cfg.Store.FailureAlertAfter,
	}
}
