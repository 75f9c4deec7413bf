package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/metrics"
)

// saver adapts the engine to domain.Persister for the ledger and order book.
// It is only invoked from mutations made with e.mu held.
type saver struct{ e *Engine }

var _ domain.Persister = saver{}

func (s saver) Persist(ctx context.Context) error { return s.e.save(ctx) }

// stateLocked assembles the state to persist: the open position, the pending
// orders and the trade history. Terminal orders are recorded by emit and are
// left out. e.mu must be held.
func (e *Engine) stateLocked() domain.LedgerState {
	var s domain.LedgerState
	e.ledger.Snapshot(&s)
	s.PendingOrders = e.book.Pending()
	s.Cycle = e.cycles.State()
	s.UpdatedAt = e.stamp()
	return s
}

// save writes the state with its own timeout, detached from cancellation of
// ctx so a stopping loop still completes its write. e.mu must be held.
func (e *Engine) save(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	st := e.stateLocked()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SaveTimeout)
	defer cancel()

	if err := e.store.SaveState(sctx, st); err != nil {
		e.saveFailures++
		e.lastSaveErr = err
		metrics.RecordPersistFailure(st.Symbol)
		e.logger.WarnContext(ctx, "state save failed",
			slog.Int("consecutive_failures", e.saveFailures),
			slog.String("error", err.Error()),
		)
		if e.saveFailures == e.cfg.FailureAlertAfter {
			e.emit(ctx, domain.Event{
				Type:     domain.EventPersistenceFailing,
				Severity: domain.SeverityError,
				Title:    "State persistence failing",
				Message:  fmt.Sprintf("%d consecutive saves failed: %v", e.saveFailures, err),
				Detail:   map[string]any{"consecutive_failures": e.saveFailures},
			})
		}
		return fmt.Errorf("engine: save state: %w", err)
	}
	if e.saveFailures > 0 {
		e.logger.InfoContext(ctx, "state save recovered",
			slog.Int("after_failures", e.saveFailures),
		)
	}
	e.saveFailures = 0
	e.lastSaveErr = nil
	e.lastSavedAt = st.UpdatedAt
	return nil
}

// emit stamps ev and hands it to the sink and the audit store. e.mu must be
// held.
func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	ev.Symbol = e.ledger.Symbol()
	ev.At = e.stamp()
	if e.sink != nil {
		e.sink.Notify(ctx, ev)
	}
	if e.audit == nil {
		return
	}
	detail := map[string]any{
		"symbol":   ev.Symbol,
		"severity": string(ev.Severity),
		"title":    ev.Title,
		"message":  ev.Message,
	}
	for k, v := range ev.Detail {
		detail[k] = v
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.audit.Log(actx, string(ev.Type), detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}
