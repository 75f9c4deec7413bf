package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// publishTimeout bounds one event's publish and stream append.
const publishTimeout = 2 * time.Second

// EventSink is a domain.NotificationSink that puts engine events on the
// signal bus: live on the per-symbol channel and durably on its stream.
type EventSink struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

var _ domain.NotificationSink = (*EventSink)(nil)

// NewEventSink creates an EventSink.
func NewEventSink(bus domain.SignalBus, logger *slog.Logger) *EventSink {
	return &EventSink{bus: bus, logger: logger.With(slog.String("component", "event_sink"))}
}

// Notify publishes ev in the background. Failures are logged.
func (s *EventSink) Notify(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.WarnContext(ctx, "encode event failed", slog.String("error", err.Error()))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.bus.Publish(ctx, EventsChannel(ev.Symbol), payload); err != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, EventsStream(ev.Symbol), payload); err != nil {
			s.logger.WarnContext(ctx, "stream event failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// EventsChannel is the Pub/Sub channel carrying symbol's events. An empty
// symbol gives the pattern matching every symbol.
func EventsChannel(symbol string) string {
	if symbol == "" {
		return eventsChannel("*")
	}
	return eventsChannel(symbol)
}

// EventsStream is the stream holding symbol's event history.
func EventsStream(symbol string) string { return eventsStream(symbol) }
