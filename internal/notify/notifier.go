// Package notify delivers engine events to operators over chat webhooks.
// Events are queued and sent by a background worker so the trading loop never
// waits on a chat API.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Message is the rendered form of an event.
type Message struct {
	Title    string
	Body     string
	Severity domain.Severity
}

const (
	queueSize   = 64
	sendTimeout = 10 * time.Second
)

// Notifier is a domain.NotificationSink that forwards allowed events to every
// sender. Construct with NewNotifier and start the worker with Run.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	queue   chan domain.Event
	logger  *slog.Logger
}

var _ domain.NotificationSink = (*Notifier)(nil)

// NewNotifier creates a Notifier. When events is empty every event type is
// forwarded.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		queue:   make(chan domain.Event, queueSize),
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify queues ev. A full queue drops the event with a warning.
func (n *Notifier) Notify(ctx context.Context, ev domain.Event) {
	if len(n.senders) == 0 {
		return
	}
	if len(n.events) > 0 && !n.events[ev.Type] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(ev.Type)))
		return
	}
	select {
	case n.queue <- ev:
	default:
		n.logger.WarnContext(ctx, "notification queue full, dropping",
			slog.String("event", string(ev.Type)),
		)
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// already queued.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-n.queue:
					n.deliver(context.WithoutCancel(ctx), ev)
				default:
					return nil
				}
			}
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := n.dispatch(ctx, Render(ev)); err != nil {
		n.logger.WarnContext(ctx, "notification failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// dispatch sends to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", msg.Title),
		)
	}
	return errors.Join(errs...)
}

// Render formats ev for chat delivery. Detail keys are listed in order.
func Render(ev domain.Event) Message {
	title := ev.Title
	if title == "" {
		title = string(ev.Type)
	}
	if ev.Symbol != "" {
		title = ev.Symbol + " | " + title
	}

	var b strings.Builder
	b.WriteString(ev.Message)
	keys := make([]string, 0, len(ev.Detail))
	for k := range ev.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %v", k, ev.Detail[k])
	}
	return Message{Title: title, Body: b.String(), Severity: ev.Severity}
}
