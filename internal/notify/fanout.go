package notify

import (
	"context"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Fanout is a domain.NotificationSink that hands each event to several sinks.
type Fanout []domain.NotificationSink

var _ domain.NotificationSink = Fanout(nil)

// Notify forwards ev to every non-nil sink.
func (f Fanout) Notify(ctx context.Context, ev domain.Event) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, ev)
		}
	}
}
