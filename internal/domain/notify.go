package domain

import (
	"context"
	"time"
)

// EventType names a notification event.
type EventType string

const (
	EventPositionOpened     EventType = "position_opened"
	EventPositionClosed     EventType = "position_closed"
	EventOrderPlaced        EventType = "order_placed"
	EventOrderTriggered     EventType = "order_triggered"
	EventOrderCancelled     EventType = "order_cancelled"
	EventOrderExpired       EventType = "order_expired"
	EventStopsModified      EventType = "stops_modified"
	EventDecisionRejected   EventType = "decision_rejected"
	EventDailyLimitReached  EventType = "daily_limit_reached"
	EventRiskLimitWarning   EventType = "risk_limit_warning"
	EventPersistenceFailing EventType = "persistence_failing"
	EventCycleCompleted     EventType = "cycle_completed"
	EventError              EventType = "error"
)

// Severity grades how urgently an event needs attention.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Event is a notification about something the engine did.
type Event struct {
	Type     EventType      `json:"type"`
	Severity Severity       `json:"severity"`
	Symbol   string         `json:"symbol"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}

// NotificationSink receives events. Implementations must not block the
// caller and must swallow their own delivery failures.
type NotificationSink interface {
	Notify(ctx context.Context, ev Event)
}
