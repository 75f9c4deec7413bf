package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// EventLog reads recent entries of a durable event stream.
type EventLog interface {
	Recent(ctx context.Context, stream string, count int64) ([][]byte, error)
}

// EventsHandler serves the recent engine events.
type EventsHandler struct {
	log    EventLog
	stream string
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler reading stream from log.
func NewEventsHandler(log EventLog, stream string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{log: log, stream: stream, logger: logger}
}

// Recent returns up to ?limit= (default 50, max 500) events, newest first.
// GET /api/events
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}

	raw, err := h.log.Recent(r.Context(), h.stream, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read events failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	events := make([]json.RawMessage, 0, len(raw))
	for _, b := range raw {
		if json.Valid(b) {
			events = append(events, b)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
