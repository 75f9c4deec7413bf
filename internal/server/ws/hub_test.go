package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func readFrame(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubPushesStatusThenEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, "", func() any { return map[string]string{"symbol": "BTCUSDT"} }, discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readFrame(t, conn)
	assert.Equal(t, "status", status.Type)
	assert.JSONEq(t, `{"symbol":"BTCUSDT"}`, string(status.Payload))

	hub.Notify(ctx, domain.Event{Type: domain.EventPositionOpened, Symbol: "BTCUSDT", Title: "opened"})
	ev := readFrame(t, conn)
	assert.Equal(t, "event", ev.Type)

	var got domain.Event
	require.NoError(t, json.Unmarshal(ev.Payload, &got))
	assert.Equal(t, domain.EventPositionOpened, got.Type)
	assert.Equal(t, "opened", got.Title)
}

func TestHubRecentNewestFirst(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, "", nil, discard())
	for _, title := range []string{"a", "b", "c"} {
		hub.Notify(context.Background(), domain.Event{Type: domain.EventError, Title: title})
	}

	recent, err := hub.Recent(context.Background(), "ignored", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	var first domain.Event
	require.NoError(t, json.Unmarshal(recent[0], &first))
	assert.Equal(t, "c", first.Title)
}

func TestClientSubscriptionFilter(t *testing.T) {
	t.Parallel()

	c := &client{events: make(map[domain.EventType]bool)}
	assert.True(t, c.wants(domain.EventError), "no filter means everything")

	c.handleSubscription(subscribeMsg{Action: "subscribe", Events: []domain.EventType{domain.EventPositionClosed}})
	assert.True(t, c.wants(domain.EventPositionClosed))
	assert.False(t, c.wants(domain.EventError))

	c.handleSubscription(subscribeMsg{Action: "reset"})
	assert.True(t, c.wants(domain.EventError))
}
