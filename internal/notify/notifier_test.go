package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingSender struct {
	mu   sync.Mutex
	name string
	err  error
	got  []Message
	sent chan struct{}
}

func newRecordingSender(name string, err error) *recordingSender {
	return &recordingSender{name: name, err: err, sent: make(chan struct{}, 16)}
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.got = append(s.got, msg)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.got...)
}

func waitSent(t *testing.T, s *recordingSender) {
	t.Helper()
	select {
	case <-s.sent:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: nothing sent", s.name)
	}
}

func TestNotifierDeliversAllowedEvents(t *testing.T) {
	t.Parallel()

	failing := newRecordingSender("failing", errors.New("boom"))
	ok := newRecordingSender("ok", nil)
	n := NewNotifier([]Sender{failing, ok}, []string{"position_opened", " daily_limit_reached "}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = n.Run(ctx); close(done) }()

	n.Notify(ctx, domain.Event{Type: domain.EventOrderPlaced, Title: "filtered"})
	n.Notify(ctx, domain.Event{Type: domain.EventPositionOpened, Symbol: "BTCUSDT", Title: "Position opened", Severity: domain.SeverityInfo})

	waitSent(t, failing)
	waitSent(t, ok)
	cancel()
	<-done

	got := ok.messages()
	require.Len(t, got, 1, "the failing sender does not block the next one")
	assert.Equal(t, "BTCUSDT | Position opened", got[0].Title)
}

func TestNotifierDrainsOnShutdown(t *testing.T) {
	t.Parallel()

	s := newRecordingSender("ok", nil)
	n := NewNotifier([]Sender{s}, nil, discard())
	n.Notify(context.Background(), domain.Event{Type: domain.EventError, Title: "a"})
	n.Notify(context.Background(), domain.Event{Type: domain.EventError, Title: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, n.Run(ctx))
	assert.Len(t, s.messages(), 2)
}

func TestRender(t *testing.T) {
	t.Parallel()

	msg := Render(domain.Event{
		Type:     domain.EventPositionClosed,
		Severity: domain.SeverityWarning,
		Message:  "Stop loss hit",
		Detail:   map[string]any{"pnl_usd": -10.5, "exit": 49500},
	})
	assert.Equal(t, "position_closed", msg.Title)
	assert.Equal(t, "Stop loss hit\nexit: 49500\npnl_usd: -10.5", msg.Body)
	assert.Equal(t, domain.SeverityWarning, msg.Severity)
}

func TestFanout(t *testing.T) {
	t.Parallel()

	var got []domain.EventType
	rec := sinkFunc(func(_ context.Context, ev domain.Event) { got = append(got, ev.Type) })
	Fanout{rec, nil, rec}.Notify(context.Background(), domain.Event{Type: domain.EventError})
	assert.Equal(t, []domain.EventType{domain.EventError, domain.EventError}, got)
}

type sinkFunc func(context.Context, domain.Event)

func (f sinkFunc) Notify(ctx context.Context, ev domain.Event) { f(ctx, ev) }

func TestTelegramSender(t *testing.T) {
	t.Parallel()

	var path string
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), Message{Title: "T", Body: "B", Severity: domain.SeverityError}))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "🔴 *T*\nB", payload["text"])
}

func TestDiscordSender(t *testing.T) {
	t.Parallel()

	var payload map[string][]discordEmbed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), Message{Title: "T", Body: "B", Severity: domain.SeverityWarning}))
	require.Len(t, payload["embeds"], 1)
	assert.Equal(t, 0xF1C40F, payload["embeds"][0].Color)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer bad.Close()
	err := NewDiscordSender(bad.URL).Send(context.Background(), Message{Title: "T"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
