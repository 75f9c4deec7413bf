package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/finetune"
)

type memWriter struct {
	path        string
	contentType string
	body        []byte
	err         error
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.path, w.contentType, w.body = path, contentType, b
	return nil
}

type memAudit struct{ events []string }

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return errors.New("audit down")
}

func trades() []domain.TradeRecord {
	return []domain.TradeRecord{
		{ID: "a", Symbol: "BTCUSDT", Side: domain.SideLong, PnLUSD: 10, Confidence: 0.8},
		{ID: "b", Symbol: "BTCUSDT", Side: domain.SideShort, PnLUSD: -4, Confidence: 0.3},
		{ID: "c", Symbol: "BTCUSDT", Side: domain.SideLong, PnLUSD: 6, Confidence: 0.9},
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	w := &memWriter{}
	audit := &memAudit{}
	x := NewTradeExporter(w, "", finetune.Options{}, audit)
	x.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	path, err := x.Export(context.Background(), "BTCUSDT", trades())
	require.NoError(t, err, "audit failures do not fail the export")

	assert.Equal(t, "finetune/BTCUSDT/2026-03-02/1772442000-2.jsonl", path)
	assert.Equal(t, path, w.path)
	assert.Equal(t, "application/x-ndjson", w.contentType)
	assert.Equal(t, 2, bytes.Count(w.body, []byte("\n")))
	assert.True(t, strings.HasPrefix(string(w.body), `{"messages":[`))
	assert.Equal(t, []string{"finetune.export"}, audit.events)
}

func TestExportUploadFailure(t *testing.T) {
	t.Parallel()

	x := NewTradeExporter(&memWriter{err: errors.New("denied")}, "ft", finetune.Options{}, nil)
	_, err := x.Export(context.Background(), "BTCUSDT", trades())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}
