package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/finetune"
)

// TradeExporter uploads batches of closed trades as a chat-format JSONL
// training set.
//
// Objects are keyed as
//
//	{prefix}/{symbol}/{YYYY-MM-DD}/{unix}-{n}.jsonl
type TradeExporter struct {
	writer domain.BlobWriter
	prefix string
	opts   finetune.Options
	audit  domain.AuditStore
	now    func() time.Time
}

// NewTradeExporter creates a TradeExporter. audit may be nil.
func NewTradeExporter(writer domain.BlobWriter, prefix string, opts finetune.Options, audit domain.AuditStore) *TradeExporter {
	if prefix == "" {
		prefix = "finetune"
	}
	return &TradeExporter{writer: writer, prefix: prefix, opts: opts, audit: audit, now: time.Now}
}

// Export writes trades and returns the object path. A batch that filters
// down to nothing is still recorded so the export counter advances.
func (e *TradeExporter) Export(ctx context.Context, symbol string, trades []domain.TradeRecord) (string, error) {
	var buf bytes.Buffer
	n, err := finetune.WriteJSONL(&buf, trades, e.opts)
	if err != nil {
		return "", fmt.Errorf("s3blob: export %s: %w", symbol, err)
	}

	now := e.now().UTC()
	path := fmt.Sprintf("%s/%s/%s/%d-%d.jsonl", e.prefix, symbol, now.Format("2006-01-02"), now.Unix(), n)
	if err := e.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: export %s: %w", symbol, err)
	}

	if e.audit != nil {
		// Best effort once the object exists.
		_ = e.audit.Log(ctx, "finetune.export", map[string]any{
			"symbol":   symbol,
			"path":     path,
			"trades":   len(trades),
			"examples": n,
		})
	}
	return path, nil
}
