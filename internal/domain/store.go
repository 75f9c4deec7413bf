package domain

import (
	"context"
	"sync"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PersistenceStore loads and saves ledger state. SaveState must be atomic:
// a crash mid-write leaves either the previous or the new state.
type PersistenceStore interface {
	LoadState(ctx context.Context, symbol string) (LedgerState, error)
	SaveState(ctx context.Context, state LedgerState) error
}

// SavedTrades remembers how much of each symbol's trade history a store has
// written, so a save only appends the new tail. The zero value is ready to
// use.
type SavedTrades struct {
	mu sync.Mutex
	n  map[string]int
}

// Unsaved returns the trades of state not yet written. A history shorter than
// the mark is not the one that was saved and is returned in full.
func (m *SavedTrades) Unsaved(state LedgerState) []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.n[state.Symbol]
	if n > len(state.Trades) {
		n = 0
	}
	return state.Trades[n:]
}

// Mark records that the first n trades of symbol are stored.
func (m *SavedTrades) Mark(symbol string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n == nil {
		m.n = make(map[string]int)
	}
	m.n[symbol] = n
}

// TradeHistory lists closed trades, newest first.
type TradeHistory interface {
	ListTrades(ctx context.Context, symbol string, opts ListOpts) ([]TradeRecord, error)
}

// AuditStore records significant events for compliance and debugging.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// Persister flushes the owning engine's full state after a mutation. The
// mutation itself is never rolled back when Persist fails.
type Persister interface {
	Persist(ctx context.Context) error
}

// AuditEntry is a single recorded audit event.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
