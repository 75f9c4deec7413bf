// Package sqlite is a single-file persistence backend for running the bot
// without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_state (
	symbol     TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	symbol    TEXT NOT NULL,
	closed_at INTEGER NOT NULL,
	pnl_usd   REAL NOT NULL,
	doc       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol_closed ON trades (symbol, closed_at);
CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event      TEXT NOT NULL,
	detail     TEXT,
	created_at INTEGER NOT NULL
);`

// Store implements domain.PersistenceStore, domain.TradeHistory and
// domain.AuditStore on one SQLite file.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	saved domain.SavedTrades
}

var (
	_ domain.PersistenceStore = (*Store)(nil)
	_ domain.TradeHistory     = (*Store)(nil)
	_ domain.AuditStore       = (*Store)(nil)
)

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer; an in-memory database also only exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadState returns domain.ErrNotFound when nothing was saved for symbol.
func (s *Store) LoadState(ctx context.Context, symbol string) (domain.LedgerState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM ledger_state WHERE symbol = ?`, symbol).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerState{}, fmt.Errorf("sqlite: load state %s: %w", symbol, domain.ErrNotFound)
	}
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("sqlite: load state %s: %w", symbol, err)
	}

	var st domain.LedgerState
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return domain.LedgerState{}, fmt.Errorf("sqlite: decode state %s: %w", symbol, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM trades WHERE symbol = ? ORDER BY seq`, symbol)
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("sqlite: load trades %s: %w", symbol, err)
	}
	if st.Trades, err = scanTrades(rows); err != nil {
		return domain.LedgerState{}, fmt.Errorf("sqlite: load trades %s: %w", symbol, err)
	}
	s.saved.Mark(symbol, len(st.Trades))
	return st.Normalized(), nil
}

// SaveState writes the state document and appends the trades added since the
// last save or load in one transaction.
func (s *Store) SaveState(ctx context.Context, state domain.LedgerState) error {
	total := len(state.Trades)
	trades := s.saved.Unsaved(state)
	state.Trades = nil
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sqlite: encode state %s: %w", state.Symbol, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save %s: %w", state.Symbol, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_state (symbol, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		state.Symbol, string(doc), s.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("sqlite: save state %s: %w", state.Symbol, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, symbol, closed_at, pnl_usd, doc) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		tdoc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("sqlite: encode trade %s: %w", t.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Symbol, t.ClosedAt.UnixNano(), t.PnLUSD, string(tdoc)); err != nil {
			return fmt.Errorf("sqlite: save trade %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit save %s: %w", state.Symbol, err)
	}
	s.saved.Mark(state.Symbol, total)
	return nil
}

// ListTrades returns closed trades newest first. An empty symbol lists every
// instrument.
func (s *Store) ListTrades(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	var (
		where []string
		args  []any
	)
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	if opts.Since != nil {
		where = append(where, "closed_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if opts.Until != nil {
		where = append(where, "closed_at <= ?")
		args = append(args, opts.Until.UnixNano())
	}

	query := `SELECT doc FROM trades`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY closed_at DESC, seq DESC"
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades: %w", err)
	}
	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades: %w", err)
	}
	return trades, nil
}

// Log appends an audit entry.
func (s *Store) Log(ctx context.Context, event string, detail map[string]any) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("sqlite: marshal audit detail: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event, detail, created_at) VALUES (?, ?, ?)`,
		event, string(raw), s.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("sqlite: log audit event %s: %w", event, err)
	}
	return nil
}

// ListAudit returns audit entries newest first. A non-empty event filters by
// name.
func (s *Store) ListAudit(ctx context.Context, event string, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT id, event, detail, created_at FROM audit_log`
	var args []any
	if event != "" {
		query += ` WHERE event = ?`
		args = append(args, event)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e      domain.AuditEntry
			detail sql.NullString
			at     int64
		)
		if err := rows.Scan(&e.ID, &e.Event, &detail, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit entry: %w", err)
		}
		if detail.Valid && detail.String != "null" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("sqlite: decode audit detail: %w", err)
			}
		}
		e.CreatedAt = time.Unix(0, at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTrades(rows *sql.Rows) ([]domain.TradeRecord, error) {
	defer rows.Close()
	var out []domain.TradeRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t domain.TradeRecord
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
