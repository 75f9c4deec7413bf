package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// StateStore implements domain.PersistenceStore and domain.TradeHistory.
// Positions and orders are kept as JSONB documents; closed trades get real
// columns so they can be queried for reports.
type StateStore struct {
	pool  *pgxpool.Pool
	saved domain.SavedTrades
}

var (
	_ domain.PersistenceStore = (*StateStore)(nil)
	_ domain.TradeHistory     = (*StateStore)(nil)
)

// NewStateStore creates a new StateStore backed by the given connection pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// LoadState reads the full state for symbol. It returns domain.ErrNotFound
// when nothing was saved yet.
func (s *StateStore) LoadState(ctx context.Context, symbol string) (domain.LedgerState, error) {
	st := domain.LedgerState{Symbol: symbol}
	var dailyPnL, lossTrades, cycle []byte

	err := s.pool.QueryRow(ctx, `
		SELECT initial_balance, current_balance, daily_pnl, daily_loss_trades, cycle, updated_at
		FROM ledger_state WHERE symbol = $1`, symbol,
	).Scan(&st.InitialBalance, &st.CurrentBalance, &dailyPnL, &lossTrades, &cycle, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerState{}, fmt.Errorf("postgres: load state %s: %w", symbol, domain.ErrNotFound)
	}
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("postgres: load state %s: %w", symbol, err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()

	for _, doc := range []struct {
		raw []byte
		dst any
	}{
		{dailyPnL, &st.DailyPnL},
		{lossTrades, &st.DailyLossTrades},
		{cycle, &st.Cycle},
	} {
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return domain.LedgerState{}, fmt.Errorf("postgres: decode state %s: %w", symbol, err)
		}
	}

	if st.Positions, err = loadDocs[domain.Position](ctx, s.pool,
		`SELECT data FROM positions WHERE symbol = $1 ORDER BY opened_at, id`, symbol); err != nil {
		return domain.LedgerState{}, fmt.Errorf("postgres: load positions %s: %w", symbol, err)
	}
	if st.PendingOrders, err = loadDocs[domain.PendingOrder](ctx, s.pool,
		`SELECT data FROM pending_orders WHERE symbol = $1 ORDER BY created_at, id`, symbol); err != nil {
		return domain.LedgerState{}, fmt.Errorf("postgres: load orders %s: %w", symbol, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades WHERE symbol = $1 ORDER BY seq`, symbol)
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("postgres: load trades %s: %w", symbol, err)
	}
	if st.Trades, err = scanTrades(rows); err != nil {
		return domain.LedgerState{}, fmt.Errorf("postgres: load trades %s: %w", symbol, err)
	}
	s.saved.Mark(symbol, len(st.Trades))
	return st.Normalized(), nil
}

// SaveState replaces the stored state for state.Symbol in one transaction.
// Trades are append-only: only those added since the last save or load are
// inserted, and an id already stored is never rewritten.
func (s *StateStore) SaveState(ctx context.Context, state domain.LedgerState) error {
	dailyPnL, err := json.Marshal(state.DailyPnL)
	if err != nil {
		return fmt.Errorf("postgres: encode daily pnl: %w", err)
	}
	lossTrades, err := json.Marshal(state.DailyLossTrades)
	if err != nil {
		return fmt.Errorf("postgres: encode loss trades: %w", err)
	}
	cycle, err := json.Marshal(state.Cycle)
	if err != nil {
		return fmt.Errorf("postgres: encode cycle: %w", err)
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save %s: %w", state.Symbol, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO ledger_state (symbol, initial_balance, current_balance, daily_pnl, daily_loss_trades, cycle, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			initial_balance = EXCLUDED.initial_balance,
			current_balance = EXCLUDED.current_balance,
			daily_pnl = EXCLUDED.daily_pnl,
			daily_loss_trades = EXCLUDED.daily_loss_trades,
			cycle = EXCLUDED.cycle,
			updated_at = EXCLUDED.updated_at`,
		state.Symbol, state.InitialBalance, state.CurrentBalance, dailyPnL, lossTrades, cycle, updatedAt,
	)
	batch.Queue(`DELETE FROM positions WHERE symbol = $1`, state.Symbol)
	batch.Queue(`DELETE FROM pending_orders WHERE symbol = $1`, state.Symbol)

	for _, p := range state.Positions {
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("postgres: encode position %s: %w", p.ID, err)
		}
		batch.Queue(`INSERT INTO positions (id, symbol, status, opened_at, data) VALUES ($1, $2, $3, $4, $5)`,
			p.ID, state.Symbol, string(p.Status), p.OpenedAt, doc)
	}
	for _, o := range state.PendingOrders {
		doc, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("postgres: encode order %s: %w", o.ID, err)
		}
		batch.Queue(`INSERT INTO pending_orders (id, symbol, status, created_at, data) VALUES ($1, $2, $3, $4, $5)`,
			o.ID, state.Symbol, string(o.Status), o.CreatedAt, doc)
	}
	for _, t := range s.saved.Unsaved(state) {
		batch.Queue(`INSERT INTO trades (`+tradeCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (id) DO NOTHING`,
			t.ID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice, t.StopLoss, t.TakeProfit,
			t.Quantity, t.PositionSizeUSD, t.Leverage, t.PnLUSD, t.PnLPercent, string(t.CloseReason),
			t.Confidence, t.Reasoning, t.OpenedAt, t.ClosedAt, int64(t.Duration), t.CycleNumber,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: save %s statement %d: %w", state.Symbol, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: save %s: %w", state.Symbol, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save %s: %w", state.Symbol, err)
	}
	s.saved.Mark(state.Symbol, len(state.Trades))
	return nil
}

// ListTrades returns closed trades for symbol, newest first. An empty symbol
// lists every instrument.
func (s *StateStore) ListTrades(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE 1=1`
	args := []any{}
	argIdx := 1

	if symbol != "" {
		query += fmt.Sprintf(" AND symbol = $%d", argIdx)
		args = append(args, symbol)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND closed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND closed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY closed_at DESC, seq DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	return trades, nil
}

const tradeCols = `id, symbol, side, entry_price, exit_price, stop_loss, take_profit,
	quantity, position_size_usd, leverage, pnl_usd, pnl_percent, close_reason,
	confidence, reasoning, opened_at, closed_at, duration_ns, cycle_number`

func scanTrades(rows pgx.Rows) ([]domain.TradeRecord, error) {
	defer rows.Close()
	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			t          domain.TradeRecord
			side       string
			reason     string
			durationNs int64
		)
		if err := rows.Scan(
			&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.StopLoss, &t.TakeProfit,
			&t.Quantity, &t.PositionSizeUSD, &t.Leverage, &t.PnLUSD, &t.PnLPercent, &reason,
			&t.Confidence, &t.Reasoning, &t.OpenedAt, &t.ClosedAt, &durationNs, &t.CycleNumber,
		); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		t.CloseReason = domain.CloseReason(reason)
		t.Duration = time.Duration(durationNs)
		t.OpenedAt, t.ClosedAt = t.OpenedAt.UTC(), t.ClosedAt.UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func loadDocs[T any](ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
