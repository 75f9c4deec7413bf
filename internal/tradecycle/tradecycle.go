// Package tradecycle groups closed trades into fixed-size cycles and gates
// the switch from paper to real trading on cycle progress.
package tradecycle

import (
	"fmt"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

const (
	// DefaultTradesPerCycle is the cycle length.
	DefaultTradesPerCycle = 100
	// DefaultMinRealCycle is the first cycle that may trade real money.
	DefaultMinRealCycle = 3
)

// Option configures a Manager.
type Option func(*Manager)

// WithTradesPerCycle overrides the cycle length.
func WithTradesPerCycle(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.perCycle = n
		}
	}
}

// WithMinRealCycle overrides the first cycle allowed to go live.
func WithMinRealCycle(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.minReal = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager tracks the current cycle. It is not safe for concurrent use.
type Manager struct {
	state    domain.CycleState
	perCycle int
	minReal  int
	now      func() time.Time
}

// New restores a Manager from persisted cycle state.
func New(state domain.CycleState, opts ...Option) *Manager {
	if state.Number == 0 {
		state.Number = 1
	}
	if state.Mode == "" {
		state.Mode = domain.ModePaper
	}
	state.History = append([]domain.CycleSummary(nil), state.History...)
	m := &Manager{
		state:    state,
		perCycle: DefaultTradesPerCycle,
		minReal:  DefaultMinRealCycle,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordTrade counts a closed trade. When it completes the cycle the summary
// is archived, the next cycle starts at balance and the summary is returned.
func (m *Manager) RecordTrade(rec domain.TradeRecord, balance float64) *domain.CycleSummary {
	if m.state.StartedAt.IsZero() {
		m.state.StartedAt = rec.OpenedAt
	}
	m.state.TradesInCycle++
	m.state.PnLInCycle += rec.PnLUSD
	if rec.Win() {
		m.state.WinsInCycle++
	}
	if m.state.TradesInCycle < m.perCycle {
		return nil
	}

	s := domain.CycleSummary{
		Number:       m.state.Number,
		Mode:         m.state.Mode,
		Trades:       m.state.TradesInCycle,
		Wins:         m.state.WinsInCycle,
		WinRate:      float64(m.state.WinsInCycle) / float64(m.state.TradesInCycle) * 100,
		PnLUSD:       m.state.PnLInCycle,
		StartBalance: m.state.StartBalance,
		EndBalance:   balance,
		StartedAt:    m.state.StartedAt,
		CompletedAt:  m.now().UTC().Truncate(time.Microsecond),
	}
	m.state.History = append(m.state.History, s)
	m.state.Number++
	m.state.TradesInCycle = 0
	m.state.WinsInCycle = 0
	m.state.PnLInCycle = 0
	m.state.StartBalance = balance
	m.state.StartedAt = s.CompletedAt
	return &s
}

// ReadyForReal reports whether enough paper cycles have completed.
func (m *Manager) ReadyForReal() bool {
	return m.state.Number >= m.minReal
}

// SwitchToReal enables real trading. It needs explicit approval and at least
// the minimum number of completed paper cycles.
func (m *Manager) SwitchToReal(approved bool) error {
	if !approved {
		return fmt.Errorf("%w: manual approval required", domain.ErrLiveNotApproved)
	}
	if !m.ReadyForReal() {
		return fmt.Errorf("%w: cycle %d, real trading starts at cycle %d",
			domain.ErrLiveNotApproved, m.state.Number, m.minReal)
	}
	m.state.Mode = domain.ModeReal
	return nil
}

// SwitchToPaper returns to simulated execution.
func (m *Manager) SwitchToPaper() {
	m.state.Mode = domain.ModePaper
}

// Mode returns the current trading mode.
func (m *Manager) Mode() domain.TradingMode { return m.state.Mode }

// Number returns the current cycle number.
func (m *Manager) Number() int { return m.state.Number }

// ShouldExport reports whether at least one cycle's worth of trades has
// accumulated since the last export.
func (m *Manager) ShouldExport(totalTrades int) bool {
	return totalTrades-m.state.ExportedTrades >= m.perCycle
}

// ExportedTrades returns how many trades have already been exported.
func (m *Manager) ExportedTrades() int { return m.state.ExportedTrades }

// MarkExported records that trades up to total have been exported.
func (m *Manager) MarkExported(total int) {
	m.state.ExportedTrades = total
}

// State returns a copy of the cycle state for persistence.
func (m *Manager) State() domain.CycleState {
	s := m.state
	s.History = append([]domain.CycleSummary{}, m.state.History...)
	return s
}

// Stats is a read-only view of cycle progress.
type Stats struct {
	Number         int                   `json:"number"`
	Mode           domain.TradingMode    `json:"mode"`
	TradesInCycle  int                   `json:"trades_in_cycle"`
	TradesPerCycle int                   `json:"trades_per_cycle"`
	Progress       float64               `json:"progress_percent"`
	WinsInCycle    int                   `json:"wins_in_cycle"`
	PnLInCycle     float64               `json:"pnl_in_cycle"`
	ReadyForReal   bool                  `json:"ready_for_real"`
	Completed      int                   `json:"completed_cycles"`
	History        []domain.CycleSummary `json:"history"`
}

// Stats summarizes the current cycle.
func (m *Manager) Stats() Stats {
	return Stats{
		Number:         m.state.Number,
		Mode:           m.state.Mode,
		TradesInCycle:  m.state.TradesInCycle,
		TradesPerCycle: m.perCycle,
		Progress:       float64(m.state.TradesInCycle) / float64(m.perCycle) * 100,
		WinsInCycle:    m.state.WinsInCycle,
		PnLInCycle:     m.state.PnLInCycle,
		ReadyForReal:   m.ReadyForReal(),
		Completed:      len(m.state.History),
		History:        m.State().History,
	}
}
