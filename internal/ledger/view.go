package ledger

import (
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Symbol returns the instrument this ledger trades.
func (l *Ledger) Symbol() string { return l.symbol }

// HasOpenPosition reports whether a position is open.
func (l *Ledger) HasOpenPosition() bool { return l.open != nil }

// OpenPosition returns a copy of the open position.
func (l *Ledger) OpenPosition() (domain.Position, bool) {
	if l.open == nil {
		return domain.Position{}, false
	}
	return *l.open, true
}

// Balance returns the current balance.
func (l *Ledger) Balance() float64 { return l.balance }

// InitialBalance returns the balance the ledger was funded with.
func (l *Ledger) InitialBalance() float64 { return l.initialBalance }

// DailyPnL returns the realized P&L for the calendar day containing t.
func (l *Ledger) DailyPnL(t time.Time) float64 {
	return l.dailyPnL[domain.DateKey(t)]
}

// TodayPnL returns today's realized P&L.
func (l *Ledger) TodayPnL() float64 {
	return l.DailyPnL(l.now())
}

// DailyLossTrades returns the number of losing closes on the day of t.
func (l *Ledger) DailyLossTrades(t time.Time) int {
	return l.dailyLossTrades[domain.DateKey(t)]
}

// UnrealizedPnL returns the open position's P&L at price, or 0.
func (l *Ledger) UnrealizedPnL(price float64) float64 {
	if l.open == nil {
		return 0
	}
	return l.open.PnLAt(price)
}

// Trades returns a copy of the trade history, oldest first.
func (l *Ledger) Trades() []domain.TradeRecord {
	return append([]domain.TradeRecord(nil), l.trades...)
}

// TradeCount returns the number of closed trades.
func (l *Ledger) TradeCount() int { return len(l.trades) }

// Snapshot writes the ledger-owned fields into s.
func (l *Ledger) Snapshot(s *domain.LedgerState) {
	s.Symbol = l.symbol
	s.InitialBalance = l.initialBalance
	s.CurrentBalance = l.balance
	s.Positions = []domain.Position{}
	if l.open != nil {
		s.Positions = append(s.Positions, *l.open)
	}
	s.Trades = append([]domain.TradeRecord{}, l.trades...)
	s.DailyPnL = make(map[string]float64, len(l.dailyPnL))
	for k, v := range l.dailyPnL {
		s.DailyPnL[k] = v
	}
	s.DailyLossTrades = make(map[string]int, len(l.dailyLossTrades))
	for k, v := range l.dailyLossTrades {
		s.DailyLossTrades[k] = v
	}
}

// Statistics is a derived read-only view over the trade history.
type Statistics struct {
	TotalTrades     int     `json:"total_trades"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"win_rate"`
	TotalPnLUSD     float64 `json:"total_pnl_usd"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	LargestWin      float64 `json:"largest_win"`
	LargestLoss     float64 `json:"largest_loss"`
	CurrentBalance  float64 `json:"current_balance"`
}

// Statistics summarizes the trade history. A win is a trade with pnl > 0.
func (l *Ledger) Statistics() Statistics {
	st := ComputeStatistics(l.trades, l.initialBalance)
	st.CurrentBalance = l.balance
	return st
}

// ComputeStatistics summarizes trades against an initial balance.
func ComputeStatistics(trades []domain.TradeRecord, initialBalance float64) Statistics {
	st := Statistics{TotalTrades: len(trades), CurrentBalance: initialBalance}
	var sumWin, sumLoss float64
	for _, t := range trades {
		st.TotalPnLUSD += t.PnLUSD
		if t.Win() {
			st.Wins++
			sumWin += t.PnLUSD
			if t.PnLUSD > st.LargestWin {
				st.LargestWin = t.PnLUSD
			}
			continue
		}
		st.Losses++
		sumLoss += t.PnLUSD
		if t.PnLUSD < st.LargestLoss {
			st.LargestLoss = t.PnLUSD
		}
	}
	if st.TotalTrades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.TotalTrades) * 100
	}
	if st.Wins > 0 {
		st.AvgWin = sumWin / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLoss = sumLoss / float64(st.Losses)
	}
	if initialBalance > 0 {
		st.TotalPnLPercent = st.TotalPnLUSD / initialBalance * 100
	}
	st.CurrentBalance = initialBalance + st.TotalPnLUSD
	return st
}
