// Package finetune turns closed trades into chat-format training examples.
package finetune

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// DefaultMinConfidence drops trades the decision source itself doubted.
const DefaultMinConfidence = 0.5

// outlierMinSample is the sample size below which no outlier filter applies.
const outlierMinSample = 10

const systemPrompt = "You are a professional crypto futures trader using Smart Money Concepts. " +
	"Answer with one JSON trading decision."

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Example is one training line.
type Example struct {
	Messages []Message `json:"messages"`
}

// Options filter the dataset.
type Options struct {
	MinConfidence float64
}

// Select removes duplicate ids, low-confidence trades and P&L outliers more
// than three standard deviations from the mean.
func Select(trades []domain.TradeRecord, opts Options) []domain.TradeRecord {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}

	seen := make(map[string]bool, len(trades))
	unique := make([]domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		unique = append(unique, t)
	}

	mean, std := pnlStats(unique)
	out := make([]domain.TradeRecord, 0, len(unique))
	for _, t := range unique {
		if t.Confidence < opts.MinConfidence {
			continue
		}
		if len(unique) >= outlierMinSample && math.Abs(t.PnLUSD-mean) > 3*std {
			continue
		}
		out = append(out, t)
	}
	return out
}

func pnlStats(trades []domain.TradeRecord) (mean, std float64) {
	if len(trades) == 0 {
		return 0, 0
	}
	for _, t := range trades {
		mean += t.PnLUSD
	}
	mean /= float64(len(trades))
	var variance float64
	for _, t := range trades {
		d := t.PnLUSD - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(trades)))
}

// Build converts a trade into a training example whose assistant turn is the
// decision that was taken together with its realized result.
func Build(t domain.TradeRecord) (Example, error) {
	result := "LOSS"
	if t.Win() {
		result = "WIN"
	}
	answer, err := json.Marshal(map[string]any{
		"action": string(domain.ActionPlaceLimitOrder),
		"params": map[string]any{
			"side":        string(t.Side),
			"entry_price": t.EntryPrice,
			"stop_loss":   t.StopLoss,
			"take_profit": t.TakeProfit,
		},
		"confidence": t.Confidence,
		"reasoning":  t.Reasoning,
		"result":     result,
		"pnl_usd":    t.PnLUSD,
	})
	if err != nil {
		return Example{}, fmt.Errorf("finetune: encode trade %s: %w", t.ID, err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Symbol: %s\n", t.Symbol)
	fmt.Fprintf(&user, "Opened: %s\n", t.OpenedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&user, "Entry: %.2f  Stop: %.2f  Target: %.2f\n", t.EntryPrice, t.StopLoss, t.TakeProfit)
	fmt.Fprintf(&user, "Outcome: %s at %.2f after %s", t.CloseReason, t.ExitPrice, t.Duration.Round(1e9))

	return Example{Messages: []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user.String()},
		{Role: "assistant", Content: string(answer)},
	}}, nil
}

// WriteJSONL writes one example per line for every selected trade and
// returns how many were written.
func WriteJSONL(w io.Writer, trades []domain.TradeRecord, opts Options) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	n := 0
	for _, t := range Select(trades, opts) {
		ex, err := Build(t)
		if err != nil {
			return n, err
		}
		if err := enc.Encode(ex); err != nil {
			return n, fmt.Errorf("finetune: write trade %s: %w", t.ID, err)
		}
		n++
	}
	return n, nil
}
