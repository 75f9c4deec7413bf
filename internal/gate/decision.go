package gate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Meta carries the fields every decision variant shares.
type Meta struct {
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (m Meta) meta() Meta { return m }

// Decision is one validated action. The concrete types below are the only
// implementations.
type Decision interface {
	Action() domain.Action
	meta() Meta
}

// Wait is a no-op.
type Wait struct {
	Meta
	Reason string `json:"reason"`
}

// PlaceLimitOrder rests an entry order at EntryPrice. A zero SizePercent is
// sized from risk.
type PlaceLimitOrder struct {
	Meta
	Side        domain.OrderSide `json:"side"`
	EntryPrice  float64          `json:"entry_price"`
	StopLoss    float64          `json:"stop_loss"`
	TakeProfit  float64          `json:"take_profit"`
	SizePercent float64          `json:"position_size"`
	Expiry      time.Duration    `json:"expiry"`
}

// OpenMarket opens a position immediately at the current price.
type OpenMarket struct {
	Meta
	Side        domain.Side `json:"side"`
	StopLoss    float64     `json:"stop_loss"`
	TakeProfit  float64     `json:"take_profit"`
	SizePercent float64     `json:"position_size"`
}

// ClosePosition closes the open position at the current price. An empty
// PositionID means whichever position is open.
type ClosePosition struct {
	Meta
	PositionID string `json:"position_id"`
}

// ModifyStops moves the open position's stop and target. Zero keeps a level.
type ModifyStops struct {
	Meta
	StopLoss   float64 `json:"new_stop_loss"`
	TakeProfit float64 `json:"new_take_profit"`
}

// CancelOrder cancels one pending order, or all of them when OrderID is empty.
type CancelOrder struct {
	Meta
	OrderID string `json:"order_id"`
}

func (Wait) Action() domain.Action            { return domain.ActionWait }
func (PlaceLimitOrder) Action() domain.Action { return domain.ActionPlaceLimitOrder }
func (OpenMarket) Action() domain.Action      { return domain.ActionOpenMarket }
func (ClosePosition) Action() domain.Action   { return domain.ActionClosePosition }
func (ModifyStops) Action() domain.Action     { return domain.ActionModifyStops }
func (CancelOrder) Action() domain.Action     { return domain.ActionCancelOrder }

// Parse converts a raw decision into a typed Decision. Unknown or malformed
// decisions become a Wait whose reason explains the parse error; Parse never
// fails.
func Parse(raw domain.RawDecision) Decision {
	p := Normalize(raw.Params)
	m := Meta{Confidence: raw.Confidence, Reasoning: raw.Reasoning}
	if m.Reasoning == "" {
		m.Reasoning, _ = p["reasoning"].(string)
	}
	if m.Confidence == 0 {
		if c, ok := number(p["confidence"]); ok {
			m.Confidence = c
		}
	}
	m.Confidence = math.Max(0, math.Min(1, m.Confidence))

	d, err := parseAction(normalizeAction(raw.Action), p, m)
	if err != nil {
		return Wait{Meta: m, Reason: "parse error: " + err.Error()}
	}
	return d
}

func parseAction(action string, p map[string]any, m Meta) (Decision, error) {
	switch domain.Action(action) {
	case domain.ActionWait:
		reason := m.Reasoning
		if reason == "" {
			reason = "decision source chose to wait"
		}
		return Wait{Meta: m, Reason: reason}, nil

	case domain.ActionPlaceLimitOrder:
		side, err := orderSide(p["side"])
		if err != nil {
			return nil, err
		}
		entry, err := required(p, "entry_price")
		if err != nil {
			return nil, err
		}
		sl, tp, err := levels(p)
		if err != nil {
			return nil, err
		}
		d := PlaceLimitOrder{Meta: m, Side: side, EntryPrice: entry, StopLoss: sl, TakeProfit: tp}
		d.SizePercent, _ = number(p["position_size"])
		if mins, ok := number(p["expiry_minutes"]); ok && mins > 0 {
			d.Expiry = time.Duration(mins * float64(time.Minute))
		}
		return d, nil

	case domain.ActionOpenMarket:
		os, err := orderSide(p["side"])
		if err != nil {
			return nil, err
		}
		sl, tp, err := levels(p)
		if err != nil {
			return nil, err
		}
		d := OpenMarket{Meta: m, Side: os.PositionSide(), StopLoss: sl, TakeProfit: tp}
		d.SizePercent, _ = number(p["position_size"])
		return d, nil

	case domain.ActionClosePosition:
		posID, _ := p["position_id"].(string)
		return ClosePosition{Meta: m, PositionID: posID}, nil

	case domain.ActionModifyStops:
		sl, _ := number(p["new_stop_loss"])
		tp, _ := number(p["new_take_profit"])
		if sl == 0 {
			sl, _ = number(p["stop_loss"])
		}
		if tp == 0 {
			tp, _ = number(p["take_profit"])
		}
		if sl <= 0 && tp <= 0 {
			return nil, fmt.Errorf("MODIFY_SL_TP needs new_stop_loss or new_take_profit")
		}
		return ModifyStops{Meta: m, StopLoss: sl, TakeProfit: tp}, nil

	case domain.ActionCancelOrder:
		orderID, _ := p["order_id"].(string)
		if strings.EqualFold(orderID, "all") {
			orderID = ""
		}
		return CancelOrder{Meta: m, OrderID: orderID}, nil

	case "":
		return nil, fmt.Errorf("missing action")
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func orderSide(v any) (domain.OrderSide, error) {
	s, _ := v.(string)
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return domain.OrderSideBuy, nil
	case "SELL", "SHORT":
		return domain.OrderSideSell, nil
	case "":
		return "", fmt.Errorf("missing side")
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

func levels(p map[string]any) (sl, tp float64, err error) {
	if sl, err = required(p, "stop_loss"); err != nil {
		return 0, 0, err
	}
	if tp, err = required(p, "take_profit"); err != nil {
		return 0, 0, err
	}
	return sl, tp, nil
}

func required(p map[string]any, key string) (float64, error) {
	v, ok := number(p[key])
	if !ok {
		return 0, fmt.Errorf("missing or non-numeric %s", key)
	}
	return v, nil
}

// number accepts JSON numbers and numeric strings.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(n, "%")), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
