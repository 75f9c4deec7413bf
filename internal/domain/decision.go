package domain

// Action is the vocabulary a decision source may answer with.
type Action string

const (
	ActionWait            Action = "WAIT"
	ActionPlaceLimitOrder Action = "PLACE_LIMIT_ORDER"
	ActionOpenMarket      Action = "OPEN_MARKET"
	ActionClosePosition   Action = "CLOSE_POSITION"
	ActionModifyStops     Action = "MODIFY_SL_TP"
	ActionCancelOrder     Action = "CANCEL_ORDER"
)

// RawDecision is the untyped answer of a decision source. Params keys are
// free-form until the gate normalizes them.
type RawDecision struct {
	Action     string         `json:"action"`
	Params     map[string]any `json:"params"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}
