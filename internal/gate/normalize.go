package gate

import (
	"maps"
	"slices"
	"strings"
)

type paramAlias struct {
	name  string
	canon string
}

// paramAliases lists every accepted alias with its canonical parameter name.
// When several aliases of one parameter are present the earliest listed wins.
var paramAliases = []paramAlias{
	{"entry", "entry_price"},
	{"price", "entry_price"},
	{"limit_price", "entry_price"},
	{"open_price", "entry_price"},
	{"reason", "reasoning"},
	{"rationale", "reasoning"},
	{"explanation", "reasoning"},
	{"size", "position_size"},
	{"size_percent", "position_size"},
	{"amount", "position_size"},
	{"quantity", "position_size"},
	{"sl", "stop_loss"},
	{"stoploss", "stop_loss"},
	{"stop", "stop_loss"},
	{"tp", "take_profit"},
	{"takeprofit", "take_profit"},
	{"target", "take_profit"},
	{"new_sl", "new_stop_loss"},
	{"new_stoploss", "new_stop_loss"},
	{"new_tp", "new_take_profit"},
	{"new_target", "new_take_profit"},
	{"direction", "side"},
	{"position_side", "side"},
	{"id", "order_id"},
}

type aliasRank struct {
	canon string
	rank  int
}

var aliasIndex = func() map[string]aliasRank {
	idx := make(map[string]aliasRank, len(paramAliases))
	for i, a := range paramAliases {
		idx[a.name] = aliasRank{canon: a.canon, rank: i}
	}
	return idx
}()

// Normalize returns a copy of params with keys lower-cased and aliases
// resolved to their canonical names. A canonical key beats any alias, and
// among aliases the order of paramAliases decides. Keys that differ only in
// case resolve in sorted order. Normalize is deterministic and idempotent.
func Normalize(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	type pick struct {
		v    any
		rank int
	}
	aliased := make(map[string]pick)
	for _, k := range slices.Sorted(maps.Keys(params)) {
		v := params[k]
		key := strings.ToLower(strings.TrimSpace(k))
		if a, ok := aliasIndex[key]; ok {
			if cur, seen := aliased[a.canon]; !seen || a.rank < cur.rank {
				aliased[a.canon] = pick{v: v, rank: a.rank}
			}
			continue
		}
		if _, seen := out[key]; !seen {
			out[key] = v
		}
	}
	for canon, p := range aliased {
		if _, ok := out[canon]; !ok {
			out[canon] = p.v
		}
	}
	if s, ok := out["side"].(string); ok {
		out["side"] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}

// actionAliases maps loose action names to the canonical vocabulary.
var actionAliases = map[string]string{
	"HOLD":          "WAIT",
	"NONE":          "WAIT",
	"NO_ACTION":     "WAIT",
	"LIMIT_ORDER":   "PLACE_LIMIT_ORDER",
	"PLACE_ORDER":   "PLACE_LIMIT_ORDER",
	"OPEN_POSITION": "OPEN_MARKET",
	"MARKET_ORDER":  "OPEN_MARKET",
	"CLOSE":         "CLOSE_POSITION",
	"EXIT":          "CLOSE_POSITION",
	"MODIFY":        "MODIFY_SL_TP",
	"UPDATE_SL_TP":  "MODIFY_SL_TP",
	"CANCEL":        "CANCEL_ORDER",
	"CANCEL_ORDERS": "CANCEL_ORDER",
}

func normalizeAction(a string) string {
	a = strings.ToUpper(strings.TrimSpace(a))
	a = strings.ReplaceAll(a, " ", "_")
	a = strings.ReplaceAll(a, "-", "_")
	if canon, ok := actionAliases[a]; ok {
		return canon
	}
	return a
}
