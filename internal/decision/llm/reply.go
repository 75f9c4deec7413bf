package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// ParseReply extracts the first JSON object from a model reply. Models wrap
// JSON in prose or code fences, and put params either under "params" or
// beside "action"; both shapes are accepted.
func ParseReply(content string) (domain.RawDecision, error) {
	obj, ok := extractObject(content)
	if !ok {
		return domain.RawDecision{}, ErrEmptyReply
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return domain.RawDecision{}, fmt.Errorf("llm: decode decision: %w", err)
	}

	var raw domain.RawDecision
	raw.Action, _ = m["action"].(string)
	raw.Reasoning, _ = m["reasoning"].(string)
	raw.Confidence, _ = m["confidence"].(float64)

	if p, ok := m["params"].(map[string]any); ok {
		raw.Params = p
		return raw, nil
	}
	raw.Params = make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "action", "confidence", "reasoning":
		default:
			raw.Params[k] = v
		}
	}
	return raw, nil
}

// extractObject returns the outermost {...} span of s, honoring strings.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
