package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolFinalAnswer is the pseudo-tool the analyst uses to end the loop.
const ToolFinalAnswer = "final_answer"

// Action is the single planning decision the analyst emits each turn.
type Action struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// IsFinalAnswer reports whether the action concludes the research loop.
func (a Action) IsFinalAnswer() bool { return a.ToolName == ToolFinalAnswer }

// Summary returns the final_answer summary parameter, with a fallback when
// the analyst omitted it.
func (a Action) Summary() string {
	if s, ok := a.Parameters["summary"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return "No summary provided by the analyst."
}

// ParseAction decodes the analyst's reply into an Action. Models frequently
// wrap JSON in markdown fences or surround it with prose, so parsing is
// attempted in order on: the raw reply, the fence-stripped reply, and the
// first balanced {...} block.
func ParseAction(raw string) (Action, error) {
	candidates := []string{strings.TrimSpace(raw)}

	if stripped := stripFences(candidates[0]); stripped != candidates[0] {
		candidates = append(candidates, stripped)
	}

	if block := firstJSONObject(raw); block != "" {
		candidates = append(candidates, block)
	}

	var lastErr error
	for _, c := range candidates {
		var action Action
		if err := json.Unmarshal([]byte(c), &action); err != nil {
			lastErr = err
			continue
		}
		if action.ToolName == "" {
			lastErr = fmt.Errorf("missing tool_name")
			continue
		}
		if action.Parameters == nil {
			action.Parameters = map[string]interface{}{}
		}
		return action, nil
	}

	return Action{}, fmt.Errorf("reply is not a JSON action: %w", lastErr)
}

// stripFences removes a surrounding markdown code fence, tolerating a
// language tag on the opening fence.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	body := strings.TrimPrefix(s, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}

	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}

	return strings.TrimSpace(body)
}

// firstJSONObject extracts the first balanced top-level {...} block,
// respecting string literals and escapes.
func firstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
