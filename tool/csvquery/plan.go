package csvquery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/model"
)

// maxPlanSteps caps how many queries a single objective may expand into.
const maxPlanSteps = 4

// planStep is one SQL query produced by the planner for an objective.
type planStep struct {
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

const plannerInstructions = `You are a SQL analyst. You translate a research objective into SQLite queries
against a single table named ` + TableName + `. Every column is TEXT, so cast or
compare as text. Always quote column names with double quotes.

Respond with ONLY a JSON array of at most 4 steps, each an object:
[{"description": "<what this query finds>", "sql": "SELECT ..."}]
Use SELECT statements only. No prose, no code fences.`

// planQueries asks the model for a query plan covering the objective. The
// planner call draws from the run's shared model call budget.
func planQueries(toolCtx *core.ToolContext, m model.Model, schema *Schema, objective string) ([]planStep, error) {
	if err := toolCtx.SpendModelCall(); err != nil {
		return nil, fmt.Errorf("plan queries: %w", err)
	}

	prompt := fmt.Sprintf("Table: %s (%d rows)\n%s\nObjective: %s",
		TableName, schema.RowCount, schema.describe(), objective)

	text, err := model.GenerateText(toolCtx.Context(), m, model.Request{
		Instructions: plannerInstructions,
		Contents: []core.Content{{
			Role:  "user",
			Parts: []core.Part{core.TextPart{Text: prompt}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("plan queries: %w", err)
	}

	steps, err := parsePlan(text)
	if err != nil {
		return nil, err
	}
	if len(steps) > maxPlanSteps {
		steps = steps[:maxPlanSteps]
	}
	return steps, nil
}

// parsePlan extracts the JSON step array from a model reply, tolerating code
// fences and surrounding prose.
func parsePlan(text string) ([]planStep, error) {
	candidate := strings.TrimSpace(text)
	if fenced := stripFences(candidate); fenced != "" {
		candidate = fenced
	}
	if arr := firstJSONArray(candidate); arr != "" {
		candidate = arr
	}

	var steps []planStep
	if err := json.Unmarshal([]byte(candidate), &steps); err != nil {
		return nil, fmt.Errorf("parse query plan: %w", err)
	}

	var valid []planStep
	for _, step := range steps {
		if strings.TrimSpace(step.SQL) == "" {
			continue
		}
		valid = append(valid, step)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("query plan contains no executable steps")
	}
	return valid, nil
}

// stripFences removes a ```json ... ``` (or bare ```) wrapper if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// firstJSONArray returns the first balanced top-level JSON array in s,
// ignoring brackets inside string literals.
func firstJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
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
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
