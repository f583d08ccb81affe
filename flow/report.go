package flow

import (
	"time"
)

// maxToolResultChars caps the tool result excerpt recorded on a step.
const maxToolResultChars = 500

// Step records one entry of the agent reasoning timeline surfaced to API
// clients. ToolUsed / ToolParameters / ToolResult are only set for tool
// related steps.
type Step struct {
	StepNumber     int                    `json:"step_number"`
	AgentName      string                 `json:"agent_name"`
	ActionType     string                 `json:"action_type"`
	Content        string                 `json:"content"`
	Timestamp      time.Time              `json:"timestamp"`
	ToolUsed       string                 `json:"tool_used,omitempty"`
	ToolParameters map[string]interface{} `json:"tool_parameters,omitempty"`
	ToolResult     string                 `json:"tool_result,omitempty"`
}

// Report is the outcome of a research run: the answer plus the full
// reasoning trace and accounting surfaced in the API response.
type Report struct {
	FinalAnswer string   `json:"final_answer"`
	Steps       []Step   `json:"agent_steps"`
	Sources     []string `json:"sources_used"`
	TotalTurns  int      `json:"total_agent_turns"`
	LLMCalls    int      `json:"llm_calls_made"`
	Errors      []string `json:"errors_encountered"`
	Warnings    []string `json:"warnings"`
}

// Success reports whether the run completed without errors and produced a
// usable answer.
func (r *Report) Success() bool {
	return len(r.Errors) == 0 && r.FinalAnswer != "" && !isErrorAnswer(r.FinalAnswer)
}

func isErrorAnswer(answer string) bool {
	return len(answer) >= 6 && answer[:6] == "Error:"
}

// addStep appends a numbered step with the current timestamp.
func (r *Report) addStep(agentName, actionType, content string) *Step {
	r.Steps = append(r.Steps, Step{
		StepNumber: len(r.Steps) + 1,
		AgentName:  agentName,
		ActionType: actionType,
		Content:    content,
		Timestamp:  time.Now().UTC(),
	})
	return &r.Steps[len(r.Steps)-1]
}

// addSource records a source, deduplicating while preserving first-seen order.
func (r *Report) addSource(src string) {
	if src == "" {
		return
	}
	for _, existing := range r.Sources {
		if existing == src {
			return
		}
	}
	r.Sources = append(r.Sources, src)
}

// truncateResult caps a tool result excerpt for step records, marking the cut.
func truncateResult(s string) string {
	runes := []rune(s)
	if len(runes) <= maxToolResultChars {
		return s
	}
	return string(runes[:maxToolResultChars]) + "..."
}
