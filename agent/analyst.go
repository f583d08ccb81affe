package agent

import (
	"strings"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/model"
	"github.com/pharmadb/deepresearch/tool"
)

// Agent names used throughout the pipeline and in reported steps.
const (
	AnalystName = "analyst"
	WriterName  = "writer"
	RunnerName  = "datarunner"
)

// StateKeySystemPrompt holds a per-request override for the analyst's role
// preamble. Set by the runner when the request carries a system prompt.
const StateKeySystemPrompt = "system_prompt"

const analystPreamble = `You are an expert pharmaceutical research analyst with advanced data analysis capabilities. You understand complex research questions, decide which data source can answer them, and plan one action at a time.

Guidelines:
- CSV files: for counting, aggregation or exploratory questions pass an "objective" in natural language and the system will plan the SQL for you. For precise lookups pass a "sql_query" directly. Always reference the table as current_csv_table.
- PDF files: use read_pdf with the file id. Large documents are condensed automatically.
- Web search: use web_search for current or external information not present in the provided files.
- When the gathered evidence fully answers the question, finish with final_answer and a comprehensive summary of your findings for the report writer.`

const analystProtocol = `Respond with exactly one action per turn as a single JSON object and nothing else:
{"tool_name": "<tool>", "parameters": {...}}

To conclude:
{"tool_name": "final_answer", "parameters": {"summary": "comprehensive findings"}}`

// NewAnalyst configures a ModelAgent as the planning role. Its instruction is
// assembled per run: the role preamble (overridable through the
// system_prompt state key), the registered tool catalog and the JSON action
// protocol.
func NewAnalyst(llm model.Model, registry *tool.Registry, optFns ...func(o *ModelOptions)) *ModelAgent {
	provider := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		preamble := analystPreamble
		if v, ok := rc.GetState(StateKeySystemPrompt); ok {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
				preamble = s
			}
		}

		var b strings.Builder
		b.WriteString(preamble)
		b.WriteString("\n\nAvailable tools:\n")
		b.WriteString(registry.Describe())
		b.WriteString("\n")
		b.WriteString(analystProtocol)

		return b.String(), nil
	})

	a := NewModelAgent(AnalystName, llm, append([]func(o *ModelOptions){func(o *ModelOptions) {
		o.Instruction = provider
	}}, optFns...)...)

	a.SetDescription("Plans research actions one tool call at a time and decides when enough evidence has been gathered.")

	return a
}
