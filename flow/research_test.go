package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadb/deepresearch/agent"
	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/model"
	"github.com/pharmadb/deepresearch/tool"
)

// -------------------- ParseAction Tests --------------------

func TestParseActionPlainJSON(t *testing.T) {
	action, err := ParseAction(`{"tool_name": "web_search", "parameters": {"query": "metformin"}}`)
	require.NoError(t, err)
	assert.Equal(t, "web_search", action.ToolName)
	assert.Equal(t, "metformin", action.Parameters["query"])
}

func TestParseActionFencedJSON(t *testing.T) {
	raw := "```json\n{\"tool_name\": \"read_pdf\", \"parameters\": {\"file_id\": \"doc.pdf\"}}\n```"
	action, err := ParseAction(raw)
	require.NoError(t, err)
	assert.Equal(t, "read_pdf", action.ToolName)
	assert.Equal(t, "doc.pdf", action.Parameters["file_id"])
}

func TestParseActionEmbeddedInProse(t *testing.T) {
	raw := `I will search the web first. {"tool_name": "web_search", "parameters": {"query": "drug {trial}"}} Let me know.`
	action, err := ParseAction(raw)
	require.NoError(t, err)
	assert.Equal(t, "web_search", action.ToolName)
	assert.Equal(t, "drug {trial}", action.Parameters["query"])
}

func TestParseActionMissingToolName(t *testing.T) {
	_, err := ParseAction(`{"parameters": {"query": "x"}}`)
	assert.Error(t, err)
}

func TestParseActionNotJSON(t *testing.T) {
	_, err := ParseAction("Let me think about this question.")
	assert.Error(t, err)
}

func TestParseActionNilParameters(t *testing.T) {
	action, err := ParseAction(`{"tool_name": "final_answer"}`)
	require.NoError(t, err)
	assert.NotNil(t, action.Parameters)
	assert.True(t, action.IsFinalAnswer())
}

func TestActionSummaryFallback(t *testing.T) {
	action := Action{ToolName: ToolFinalAnswer, Parameters: map[string]interface{}{}}
	assert.Contains(t, action.Summary(), "No summary")

	action.Parameters["summary"] = "findings"
	assert.Equal(t, "findings", action.Summary())
}

// -------------------- Research Flow Tests --------------------

func newFlowRunContext(question string, fileIDs ...string) *core.RunContext {
	parts := []core.Part{core.TextPart{Text: question}}
	for _, id := range fileIDs {
		parts = append(parts, core.FilePart{File: core.FileRef{ObjectPath: id}})
	}

	return core.NewRunContext(
		context.Background(),
		"sess-1", "run-1",
		core.AgentInfo{Name: agent.AnalystName, Type: "analyst"},
		core.Content{Role: "user", Parts: parts},
		15,
		nil, nil,
		core.NewSession("sess-1"),
		nil, nil, nil, nil,
	)
}

func newSearchRegistry() *tool.Registry {
	search := tool.NewFunctionTool("web_search", "Search the public web.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search terms"},
			},
			"required": []string{"query"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			return "Result 1:\nTitle: Trial Registry\nURL: https://example.org/trials\nContent Snippet: ...", nil
		})
	return tool.NewRegistry(search)
}

func newResearchFlow(registry *tool.Registry, analystReplies []string, writerReply string) (*Research, *model.MockModel, *model.MockModel) {
	analystLLM := model.NewMockModel("analyst-mock", "test")
	analystLLM.AddScripted(analystReplies...)

	writerLLM := model.NewMockModel("writer-mock", "test")
	writerLLM.AddScripted(writerReply)

	analyst := agent.NewAnalyst(analystLLM, registry)
	writer := agent.NewWriter(writerLLM)

	return NewResearch(analyst, writer, registry), analystLLM, writerLLM
}

func TestResearchHappyPath(t *testing.T) {
	registry := newSearchRegistry()
	f, _, _ := newResearchFlow(registry, []string{
		`{"tool_name": "web_search", "parameters": {"query": "metformin approvals"}}`,
		`{"tool_name": "final_answer", "parameters": {"summary": "metformin is approved"}}`,
	}, "## Answer\n\nMetformin is approved.")

	rc := newFlowRunContext("Is metformin approved?")
	report, err := f.Run(rc)
	require.NoError(t, err)

	assert.True(t, report.Success())
	assert.Equal(t, "## Answer\n\nMetformin is approved.", report.FinalAnswer)
	assert.Equal(t, 2, report.TotalTurns)
	assert.Equal(t, 3, report.LLMCalls)
	assert.Equal(t, []string{"https://example.org/trials"}, report.Sources)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)

	require.Len(t, report.Steps, 4)
	assert.Equal(t, agent.AnalystName, report.Steps[0].AgentName)
	assert.Equal(t, core.ActionTypeToolCall, report.Steps[0].ActionType)
	assert.Equal(t, "web_search", report.Steps[0].ToolUsed)
	assert.Equal(t, agent.RunnerName, report.Steps[1].AgentName)
	assert.Equal(t, core.ActionTypeObservation, report.Steps[1].ActionType)
	assert.Contains(t, report.Steps[1].ToolResult, "https://example.org/trials")
	assert.Equal(t, core.ActionTypeFinalAnswer, report.Steps[2].ActionType)
	assert.Equal(t, agent.WriterName, report.Steps[3].AgentName)

	for i, step := range report.Steps {
		assert.Equal(t, i+1, step.StepNumber)
	}
}

func TestResearchRecoversFencedAction(t *testing.T) {
	registry := newSearchRegistry()
	f, _, _ := newResearchFlow(registry, []string{
		"```json\n{\"tool_name\": \"final_answer\", \"parameters\": {\"summary\": \"done\"}}\n```",
	}, "answer")

	report, err := f.Run(newFlowRunContext("question"))
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.Equal(t, 1, report.TotalTurns)
}

func TestResearchInvalidJSONBurnsTurn(t *testing.T) {
	registry := newSearchRegistry()
	f, _, _ := newResearchFlow(registry, []string{
		"Let me reason about this first.",
		`{"tool_name": "final_answer", "parameters": {"summary": "done"}}`,
	}, "answer")

	report, err := f.Run(newFlowRunContext("question"))
	require.NoError(t, err)

	assert.True(t, report.Success())
	assert.Equal(t, 2, report.TotalTurns)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "not a valid JSON action")
	assert.Equal(t, core.ActionTypeError, report.Steps[0].ActionType)
}

func TestResearchUnknownToolWarns(t *testing.T) {
	registry := newSearchRegistry()
	f, _, _ := newResearchFlow(registry, []string{
		`{"tool_name": "query_graphql", "parameters": {}}`,
		`{"tool_name": "final_answer", "parameters": {"summary": "done"}}`,
	}, "answer")

	report, err := f.Run(newFlowRunContext("question"))
	require.NoError(t, err)

	assert.True(t, report.Success())
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "query_graphql")
}

func TestResearchToolErrorRecorded(t *testing.T) {
	failing := tool.NewFunctionTool("web_search", "Search.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			return nil, fmt.Errorf("upstream unavailable")
		})
	registry := tool.NewRegistry(failing)

	f, _, _ := newResearchFlow(registry, []string{
		`{"tool_name": "web_search", "parameters": {}}`,
		`{"tool_name": "final_answer", "parameters": {"summary": "done"}}`,
	}, "answer")

	report, err := f.Run(newFlowRunContext("question"))
	require.NoError(t, err)

	assert.False(t, report.Success())
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "upstream unavailable")
	assert.Contains(t, report.Steps[1].ToolResult, "Error:")
}

func TestResearchTurnsExhaustedBestEffort(t *testing.T) {
	registry := newSearchRegistry()

	analystLLM := model.NewMockModel("analyst-mock", "test")
	analystLLM.AddScripted(
		`{"tool_name": "web_search", "parameters": {"query": "a"}}`,
		`{"tool_name": "web_search", "parameters": {"query": "b"}}`,
	)
	writerLLM := model.NewMockModel("writer-mock", "test")
	writerLLM.AddScripted("best effort answer")

	f := NewResearch(agent.NewAnalyst(analystLLM, registry), agent.NewWriter(writerLLM), registry,
		func(o *Options) { o.MaxTurns = 2 })

	report, err := f.Run(newFlowRunContext("question"))
	require.NoError(t, err)

	assert.Equal(t, "best effort answer", report.FinalAnswer)
	assert.Equal(t, 2, report.TotalTurns)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[len(report.Warnings)-1], "maximum analyst turns")
	assert.True(t, report.Success(), "turn exhaustion is a warning, not an error")
}

func TestResearchFileIDsBecomeSources(t *testing.T) {
	queryTool := tool.NewFunctionTool("query_csv", "Query a CSV file.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_id":   map[string]any{"type": "string", "description": "File id"},
				"sql_query": map[string]any{"type": "string", "description": "SQL"},
			},
			"required": []string{"file_id"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			return "count\n42", nil
		})
	registry := tool.NewRegistry(queryTool)

	f, _, _ := newResearchFlow(registry, []string{
		`{"tool_name": "query_csv", "parameters": {"file_id": "drugs.csv", "sql_query": "SELECT COUNT(*) FROM current_csv_table"}}`,
		`{"tool_name": "final_answer", "parameters": {"summary": "42 rows"}}`,
	}, "answer")

	report, err := f.Run(newFlowRunContext("How many rows?", "drugs.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"drugs.csv"}, report.Sources)
}

func TestResearchInjectsQueryForPDF(t *testing.T) {
	var gotQuery string
	pdfTool := tool.NewFunctionTool("read_pdf", "Read a PDF file.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_id": map[string]any{"type": "string", "description": "File id"},
				"query":   map[string]any{"type": "string", "description": "Focus query"},
			},
			"required": []string{"file_id"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			gotQuery, _ = args["query"].(string)
			return "extracted text", nil
		})
	registry := tool.NewRegistry(pdfTool)

	f, _, _ := newResearchFlow(registry, []string{
		`{"tool_name": "read_pdf", "parameters": {"file_id": "paper.pdf"}}`,
		`{"tool_name": "final_answer", "parameters": {"summary": "done"}}`,
	}, "answer")

	_, err := f.Run(newFlowRunContext("What are the key findings?", "paper.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "What are the key findings?", gotQuery)
}
