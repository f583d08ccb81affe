package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmadb/deepresearch/agent"
	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/logging"
	"github.com/pharmadb/deepresearch/tool"
)

// DefaultMaxTurns bounds the analyst planning loop.
const DefaultMaxTurns = 7

// toolReadPDF gets the user question injected as its query parameter when the
// analyst omits one, enabling relevance filtering of large documents.
const toolReadPDF = "read_pdf"

// Options configures a Research flow.
type Options struct {
	// MaxTurns caps the number of analyst planning turns.
	MaxTurns int

	// Logger receives loop lifecycle logs.
	Logger logging.Logger
}

// Research drives the analyst / executor / writer loop for a single run. One
// instance is safe for concurrent runs since all mutable state lives in the
// RunContext and the per-run Report.
type Research struct {
	analyst  *agent.ModelAgent
	writer   *agent.ModelAgent
	registry *tool.Registry
	maxTurns int
	logger   logging.Logger
}

// NewResearch constructs the research flow over the given roles and tools.
func NewResearch(analyst, writer *agent.ModelAgent, registry *tool.Registry, optFns ...func(o *Options)) *Research {
	opts := Options{
		MaxTurns: DefaultMaxTurns,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Research{
		analyst:  analyst,
		writer:   writer,
		registry: registry,
		maxTurns: opts.MaxTurns,
		logger:   opts.Logger,
	}
}

// Run executes the research loop until the analyst concludes, the turn budget
// is exhausted, or generation fails. Failures are captured in the Report's
// Errors rather than returned, so callers always receive the full trace; the
// error return is reserved for context cancellation.
func (f *Research) Run(rc *core.RunContext) (*Report, error) {
	report := &Report{Sources: []string{}, Errors: []string{}, Warnings: []string{}}
	question := rc.UserContent.Text()

	f.logger.Info("flow.start", "run_id", rc.RunID, "question_len", len(question))

	contents := []core.Content{userContent(initialTask(question, rc.UserContent.FileRefs()))}
	var evidence []string

	for turn := 1; turn <= f.maxTurns; turn++ {
		if err := rc.Err(); err != nil {
			return report, err
		}

		report.TotalTurns = turn

		reply, err := f.analyst.GenerateWithHistory(rc, contents)
		if err != nil {
			msg := fmt.Sprintf("analyst generation failed: %v", err)
			report.Errors = append(report.Errors, msg)
			report.addStep(agent.AnalystName, core.ActionTypeError, msg)
			report.FinalAnswer = "Error: " + msg
			report.LLMCalls = rc.Budget.Used()
			return report, nil
		}

		contents = append(contents, assistantContent(reply))

		action, perr := ParseAction(reply)
		if perr != nil {
			warn := fmt.Sprintf("analyst reply was not a valid JSON action: %v", perr)
			f.logger.Warn("flow.parse_failed", "turn", turn, "error", perr.Error())
			report.Warnings = append(report.Warnings, warn)
			report.addStep(agent.AnalystName, core.ActionTypeError, reply)
			f.emitAnalyst(rc, reply, core.ActionTypeError, nil)
			contents = append(contents, userContent(correctiveObservation(reply)))
			continue
		}

		if action.IsFinalAnswer() {
			report.addStep(agent.AnalystName, core.ActionTypeFinalAnswer, reply)
			f.emitAnalyst(rc, reply, core.ActionTypeFinalAnswer, &action)
			f.synthesize(rc, report, question, action.Summary(), evidence)
			report.LLMCalls = rc.Budget.Used()
			return report, nil
		}

		step := report.addStep(agent.AnalystName, core.ActionTypeToolCall, reply)
		step.ToolUsed = action.ToolName
		step.ToolParameters = action.Parameters
		f.emitAnalyst(rc, reply, core.ActionTypeToolCall, &action)

		if _, ok := f.registry.Get(action.ToolName); !ok {
			warn := fmt.Sprintf("analyst requested unknown tool %q (available: %s)",
				action.ToolName, strings.Join(f.registry.Names(), ", "))
			report.Warnings = append(report.Warnings, warn)
			contents = append(contents, userContent(correctiveObservation(reply)))
			continue
		}

		resultText, execErr := f.executeTool(rc, question, action)
		if execErr != nil {
			report.Errors = append(report.Errors, execErr.Error())
			resultText = "Error: " + execErr.Error()
		} else {
			collectSources(report, action, resultText)
		}

		obs := report.addStep(agent.RunnerName, core.ActionTypeObservation, fmt.Sprintf("Executed %s", action.ToolName))
		obs.ToolUsed = action.ToolName
		obs.ToolParameters = action.Parameters
		obs.ToolResult = truncateResult(resultText)

		evidence = append(evidence, fmt.Sprintf("Observation from %s:\n%s", action.ToolName, resultText))
		contents = append(contents, userContent(observationMessage(action, resultText)))
	}

	warn := fmt.Sprintf("maximum analyst turns (%d) reached before a final answer", f.maxTurns)
	f.logger.Warn("flow.turns_exhausted", "run_id", rc.RunID, "turns", f.maxTurns)
	report.Warnings = append(report.Warnings, warn)

	summary := "The research loop ended before the analyst concluded. Answer as well as possible from the evidence below and state what remains uncertain."
	f.synthesize(rc, report, question, summary, evidence)
	report.LLMCalls = rc.Budget.Used()

	return report, nil
}

// synthesize asks the writer for the final Markdown answer and records the
// outcome on the report.
func (f *Research) synthesize(rc *core.RunContext, report *Report, question, summary string, evidence []string) {
	prompt := writerPrompt(question, summary, evidence)

	answer, err := f.writer.Generate(rc, []core.Content{userContent(prompt)})
	if err != nil {
		msg := fmt.Sprintf("writer generation failed: %v", err)
		report.Errors = append(report.Errors, msg)
		report.addStep(agent.WriterName, core.ActionTypeError, msg)
		report.FinalAnswer = "Error: " + msg
		return
	}

	report.FinalAnswer = answer
	report.addStep(agent.WriterName, core.ActionTypeFinalAnswer, answer)

	ev := core.NewMessageEvent(agent.WriterName, answer)
	ev.RunID = rc.RunID
	ev.SetMeta(core.MetaActionType, core.ActionTypeFinalAnswer)
	f.emit(rc, ev)
}

// executeTool dispatches the action through the registry under the datarunner
// role, emitting function call / response events around the invocation.
func (f *Research) executeTool(rc *core.RunContext, question string, action Action) (string, error) {
	params := action.Parameters
	if action.ToolName == toolReadPDF {
		if _, ok := params["query"]; !ok {
			params["query"] = question
		}
	}

	paramsJSON, _ := json.Marshal(params)

	// One id for the call / response pair: providers match the replayed
	// tool result to its originating call by it.
	callID := core.NewID()

	callEv := core.NewFunctionCallEvent(agent.AnalystName, callID, action.ToolName, string(paramsJSON))
	callEv.RunID = rc.RunID
	f.emit(rc, callEv)

	runnerCtx := rc.WithAgent(core.AgentInfo{Name: agent.RunnerName, Type: "executor"})
	toolCtx := core.NewToolContext(runnerCtx, callID)

	result, err := f.registry.ExecuteMap(toolCtx, action.ToolName, params)

	respEv := core.NewFunctionResponseEvent(agent.RunnerName, callID, action.ToolName, result, err)
	respEv.RunID = rc.RunID
	respEv.SetMeta(core.MetaActionType, core.ActionTypeObservation)
	respEv.SetMeta(core.MetaToolUsed, action.ToolName)
	toolCtx.InternalApplyActions(&respEv)
	f.emit(runnerCtx, respEv)

	if err != nil {
		return "", fmt.Errorf("tool %s: %w", action.ToolName, err)
	}

	return formatToolResult(result), nil
}

// emitAnalyst records the analyst's raw reply as a session event.
func (f *Research) emitAnalyst(rc *core.RunContext, reply, actionType string, action *Action) {
	ev := core.NewMessageEvent(agent.AnalystName, reply)
	ev.RunID = rc.RunID
	ev.SetMeta(core.MetaActionType, actionType)
	if action != nil && !action.IsFinalAnswer() {
		ev.SetMeta(core.MetaToolUsed, action.ToolName)
		if params, err := json.Marshal(action.Parameters); err == nil {
			ev.SetMeta(core.MetaToolParams, string(params))
		}
	}
	f.emit(rc, ev)
}

// emit sends an event and synchronizes with the runner's persistence cycle.
// Without an emit channel (direct flow tests) events are dropped.
func (f *Research) emit(rc *core.RunContext, ev core.Event) {
	if rc.Emit == nil {
		return
	}
	if err := rc.EmitEvent(ev); err != nil {
		f.logger.Warn("flow.emit_failed", "error", err.Error())
		return
	}
	if err := rc.WaitForResume(); err != nil {
		f.logger.Warn("flow.resume_failed", "error", err.Error())
	}
}

// -------------------- prompt / formatting helpers --------------------

func initialTask(question string, files []core.FileRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research Question: %s", question)

	if len(files) > 0 {
		ids := make([]string, 0, len(files))
		for _, f := range files {
			ids = append(ids, f.ObjectPath)
		}
		enc, _ := json.Marshal(ids)
		fmt.Fprintf(&b, "\nRelevant file ids: %s", enc)
	}

	b.WriteString("\nAnalyze the question and determine the first data processing step.")

	return b.String()
}

func correctiveObservation(reply string) string {
	return fmt.Sprintf("Your previous reply was: %q. Respond with exactly one valid JSON action "+
		`({"tool_name": ..., "parameters": {...}}) using one of the available tools, `+
		"or final_answer when you are ready to conclude.", reply)
}

func observationMessage(action Action, resultText string) string {
	params, _ := json.Marshal(action.Parameters)
	return fmt.Sprintf("The tool '%s' was executed with parameters %s. Result:\n%s\nWhat is the next step?",
		action.ToolName, params, resultText)
}

func writerPrompt(question, summary string, evidence []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize the following information into a final Markdown answer for the user's original question (%q).\n\n", question)
	fmt.Fprintf(&b, "Analyst summary:\n%s\n", summary)

	if len(evidence) > 0 {
		b.WriteString("\nGathered evidence:\n")
		b.WriteString(strings.Join(evidence, "\n\n"))
		b.WriteString("\n")
	}

	return b.String()
}

func formatToolResult(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		enc, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(enc)
	}
}

// collectSources harvests result URLs and queried file ids into the report.
func collectSources(report *Report, action Action, resultText string) {
	if fileID, ok := action.Parameters["file_id"].(string); ok {
		report.addSource(fileID)
	}

	for _, line := range strings.Split(resultText, "\n") {
		line = strings.TrimSpace(line)
		if url, ok := strings.CutPrefix(line, "URL: "); ok {
			report.addSource(strings.TrimSpace(url))
		}
	}
}

func userContent(text string) core.Content {
	return core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}
}

func assistantContent(text string) core.Content {
	return core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}}
}
