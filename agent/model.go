package agent

import (
	"fmt"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/internal/util"
	"github.com/pharmadb/deepresearch/logging"
	"github.com/pharmadb/deepresearch/model"
)

// ModelOptions configures a ModelAgent instance. Use functional options with
// NewModelAgent to override defaults.
type ModelOptions struct {
	// Instruction resolved before every generation.
	Instruction Instruction

	// MaxHistoryMessages bounds how many prior conversation events are
	// replayed into the model request. Zero keeps everything.
	MaxHistoryMessages int

	// OutputKey, when set, stages the generated text into session state.
	OutputKey string

	// Config overrides sampling parameters for this agent's calls.
	Config *model.GenerationConfig

	// Logger receives generation lifecycle logs.
	Logger logging.Logger
}

// ModelAgent is an LLM-backed agent. It resolves its instruction against the
// current run context, renders template markers from session state, replays
// bounded conversation history and generates a single completion per call.
// The Analyst and Writer roles are configured instances of this type.
type ModelAgent struct {
	Base
	llm                model.Model
	instruction        Instruction
	maxHistoryMessages int
	outputKey          string
	config             *model.GenerationConfig
}

// NewModelAgent creates an LLM-backed agent with sensible defaults.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelOptions)) *ModelAgent {
	opts := ModelOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a research assistant.", name)),
		MaxHistoryMessages: 20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		Base:               NewBase(name, opts.Logger),
		llm:                llm,
		instruction:        opts.Instruction,
		maxHistoryMessages: opts.MaxHistoryMessages,
		outputKey:          opts.OutputKey,
		config:             opts.Config,
	}
}

// Model returns the underlying language model.
func (a *ModelAgent) Model() model.Model { return a.llm }

// Instructions resolves and renders the agent's instruction for this run.
func (a *ModelAgent) Instructions(rc *core.RunContext) (string, error) {
	text, err := a.instruction.Resolve(rc)
	if err != nil {
		return "", fmt.Errorf("resolve instruction for %s: %w", a.Name(), err)
	}

	rendered, err := util.RenderTemplate(text, a.templateState(rc))
	if err != nil {
		return "", fmt.Errorf("render instruction for %s: %w", a.Name(), err)
	}

	return rendered, nil
}

// Generate produces a single completion for the provided contents, counted
// against the run's model call budget.
func (a *ModelAgent) Generate(rc *core.RunContext, contents []core.Content) (string, error) {
	if rc.Budget != nil {
		if err := rc.Budget.Spend(); err != nil {
			return "", err
		}
	}

	instructions, err := a.Instructions(rc)
	if err != nil {
		return "", err
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     contents,
		Config:       a.config,
	}

	a.Logger().Debug("agent.generate", "agent", a.Name(), "model", a.llm.Info().Name, "contents", len(contents))

	text, err := model.GenerateText(rc.Context, a.llm, req)
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", a.Name(), err)
	}

	return text, nil
}

// GenerateWithHistory builds contents from bounded session history plus the
// provided turn contents, then generates a completion.
func (a *ModelAgent) GenerateWithHistory(rc *core.RunContext, turn []core.Content) (string, error) {
	contents := a.historyContents(rc)
	contents = append(contents, turn...)
	return a.Generate(rc, contents)
}

// Run implements core.Agent: generate a reply to the run's user content,
// stage the optional output key, emit the message and wait for persistence.
func (a *ModelAgent) Run(rc *core.RunContext) error {
	text, err := a.GenerateWithHistory(rc, []core.Content{rc.UserContent})
	if err != nil {
		return err
	}

	if a.outputKey != "" {
		rc.SetState(a.outputKey, text)
	}

	ev := core.NewMessageEvent(a.Name(), text)
	ev.RunID = rc.RunID

	if err := rc.EmitEvent(ev); err != nil {
		return err
	}

	return rc.WaitForResume()
}

// historyContents converts the session's conversation history into model
// contents, keeping only the most recent maxHistoryMessages entries.
func (a *ModelAgent) historyContents(rc *core.RunContext) []core.Content {
	if rc.Session == nil {
		return nil
	}

	history := rc.Session.GetConversationHistory()
	if a.maxHistoryMessages > 0 && len(history) > a.maxHistoryMessages {
		history = history[len(history)-a.maxHistoryMessages:]
	}

	contents := make([]core.Content, 0, len(history))
	for _, ev := range history {
		if ev.Content != nil {
			contents = append(contents, *ev.Content)
		}
	}

	return contents
}

// templateState exposes a small data map to instruction templates.
func (a *ModelAgent) templateState(rc *core.RunContext) map[string]any {
	state := map[string]any{
		"agent_name": a.Name(),
		"session_id": rc.SessionID,
	}
	if rc.Session != nil {
		for k, v := range rc.Session.State {
			state[k] = v
		}
	}
	for k, v := range rc.StateDelta {
		state[k] = v
	}
	return state
}
