// Package runner binds the research flow to the persistence services: it
// owns session lifecycle, seeds client-supplied conversation history, runs
// the flow with the emit / resume persistence choreography and ingests
// completed runs into memory for follow-up questions.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmadb/deepresearch/agent"
	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/flow"
	"github.com/pharmadb/deepresearch/logging"
)

// recallLimit caps how many prior findings are replayed into a run.
const recallLimit = 3

// HistoryMessage is a prior conversation entry supplied by the client.
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Request describes one research run.
type Request struct {
	// SessionID groups runs into a conversation. Empty means a fresh session.
	SessionID string

	// Question is the natural language research question.
	Question string

	// FileIDs are storage object paths of CSV / PDF files to consult.
	FileIDs []string

	// History seeds the session with prior conversation turns. Only applied
	// when the session has no conversational events yet.
	History []HistoryMessage

	// SystemPrompt overrides the analyst's role preamble for this session.
	SystemPrompt string
}

// Options configures a Runner.
type Options struct {
	// MaxModelCalls bounds LLM calls per run.
	MaxModelCalls int

	// FileStore serves research file downloads to tools.
	FileStore core.FileStore

	// MemoryStore retains findings across runs of a session.
	MemoryStore core.MemoryStore

	// Logger receives run lifecycle logs.
	Logger logging.Logger
}

// Runner executes research requests against a flow, persisting every emitted
// event through the session store before the flow proceeds.
type Runner struct {
	research      *flow.Research
	sessions      core.SessionStore
	files         core.FileStore
	memory        core.MemoryStore
	maxModelCalls int
	logger        logging.Logger
}

// New constructs a Runner over the given flow and session store.
func New(research *flow.Research, sessions core.SessionStore, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxModelCalls: 15,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		research:      research,
		sessions:      sessions,
		files:         opts.FileStore,
		memory:        opts.MemoryStore,
		maxModelCalls: opts.MaxModelCalls,
		logger:        opts.Logger,
	}
}

// Run executes one research request and returns the flow's report. The error
// return covers infrastructure failures (session store, cancellation);
// research level problems are reported inside the Report.
func (r *Runner) Run(ctx context.Context, req Request) (*flow.Report, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}
	runID := core.NewID()

	if prompt := strings.TrimSpace(req.SystemPrompt); prompt != "" {
		delta := map[string]any{agent.StateKeySystemPrompt: prompt}
		if err := r.sessions.ApplyDelta(sessionID, delta); err != nil {
			return nil, fmt.Errorf("apply system prompt: %w", err)
		}
	}

	if err := r.seedHistory(sessionID, req.History); err != nil {
		return nil, err
	}

	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}

	r.recallFindings(sess, req.Question)

	userContent := buildUserContent(req)
	if err := r.sessions.AppendEvent(sessionID, core.NewUserContentEvent(runID, &userContent)); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	emit := make(chan core.Event)
	resume := make(chan struct{})

	rc := core.NewRunContext(
		ctx,
		sessionID, runID,
		core.AgentInfo{Name: agent.AnalystName, Type: "analyst"},
		userContent,
		r.maxModelCalls,
		emit, resume,
		sess,
		r.sessions, r.files, r.memory,
		r.logger,
	)

	done := make(chan struct{})
	go r.persistEvents(ctx, sessionID, emit, resume, done)

	r.logger.Info("runner.start", "session_id", sessionID, "run_id", runID, "files", len(req.FileIDs))

	report, runErr := r.research.Run(rc)

	close(emit)
	<-done

	if runErr != nil {
		return report, runErr
	}

	r.ingestRun(sessionID, runID, req.Question, report)

	r.logger.Info("runner.done", "session_id", sessionID, "run_id", runID,
		"turns", report.TotalTurns, "llm_calls", report.LLMCalls, "success", report.Success())

	return report, nil
}

// persistEvents appends every emitted event (plus its state delta) to the
// session store, then signals the flow to resume. The flow blocks on the
// resume signal, so an event is durable before the next model call sees it.
func (r *Runner) persistEvents(ctx context.Context, sessionID string, emit <-chan core.Event, resume chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-emit:
			if !ok {
				return
			}

			if err := r.sessions.AppendEvent(sessionID, ev); err != nil {
				r.logger.Error("runner.persist_event", "session_id", sessionID, "error", err.Error())
			}

			if len(ev.Actions.StateDelta) > 0 {
				if err := r.sessions.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
					r.logger.Error("runner.persist_state", "session_id", sessionID, "error", err.Error())
				}
			}

			select {
			case resume <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// seedHistory replays client-supplied conversation turns into a session that
// has no conversational events yet. Re-sending history on follow-up requests
// of the same session is a no-op.
func (r *Runner) seedHistory(sessionID string, history []HistoryMessage) error {
	if len(history) == 0 {
		return nil
	}

	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("load session %q: %w", sessionID, err)
	}

	if sess.HasConversation() {
		return nil
	}

	for _, msg := range history {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}

		ev := core.NewEvent("", msg.Role)
		ev.Content = &core.Content{Role: msg.Role, Parts: []core.Part{core.TextPart{Text: msg.Content}}}

		if err := r.sessions.AppendEvent(sessionID, ev); err != nil {
			return fmt.Errorf("seed history: %w", err)
		}
	}

	return nil
}

// recallFindings injects prior research findings into the working session
// snapshot so the analyst sees them as conversational context. The snapshot
// is not persisted, so recalled text is never duplicated in the store.
func (r *Runner) recallFindings(sess *core.Session, question string) {
	if r.memory == nil {
		return
	}

	results, err := r.memory.Search(sess.ID, question, recallLimit)
	if err != nil {
		r.logger.Warn("runner.recall", "session_id", sess.ID, "error", err.Error())
		return
	}

	if len(results) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("Relevant findings from earlier research in this session:\n")
	for _, res := range results {
		fmt.Fprintf(&b, "- %s\n", res.Content)
	}

	sess.AddEvent(core.NewMessageEvent("memory", b.String()))
}

// ingestRun stores the question / answer pair so follow-up questions in the
// same session can recall it.
func (r *Runner) ingestRun(sessionID, runID, question string, report *flow.Report) {
	if r.memory == nil || !report.Success() {
		return
	}

	content := fmt.Sprintf("Question: %s\nAnswer: %s", question, report.FinalAnswer)
	md := map[string]any{"run_id": runID, "turns": report.TotalTurns}

	if err := r.memory.Store(sessionID, content, md); err != nil {
		r.logger.Warn("runner.ingest", "session_id", sessionID, "error", err.Error())
	}
}

func buildUserContent(req Request) core.Content {
	parts := []core.Part{core.TextPart{Text: req.Question}}
	for _, id := range req.FileIDs {
		parts = append(parts, core.FilePart{File: core.FileRef{ObjectPath: id}})
	}
	return core.Content{Role: "user", Parts: parts}
}
