package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Event Tests --------------------

func TestEventConstructors(t *testing.T) {
	ev := NewUserMessageEvent("run-1", "what is approved?")
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "user", ev.Author)
	assert.Equal(t, "what is approved?", ev.Content.Text())

	fc := NewFunctionCallEvent("analyst", "fc-1", "query_csv", `{"file_id":"f.csv"}`)
	calls := fc.GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "fc-1", calls[0].ID)
	assert.Equal(t, "query_csv", calls[0].Name)

	fr := NewFunctionResponseEvent("datarunner", "fc-1", "query_csv", "42 rows", nil)
	resps := fr.GetFunctionResponses()
	require.Len(t, resps, 1)
	assert.Equal(t, "42 rows", resps[0].Response)
	assert.Empty(t, resps[0].Error)

	frErr := NewFunctionResponseEvent("datarunner", "fc-2", "query_csv", nil, assert.AnError)
	assert.NotEmpty(t, frErr.GetFunctionResponses()[0].Error)
}

func TestEventMetadata(t *testing.T) {
	ev := NewMessageEvent("analyst", "planning")
	assert.Equal(t, "", ev.Meta(MetaActionType))

	ev.SetMeta(MetaActionType, ActionTypeToolCall)
	ev.SetMeta(MetaToolUsed, "web_search")
	assert.Equal(t, ActionTypeToolCall, ev.Meta(MetaActionType))
	assert.Equal(t, "web_search", ev.Meta(MetaToolUsed))
}

// -------------------- Session Tests --------------------

func TestSessionStateAndEvents(t *testing.T) {
	sess := NewSession("sess-1")

	sess.SetState("system_prompt", "be terse")
	v, ok := sess.GetState("system_prompt")
	require.True(t, ok)
	assert.Equal(t, "be terse", v)

	sess.ApplyStateDelta(map[string]any{"a": 1, "b": 2})
	_, ok = sess.GetState("b")
	assert.True(t, ok)

	sess.AddEvent(NewUserMessageEvent("run-1", "q"))
	assert.Len(t, sess.GetEvents(), 1)
}

func TestSessionConversationHistoryFilters(t *testing.T) {
	sess := NewSession("sess-1")
	sess.AddEvent(NewUserMessageEvent("run-1", "question"))
	sess.AddEvent(NewMessageEvent("analyst", "thinking"))

	control := NewEvent("run-1", "system")
	sess.AddEvent(control) // no content

	partial := NewMessageEvent("analyst", "strea")
	yes := true
	partial.Partial = &yes
	sess.AddEvent(partial)

	history := sess.GetConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "question", history[0].Content.Text())
	assert.Equal(t, "thinking", history[1].Content.Text())
}

func TestSessionHasConversation(t *testing.T) {
	sess := NewSession("sess-1")
	assert.False(t, sess.HasConversation())

	sess.AddEvent(NewEvent("run-1", "system")) // no content
	assert.False(t, sess.HasConversation(), "control events are not replayable history")

	sess.AddEvent(NewUserMessageEvent("run-1", "q"))
	assert.True(t, sess.HasConversation())
}

func TestSessionCloneIsolation(t *testing.T) {
	sess := NewSession("sess-1")
	sess.SetState("k", "v")
	clone := sess.Clone()

	clone.SetState("k", "changed")
	clone.AddEvent(NewMessageEvent("analyst", "extra"))

	v, _ := sess.GetState("k")
	assert.Equal(t, "v", v)
	assert.Empty(t, sess.GetEvents())
}

// -------------------- CallBudget Tests --------------------

func TestCallBudget(t *testing.T) {
	budget := NewCallBudget(2)
	require.NoError(t, budget.Spend())
	require.NoError(t, budget.Spend())
	require.Error(t, budget.Spend())
	assert.Equal(t, 3, budget.Used(), "rejected attempts still count as demand")
	assert.Equal(t, -1, budget.Remaining())
}

func TestCallBudgetUnlimited(t *testing.T) {
	budget := NewCallBudget(0)
	for i := 0; i < 50; i++ {
		require.NoError(t, budget.Spend())
	}
	assert.Equal(t, -1, budget.Remaining())
}

// -------------------- Content JSON Tests --------------------

func TestContentJSONRoundTrip(t *testing.T) {
	mime := "text/csv"
	content := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "hello"},
			DataPart{Data: map[string]any{"k": "v"}},
			FilePart{File: FileRef{ObjectPath: "uploads/data.csv", MimeType: &mime}},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "fc-1", Name: "query_csv", Arguments: `{"a":1}`}},
			FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "fc-1", Name: "query_csv", Response: "ok"}},
		},
	}

	data, err := json.Marshal(content)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "assistant", decoded.Role)
	require.Len(t, decoded.Parts, 5)
	assert.Equal(t, "hello", decoded.Text())

	refs := decoded.FileRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "uploads/data.csv", refs[0].ObjectPath)
	require.NotNil(t, refs[0].MimeType)
	assert.Equal(t, "text/csv", *refs[0].MimeType)

	fc, ok := decoded.Parts[3].(FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "query_csv", fc.FunctionCall.Name)

	fr, ok := decoded.Parts[4].(FunctionResponsePart)
	require.True(t, ok)
	assert.Equal(t, "ok", fr.FunctionResponse.Response)
}

func TestContentUnmarshalUnknownPartType(t *testing.T) {
	var decoded Content
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"bogus"}]}`), &decoded)
	require.Error(t, err)
}

// -------------------- RunContext Tests --------------------

func newRunContext(emit chan<- Event, resume <-chan struct{}) *RunContext {
	return NewRunContext(
		context.Background(),
		"sess-1", "run-1",
		AgentInfo{Name: "analyst", Type: "llm"},
		Content{},
		5, emit, resume,
		NewSession("sess-1"),
		nil, nil, nil, nil,
	)
}

func TestRunContextStagedStateWins(t *testing.T) {
	rc := newRunContext(nil, nil)
	rc.Session.SetState("k", "persisted")

	v, ok := rc.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "persisted", v)

	rc.SetState("k", "staged")
	v, _ = rc.GetState("k")
	assert.Equal(t, "staged", v)
}

func TestRunContextCloneIsolatesDelta(t *testing.T) {
	rc := newRunContext(nil, nil)
	rc.SetState("k", "v")

	clone := rc.WithAgent(AgentInfo{Name: "datarunner", Type: "executor"})
	clone.SetState("k2", "v2")

	assert.Equal(t, "datarunner", clone.GetAgentName())
	assert.Equal(t, "analyst", rc.GetAgentName())
	_, ok := rc.StateDelta["k2"]
	assert.False(t, ok)
	_, ok = clone.StateDelta["k"]
	assert.True(t, ok, "clone starts from the parent delta")
	assert.Same(t, rc.Budget, clone.Budget, "model call budget is shared across roles")
}

func TestRunContextEmitMergesDelta(t *testing.T) {
	emit := make(chan Event, 1)
	rc := newRunContext(emit, nil)
	rc.SetState("answer", "42")

	require.NoError(t, rc.EmitEvent(NewMessageEvent("analyst", "done")))

	ev := <-emit
	assert.Equal(t, "42", ev.Actions.StateDelta["answer"])
	assert.Empty(t, rc.StateDelta, "delta clears after emission")
}

func TestRunContextEmitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := NewRunContext(ctx, "sess-1", "run-1", AgentInfo{}, Content{},
		0, make(chan Event), nil, NewSession("sess-1"), nil, nil, nil, nil)

	require.Error(t, rc.EmitEvent(NewMessageEvent("analyst", "late")))
}

// -------------------- ToolContext Tests --------------------

func TestToolContextAccumulatesActions(t *testing.T) {
	rc := newRunContext(nil, nil)
	tc := NewToolContext(rc, "fc-1")

	tc.SetState("rows_loaded", 4)

	v, ok := tc.GetState("rows_loaded")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	ev := NewFunctionResponseEvent("datarunner", "fc-1", "query_csv", "ok", nil)
	tc.InternalApplyActions(&ev)
	assert.Equal(t, 4, ev.Actions.StateDelta["rows_loaded"])
}

func TestToolContextValidate(t *testing.T) {
	rc := newRunContext(nil, nil)
	require.NoError(t, NewToolContext(rc, "fc-1").Validate())
	require.Error(t, NewToolContext(rc, "").Validate())
}
