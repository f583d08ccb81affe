package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pharmadb/deepresearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Message Building Tests --------------------

func TestBuildMessagesPairsReplayedToolCalls(t *testing.T) {
	call := core.NewFunctionCallEvent("analyst", "fc-123", "web_search", `{"query":"metformin"}`)
	result := core.NewFunctionResponseEvent("datarunner", "fc-123", "web_search", "Found 3 results", nil)

	contents := []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "What is metformin?"}}},
		*call.Content,
		*result.Content,
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "Summarize that."}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 4)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role, "tool results replay as the user turn after the assistant's tool calls")
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[3].Role)

	assistantJSON, err := json.Marshal(msgs[1])
	require.NoError(t, err)
	assert.Contains(t, string(assistantJSON), "tool_use")
	assert.Contains(t, string(assistantJSON), "fc-123")

	resultJSON, err := json.Marshal(msgs[2])
	require.NoError(t, err)
	assert.Contains(t, string(resultJSON), "tool_result")
	assert.Contains(t, string(resultJSON), "fc-123", "the result turn carries the originating call id")
}

func TestBuildMessagesSkipsSystemTurns(t *testing.T) {
	contents := []core.Content{
		{Role: "system", Parts: []core.Part{core.TextPart{Text: "You are a research analyst."}}},
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "Hello"}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)

	system := systemBlocks(contents)
	require.Len(t, system, 1)
	assert.Equal(t, "You are a research analyst.", system[0].Text)
}

// -------------------- Schema Conversion Tests --------------------

func TestRequiredListNormalization(t *testing.T) {
	assert.Equal(t, []string{"query"}, requiredList([]string{"query"}))
	assert.Equal(t, []string{"query", "limit"}, requiredList([]any{"query", "limit"}))
	assert.Nil(t, requiredList(nil))
	assert.Nil(t, requiredList(42))
}
