package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadb/deepresearch/core"
)

func userContent(text string) []core.Content {
	return []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}}
}

// -------------------- GenerateText Tests --------------------

func TestGenerateTextDrainsFinalResponse(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("ping", "pong")

	out, err := GenerateText(context.Background(), m, Request{Contents: userContent("ping")})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, 1, m.Calls())
}

func TestGenerateTextIgnoresPartials(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("ping", "pong")

	// GenerateText forces Stream off; the final text must not be duplicated
	// by streamed fragments.
	out, err := GenerateText(context.Background(), m, Request{
		Contents: userContent("ping"),
		Stream:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestGenerateTextScriptedOrder(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddScripted("first", "second")

	out, _ := GenerateText(context.Background(), m, Request{Contents: userContent("x")})
	assert.Equal(t, "first", out)
	out, _ = GenerateText(context.Background(), m, Request{Contents: userContent("x")})
	assert.Equal(t, "second", out)
}

func TestGenerateTextEmptyContents(t *testing.T) {
	m := NewMockModel("mock", "test")
	_, err := GenerateText(context.Background(), m, Request{})
	require.Error(t, err)
}

// silentModel never responds, so cancellation is the only way out.
type silentModel struct{}

func (silentModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	return make(chan Response), make(chan error)
}

func (silentModel) Info() Info { return Info{Name: "silent", Provider: "test"} }

func TestGenerateTextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GenerateText(ctx, silentModel{}, Request{Contents: userContent("ping")})
	require.ErrorIs(t, err, context.Canceled)
}
