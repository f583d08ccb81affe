package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadb/deepresearch/core"
)

type stubProvider struct {
	results []Result
	err     error
	query   string
}

func (s *stubProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	s.query = query
	return s.results, s.err
}

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	rc := core.NewRunContext(
		context.Background(),
		"sess-1", "run-1",
		core.AgentInfo{Name: "datarunner", Type: "executor"},
		core.Content{},
		0, nil, nil,
		core.NewSession("sess-1"),
		nil, nil, nil, nil,
	)
	return core.NewToolContext(rc, "fc-1")
}

// -------------------- Tool Tests --------------------

func TestWebSearchFormatsResults(t *testing.T) {
	provider := &stubProvider{results: []Result{
		{Title: "EMA Approvals", URL: "https://ema.example/approvals", Content: "List of approvals"},
		{Title: "FDA Drug Database", URL: "https://fda.example/db", Content: "Searchable database"},
	}}

	ws := New(provider)
	out, err := ws.Call(newToolContext(t), map[string]any{"query": "metformin approvals"})
	require.NoError(t, err)

	text, ok := out.(string)
	require.True(t, ok)
	assert.Contains(t, text, "Result 1:")
	assert.Contains(t, text, "Title: EMA Approvals")
	assert.Contains(t, text, "URL: https://ema.example/approvals")
	assert.Contains(t, text, "Result 2:")
	assert.Contains(t, text, "\n---\n")
	assert.Equal(t, "metformin approvals", provider.query)
}

func TestWebSearchTruncatesSnippets(t *testing.T) {
	provider := &stubProvider{results: []Result{
		{Title: "Long", URL: "https://x.example", Content: strings.Repeat("a", 900)},
	}}

	ws := New(provider)
	out, err := ws.Call(newToolContext(t), map[string]any{"query": "q"})
	require.NoError(t, err)

	text := out.(string)
	assert.Contains(t, text, strings.Repeat("a", 500)+"...")
	assert.NotContains(t, text, strings.Repeat("a", 501))
}

func TestWebSearchNoResults(t *testing.T) {
	ws := New(&stubProvider{})
	out, err := ws.Call(newToolContext(t), map[string]any{"query": "obscure"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "No web search results found")
}

func TestWebSearchEmptyQueryRejected(t *testing.T) {
	ws := New(&stubProvider{})
	_, err := ws.Call(newToolContext(t), map[string]any{"query": "   "})
	assert.Error(t, err)
}

func TestWebSearchProviderErrorSurfaces(t *testing.T) {
	ws := New(&stubProvider{err: fmt.Errorf("rate limited")})
	_, err := ws.Call(newToolContext(t), map[string]any{"query": "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

// -------------------- Tavily Provider Tests --------------------

func TestTavilyProviderSearch(t *testing.T) {
	var gotBody tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "T1", "url": "https://one.example", "content": "c1"},
			},
		})
	}))
	defer srv.Close()

	provider := NewTavilyProvider("key-123", func(o *TavilyOptions) {
		o.BaseURL = srv.URL
	})

	results, err := provider.Search(context.Background(), "drug approvals mexico", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "T1", results[0].Title)

	assert.Equal(t, "key-123", gotBody.APIKey)
	assert.Equal(t, "drug approvals mexico", gotBody.Query)
	assert.Equal(t, "advanced", gotBody.SearchDepth)
	assert.Equal(t, 5, gotBody.MaxResults)
}

func TestTavilyProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := NewTavilyProvider("bad-key", func(o *TavilyOptions) { o.BaseURL = srv.URL })
	_, err := provider.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTavilyProviderMissingKey(t *testing.T) {
	provider := NewTavilyProvider("")
	_, err := provider.Search(context.Background(), "q", 5)
	assert.Error(t, err)
}
