package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadb/deepresearch/config"
	"github.com/pharmadb/deepresearch/flow"
	"github.com/pharmadb/deepresearch/runner"
)

type stubRunner struct {
	report  *flow.Report
	err     error
	lastReq runner.Request
}

func (s *stubRunner) Run(_ context.Context, req runner.Request) (*flow.Report, error) {
	s.lastReq = req
	return s.report, s.err
}

func newTestServer(t *testing.T, stub *stubRunner, cfg *config.Config) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{OpenAIAPIKey: "sk-test"}
	}
	return New(stub, cfg, func(o *Options) { o.Version = "test" }).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

// -------------------- Research Endpoint Tests --------------------

func TestResearchEndpointSuccess(t *testing.T) {
	report := &flow.Report{
		FinalAnswer: "# Answer\nMetformin is approved.",
		Sources:     []string{"https://example.org/trials"},
		TotalTurns:  2,
		LLMCalls:    3,
	}
	stub := &stubRunner{report: report}
	h := newTestServer(t, stub, nil)

	rec, payload := doJSON(t, h, http.MethodPost, ResearchPath,
		`{"question": "Is metformin approved?", "file_ids": [], "system_prompt": "be terse"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, report.FinalAnswer, payload["final_answer"])
	assert.Equal(t, []any{"https://example.org/trials"}, payload["sources_used"])
	assert.Equal(t, float64(3), payload["llm_calls_made"])
	assert.NotNil(t, payload["agent_steps"])
	assert.NotNil(t, payload["errors_encountered"])
	assert.NotNil(t, payload["warnings"])

	assert.Equal(t, "Is metformin approved?", stub.lastReq.Question)
	assert.Equal(t, "be terse", stub.lastReq.SystemPrompt)
}

func TestResearchEndpointForwardsHistory(t *testing.T) {
	stub := &stubRunner{report: &flow.Report{FinalAnswer: "ok"}}
	h := newTestServer(t, stub, nil)

	doJSON(t, h, http.MethodPost, ResearchPath,
		`{"question": "follow up", "session_id": "sess-9",
		  "conversation_history": [{"role": "user", "content": "first question"}]}`)

	assert.Equal(t, "sess-9", stub.lastReq.SessionID)
	require.Len(t, stub.lastReq.History, 1)
	assert.Equal(t, "first question", stub.lastReq.History[0].Content)
}

func TestResearchEndpointRejectsEmptyQuestion(t *testing.T) {
	h := newTestServer(t, &stubRunner{}, nil)

	rec, payload := doJSON(t, h, http.MethodPost, ResearchPath, `{"question": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "question")
}

func TestResearchEndpointRejectsMalformedJSON(t *testing.T) {
	h := newTestServer(t, &stubRunner{}, nil)

	rec, _ := doJSON(t, h, http.MethodPost, ResearchPath, `{"question": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResearchEndpointUnavailableWithoutLLM(t *testing.T) {
	h := newTestServer(t, &stubRunner{}, &config.Config{})

	rec, payload := doJSON(t, h, http.MethodPost, ResearchPath, `{"question": "q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, payload["error"], "LLM")
}

func TestResearchEndpointUnavailableForFilesWithoutStorage(t *testing.T) {
	h := newTestServer(t, &stubRunner{}, &config.Config{OpenAIAPIKey: "sk-test"})

	rec, payload := doJSON(t, h, http.MethodPost, ResearchPath,
		`{"question": "q", "file_ids": ["uploads/data.csv"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, payload["error"], "storage")
}

func TestResearchEndpointInternalError(t *testing.T) {
	stub := &stubRunner{err: context.DeadlineExceeded}
	h := newTestServer(t, stub, nil)

	rec, payload := doJSON(t, h, http.MethodPost, ResearchPath, `{"question": "q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, payload["success"])
}

// -------------------- Service Route Tests --------------------

func TestBannerRoute(t *testing.T) {
	h := newTestServer(t, &stubRunner{}, nil)

	rec, payload := doJSON(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", payload["version"])
	assert.Contains(t, payload["endpoints"], "POST "+ResearchPath)
}

func TestHealthRoute(t *testing.T) {
	cfg := &config.Config{OpenAIAPIKey: "sk-test", TavilyAPIKey: "tv"}
	h := newTestServer(t, &stubRunner{}, cfg)

	rec, payload := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", payload["status"])

	services := payload["services"].(map[string]any)
	assert.Equal(t, "configured", services["llm"])
	assert.Equal(t, "configured", services["web_search"])
	assert.Equal(t, "missing", services["storage"])
	assert.Equal(t, "disabled", services["cache"])
}

func TestHealthRouteCacheStates(t *testing.T) {
	cfg := &config.Config{OpenAIAPIKey: "sk-test", SessionBackend: "redis"}

	cases := []struct {
		name string
		ping func(ctx context.Context) error
		want string
	}{
		{"reachable", func(ctx context.Context) error { return nil }, "connected"},
		{"unreachable", func(ctx context.Context) error { return context.DeadlineExceeded }, "error"},
		{"unprobed", nil, "error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(&stubRunner{}, cfg, func(o *Options) {
				o.CachePing = tc.ping
			}).Handler()

			rec, payload := doJSON(t, h, http.MethodGet, "/health", "")
			assert.Equal(t, http.StatusOK, rec.Code)

			services := payload["services"].(map[string]any)
			assert.Equal(t, tc.want, services["cache"], "cache state comes from the live ping")
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(t, &stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "researchd_")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodOptions, ResearchPath, nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
