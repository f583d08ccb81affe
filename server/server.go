// Package server exposes the research service over HTTP: the research
// endpoint itself plus banner, health and Prometheus scrape routes.
package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pharmadb/deepresearch/config"
	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/flow"
	"github.com/pharmadb/deepresearch/logging"
	"github.com/pharmadb/deepresearch/metrics"
	"github.com/pharmadb/deepresearch/runner"
)

// ResearchPath is the research endpoint route.
const ResearchPath = "/api/v1/research"

// Researcher executes one research request. Satisfied by *runner.Runner.
type Researcher interface {
	Run(ctx context.Context, req runner.Request) (*flow.Report, error)
}

// Options configures the HTTP server.
type Options struct {
	// Version reported by the banner endpoint.
	Version string

	// Logger receives request logs.
	Logger logging.Logger

	// CachePing probes the session cache connection for the health
	// endpoint. Nil means no cache is in use.
	CachePing func(ctx context.Context) error
}

// Server routes HTTP requests to the research runner.
type Server struct {
	runner    Researcher
	cfg       *config.Config
	version   string
	logger    logging.Logger
	cachePing func(ctx context.Context) error
}

// New constructs a Server over the given runner and configuration.
func New(research Researcher, cfg *config.Config, optFns ...func(o *Options)) *Server {
	opts := Options{
		Version: "dev",
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{
		runner:    research,
		cfg:       cfg,
		version:   opts.Version,
		logger:    opts.Logger,
		cachePing: opts.CachePing,
	}
}

// Handler assembles the full route table with CORS applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleBanner).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc(ResearchPath, s.handleResearch).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

// researchRequest is the POST /api/v1/research body.
type researchRequest struct {
	SessionID           string                   `json:"session_id,omitempty"`
	Question            string                   `json:"question"`
	FileIDs             []string                 `json:"file_ids,omitempty"`
	ConversationHistory []runner.HistoryMessage  `json:"conversation_history,omitempty"`
	SystemPrompt        string                   `json:"system_prompt,omitempty"`
}

// researchResponse is the successful research reply.
type researchResponse struct {
	Success               bool        `json:"success"`
	FinalAnswer           string      `json:"final_answer"`
	AgentSteps            []flow.Step `json:"agent_steps"`
	SourcesUsed           []string    `json:"sources_used"`
	ProcessingTimeSeconds float64     `json:"processing_time_seconds"`
	TotalAgentTurns       int         `json:"total_agent_turns"`
	LLMCallsMade          int         `json:"llm_calls_made"`
	ErrorsEncountered     []string    `json:"errors_encountered"`
	Warnings              []string    `json:"warnings"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, ResearchPath, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, ResearchPath, http.StatusBadRequest, "question must not be empty")
		return
	}

	if !s.cfg.LLMConfigured() {
		s.writeError(w, ResearchPath, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}
	if len(req.FileIDs) > 0 && !s.cfg.StorageConfigured() {
		s.writeError(w, ResearchPath, http.StatusServiceUnavailable, "file storage not configured; cannot process file_ids")
		return
	}

	report, err := s.runner.Run(r.Context(), runner.Request{
		SessionID:    req.SessionID,
		Question:     req.Question,
		FileIDs:      req.FileIDs,
		History:      req.ConversationHistory,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		s.logger.Error("research.run.failed", "error", err.Error())
		s.writeError(w, ResearchPath, http.StatusInternalServerError, "research run failed: "+err.Error())
		return
	}

	elapsed := time.Since(start).Seconds()
	metrics.ResearchDuration.Observe(elapsed)
	metrics.LLMCallsTotal.Add(float64(report.LLMCalls))
	recordToolMetrics(report)

	s.writeJSON(w, ResearchPath, http.StatusOK, researchResponse{
		Success:               report.Success(),
		FinalAnswer:           report.FinalAnswer,
		AgentSteps:            orEmptySteps(report.Steps),
		SourcesUsed:           orEmpty(report.Sources),
		ProcessingTimeSeconds: math.Round(elapsed*1000) / 1000,
		TotalAgentTurns:       report.TotalTurns,
		LLMCallsMade:          report.LLMCalls,
		ErrorsEncountered:     orEmpty(report.Errors),
		Warnings:              orEmpty(report.Warnings),
	})
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, "/", http.StatusOK, map[string]any{
		"service": "pharma deep research",
		"version": s.version,
		"endpoints": []string{
			"POST " + ResearchPath,
			"GET /health",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := s.cfg.Validate()

	// Cache state comes from a live ping, not from configuration.
	if s.cachePing != nil {
		if err := s.cachePing(r.Context()); err != nil {
			s.logger.Error("health.cache.ping_failed", "error", err.Error())
			services.Cache = "error"
		} else {
			services.Cache = "connected"
		}
	}

	s.writeJSON(w, "/health", http.StatusOK, map[string]any{
		"status":   "healthy",
		"services": services,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, path string, code int, payload any) {
	metrics.RequestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("http.write.failed", "path", path, "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, path string, code int, msg string) {
	s.writeJSON(w, path, code, errorResponse{Success: false, Error: msg})
}

func recordToolMetrics(report *flow.Report) {
	for _, step := range report.Steps {
		// Observation steps carry the execution outcome; counting tool_call
		// steps as well would double-count each execution.
		if step.ToolUsed == "" || step.ActionType != core.ActionTypeObservation {
			continue
		}
		outcome := "ok"
		if strings.HasPrefix(step.ToolResult, "Error:") {
			outcome = "error"
		}
		metrics.ToolExecutionsTotal.WithLabelValues(step.ToolUsed, outcome).Inc()
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptySteps(s []flow.Step) []flow.Step {
	if s == nil {
		return []flow.Step{}
	}
	return s
}
