// Command researchd runs the pharma deep research HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/pharmadb/deepresearch/agent"
	"github.com/pharmadb/deepresearch/config"
	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/flow"
	"github.com/pharmadb/deepresearch/logging"
	"github.com/pharmadb/deepresearch/memory"
	"github.com/pharmadb/deepresearch/model"
	"github.com/pharmadb/deepresearch/model/anthropic"
	"github.com/pharmadb/deepresearch/model/openai"
	"github.com/pharmadb/deepresearch/runner"
	"github.com/pharmadb/deepresearch/server"
	"github.com/pharmadb/deepresearch/session"
	"github.com/pharmadb/deepresearch/storage"
	"github.com/pharmadb/deepresearch/tool"
	"github.com/pharmadb/deepresearch/tool/csvquery"
	"github.com/pharmadb/deepresearch/tool/pdfread"
	"github.com/pharmadb/deepresearch/tool/websearch"
)

const version = "1.0.0"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "researchd:", err)
		os.Exit(1)
	}
}

func run() error {
	logger, sync, err := logging.NewProductionZapLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := buildModel(cfg)
	if err != nil {
		return err
	}

	files, err := buildFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	sessions, cachePing, closeSessions, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	registry := buildRegistry(cfg, llm)
	analyst := agent.NewAnalyst(llm, registry, func(o *agent.ModelOptions) { o.Logger = logger })
	writer := agent.NewWriter(llm, func(o *agent.ModelOptions) { o.Logger = logger })

	research := flow.NewResearch(analyst, writer, registry, func(o *flow.Options) {
		o.MaxTurns = cfg.MaxAgentTurns
		o.Logger = logger
	})

	researchRunner := runner.New(research, sessions, func(o *runner.Options) {
		o.MaxModelCalls = cfg.MaxModelCalls
		o.FileStore = files
		o.MemoryStore = memory.NewInMemoryStore()
		o.Logger = logger
	})

	srv := server.New(researchRunner, cfg, func(o *server.Options) {
		o.Version = version
		o.Logger = logger
		o.CachePing = cachePing
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening",
			"addr", cfg.Addr(),
			"llm_provider", cfg.ResolvedLLMProvider(),
			"storage_backend", cfg.ResolvedStorageBackend(),
			"session_backend", cfg.ResolvedSessionBackend(),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server.shutdown.start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server.shutdown.complete")

	return nil
}

func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.ResolvedLLMProvider() {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			if cfg.AnthropicModel != "" {
				o.Model = anthropicsdk.Model(cfg.AnthropicModel)
			}
		}), nil
	default:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.OpenAIAPIKey
			o.BaseURL = cfg.OpenAIBaseURL
			o.Model = cfg.OpenAIModel
		}), nil
	}
}

func buildFileStore(ctx context.Context, cfg *config.Config) (core.FileStore, error) {
	switch cfg.ResolvedStorageBackend() {
	case "supabase":
		return storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, func(o *storage.SupabaseOptions) {
			o.Bucket = cfg.SupabaseBucket
		}), nil
	case "s3":
		store, err := storage.NewS3Store(ctx, cfg.AWSS3Bucket, func(o *storage.S3Options) {
			if cfg.AWSRegion != "" {
				o.Region = cfg.AWSRegion
			}
			o.Endpoint = cfg.AWSEndpointURL
		})
		if err != nil {
			return nil, fmt.Errorf("init S3 store: %w", err)
		}
		return store, nil
	default:
		return storage.NewInMemoryStore(), nil
	}
}

// buildSessionStore returns the session store plus a health ping for the
// cache backend; the ping is nil when sessions live in process memory.
func buildSessionStore(ctx context.Context, cfg *config.Config) (core.SessionStore, func(ctx context.Context) error, func(), error) {
	if cfg.ResolvedSessionBackend() == "redis" {
		store, err := session.NewRedisStore(ctx, func(o *session.RedisOptions) {
			o.Addr = cfg.RedisAddr()
			o.Password = cfg.RedisPassword
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return store, store.Ping, func() { _ = store.Close() }, nil
	}
	return session.NewInMemoryStore(), nil, func() {}, nil
}

func buildRegistry(cfg *config.Config, llm model.Model) *tool.Registry {
	registry := tool.NewRegistry(
		csvquery.New(func(o *csvquery.Options) { o.Planner = llm }),
		pdfread.New(func(o *pdfread.Options) {
			o.Summarizer = llm
			o.CounterModel = cfg.OpenAIModel
		}),
	)

	if cfg.TavilyAPIKey != "" {
		registry.Register(websearch.New(websearch.NewTavilyProvider(cfg.TavilyAPIKey)))
	}

	return registry
}
