// conversed - conversation orchestration engine server.
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
	"github.com/joho/godotenv"

	"github.com/amandahq/converse/agent"
	"github.com/amandahq/converse/config"
	"github.com/amandahq/converse/coordinator"
	"github.com/amandahq/converse/logging"
	"github.com/amandahq/converse/protocol"
	"github.com/amandahq/converse/provider"
	"github.com/amandahq/converse/provider/anthropic"
	"github.com/amandahq/converse/provider/openai"
	"github.com/amandahq/converse/session"
	"github.com/amandahq/converse/store"
	"github.com/amandahq/converse/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "conversed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// No .env file is fine; the environment is authoritative.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLogLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
		Component: "conversed",
	})
	logger.Info("starting addr=%s primary=%s fallback=%s", cfg.Addr, cfg.PrimaryProvider, cfg.FallbackProvider)

	db, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close database err=%v", err)
		}
	}()

	registry, err := loadProtocols(cfg)
	if err != nil {
		// Malformed protocol definitions are fatal at load.
		return fmt.Errorf("load protocols: %w", err)
	}
	logger.Info("protocols loaded categories=%v", registry.Categories())

	chain, err := buildChain(cfg)
	if err != nil {
		return err
	}
	failover := provider.NewFailover(chain, func(o *provider.FailoverOptions) {
		o.CallTimeout = cfg.ProviderTimeout
		o.Logger = logger
	})

	responder := agent.NewResponder(failover, func(o *agent.ResponderOptions) {
		o.MaxHistory = cfg.MaxHistory
	})
	classifier := agent.NewClassifier(chain[0], func(o *agent.ClassifierOptions) {
		o.Window = cfg.ClassifierWindow
	})
	assessor := agent.NewAssessor(registry)

	summarizer := session.NewSummarizer(chain[0], func(o *session.SummarizerOptions) {
		o.Logger = logger
	})
	memory := session.NewMemory(func(o *session.Options) {
		o.SummaryStore = db
		o.Summarizer = summarizer
		o.Logger = logger
	})

	coord := coordinator.New(memory, registry, responder, classifier, assessor, func(o *coordinator.Options) {
		o.ChunkBufferSize = cfg.StreamBufferSize
		o.Messages = db
		o.Audit = db
		o.Logger = logger
	})

	handler := transport.NewHandler(coord, db, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening addr=%s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down signal=%s", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func loadProtocols(cfg *config.Config) (*protocol.Registry, error) {
	if cfg.ProtocolDir != "" {
		return protocol.LoadDir(cfg.ProtocolDir)
	}
	return protocol.LoadBuiltin()
}

// buildChain assembles the provider failover order from configuration. Index
// zero is the primary.
func buildChain(cfg *config.Config) ([]provider.Provider, error) {
	names := []string{cfg.PrimaryProvider}
	if cfg.FallbackProvider != "" {
		names = append(names, cfg.FallbackProvider)
	}

	chain := make([]provider.Provider, 0, len(names))
	for _, name := range names {
		p, err := buildProvider(cfg, name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}

func buildProvider(cfg *config.Config, name string) (provider.Provider, error) {
	switch name {
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.OpenAIModel != "" {
				o.Model = cfg.OpenAIModel
			}
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.AnthropicModel != "" {
				o.Model = anthropicsdk.Model(cfg.AnthropicModel)
			}
		}), nil
	case "mock":
		return provider.NewMock("mock"), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
