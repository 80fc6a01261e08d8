// Package converse provides a high-level façade over the conversation
// coordinator and its services (session memory, protocols, providers,
// persistence & logging). Most applications interact with this package by:
//  1. Creating an Engine via New() (optionally overriding default in-memory services)
//  2. Running turns asynchronously (HandleTurn) or synchronously (HandleTurnSync)
//  3. Closing conversations to roll their content into a cross-session summary
//
// The façade delegates orchestration to coordinator.Coordinator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply real provider backends, a
// durable store and a structured logger, as cmd/conversed does.
package converse

import (
	"context"
	"fmt"

	"github.com/amandahq/converse/agent"
	"github.com/amandahq/converse/coordinator"
	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/logging"
	"github.com/amandahq/converse/protocol"
	"github.com/amandahq/converse/provider"
	"github.com/amandahq/converse/session"
)

// Options configures the Engine instance.
type Options struct {
	// Providers is the failover order; index zero is the primary. Defaults to
	// a single deterministic mock backend.
	Providers []provider.Provider

	// Registry holds the assessment protocols. Defaults to the embedded set.
	Registry *protocol.Registry

	// Stores (all optional; the engine runs fully in memory without them).
	SummaryStore core.SummaryStore
	Messages     core.MessageWriter
	Audit        core.AuditSink

	// ClassifierWindow is how many recent messages the risk classifier reads.
	ClassifierWindow int
	// MaxHistory bounds how many messages the responder replays per call.
	MaxHistory int
	// StreamBufferSize sets chunk channel buffering per turn.
	StreamBufferSize int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Engine is the high-level façade aggregating the coordinator and services.
type Engine struct {
	opts  Options
	coord *coordinator.Coordinator
}

// New creates an Engine with optional overrides. Any unset service is
// initialized with an in-memory or embedded implementation.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if len(opts.Providers) == 0 {
		opts.Providers = []provider.Provider{provider.NewMock("mock")}
	}
	if opts.Registry == nil {
		registry, err := protocol.LoadBuiltin()
		if err != nil {
			return nil, fmt.Errorf("load embedded protocols: %w", err)
		}
		opts.Registry = registry
	}

	failover := provider.NewFailover(opts.Providers, func(o *provider.FailoverOptions) {
		o.Logger = opts.Logger
	})
	responder := agent.NewResponder(failover, func(o *agent.ResponderOptions) {
		if opts.MaxHistory > 0 {
			o.MaxHistory = opts.MaxHistory
		}
	})
	classifier := agent.NewClassifier(opts.Providers[0], func(o *agent.ClassifierOptions) {
		if opts.ClassifierWindow > 0 {
			o.Window = opts.ClassifierWindow
		}
	})
	assessor := agent.NewAssessor(opts.Registry)

	memory := session.NewMemory(func(o *session.Options) {
		o.SummaryStore = opts.SummaryStore
		o.Summarizer = session.NewSummarizer(opts.Providers[0], func(so *session.SummarizerOptions) {
			so.Logger = opts.Logger
		})
		o.Logger = opts.Logger
	})

	coord := coordinator.New(memory, opts.Registry, responder, classifier, assessor, func(o *coordinator.Options) {
		if opts.StreamBufferSize > 0 {
			o.ChunkBufferSize = opts.StreamBufferSize
		}
		o.Messages = opts.Messages
		if opts.Audit != nil {
			o.Audit = opts.Audit
		}
		o.Logger = opts.Logger
	})

	return &Engine{opts: opts, coord: coord}, nil
}

// Coordinator exposes the underlying coordinator for transports that relay
// the chunk stream themselves.
func (e *Engine) Coordinator() *coordinator.Coordinator { return e.coord }

// HandleTurn starts an asynchronous turn returning chunk & error channels.
func (e *Engine) HandleTurn(
	ctx context.Context,
	userID, conversationID, message string,
) (string, <-chan core.Chunk, <-chan error, error) {
	return e.coord.HandleTurn(ctx, userID, conversationID, message)
}

// HandleTurnSync is a synchronous helper that drains the async channels,
// accumulates the reply text and returns the turnID.
func (e *Engine) HandleTurnSync(
	ctx context.Context,
	userID, conversationID, message string,
) (string, string, error) {
	turnID, chunks, errs, err := e.coord.HandleTurn(ctx, userID, conversationID, message)
	if err != nil {
		return "", "", err
	}

	var reply string
	for chunks != nil || errs != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if !c.Done {
				reply += c.Text
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				// Drain the chunk channel before reporting the failure.
				if chunks != nil {
					for range chunks {
					}
				}
				return turnID, reply, err
			}
		}
	}
	return turnID, reply, nil
}

// Cancel cancels an in-flight turn by id.
func (e *Engine) Cancel(turnID string) error { return e.coord.Cancel(turnID) }

// CloseConversation destroys the session and persists its summary.
func (e *Engine) CloseConversation(ctx context.Context, userID, conversationID string) (*core.SessionSummary, error) {
	return e.coord.CloseConversation(ctx, userID, conversationID)
}

// Snapshot returns a point-in-time copy of a live session.
func (e *Engine) Snapshot(userID, conversationID string) (*core.Session, error) {
	return e.coord.Snapshot(userID, conversationID)
}
