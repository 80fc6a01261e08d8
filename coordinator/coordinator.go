package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/logging"
	"github.com/amandahq/converse/protocol"
	"github.com/amandahq/converse/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// ChunkBufferSize sets channel buffering for outgoing chunks.
	ChunkBufferSize int
	// Messages receives each committed message. Optional; the engine does
	// not own durable message storage.
	Messages core.MessageWriter
	// Audit receives one record per turn.
	Audit core.AuditSink
	// Logging services.
	Logger logging.Logger
}

// Coordinator drives the two-mode state machine over owned session memory.
// Each turn runs as its own goroutine; turns for one session are serialized
// by the memory's turn gate, turns across sessions run independently.
type Coordinator struct {
	memory   *session.Memory
	registry *protocol.Registry

	responder  core.Agent
	classifier core.Agent
	assessor   core.Agent

	chunkBufferSize int
	messages        core.MessageWriter
	audit           core.AuditSink
	logger          logging.Logger

	activeTurns map[string]context.CancelFunc
	mu          sync.RWMutex
}

// New constructs a Coordinator with optional overrides.
func New(
	memory *session.Memory,
	registry *protocol.Registry,
	responder core.Agent,
	classifier core.Agent,
	assessor core.Agent,
	optFns ...func(o *Options),
) *Coordinator {
	opts := Options{
		ChunkBufferSize: 64,
		Audit:           core.NopAudit{},
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Coordinator{
		memory:          memory,
		registry:        registry,
		responder:       responder,
		classifier:      classifier,
		assessor:        assessor,
		chunkBufferSize: opts.ChunkBufferSize,
		messages:        opts.Messages,
		audit:           opts.Audit,
		logger:          opts.Logger,
		activeTurns:     make(map[string]context.CancelFunc),
	}
}

// HandleTurn starts an asynchronous turn for one user utterance. It returns
// the turn id, an ordered chunk stream carrying the reply fragments followed
// by exactly one done chunk, and an error channel for out-of-band failures.
// A turn that fails or is cancelled never emits the done chunk and leaves the
// session untouched. If a turn is already in flight for the session the call
// fails immediately with core.ErrTurnInProgress.
func (c *Coordinator) HandleTurn(
	ctx context.Context,
	userID, conversationID, message string,
) (string, <-chan core.Chunk, <-chan error, error) {
	snapshot, err := c.memory.BeginTurn(ctx, userID, conversationID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("begin turn: %w", err)
	}

	turnID := core.NewID()

	chunks := make(chan core.Chunk, c.chunkBufferSize)
	errs := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.activeTurns[turnID] = cancel
	c.mu.Unlock()

	t := &turn{
		c:              c,
		id:             turnID,
		userID:         userID,
		conversationID: conversationID,
		input:          message,
		snapshot:       snapshot,
		chunks:         chunks,
		errs:           errs,
		logger:         c.logger,
	}

	go func() {
		defer func() {
			cancel()
			c.mu.Lock()
			delete(c.activeTurns, turnID)
			c.mu.Unlock()
			c.memory.EndTurn(userID, conversationID)
			close(chunks)
			close(errs)
		}()

		t.run(ctx)
	}()

	return turnID, chunks, errs, nil
}

// Cancel cancels an in-flight turn by id. The cancelled turn emits no done
// chunk and commits nothing.
func (c *Coordinator) Cancel(turnID string) error {
	c.mu.RLock()
	cancel, exists := c.activeTurns[turnID]
	c.mu.RUnlock()

	if !exists {
		return fmt.Errorf("turn %s: %w", turnID, core.ErrUnknownTurn)
	}

	cancel()

	return nil
}

// CloseConversation destroys the session and persists its summary for the
// user's next conversation. It fails with core.ErrTurnInProgress while a turn
// is in flight.
func (c *Coordinator) CloseConversation(ctx context.Context, userID, conversationID string) (*core.SessionSummary, error) {
	return c.memory.Close(ctx, userID, conversationID)
}

// Snapshot returns a point-in-time copy of a live session.
func (c *Coordinator) Snapshot(userID, conversationID string) (*core.Session, error) {
	return c.memory.Snapshot(userID, conversationID)
}
