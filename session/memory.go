package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/logging"
)

type key struct {
	userID         string
	conversationID string
}

type entry struct {
	sess   *core.Session
	inTurn bool
}

// Options configure the session memory.
type Options struct {
	// SummaryStore provides seed summaries for returning users and receives
	// summaries of closed conversations. Optional.
	SummaryStore core.SummaryStore
	// Summarizer produces the summary on Close. Optional; without it Close
	// simply discards the session.
	Summarizer *Summarizer
	Logger     logging.Logger
}

// Memory is the owned session table. Sessions are created lazily on the first
// turn of a (user, conversation) pair and destroyed on Close. Public methods
// are safe for concurrent use across sessions; within one session the turn
// gate guarantees exactly one mutator at a time.
type Memory struct {
	mu       sync.Mutex
	sessions map[key]*entry

	summaries  core.SummaryStore
	summarizer *Summarizer
	logger     logging.Logger
}

// NewMemory constructs an empty session table.
func NewMemory(optFns ...func(o *Options)) *Memory {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Memory{
		sessions:   make(map[key]*entry),
		summaries:  opts.SummaryStore,
		summarizer: opts.Summarizer,
		logger:     opts.Logger,
	}
}

// BeginTurn acquires the per-session turn gate and returns a snapshot of the
// session for the turn to work from. A session is created on the first turn;
// for a returning user the most recent summary is loaded as seed context at
// creation. If a turn is already in flight the call fails with
// core.ErrTurnInProgress and nothing changes.
func (m *Memory) BeginTurn(ctx context.Context, userID, conversationID string) (*core.Session, error) {
	m.mu.Lock()
	k := key{userID, conversationID}
	e, ok := m.sessions[k]
	if !ok {
		e = &entry{sess: core.NewSession(userID, conversationID)}
		m.sessions[k] = e
	}
	if e.inTurn {
		m.mu.Unlock()
		return nil, core.ErrTurnInProgress
	}
	e.inTurn = true
	sess := e.sess
	m.mu.Unlock()

	// The seed lookup is a store call; it runs off the table lock so a slow
	// store never stalls turn-starts on other sessions. The turn gate taken
	// above keeps this session's first turn exclusive meanwhile.
	if !ok && m.summaries != nil {
		if summary, err := m.summaries.LatestSummary(ctx, userID); err != nil {
			m.logger.Warn("seed summary load failed user_id=%s err=%v", userID, err)
		} else if summary != nil {
			sess.SetSeedSummary(summary.Synopsis)
		}
	}

	return sess.Clone(), nil
}

// EndTurn releases the turn gate. It must be called exactly once per
// successful BeginTurn, whether the turn completed, failed or was cancelled.
func (m *Memory) EndTurn(userID, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[key{userID, conversationID}]; ok {
		e.inTurn = false
	}
}

func (m *Memory) get(userID, conversationID string) (*core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[key{userID, conversationID}]
	if !ok {
		return nil, fmt.Errorf("session %s/%s: %w", userID, conversationID, core.ErrSessionClosed)
	}
	return e.sess, nil
}

// Snapshot returns a point-in-time deep copy of the session.
func (m *Memory) Snapshot(userID, conversationID string) (*core.Session, error) {
	sess, err := m.get(userID, conversationID)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Append commits completed turn messages to the session history.
func (m *Memory) Append(userID, conversationID string, msgs ...core.Message) error {
	sess, err := m.get(userID, conversationID)
	if err != nil {
		return err
	}
	sess.Append(msgs...)
	return nil
}

// PushRisk queues a detected category (deduplicated).
func (m *Memory) PushRisk(userID, conversationID string, cat core.RiskCategory) error {
	sess, err := m.get(userID, conversationID)
	if err != nil {
		return err
	}
	sess.PushRisk(cat)
	return nil
}

// PromoteRisk pops the oldest queued category, strictly FIFO.
func (m *Memory) PromoteRisk(userID, conversationID string) (core.RiskCategory, bool, error) {
	sess, err := m.get(userID, conversationID)
	if err != nil {
		return "", false, err
	}
	cat, ok := sess.PopRisk()
	return cat, ok, nil
}

// BeginAssessment installs an assessment and flips the session into
// assessment mode in one step.
func (m *Memory) BeginAssessment(userID, conversationID string, st *core.AssessmentState) error {
	sess, err := m.get(userID, conversationID)
	if err != nil {
		return err
	}
	sess.BeginAssessment(st)
	return nil
}

// ReplaceAssessment commits an updated assessment state produced by a turn.
func (m *Memory) ReplaceAssessment(userID, conversationID string, st *core.AssessmentState) error {
	sess, err := m.get(userID, conversationID)
	if err != nil {
		return err
	}
	sess.ReplaceAssessment(st)
	return nil
}

// EndAssessment clears the assessment and returns the session to normal mode.
func (m *Memory) EndAssessment(userID, conversationID string) error {
	sess, err := m.get(userID, conversationID)
	if err != nil {
		return err
	}
	sess.EndAssessment()
	return nil
}

// Close destroys the session and, when a summarizer is wired, collapses the
// conversation into a SessionSummary persisted for the user's next
// conversation. Content of a still-open assessment is never summarized.
func (m *Memory) Close(ctx context.Context, userID, conversationID string) (*core.SessionSummary, error) {
	m.mu.Lock()
	k := key{userID, conversationID}
	e, ok := m.sessions[k]
	if !ok {
		m.mu.Unlock()
		return nil, core.ErrSessionClosed
	}
	if e.inTurn {
		m.mu.Unlock()
		return nil, core.ErrTurnInProgress
	}
	delete(m.sessions, k)
	m.mu.Unlock()

	if m.summarizer == nil {
		return nil, nil
	}

	summary, err := m.summarizer.Summarize(ctx, e.sess)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, nil
	}
	if m.summaries != nil {
		if err := m.summaries.SaveSummary(ctx, *summary); err != nil {
			return nil, fmt.Errorf("save summary: %w", err)
		}
	}
	return summary, nil
}

// Len reports how many sessions are live. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
