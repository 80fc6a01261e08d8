package core

import (
	"sync"
	"time"
)

// Mode selects how the coordinator routes a turn.
type Mode string

const (
	// ModeNormal is free-form supportive conversation.
	ModeNormal Mode = "NORMAL"
	// ModeAssessment is structured protocol-driven questioning.
	ModeAssessment Mode = "ASSESSMENT"
)

// Session is the per-conversation container tracking ordered message history,
// the current mode, the FIFO queue of detected-but-not-yet-assessed risk
// categories and the optional in-flight assessment. It is safe for concurrent
// access, though the engine additionally serializes whole turns per session.
//
// Contract:
//   - Messages are append-only and never reordered or deleted.
//   - Mode is ModeAssessment if and only if Assessment is non-nil; the
//     transition helpers keep both in lockstep.
//   - RiskQueue entries are promoted strictly FIFO and deduplicated against
//     the queue and the active assessment.
type Session struct {
	UserID         string           `json:"user_id"`
	ConversationID string           `json:"conversation_id"`
	Messages       []Message        `json:"messages"`
	Mode           Mode             `json:"mode"`
	RiskQueue      []RiskCategory   `json:"risk_queue"`
	Assessment     *AssessmentState `json:"assessment,omitempty"`
	// SeedSummary is the prior-conversation summary loaded for a returning
	// user; consumed by the responder on the first turn only.
	SeedSummary string    `json:"seed_summary,omitempty"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`

	mu sync.RWMutex
}

// NewSession creates an empty session in normal mode.
func NewSession(userID, conversationID string) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:         userID,
		ConversationID: conversationID,
		Mode:           ModeNormal,
		Created:        now,
		Updated:        now,
	}
}

// Append adds messages to the history. Messages are never mutated afterwards.
func (s *Session) Append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msgs...)
	s.Updated = time.Now().UTC()
}

// Exchanges reports how many completed user/assistant exchanges the session
// holds. Agents use it to tell a brand-new conversation from an established one.
func (s *Session) Exchanges() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages) / 2
}

// SetSeedSummary installs the prior-conversation summary as seed context.
func (s *Session) SetSeedSummary(synopsis string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SeedSummary = synopsis
}

// History returns a defensive copy of the full message history.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Window returns a copy of the last n messages, oldest first.
func (s *Session) Window(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.Messages) {
		n = len(s.Messages)
	}
	out := make([]Message, n)
	copy(out, s.Messages[len(s.Messages)-n:])
	return out
}

// PushRisk queues a category unless it is already queued or under assessment.
func (s *Session) PushRisk(cat RiskCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Assessment != nil && s.Assessment.Category == cat {
		return
	}
	for _, q := range s.RiskQueue {
		if q == cat {
			return
		}
	}
	s.RiskQueue = append(s.RiskQueue, cat)
	s.Updated = time.Now().UTC()
}

// PopRisk removes and returns the oldest queued category.
func (s *Session) PopRisk() (RiskCategory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.RiskQueue) == 0 {
		return "", false
	}
	cat := s.RiskQueue[0]
	s.RiskQueue = s.RiskQueue[1:]
	return cat, true
}

// QueuedRisks returns a copy of the pending risk queue.
func (s *Session) QueuedRisks() []RiskCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RiskCategory, len(s.RiskQueue))
	copy(out, s.RiskQueue)
	return out
}

// BeginAssessment installs an assessment state and flips the mode in one step
// so the mode/assessment invariant holds at every observable point.
func (s *Session) BeginAssessment(st *AssessmentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.StartIndex = len(s.Messages)
	s.Assessment = st
	s.Mode = ModeAssessment
	s.Updated = time.Now().UTC()
}

// EndAssessment clears the assessment state and returns to normal mode.
func (s *Session) EndAssessment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Assessment = nil
	s.Mode = ModeNormal
	s.Updated = time.Now().UTC()
}

// ReplaceAssessment swaps in an updated assessment state produced by a turn.
// The mode is left untouched; callers end the assessment separately once the
// state is terminal.
func (s *Session) ReplaceAssessment(st *AssessmentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Assessment = st
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Session{
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
		Messages:       make([]Message, len(s.Messages)),
		Mode:           s.Mode,
		RiskQueue:      make([]RiskCategory, len(s.RiskQueue)),
		Assessment:     s.Assessment.Clone(),
		SeedSummary:    s.SeedSummary,
		Created:        s.Created,
		Updated:        s.Updated,
	}
	copy(c.Messages, s.Messages)
	copy(c.RiskQueue, s.RiskQueue)
	return c
}
