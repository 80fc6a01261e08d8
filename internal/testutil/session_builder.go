package testutil

import (
	"github.com/amandahq/converse/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("user-1", "conv-1").User("hi").Assistant("hello").Build()
type SessionBuilder struct {
	userID         string
	conversationID string
	messages       []core.Message
	queue          []core.RiskCategory
	assessment     *core.AssessmentState
	seedSummary    string
}

// NewSessionBuilder creates a new builder for the given identity. Use
// chainable methods then call Build.
func NewSessionBuilder(userID, conversationID string) *SessionBuilder {
	return &SessionBuilder{userID: userID, conversationID: conversationID}
}

// User appends a user message (chainable).
func (b *SessionBuilder) User(content string) *SessionBuilder {
	b.messages = append(b.messages, core.NewUserMessage(content))
	return b
}

// Assistant appends an assistant message (chainable).
func (b *SessionBuilder) Assistant(content string) *SessionBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(content))
	return b
}

// Exchange appends a user/assistant message pair (chainable).
func (b *SessionBuilder) Exchange(user, assistant string) *SessionBuilder {
	return b.User(user).Assistant(assistant)
}

// Queue appends pending risk categories (chainable).
func (b *SessionBuilder) Queue(cats ...core.RiskCategory) *SessionBuilder {
	b.queue = append(b.queue, cats...)
	return b
}

// Assessment installs an active assessment; Build flips the mode (chainable).
func (b *SessionBuilder) Assessment(st *core.AssessmentState) *SessionBuilder {
	b.assessment = st
	return b
}

// Seed sets the prior-conversation seed summary (chainable).
func (b *SessionBuilder) Seed(summary string) *SessionBuilder {
	b.seedSummary = summary
	return b
}

// Build returns a *core.Session with the accumulated history and state.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.userID, b.conversationID)
	s.SeedSummary = b.seedSummary
	s.Append(b.messages...)
	for _, cat := range b.queue {
		s.PushRisk(cat)
	}
	if b.assessment != nil {
		// BeginAssessment pins StartIndex to the current history length;
		// builders that pre-set it win.
		pinned := b.assessment.StartIndex
		s.BeginAssessment(b.assessment)
		if pinned > 0 {
			s.Assessment.StartIndex = pinned
		}
	}
	return s
}
