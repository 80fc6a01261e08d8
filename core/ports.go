package core

import (
	"context"
	"time"
)

// SessionSummary is the durable condensed record of a closed conversation.
// It is reloaded as seed context for the same user's next conversation; raw
// message content is never re-exposed through it.
type SessionSummary struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Synopsis       string    `json:"synopsis"`
	Highlights     []string  `json:"highlights,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageWriter is the persistence collaborator consumed by the coordinator.
// SaveMessage is called once per completed user turn and once per completed
// assistant turn; the engine does not own durable message storage.
type MessageWriter interface {
	SaveMessage(ctx context.Context, conversationID string, role Role, content string, ts time.Time) error
}

// SummaryStore persists conversation summaries keyed by user.
type SummaryStore interface {
	SaveSummary(ctx context.Context, summary SessionSummary) error
	// LatestSummary returns the most recent summary for the user, or
	// (nil, nil) when the user has no prior conversations.
	LatestSummary(ctx context.Context, userID string) (*SessionSummary, error)
}

// AuditRecord is the append-only per-turn trail consumed by an external
// monitoring collaborator. The engine writes records and never reads them
// back.
type AuditRecord struct {
	TurnID         string       `json:"turn_id"`
	UserID         string       `json:"user_id"`
	ConversationID string       `json:"conversation_id"`
	Mode           Mode         `json:"mode"`
	Agents         []string     `json:"agents"`
	Signals        []RiskSignal `json:"signals,omitempty"`
	// Answers holds the assessment question/answer pairs exchanged this
	// turn, when applicable.
	Answers  []Answer  `json:"answers,omitempty"`
	Severity Severity  `json:"severity,omitempty"`
	Failover bool      `json:"failover,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// AuditSink receives one record per turn.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// NopAudit discards all records. Useful when no monitoring collaborator is wired.
type NopAudit struct{}

// Record implements AuditSink.
func (NopAudit) Record(context.Context, AuditRecord) error { return nil }
