package store

import (
	"context"
	"sync"
	"time"

	"github.com/amandahq/converse/core"
)

// MemoryWriter is an in-memory core.MessageWriter for tests.
type MemoryWriter struct {
	mu       sync.Mutex
	messages map[string][]core.Message
}

// NewMemoryWriter constructs an empty writer.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{messages: make(map[string][]core.Message)}
}

// SaveMessage implements core.MessageWriter.
func (w *MemoryWriter) SaveMessage(_ context.Context, conversationID string, role core.Role, content string, ts time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages[conversationID] = append(w.messages[conversationID], core.Message{
		Role:      role,
		Content:   content,
		Timestamp: ts,
	})
	return nil
}

// Messages returns a copy of the saved messages for a conversation.
func (w *MemoryWriter) Messages(conversationID string) []core.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]core.Message, len(w.messages[conversationID]))
	copy(out, w.messages[conversationID])
	return out
}

// MemorySummaries is an in-memory core.SummaryStore for tests.
type MemorySummaries struct {
	mu        sync.Mutex
	summaries map[string][]core.SessionSummary
}

// NewMemorySummaries constructs an empty store.
func NewMemorySummaries() *MemorySummaries {
	return &MemorySummaries{summaries: make(map[string][]core.SessionSummary)}
}

// SaveSummary implements core.SummaryStore.
func (m *MemorySummaries) SaveSummary(_ context.Context, summary core.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.UserID] = append(m.summaries[summary.UserID], summary)
	return nil
}

// LatestSummary implements core.SummaryStore.
func (m *MemorySummaries) LatestSummary(_ context.Context, userID string) (*core.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.summaries[userID]
	if len(list) == 0 {
		return nil, nil
	}
	s := list[len(list)-1]
	return &s, nil
}

// MemoryAudit is an in-memory core.AuditSink for tests.
type MemoryAudit struct {
	mu      sync.Mutex
	records []core.AuditRecord
}

// NewMemoryAudit constructs an empty sink.
func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

// Record implements core.AuditSink.
func (m *MemoryAudit) Record(_ context.Context, rec core.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (m *MemoryAudit) Records() []core.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}
