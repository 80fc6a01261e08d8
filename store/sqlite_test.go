package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amandahq/converse/core"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_MessagesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.SaveMessage(ctx, "c1", core.RoleUser, "hello", base))
	require.NoError(t, s.SaveMessage(ctx, "c1", core.RoleAssistant, "hi there", base.Add(time.Second)))
	require.NoError(t, s.SaveMessage(ctx, "c2", core.RoleUser, "other conversation", base))

	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, base, msgs[0].Timestamp)
	assert.Equal(t, "hi there", msgs[1].Content)

	empty, err := s.ListMessages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLite_MessagesOrderedByTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	// Inserted out of order on purpose.
	require.NoError(t, s.SaveMessage(ctx, "c1", core.RoleAssistant, "second", base.Add(time.Second)))
	require.NoError(t, s.SaveMessage(ctx, "c1", core.RoleUser, "first", base))

	msgs, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestSQLite_LatestSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LatestSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got, "no prior conversations yields nil, nil")

	older := core.SessionSummary{
		UserID:         "u1",
		ConversationID: "c1",
		Synopsis:       "older synopsis",
		Highlights:     []string{"a", "b"},
		CreatedAt:      time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond),
	}
	newer := older
	newer.ConversationID = "c2"
	newer.Synopsis = "newer synopsis"
	newer.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.SaveSummary(ctx, older))
	require.NoError(t, s.SaveSummary(ctx, newer))

	got, err = s.LatestSummary(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "newer synopsis", got.Synopsis)
	assert.Equal(t, "c2", got.ConversationID)
	assert.Equal(t, []string{"a", "b"}, got.Highlights)

	other, err := s.LatestSummary(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestSQLite_AuditRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := core.AuditRecord{
		TurnID:         "t1",
		UserID:         "u1",
		ConversationID: "c1",
		Mode:           core.ModeAssessment,
		Agents:         []string{"risk_assessor", "amanda", "supervisor"},
		Severity:       core.SeverityHigh,
		At:             time.Now().UTC(),
	}
	require.NoError(t, s.Record(ctx, rec))
	require.NoError(t, s.Ping(ctx))
}

func TestSQLite_InterfaceCompliance(t *testing.T) {
	var _ core.MessageWriter = (*SQLite)(nil)
	var _ core.SummaryStore = (*SQLite)(nil)
	var _ core.AuditSink = (*SQLite)(nil)

	var _ core.MessageWriter = (*MemoryWriter)(nil)
	var _ core.SummaryStore = (*MemorySummaries)(nil)
	var _ core.AuditSink = (*MemoryAudit)(nil)
}
