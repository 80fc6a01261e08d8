package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/store"
)

func TestMemory_TurnGateRejectsOverlap(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.BeginTurn(ctx, "u1", "c1")
	require.NoError(t, err)

	_, err = m.BeginTurn(ctx, "u1", "c1")
	assert.ErrorIs(t, err, core.ErrTurnInProgress)

	// Other sessions are unaffected.
	_, err = m.BeginTurn(ctx, "u2", "c2")
	require.NoError(t, err)

	m.EndTurn("u1", "c1")
	_, err = m.BeginTurn(ctx, "u1", "c1")
	assert.NoError(t, err)
}

func TestMemory_SnapshotIsIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	snap, err := m.BeginTurn(ctx, "u1", "c1")
	require.NoError(t, err)
	m.EndTurn("u1", "c1")

	snap.Append(core.NewUserMessage("only in the snapshot"))

	authoritative, err := m.Snapshot("u1", "c1")
	require.NoError(t, err)
	assert.Empty(t, authoritative.History())
}

func TestMemory_AppendAndStateTransitions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.BeginTurn(ctx, "u1", "c1")
	require.NoError(t, err)
	m.EndTurn("u1", "c1")

	require.NoError(t, m.Append("u1", "c1", core.NewUserMessage("hi"), core.NewAssistantMessage("hello")))
	require.NoError(t, m.PushRisk("u1", "c1", core.RiskIPV))

	cat, ok, err := m.PromoteRisk("u1", "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.RiskIPV, cat)

	require.NoError(t, m.BeginAssessment("u1", "c1", &core.AssessmentState{Category: cat}))
	snap, err := m.Snapshot("u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, core.ModeAssessment, snap.Mode)
	assert.Equal(t, 2, snap.Assessment.StartIndex)

	st := snap.Assessment.Clone()
	st.Record("raw", "yes")
	require.NoError(t, m.ReplaceAssessment("u1", "c1", st))
	require.NoError(t, m.EndAssessment("u1", "c1"))

	snap, err = m.Snapshot("u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, core.ModeNormal, snap.Mode)
	assert.Nil(t, snap.Assessment)
}

func TestMemory_UnknownSessionErrors(t *testing.T) {
	m := NewMemory()
	err := m.Append("nope", "nope", core.NewUserMessage("hi"))
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}

func TestMemory_CloseSummarizesAndReseeds(t *testing.T) {
	summaries := store.NewMemorySummaries()
	llm := &recordingProvider{reply: "They spoke about loneliness.\n- feels isolated since moving"}
	m := NewMemory(func(o *Options) {
		o.SummaryStore = summaries
		o.Summarizer = NewSummarizer(llm)
	})
	ctx := context.Background()

	_, err := m.BeginTurn(ctx, "u1", "c1")
	require.NoError(t, err)
	m.EndTurn("u1", "c1")
	require.NoError(t, m.Append("u1", "c1", core.NewUserMessage("I feel alone"), core.NewAssistantMessage("I'm here with you.")))

	summary, err := m.Close(ctx, "u1", "c1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "They spoke about loneliness.", summary.Synopsis)
	assert.Equal(t, 0, m.Len())

	// A new conversation for the same user is seeded with the synopsis,
	// never the raw messages.
	snap, err := m.BeginTurn(ctx, "u1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "They spoke about loneliness.", snap.SeedSummary)
	assert.NotContains(t, snap.SeedSummary, "I feel alone")
	assert.Empty(t, snap.History())
}

// stallingSummaries blocks LatestSummary until released, signalling entry.
type stallingSummaries struct {
	entered chan struct{}
	release chan struct{}
}

func (s *stallingSummaries) SaveSummary(context.Context, core.SessionSummary) error { return nil }

func (s *stallingSummaries) LatestSummary(context.Context, string) (*core.SessionSummary, error) {
	close(s.entered)
	<-s.release
	return &core.SessionSummary{Synopsis: "slow seed"}, nil
}

func TestMemory_SlowSeedLookupDoesNotBlockOtherSessions(t *testing.T) {
	summaries := &stallingSummaries{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewMemory(func(o *Options) { o.SummaryStore = summaries })
	ctx := context.Background()

	type result struct {
		snap *core.Session
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		snap, err := m.BeginTurn(ctx, "u1", "c1")
		slow <- result{snap, err}
	}()
	<-summaries.entered

	// While u1's first turn sits in the seed lookup, other sessions must be
	// able to start turns.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := m.BeginTurn(ctx, "u2", "c2")
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn start blocked behind another session's seed lookup")
	}

	// The stalled session itself still rejects overlap.
	_, err := m.BeginTurn(ctx, "u1", "c1")
	assert.ErrorIs(t, err, core.ErrTurnInProgress)

	close(summaries.release)
	res := <-slow
	require.NoError(t, res.err)
	assert.Equal(t, "slow seed", res.snap.SeedSummary)
}

func TestMemory_CloseRejectedMidTurn(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.BeginTurn(ctx, "u1", "c1")
	require.NoError(t, err)

	_, err = m.Close(ctx, "u1", "c1")
	assert.ErrorIs(t, err, core.ErrTurnInProgress)

	m.EndTurn("u1", "c1")
	_, err = m.Close(ctx, "u1", "c1")
	assert.NoError(t, err)

	_, err = m.Close(ctx, "u1", "c1")
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}
