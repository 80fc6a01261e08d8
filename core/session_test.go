package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendAndWindow(t *testing.T) {
	s := NewSession("u1", "c1")
	s.Append(NewUserMessage("one"), NewAssistantMessage("two"), NewUserMessage("three"))

	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Content)
	assert.Equal(t, "three", history[2].Content)

	window := s.Window(2)
	require.Len(t, window, 2)
	assert.Equal(t, "two", window[0].Content)
	assert.Equal(t, "three", window[1].Content)

	// Oversized and non-positive windows return the full history.
	assert.Len(t, s.Window(10), 3)
	assert.Len(t, s.Window(0), 3)
}

func TestSession_Exchanges(t *testing.T) {
	s := NewSession("u1", "c1")
	assert.Equal(t, 0, s.Exchanges())

	s.Append(NewUserMessage("hi"), NewAssistantMessage("hello"))
	assert.Equal(t, 1, s.Exchanges())

	// A dangling user message does not count as a completed exchange.
	s.Append(NewUserMessage("still there?"))
	assert.Equal(t, 1, s.Exchanges())
}

func TestSession_RiskQueueFIFOAndDedup(t *testing.T) {
	s := NewSession("u1", "c1")

	s.PushRisk(RiskSuicidality)
	s.PushRisk(RiskIPV)
	s.PushRisk(RiskSuicidality) // duplicate, dropped
	require.Equal(t, []RiskCategory{RiskSuicidality, RiskIPV}, s.QueuedRisks())

	cat, ok := s.PopRisk()
	require.True(t, ok)
	assert.Equal(t, RiskSuicidality, cat)

	cat, ok = s.PopRisk()
	require.True(t, ok)
	assert.Equal(t, RiskIPV, cat)

	_, ok = s.PopRisk()
	assert.False(t, ok)
}

func TestSession_PushRiskDedupsAgainstActiveAssessment(t *testing.T) {
	s := NewSession("u1", "c1")
	s.BeginAssessment(&AssessmentState{Category: RiskIPV, ProtocolID: "ipv"})

	s.PushRisk(RiskIPV)
	assert.Empty(t, s.QueuedRisks())

	s.PushRisk(RiskSubstanceMisuse)
	assert.Equal(t, []RiskCategory{RiskSubstanceMisuse}, s.QueuedRisks())
}

func TestSession_ModeAssessmentLockstep(t *testing.T) {
	s := NewSession("u1", "c1")
	assert.Equal(t, ModeNormal, s.Mode)
	assert.Nil(t, s.Assessment)

	s.Append(NewUserMessage("hi"), NewAssistantMessage("hello"))
	st := &AssessmentState{Category: RiskSuicidality, ProtocolID: "suicidality"}
	s.BeginAssessment(st)
	assert.Equal(t, ModeAssessment, s.Mode)
	require.NotNil(t, s.Assessment)
	assert.Equal(t, 2, s.Assessment.StartIndex)

	s.EndAssessment()
	assert.Equal(t, ModeNormal, s.Mode)
	assert.Nil(t, s.Assessment)
}

// The mode/assessment invariant must hold at every observable point across
// arbitrary transition sequences.
func TestSession_ModeInvariantRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cats := Categories()

	for seq := 0; seq < 50; seq++ {
		s := NewSession("u1", "c1")
		for op := 0; op < 100; op++ {
			switch rng.Intn(5) {
			case 0:
				s.Append(NewUserMessage("m"))
			case 1:
				s.PushRisk(cats[rng.Intn(len(cats))])
			case 2:
				if s.Assessment == nil {
					if cat, ok := s.PopRisk(); ok {
						s.BeginAssessment(&AssessmentState{Category: cat})
					}
				}
			case 3:
				if s.Assessment != nil {
					s.EndAssessment()
				}
			case 4:
				if s.Assessment != nil {
					st := s.Assessment.Clone()
					st.Record("raw", "yes")
					s.ReplaceAssessment(st)
				}
			}

			requireInvariant(t, s)
		}
	}
}

func requireInvariant(t *testing.T, s *Session) {
	t.Helper()
	if s.Mode == ModeAssessment {
		require.NotNil(t, s.Assessment, "assessment mode without assessment state")
	} else {
		require.Nil(t, s.Assessment, "normal mode with assessment state")
	}
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := NewSession("u1", "c1")
	s.Append(NewUserMessage("hi"))
	s.PushRisk(RiskIPV)
	s.BeginAssessment(&AssessmentState{Category: RiskSuicidality})
	s.Assessment.Record("raw", "yes")

	c := s.Clone()
	c.Append(NewUserMessage("extra"))
	c.Assessment.Record("other", "no")
	c.PushRisk(RiskSubstanceMisuse)

	assert.Len(t, s.History(), 1)
	assert.Len(t, s.Assessment.Answers, 1)
	assert.Equal(t, []RiskCategory{RiskIPV}, s.QueuedRisks())
}

func TestAssessmentState_Helpers(t *testing.T) {
	st := &AssessmentState{Category: RiskSuicidality, Current: "q1"}
	assert.False(t, st.Terminal())

	st.Record("yeah", "yes")
	st.Current = "q2"
	st.Record("no way", "no")

	m := st.AnswerMap()
	assert.Equal(t, "yes", m["q1"])
	assert.Equal(t, "no", m["q2"])

	st.Severity = SeverityHigh
	assert.True(t, st.Terminal())
}
