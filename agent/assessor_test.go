package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/internal/testutil"
	"github.com/amandahq/converse/protocol"
)

func testRegistry(t *testing.T) *protocol.Registry {
	t.Helper()
	r, err := protocol.LoadBuiltin()
	require.NoError(t, err)
	return r
}

func assessmentSession(st *core.AssessmentState) *core.Session {
	return testutil.NewSessionBuilder("u1", "c1").Assessment(st).Build()
}

func invoke(t *testing.T, a *Assessor, sess *core.Session, input string) *core.TurnContext {
	t.Helper()
	tc := &core.TurnContext{Context: context.Background(), Session: sess, Input: input}
	require.NoError(t, a.Invoke(tc))
	return tc
}

func TestAssessor_FirstTurnAsksEntryQuestion(t *testing.T) {
	reg := testRegistry(t)
	a := NewAssessor(reg)
	p, _ := reg.Get(core.RiskSubstanceMisuse)

	st := &core.AssessmentState{Category: core.RiskSubstanceMisuse, ProtocolID: p.ID}
	sess := assessmentSession(st)

	tc := invoke(t, a, sess, "okay, I guess we can talk about it")

	assert.Equal(t, p.First().Prompt, tc.Prompt)
	assert.True(t, st.Asked)
	assert.Empty(t, st.Answers, "first turn records no answer")
	assert.False(t, st.Terminal())
}

func TestAssessor_RecordsAnswerAndAdvances(t *testing.T) {
	reg := testRegistry(t)
	a := NewAssessor(reg)
	p, _ := reg.Get(core.RiskSubstanceMisuse)

	st := &core.AssessmentState{Category: core.RiskSubstanceMisuse, ProtocolID: p.ID}
	sess := assessmentSession(st)

	invoke(t, a, sess, "okay")                        // asks q_frequency
	tc := invoke(t, a, sess, "pretty much every day") // answers it

	require.Len(t, st.Answers, 1)
	assert.Equal(t, "q_frequency", st.Answers[0].QuestionID)
	assert.Equal(t, "daily", st.Answers[0].Value)
	assert.Equal(t, "pretty much every day", st.Answers[0].Raw)
	assert.Equal(t, "q_morning", st.Current)
	assert.Equal(t, p.Question("q_morning").Prompt, tc.Prompt)
}

func TestAssessor_BranchSkipsInapplicableQuestion(t *testing.T) {
	reg := testRegistry(t)
	a := NewAssessor(reg)

	st := &core.AssessmentState{Category: core.RiskSubstanceMisuse, Current: "q_control", Asked: true}
	sess := assessmentSession(st)

	// "no" on q_control branches straight to q_impact, skipping q_withdrawal.
	invoke(t, a, sess, "no, I can stop when I want")
	assert.Equal(t, "q_impact", st.Current)
}

func TestAssessor_CriticalAnswerFinalizesImminent(t *testing.T) {
	reg := testRegistry(t)
	a := NewAssessor(reg)

	st := &core.AssessmentState{Category: core.RiskSubstanceMisuse, Current: "q_danger", Asked: true}
	sess := assessmentSession(st)

	tc := invoke(t, a, sess, "yes")

	assert.True(t, st.Terminal())
	assert.Equal(t, core.SeverityImminent, st.Severity)
	assert.Equal(t, closingStatements[core.SeverityImminent], tc.Prompt)
}

func TestAssessor_TerminalScoresFullAnswerMap(t *testing.T) {
	reg := testRegistry(t)
	a := NewAssessor(reg)
	p, _ := reg.Get(core.RiskSubstanceMisuse)

	st := &core.AssessmentState{Category: core.RiskSubstanceMisuse, Current: "q_danger", Asked: true}
	st.Current = "q_frequency"
	st.Record("every day", "daily")
	st.Current = "q_morning"
	st.Record("yes", "yes")
	st.Current = "q_control"
	st.Record("yes", "yes")
	st.Current = "q_withdrawal"
	st.Record("yes", "yes")
	st.Current = "q_impact"
	st.Record("yes", "yes")
	st.Current = "q_danger"
	sess := assessmentSession(st)

	// A "no" on the critical question terminates via the tree, not the
	// early exit; four flagged answers score past the high threshold.
	tc := invoke(t, a, sess, "no")

	assert.True(t, st.Terminal())
	assert.Equal(t, core.SeverityHigh, st.Severity)
	assert.Equal(t, closingStatements[core.SeverityHigh], tc.Prompt)
	assert.GreaterOrEqual(t, len(st.Answers), p.Len()-1)
}

func TestAssessor_FullTraversalLowSeverity(t *testing.T) {
	reg := testRegistry(t)
	a := NewAssessor(reg)

	st := &core.AssessmentState{Category: core.RiskSubstanceMisuse}
	sess := assessmentSession(st)

	invoke(t, a, sess, "okay") // entry question
	answers := []string{"rarely, maybe once a month", "no", "no", "no", "no"}
	for _, ans := range answers {
		tc := invoke(t, a, sess, ans)
		if st.Terminal() {
			assert.Equal(t, core.SeverityLow, st.Severity)
			assert.Equal(t, closingStatements[core.SeverityLow], tc.Prompt)
			return
		}
	}
	t.Fatal("protocol never reached a terminal state")
}

func TestAssessor_ErrorsWithoutAssessment(t *testing.T) {
	a := NewAssessor(testRegistry(t))
	tc := &core.TurnContext{
		Context: context.Background(),
		Session: testutil.NewSessionBuilder("u1", "c1").Build(),
		Input:   "hi",
	}
	assert.Error(t, a.Invoke(tc))
}
