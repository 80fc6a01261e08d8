package agent

import (
	"fmt"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/protocol"
)

// Assessor is the assessment interpreter. It drives one protocol to
// completion across turns: on the first assessment turn it surfaces the entry
// question; on each following turn it records the normalized answer for the
// current question, evaluates the branch rule against the accumulated answer
// map and either advances the pointer or finalizes severity. The whole agent
// is synchronous tree traversal; the responder narrates whatever prompt it
// produces.
type Assessor struct {
	registry *protocol.Registry
}

// NewAssessor creates the interpreter over a loaded protocol registry.
func NewAssessor(registry *protocol.Registry) *Assessor {
	return &Assessor{registry: registry}
}

// Name implements core.Agent.
func (a *Assessor) Name() string { return "risk_assessor" }

// Invoke implements core.Agent. It mutates the assessment state on the turn's
// session snapshot; the coordinator commits it after the stream completes.
func (a *Assessor) Invoke(tc *core.TurnContext) error {
	st := tc.Session.Assessment
	if st == nil {
		return fmt.Errorf("assessor invoked without active assessment")
	}
	p, ok := a.registry.Get(st.Category)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNoProtocol, st.Category)
	}

	if !st.Asked {
		// First turn of this assessment: deliver the current (entry)
		// question, record nothing.
		if st.Current == "" {
			st.Current = p.First().ID
		}
		q := p.Question(st.Current)
		if q == nil {
			return fmt.Errorf("protocol %s: unknown current question %q", p.ID, st.Current)
		}
		st.Asked = true
		tc.Prompt = q.Prompt
		return nil
	}

	q := p.Question(st.Current)
	if q == nil {
		return fmt.Errorf("protocol %s: unknown current question %q", p.ID, st.Current)
	}

	value := protocol.ParseAnswer(q.Type, tc.Input)
	st.Record(tc.Input, value)

	if p.IsCriticalHit(q, value) {
		st.Severity = core.SeverityImminent
		tc.Prompt = closingStatements[core.SeverityImminent]
		return nil
	}

	next := p.Next(q, value)
	if next == protocol.Terminal {
		st.Severity = p.Score(st.AnswerMap())
		tc.Prompt = closingStatements[st.Severity]
		return nil
	}

	nq := p.Question(next)
	if nq == nil {
		return fmt.Errorf("protocol %s: branch target %q missing", p.ID, next)
	}
	st.Current = next
	st.Asked = true
	tc.Prompt = nq.Prompt
	return nil
}
