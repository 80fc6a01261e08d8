package core

import (
	"context"

	"github.com/amandahq/converse/logging"
)

// TurnContext carries the per-turn execution scope handed to an agent's
// Invoke method. It aggregates:
//
//   - The ambient cancellation Context
//   - Identifiers (TurnID) and the session snapshot for this turn
//   - The current user utterance and, in assessment mode, the interpreter
//     prompt the responder narrates
//   - The fragment emission channel feeding the transport stream
//   - Output slots filled by the classifier (Signals)
//
// The Session field is a snapshot clone; agents never mutate the
// authoritative session directly. The coordinator commits any staged
// assessment changes after the turn completes.
type TurnContext struct {
	Context context.Context
	TurnID  string
	Session *Session
	// Input is the raw user utterance for this turn.
	Input string
	// Prompt is the interpreter text the responder narrates while the
	// session is in assessment mode. Empty in normal mode.
	Prompt string
	// Emit receives response fragments in generation order. Only the
	// responder writes to it.
	Emit chan<- string
	// Signals is filled by the classifier before the coordinator consumes
	// the verdict.
	Signals []RiskSignal
	// Reply is the full concatenated response text, filled by the responder
	// once its stream completes.
	Reply string
	// Backend names the provider that produced the reply; FellBack is true
	// when the primary provider failed and a fallback answered.
	Backend  string
	FellBack bool

	Logger logging.Logger
}

// EmitText delivers one fragment, honoring cancellation.
func (tc *TurnContext) EmitText(text string) error {
	select {
	case <-tc.Context.Done():
		return tc.Context.Err()
	case tc.Emit <- text:
		return nil
	}
}

// Agent is the single capability interface implemented by the closed set of
// processing units (responder, classifier, assessor). The coordinator selects
// an agent by explicit session mode, never by runtime type inspection.
type Agent interface {
	Name() string
	Invoke(tc *TurnContext) error
}
