package agent

import (
	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/provider"
)

// ResponderOptions configure the responder.
type ResponderOptions struct {
	// MaxHistory bounds how many history messages are sent to the provider.
	MaxHistory int
}

// Responder is the primary user-facing agent. It is stateless: each turn it
// assembles the provider input from the session snapshot (guard prompt, seed
// summary for returning users, bounded history, current utterance) and
// streams the reply through the failover chain. While an assessment is
// active it narrates the interpreter's prompt instead of free-form replying.
type Responder struct {
	llm        *provider.Failover
	maxHistory int
}

// NewResponder creates the responder over a failover chain.
func NewResponder(llm *provider.Failover, optFns ...func(o *ResponderOptions)) *Responder {
	opts := ResponderOptions{MaxHistory: 100}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Responder{llm: llm, maxHistory: opts.MaxHistory}
}

// Name implements core.Agent.
func (r *Responder) Name() string { return "amanda" }

// Greeting returns the opening message shown before the first turn.
func (r *Responder) Greeting() string { return Greeting }

// Invoke implements core.Agent. Fragments go to tc.Emit in generation order;
// the full concatenated reply lands in tc.Reply once the stream completes.
func (r *Responder) Invoke(tc *core.TurnContext) error {
	msgs := r.buildMessages(tc)

	reply, outcome, err := r.llm.Stream(tc.Context, msgs, tc.EmitText)
	if err != nil {
		return err
	}

	tc.Reply = reply
	tc.Backend = outcome.Backend
	tc.FellBack = outcome.FellBack
	return nil
}

func (r *Responder) buildMessages(tc *core.TurnContext) []core.Message {
	history := tc.Session.History()

	msgs := make([]core.Message, 0, len(history)+5)
	msgs = append(msgs, core.NewSystemMessage(responderGuard))
	if tc.Session.Exchanges() < earlyStageExchanges {
		msgs = append(msgs, core.NewSystemMessage(earlyStageGuidance))
	}

	// Seed summary only on the first turn of a returning user's new
	// conversation; raw prior content is never re-exposed.
	if tc.Session.SeedSummary != "" && len(history) == 0 {
		msgs = append(msgs, core.NewSystemMessage(summaryPreamble+tc.Session.SeedSummary))
	}

	if r.maxHistory > 0 && len(history) > r.maxHistory {
		history = history[len(history)-r.maxHistory:]
	}
	msgs = append(msgs, history...)

	if tc.Prompt != "" {
		msgs = append(msgs, core.NewSystemMessage(narrateInstruction+tc.Prompt))
	}

	msgs = append(msgs, core.NewUserMessage(tc.Input))
	return msgs
}
