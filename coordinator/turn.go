package coordinator

import (
	"context"
	"time"

	"github.com/amandahq/converse/agent"
	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/logging"
)

// turn carries the state of one in-flight HandleTurn invocation.
type turn struct {
	c              *Coordinator
	id             string
	userID         string
	conversationID string
	input          string
	snapshot       *core.Session
	chunks         chan<- core.Chunk
	errs           chan<- error
	logger         logging.Logger
}

type classifierResult struct {
	signals []core.RiskSignal
	err     error
}

// run executes the turn pipeline. Ordering contract: fragments are relayed in
// generation order; the classifier verdict is consumed only after the visible
// stream finishes; history, mode transitions and the audit record are
// committed only for turns that reach the done chunk.
func (t *turn) run(ctx context.Context) {
	startMode := t.snapshot.Mode

	classCh := make(chan classifierResult, 1)
	go t.classify(ctx, classCh)

	var (
		prompt      string
		asmt        *core.AssessmentState
		prevAnswers int
		crisis      bool
		agents      []string
	)

	if startMode == core.ModeAssessment {
		asmt = t.snapshot.Assessment
		prevAnswers = len(asmt.Answers)

		atc := &core.TurnContext{
			Context: ctx,
			TurnID:  t.id,
			Session: t.snapshot,
			Input:   t.input,
			Logger:  t.logger,
		}
		if err := t.c.assessor.Invoke(atc); err != nil {
			t.fail(ctx, startMode, nil, err)
			return
		}
		prompt = atc.Prompt
		crisis = asmt.Severity == core.SeverityImminent
		agents = append(agents, t.c.assessor.Name())
	}

	// Relay responder fragments to the caller in emit order. The forwarder
	// exits on cancellation; the responder's emit path observes the same
	// context and unblocks on its own.
	frags := make(chan string, t.c.chunkBufferSize)
	fwdDone := make(chan struct{})
	go func() {
		defer close(fwdDone)
		for f := range frags {
			select {
			case <-ctx.Done():
				return
			case t.chunks <- core.TextChunk(f):
			}
		}
	}()

	if crisis {
		select {
		case <-ctx.Done():
			close(frags)
			<-fwdDone
			return
		case frags <- agent.CrisisNotice:
		}
	}

	rtc := &core.TurnContext{
		Context: ctx,
		TurnID:  t.id,
		Session: t.snapshot,
		Input:   t.input,
		Prompt:  prompt,
		Emit:    frags,
		Logger:  t.logger,
	}
	rerr := t.c.responder.Invoke(rtc)
	close(frags)
	<-fwdDone

	agents = append(agents, t.c.responder.Name(), t.c.classifier.Name())

	if rerr != nil {
		if ctx.Err() != nil {
			t.logger.Info("turn cancelled turn_id=%s conversation_id=%s", t.id, t.conversationID)
			return
		}
		t.fail(ctx, startMode, agents, rerr)
		return
	}

	var signals []core.RiskSignal
	select {
	case <-ctx.Done():
		return
	case res := <-classCh:
		if res.err != nil {
			// Safety monitoring degrades gracefully: no signal this turn.
			t.logger.Warn("classifier failed turn_id=%s err=%v", t.id, res.err)
		} else {
			signals = res.signals
		}
	}

	if ctx.Err() != nil {
		return
	}

	reply := rtc.Reply
	if crisis {
		reply = agent.CrisisNotice + reply
	}

	userMsg := core.NewUserMessage(t.input)
	asstMsg := core.NewAssistantMessage(reply)
	if err := t.c.memory.Append(t.userID, t.conversationID, userMsg, asstMsg); err != nil {
		t.fail(ctx, startMode, agents, err)
		return
	}
	t.save(ctx, userMsg)
	t.save(ctx, asstMsg)

	if startMode == core.ModeAssessment {
		t.commitAssessment(asmt)
	}
	for _, sig := range signals {
		t.logger.Info("risk signal turn_id=%s category=%s confidence=%s", t.id, sig.Category, sig.Confidence)
		if !sig.Confidence.Actionable() {
			continue
		}
		if err := t.c.memory.PushRisk(t.userID, t.conversationID, sig.Category); err != nil {
			t.logger.Error("push risk failed turn_id=%s err=%v", t.id, err)
		}
	}
	t.promoteIfIdle()

	t.record(ctx, core.AuditRecord{
		TurnID:         t.id,
		UserID:         t.userID,
		ConversationID: t.conversationID,
		Mode:           startMode,
		Agents:         agents,
		Signals:        signals,
		Answers:        turnAnswers(asmt, prevAnswers),
		Severity:       turnSeverity(asmt),
		Failover:       rtc.FellBack,
		At:             time.Now().UTC(),
	})

	select {
	case <-ctx.Done():
	case t.chunks <- core.DoneChunk():
	}
}

// classify runs the supervisor pass concurrently with response generation so
// it never adds latency to the visible reply.
func (t *turn) classify(ctx context.Context, out chan<- classifierResult) {
	tc := &core.TurnContext{
		Context: ctx,
		TurnID:  t.id,
		Session: t.snapshot,
		Input:   t.input,
		Logger:  t.logger,
	}
	err := t.c.classifier.Invoke(tc)
	out <- classifierResult{signals: tc.Signals, err: err}
}

// commitAssessment writes the turn's assessment progress back to the
// authoritative session. A terminal assessment is closed out, with the next
// queued category promoted immediately when one is waiting.
func (t *turn) commitAssessment(asmt *core.AssessmentState) {
	if err := t.c.memory.ReplaceAssessment(t.userID, t.conversationID, asmt); err != nil {
		t.logger.Error("commit assessment failed turn_id=%s err=%v", t.id, err)
		return
	}
	if !asmt.Terminal() {
		return
	}
	t.logger.Info("assessment complete turn_id=%s category=%s severity=%s", t.id, asmt.Category, asmt.Severity)
	if err := t.c.memory.EndAssessment(t.userID, t.conversationID); err != nil {
		t.logger.Error("end assessment failed turn_id=%s err=%v", t.id, err)
	}
}

// promoteIfIdle pops the oldest queued risk category and installs its
// protocol when no assessment is active. The next turn narrates the entry
// question.
func (t *turn) promoteIfIdle() {
	snap, err := t.c.memory.Snapshot(t.userID, t.conversationID)
	if err != nil || snap.Assessment != nil {
		return
	}
	for {
		cat, ok, err := t.c.memory.PromoteRisk(t.userID, t.conversationID)
		if err != nil || !ok {
			return
		}
		p, found := t.c.registry.Get(cat)
		if !found {
			// Validated registries cover every category; an unmatched
			// entry is dropped rather than wedging the queue.
			t.logger.Error("no protocol for category=%s, dropping", cat)
			continue
		}
		st := &core.AssessmentState{
			Category:   cat,
			ProtocolID: p.ID,
			Current:    p.First().ID,
		}
		if err := t.c.memory.BeginAssessment(t.userID, t.conversationID, st); err != nil {
			t.logger.Error("begin assessment failed turn_id=%s err=%v", t.id, err)
		}
		t.logger.Info("assessment promoted turn_id=%s category=%s protocol=%s", t.id, cat, p.ID)
		return
	}
}

func (t *turn) save(ctx context.Context, msg core.Message) {
	if t.c.messages == nil {
		return
	}
	err := t.c.messages.SaveMessage(ctx, t.conversationID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		t.logger.Warn("save message failed conversation_id=%s err=%v", t.conversationID, err)
	}
}

func (t *turn) record(ctx context.Context, rec core.AuditRecord) {
	if err := t.c.audit.Record(context.WithoutCancel(ctx), rec); err != nil {
		t.logger.Warn("audit record failed turn_id=%s err=%v", t.id, err)
	}
}

// fail surfaces the turn failure out-of-band and records it. The session is
// left exactly as it was before the turn.
func (t *turn) fail(ctx context.Context, mode core.Mode, agents []string, err error) {
	t.logger.Error("turn failed turn_id=%s conversation_id=%s err=%v", t.id, t.conversationID, err)
	select {
	case <-ctx.Done():
	case t.errs <- err:
	}
	t.record(ctx, core.AuditRecord{
		TurnID:         t.id,
		UserID:         t.userID,
		ConversationID: t.conversationID,
		Mode:           mode,
		Agents:         agents,
		Error:          err.Error(),
		At:             time.Now().UTC(),
	})
}

func turnAnswers(asmt *core.AssessmentState, prev int) []core.Answer {
	if asmt == nil || prev >= len(asmt.Answers) {
		return nil
	}
	return asmt.Answers[prev:]
}

func turnSeverity(asmt *core.AssessmentState) core.Severity {
	if asmt == nil {
		return core.SeverityNone
	}
	return asmt.Severity
}
