package core

// Severity is the terminal verdict of a completed assessment.
type Severity string

const (
	// SeverityNone is the zero verdict of an unfinished assessment.
	SeverityNone Severity = ""
	// SeverityLow means monitor and provide resources.
	SeverityLow Severity = "low"
	// SeverityMedium means a professional assessment is recommended.
	SeverityMedium Severity = "medium"
	// SeverityHigh means urgent professional help is needed.
	SeverityHigh Severity = "high"
	// SeverityImminent means immediate intervention is required.
	SeverityImminent Severity = "imminent"
)

// Answer records one question/answer exchange during an assessment.
// The slice order inside AssessmentState is the ask order.
type Answer struct {
	QuestionID string `json:"question_id"`
	Raw        string `json:"raw"`
	Value      string `json:"value"` // normalized per the question's answer type
}

// AssessmentState tracks one in-flight protocol traversal. It is created when
// a risk category is promoted out of the session's RiskQueue and collapsed
// into a verdict plus audit entry when the protocol completes.
//
// Invariants:
//   - At most one AssessmentState exists per session.
//   - Answers are append-only; their order is the ask order.
//   - Severity stays SeverityNone until the traversal is terminal.
type AssessmentState struct {
	Category   RiskCategory `json:"category"`
	ProtocolID string       `json:"protocol_id"`
	Answers    []Answer     `json:"answers"`
	// Current is the id of the question the user is (about to be) asked.
	Current string `json:"current"`
	// Asked reports whether Current has already been put to the user. The
	// first assessment turn delivers the question; the following turn
	// records the answer.
	Asked    bool     `json:"asked"`
	Severity Severity `json:"severity"`
	// StartIndex is the message history length at the moment the assessment
	// began. Summarization cuts the history here while the assessment is
	// still open.
	StartIndex int `json:"start_index"`
}

// Terminal reports whether the assessment has reached a verdict.
func (a *AssessmentState) Terminal() bool { return a.Severity != SeverityNone }

// Record appends a normalized answer for the current question.
func (a *AssessmentState) Record(raw, value string) {
	a.Answers = append(a.Answers, Answer{QuestionID: a.Current, Raw: raw, Value: value})
}

// AnswerMap returns the accumulated answers keyed by question id.
func (a *AssessmentState) AnswerMap() map[string]string {
	m := make(map[string]string, len(a.Answers))
	for _, ans := range a.Answers {
		m[ans.QuestionID] = ans.Value
	}
	return m
}

// Clone returns a deep copy safe for independent mutation.
func (a *AssessmentState) Clone() *AssessmentState {
	if a == nil {
		return nil
	}
	c := *a
	c.Answers = make([]Answer, len(a.Answers))
	copy(c.Answers, a.Answers)
	return &c
}
