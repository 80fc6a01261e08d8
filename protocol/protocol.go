package protocol

import (
	"fmt"
	"strconv"

	"github.com/amandahq/converse/core"
)

// Terminal is the branch target that ends a protocol traversal.
const Terminal = "terminal"

// AnswerType constrains how a raw utterance is normalized into an answer value.
type AnswerType string

const (
	// AnswerYesNo expects an affirmation or denial.
	AnswerYesNo AnswerType = "yes_no"
	// AnswerOpenEnded records the utterance verbatim.
	AnswerOpenEnded AnswerType = "open_ended"
	// AnswerFrequency buckets how often something happens.
	AnswerFrequency AnswerType = "frequency"
	// AnswerTimeline buckets when something happened.
	AnswerTimeline AnswerType = "timeline"
	// AnswerScale expects a 0-10 rating.
	AnswerScale AnswerType = "scale"
)

// Question is one node of the protocol tree.
type Question struct {
	ID     string     `yaml:"id"`
	Prompt string     `yaml:"prompt"`
	Type   AnswerType `yaml:"answer_type"`
	// Branch maps normalized answer values to the next node id or Terminal.
	// Values not present fall through to Next.
	Branch map[string]string `yaml:"branch,omitempty"`
	// Next is the default follow-up node; empty means Terminal.
	Next string `yaml:"next,omitempty"`
	// Weight contributes to the severity score when the answer is flagged.
	Weight int `yaml:"severity_weight"`
	// Critical marks the protocol's single early-exit question: answering it
	// with CriticalValue finalizes severity as imminent immediately.
	Critical      bool   `yaml:"critical,omitempty"`
	CriticalValue string `yaml:"critical_value,omitempty"`
}

// Thresholds map the aggregate severity score onto a verdict. A score at or
// above High yields SeverityHigh, at or above Medium yields SeverityMedium,
// anything below is SeverityLow.
type Thresholds struct {
	High   int `yaml:"high"`
	Medium int `yaml:"medium"`
}

// Protocol is an immutable, validated question tree for one risk category.
type Protocol struct {
	ID         string            `yaml:"id"`
	Category   core.RiskCategory `yaml:"category"`
	Thresholds Thresholds        `yaml:"thresholds"`
	Questions  []Question        `yaml:"questions"`

	byID map[string]*Question
}

// First returns the entry question of the tree.
func (p *Protocol) First() *Question { return &p.Questions[0] }

// Question returns the node with the given id, or nil.
func (p *Protocol) Question(id string) *Question { return p.byID[id] }

// Len returns the number of nodes in the tree.
func (p *Protocol) Len() int { return len(p.Questions) }

// Next evaluates the branch rule of the question against the normalized
// answer value and returns the id of the next node, or Terminal.
func (p *Protocol) Next(q *Question, value string) string {
	if next, ok := q.Branch[value]; ok {
		if next == "" {
			return Terminal
		}
		return next
	}
	if q.Next == "" {
		return Terminal
	}
	return q.Next
}

// IsCriticalHit reports whether answering q with value triggers the
// imminent-risk early exit.
func (p *Protocol) IsCriticalHit(q *Question, value string) bool {
	return q.Critical && value == q.CriticalValue
}

// Score computes the terminal severity from the full answer map. The score is
// the sum of the weights of every flagged answer; it is evaluated only once
// the tree reaches a terminal node. Early-exit imminent severity is decided
// by IsCriticalHit, not here.
func (p *Protocol) Score(answers map[string]string) core.Severity {
	score := 0
	for id, value := range answers {
		q := p.byID[id]
		if q == nil {
			continue
		}
		if answerFlagged(q, value) {
			score += q.Weight
		}
	}
	switch {
	case score >= p.Thresholds.High:
		return core.SeverityHigh
	case score >= p.Thresholds.Medium:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

// answerFlagged reports whether a normalized answer counts toward the score.
func answerFlagged(q *Question, value string) bool {
	switch q.Type {
	case AnswerYesNo:
		return value == "yes"
	case AnswerScale:
		n, err := strconv.Atoi(value)
		return err == nil && n >= 6
	case AnswerFrequency:
		return value == "often" || value == "daily"
	case AnswerTimeline:
		return value == "current"
	default:
		return false
	}
}

// Validate checks the structural invariants of a parsed protocol:
// non-empty tree, unique ids, every branch target exists or is Terminal,
// no cycles reachable from the first question, and at most one critical
// early-exit node. A validation failure is fatal at load time.
func (p *Protocol) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("protocol: missing id")
	}
	if _, err := core.ParseRiskCategory(string(p.Category)); err != nil {
		return fmt.Errorf("protocol %s: %w", p.ID, err)
	}
	if len(p.Questions) == 0 {
		return fmt.Errorf("protocol %s: no questions", p.ID)
	}
	if p.Thresholds.High < p.Thresholds.Medium {
		return fmt.Errorf("protocol %s: high threshold below medium", p.ID)
	}

	p.byID = make(map[string]*Question, len(p.Questions))
	for i := range p.Questions {
		q := &p.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("protocol %s: question %d missing id", p.ID, i)
		}
		if _, dup := p.byID[q.ID]; dup {
			return fmt.Errorf("protocol %s: duplicate question id %q", p.ID, q.ID)
		}
		if q.Prompt == "" {
			return fmt.Errorf("protocol %s: question %q missing prompt", p.ID, q.ID)
		}
		switch q.Type {
		case AnswerYesNo, AnswerOpenEnded, AnswerFrequency, AnswerTimeline, AnswerScale:
		default:
			return fmt.Errorf("protocol %s: question %q has unknown answer type %q", p.ID, q.ID, q.Type)
		}
		p.byID[q.ID] = q
	}

	criticals := 0
	for i := range p.Questions {
		q := &p.Questions[i]
		if q.Critical {
			criticals++
			if q.CriticalValue == "" {
				return fmt.Errorf("protocol %s: critical question %q missing critical_value", p.ID, q.ID)
			}
		}
		for value, target := range q.Branch {
			if target != Terminal && target != "" && p.byID[target] == nil {
				return fmt.Errorf("protocol %s: question %q branch %q references unknown node %q", p.ID, q.ID, value, target)
			}
		}
		if q.Next != "" && q.Next != Terminal && p.byID[q.Next] == nil {
			return fmt.Errorf("protocol %s: question %q next references unknown node %q", p.ID, q.ID, q.Next)
		}
	}
	if criticals > 1 {
		return fmt.Errorf("protocol %s: more than one critical early-exit question", p.ID)
	}

	if err := p.checkCycles(); err != nil {
		return err
	}
	return nil
}

// checkCycles walks every branch edge depth-first and rejects any path that
// revisits a node.
func (p *Protocol) checkCycles() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(p.Questions))

	var visit func(id string) error
	visit = func(id string) error {
		if id == Terminal || id == "" {
			return nil
		}
		switch state[id] {
		case visiting:
			return fmt.Errorf("protocol %s: branch cycle through question %q", p.ID, id)
		case done:
			return nil
		}
		state[id] = visiting
		q := p.byID[id]
		for _, target := range q.Branch {
			if err := visit(target); err != nil {
				return err
			}
		}
		if err := visit(q.Next); err != nil {
			return err
		}
		state[id] = done
		return nil
	}

	return visit(p.Questions[0].ID)
}
