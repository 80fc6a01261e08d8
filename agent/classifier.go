package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/provider"
)

// DefaultWindow is how many recent messages the classifier inspects per turn.
// The window is configurable and does not change with the session mode.
const DefaultWindow = 5

// ClassifierOptions configure the risk classifier.
type ClassifierOptions struct {
	Window int
}

// Classifier is the supervisor agent. Once per user turn it reads a bounded,
// read-only window of recent messages (oldest first, plus the current
// utterance) and emits zero or more independently confidence-scored risk
// signals. It never mutates the session; a failed call is logged by the
// coordinator and treated as "no signal this turn".
type Classifier struct {
	llm    provider.Provider
	window int
}

// NewClassifier creates the classifier over a single provider.
func NewClassifier(llm provider.Provider, optFns ...func(o *ClassifierOptions)) *Classifier {
	opts := ClassifierOptions{Window: DefaultWindow}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{llm: llm, window: opts.Window}
}

// Name implements core.Agent.
func (c *Classifier) Name() string { return "supervisor" }

// verdict is the wire shape the classifier model must produce. Its JSON
// schema is generated reflectively and embedded in the system prompt.
type verdict struct {
	RiskDetected      bool     `json:"risk_detected" jsonschema:"required"`
	RiskTypes         []string `json:"risk_types" jsonschema:"required"`
	Confidence        string   `json:"confidence" jsonschema:"required,enum=none,enum=low,enum=medium,enum=high"`
	TriggeringContent string   `json:"triggering_content"`
	Reasoning         string   `json:"reasoning"`
}

var (
	schemaOnce sync.Once
	schemaJSON string
)

// verdictSchema renders the verdict JSON schema once per process.
func verdictSchema() string {
	schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  false,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
		}
		b, err := json.MarshalIndent(reflector.Reflect(&verdict{}), "", "  ")
		if err != nil {
			// Reflection over a fixed struct cannot fail at runtime.
			panic(err)
		}
		schemaJSON = string(b)
	})
	return schemaJSON
}

// Invoke implements core.Agent, filling tc.Signals with the parsed verdict.
func (c *Classifier) Invoke(tc *core.TurnContext) error {
	// The current utterance occupies one slot of the window. A window of 1
	// means the transcript is the utterance alone; Session.Window(0) would
	// return the whole history instead.
	var window []core.Message
	if n := c.window - 1; n > 0 {
		window = tc.Session.Window(n)
	}

	var transcript strings.Builder
	for _, m := range window {
		writeTranscriptLine(&transcript, m.Role, m.Content)
	}
	writeTranscriptLine(&transcript, core.RoleUser, tc.Input)

	msgs := []core.Message{
		core.NewSystemMessage(classifierSystem + verdictSchema()),
		core.NewUserMessage(transcript.String()),
	}

	raw, err := c.llm.Generate(tc.Context, msgs)
	if err != nil {
		return fmt.Errorf("classifier call: %w", err)
	}

	signals, err := parseVerdict(raw)
	if err != nil {
		return fmt.Errorf("classifier verdict: %w", err)
	}
	tc.Signals = signals
	return nil
}

func writeTranscriptLine(sb *strings.Builder, role core.Role, content string) {
	label := "User"
	if role == core.RoleAssistant {
		label = "Amanda"
	}
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(content)
	sb.WriteString("\n")
}

// parseVerdict tolerates prose around the JSON object: it parses the first
// top-level object found in the completion.
func parseVerdict(raw string) ([]core.RiskSignal, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in %q", truncate(raw, 120))
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, err
	}
	if !v.RiskDetected {
		return nil, nil
	}

	conf := core.ParseConfidence(v.Confidence)
	signals := make([]core.RiskSignal, 0, len(v.RiskTypes))
	for _, rt := range v.RiskTypes {
		cat, err := core.ParseRiskCategory(rt)
		if err != nil {
			// Unknown categories from the model are dropped, not fatal.
			continue
		}
		signals = append(signals, core.RiskSignal{
			Category:   cat,
			Confidence: conf,
			Evidence:   v.TriggeringContent,
			Reasoning:  v.Reasoning,
		})
	}
	return signals, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
