package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amandahq/converse/core"
)

func validProtocol() *Protocol {
	return &Protocol{
		ID:         "test-v1",
		Category:   core.RiskSuicidality,
		Thresholds: Thresholds{High: 5, Medium: 3},
		Questions: []Question{
			{ID: "q1", Prompt: "First?", Type: AnswerYesNo, Weight: 2, Branch: map[string]string{"no": Terminal}, Next: "q2"},
			{ID: "q2", Prompt: "Second?", Type: AnswerScale, Weight: 3, Next: "q3"},
			{ID: "q3", Prompt: "Third?", Type: AnswerYesNo, Weight: 3, Critical: true, CriticalValue: "yes"},
		},
	}
}

func TestProtocol_ValidateAccepts(t *testing.T) {
	p := validProtocol()
	require.NoError(t, p.Validate())
	assert.Equal(t, "q1", p.First().ID)
	assert.Equal(t, 3, p.Len())
	assert.NotNil(t, p.Question("q2"))
	assert.Nil(t, p.Question("missing"))
}

func TestProtocol_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Protocol)
	}{
		{"missing id", func(p *Protocol) { p.ID = "" }},
		{"unknown category", func(p *Protocol) { p.Category = "gambling" }},
		{"no questions", func(p *Protocol) { p.Questions = nil }},
		{"thresholds inverted", func(p *Protocol) { p.Thresholds = Thresholds{High: 2, Medium: 4} }},
		{"duplicate question id", func(p *Protocol) { p.Questions[1].ID = "q1" }},
		{"missing prompt", func(p *Protocol) { p.Questions[0].Prompt = "" }},
		{"unknown answer type", func(p *Protocol) { p.Questions[0].Type = "maybe" }},
		{"branch to unknown node", func(p *Protocol) { p.Questions[0].Branch["yes"] = "q9" }},
		{"next to unknown node", func(p *Protocol) { p.Questions[1].Next = "q9" }},
		{"critical without value", func(p *Protocol) { p.Questions[2].CriticalValue = "" }},
		{"two critical questions", func(p *Protocol) {
			p.Questions[0].Critical = true
			p.Questions[0].CriticalValue = "yes"
		}},
		{"branch cycle", func(p *Protocol) { p.Questions[2].Next = "q1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProtocol()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestProtocol_NextFollowsBranchThenDefault(t *testing.T) {
	p := validProtocol()
	require.NoError(t, p.Validate())

	q1 := p.Question("q1")
	assert.Equal(t, Terminal, p.Next(q1, "no"))
	assert.Equal(t, "q2", p.Next(q1, "yes"))
	assert.Equal(t, "q2", p.Next(q1, "unclear"))

	// Empty Next with no matching branch terminates.
	q3 := p.Question("q3")
	assert.Equal(t, Terminal, p.Next(q3, "no"))
}

func TestProtocol_IsCriticalHit(t *testing.T) {
	p := validProtocol()
	require.NoError(t, p.Validate())

	q3 := p.Question("q3")
	assert.True(t, p.IsCriticalHit(q3, "yes"))
	assert.False(t, p.IsCriticalHit(q3, "no"))
	assert.False(t, p.IsCriticalHit(p.Question("q1"), "yes"))
}

func TestProtocol_ScoreOverFullAnswerMap(t *testing.T) {
	p := validProtocol()
	require.NoError(t, p.Validate())

	tests := []struct {
		name    string
		answers map[string]string
		want    core.Severity
	}{
		{"nothing flagged", map[string]string{"q1": "no", "q2": "2", "q3": "no"}, core.SeverityLow},
		{"medium score", map[string]string{"q1": "no", "q2": "8", "q3": "no"}, core.SeverityMedium},
		{"high score", map[string]string{"q1": "yes", "q2": "8", "q3": "no"}, core.SeverityHigh},
		{"unclear answers not flagged", map[string]string{"q1": "unclear", "q2": "unclear"}, core.SeverityLow},
		{"unknown ids ignored", map[string]string{"q9": "yes"}, core.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Score(tt.answers))
		})
	}
}

func TestRegistry_DuplicateCategoryRejected(t *testing.T) {
	a := validProtocol()
	require.NoError(t, a.Validate())
	b := validProtocol()
	b.ID = "test-v2"
	require.NoError(t, b.Validate())

	_, err := NewRegistry(a, b)
	assert.Error(t, err)
}

func TestLoadBuiltin_CoversAllCategories(t *testing.T) {
	r, err := LoadBuiltin()
	require.NoError(t, err)

	for _, cat := range core.Categories() {
		p, ok := r.Get(cat)
		require.True(t, ok, "missing protocol for %s", cat)
		assert.Equal(t, cat, p.Category)
		assert.NotEmpty(t, p.First().Prompt)
	}
	assert.Len(t, r.Categories(), len(core.Categories()))
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("id: [broken"))
	assert.Error(t, err)

	_, err = Load([]byte("id: x\ncategory: suicidality\nquestions: []\n"))
	assert.Error(t, err)
}
