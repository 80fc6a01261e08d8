package core

import "fmt"

// RiskCategory enumerates the closed set of risk types the classifier detects.
type RiskCategory string

const (
	// RiskSuicidality covers suicidal ideation and self-harm.
	RiskSuicidality RiskCategory = "suicidality"
	// RiskIPV covers intimate partner violence.
	RiskIPV RiskCategory = "ipv"
	// RiskSubstanceMisuse covers substance misuse and addiction.
	RiskSubstanceMisuse RiskCategory = "substance_misuse"
)

// Categories returns all known risk categories in stable order.
func Categories() []RiskCategory {
	return []RiskCategory{RiskSuicidality, RiskIPV, RiskSubstanceMisuse}
}

// ParseRiskCategory validates a raw category string.
func ParseRiskCategory(s string) (RiskCategory, error) {
	switch RiskCategory(s) {
	case RiskSuicidality, RiskIPV, RiskSubstanceMisuse:
		return RiskCategory(s), nil
	}
	return "", fmt.Errorf("unknown risk category %q", s)
}

// Confidence expresses how certain the classifier is about a signal.
// The zero value ConfidenceNone means "no signal".
type Confidence int

const (
	// ConfidenceNone means no risk was detected.
	ConfidenceNone Confidence = iota
	// ConfidenceLow warrants monitoring only.
	ConfidenceLow
	// ConfidenceMedium triggers an assessment.
	ConfidenceMedium
	// ConfidenceHigh triggers an assessment.
	ConfidenceHigh
)

// String returns the wire representation of the confidence level.
func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "none"
	}
}

// ParseConfidence maps a wire string to a Confidence level. Unknown values
// degrade to ConfidenceNone rather than failing the turn.
func ParseConfidence(s string) Confidence {
	switch s {
	case "low":
		return ConfidenceLow
	case "medium":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceNone
	}
}

// Actionable reports whether the confidence level is high enough to promote
// a category into an assessment.
func (c Confidence) Actionable() bool { return c >= ConfidenceMedium }

// RiskSignal is the classifier's verdict for a single detected category.
// Signals are produced from a read-only message window and never mutate the
// session they were derived from.
type RiskSignal struct {
	Category   RiskCategory `json:"category"`
	Confidence Confidence   `json:"confidence"`
	Evidence   string       `json:"evidence"`
	Reasoning  string       `json:"reasoning,omitempty"`
}
