package protocol

import (
	"strconv"
	"strings"
)

var yesMarkers = []string{
	"yes", "yeah", "yep", "yea", "i do", "i have", "i am", "definitely",
	"absolutely", "of course", "sometimes", "often", "every day",
}

var noMarkers = []string{
	"no", "nope", "nah", "never", "not at all", "i don't", "i dont",
	"i haven't", "i havent", "i'm not", "im not",
}

// ParseAnswer normalizes a raw utterance into an answer value for the given
// answer type. Normalization is deterministic and keyword-based; anything the
// rules cannot place maps to "unclear" (open-ended answers are kept verbatim).
func ParseAnswer(t AnswerType, raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))

	switch t {
	case AnswerOpenEnded:
		return strings.TrimSpace(raw)
	case AnswerYesNo:
		return parseYesNo(text)
	case AnswerScale:
		return parseScale(text)
	case AnswerFrequency:
		return parseFrequency(text)
	case AnswerTimeline:
		return parseTimeline(text)
	default:
		return "unclear"
	}
}

func parseYesNo(text string) string {
	// Denials first: "no, never" style answers also contain none of the
	// affirmative markers, but "not really" contains "really".
	for _, m := range noMarkers {
		if text == m || strings.HasPrefix(text, m+" ") || strings.HasPrefix(text, m+",") {
			return "no"
		}
	}
	for _, m := range yesMarkers {
		if text == m || strings.HasPrefix(text, m+" ") || strings.HasPrefix(text, m+",") || strings.Contains(text, " "+m) {
			return "yes"
		}
	}
	return "unclear"
}

func parseScale(text string) string {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		if n, err := strconv.Atoi(field); err == nil && n >= 0 && n <= 10 {
			return strconv.Itoa(n)
		}
	}
	return "unclear"
}

func parseFrequency(text string) string {
	switch {
	case containsAny(text, "every day", "daily", "all the time", "constantly", "can't stop", "cant stop"):
		return "daily"
	case containsAny(text, "often", "most days", "a lot", "frequently", "regularly"):
		return "often"
	case containsAny(text, "sometimes", "occasionally", "now and then", "once in a while"):
		return "sometimes"
	case containsAny(text, "never", "rarely", "hardly", "almost never", "no"):
		return "rarely"
	default:
		return "unclear"
	}
}

func parseTimeline(text string) string {
	switch {
	case containsAny(text, "right now", "now", "today", "currently", "tonight", "this week", "at the moment"):
		return "current"
	case containsAny(text, "last week", "recently", "few days", "this month", "lately"):
		return "recent"
	case containsAny(text, "years ago", "a long time", "in the past", "used to", "long ago", "months ago"):
		return "past"
	default:
		return "unclear"
	}
}

func containsAny(text string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
