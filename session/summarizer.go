package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/logging"
	"github.com/amandahq/converse/provider"
)

const summarizerSystem = `You summarize a supportive conversation so a future conversation with the same person can pick up naturally. Write a short synopsis (3-5 sentences) of what the person is going through, how they feel about it, and what ground was covered. Then list up to five one-line highlights, each on its own line starting with "- ". Do not quote the person verbatim and never include names, locations or other identifying details.`

// SummarizerOptions configure summarization.
type SummarizerOptions struct {
	Logger logging.Logger
}

// Summarizer condenses a closed conversation into a SessionSummary via a
// provider call. History belonging to a still-open assessment is cut before
// summarization so unterminated assessment content never leaks into the seed
// context of a later conversation.
type Summarizer struct {
	llm    provider.Provider
	logger logging.Logger
}

// NewSummarizer creates a summarizer over a provider.
func NewSummarizer(llm provider.Provider, optFns ...func(o *SummarizerOptions)) *Summarizer {
	opts := SummarizerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Summarizer{llm: llm, logger: opts.Logger}
}

// Summarize produces the summary for a session, or nil when there is nothing
// to summarize.
func (s *Summarizer) Summarize(ctx context.Context, sess *core.Session) (*core.SessionSummary, error) {
	history := sess.History()
	if sess.Assessment != nil && !sess.Assessment.Terminal() {
		history = history[:sess.Assessment.StartIndex]
	}
	if len(history) == 0 {
		return nil, nil
	}

	var transcript strings.Builder
	for _, m := range history {
		label := "Person"
		if m.Role == core.RoleAssistant {
			label = "Companion"
		}
		fmt.Fprintf(&transcript, "%s: %s\n", label, m.Content)
	}

	msgs := []core.Message{
		core.NewSystemMessage(summarizerSystem),
		core.NewUserMessage(transcript.String()),
	}
	text, err := s.llm.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("summarize conversation: %w", err)
	}

	synopsis, highlights := splitSummary(text)
	return &core.SessionSummary{
		UserID:         sess.UserID,
		ConversationID: sess.ConversationID,
		Synopsis:       synopsis,
		Highlights:     highlights,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// splitSummary separates the synopsis paragraph from "- " highlight lines.
func splitSummary(text string) (string, []string) {
	var synopsis []string
	var highlights []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") {
			highlights = append(highlights, strings.TrimPrefix(trimmed, "- "))
			continue
		}
		synopsis = append(synopsis, trimmed)
	}
	return strings.Join(synopsis, " "), highlights
}
