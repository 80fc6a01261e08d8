package provider

import (
	"context"

	"github.com/amandahq/converse/core"
)

// Info contains metadata about a provider implementation.
type Info struct {
	Name    string `json:"name"`    // model identifier, e.g. "gpt-4o-mini"
	Backend string `json:"backend"` // "openai", "anthropic", "mock", ...
}

// Provider is the minimal interface required to drive text generation.
//
// Contract:
//   - Generate blocks until the full completion is available.
//   - Stream returns a fragment channel and an error channel; fragments are
//     delivered in generation order, both channels are closed when the call
//     finishes, and the error channel carries at most one terminal error.
//   - CountTokens is a best-effort estimate and never fails.
//
// Implementations must respect context cancellation on Generate and Stream;
// these are the only blocking operations in the engine.
type Provider interface {
	Generate(ctx context.Context, msgs []core.Message) (string, error)
	Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error)
	CountTokens(msgs []core.Message) int
	Info() Info
}

// EstimateTokens approximates the token count of a message slice at four
// characters per token. Backends without an exact tokenizer share this.
func EstimateTokens(msgs []core.Message) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Content) / 4
	}
	return n
}
