package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/amandahq/converse/core"
)

// Mock is a lightweight deterministic Provider for tests and examples. It
// replays canned completions keyed by the last user input and can be scripted
// to fail a number of calls with a transient error.
type Mock struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	failNext  int
	failWith  error
	calls     int
}

// NewMock constructs a Mock provider with the given backend label.
func NewMock(backend string) *Mock {
	return &Mock{
		info:      Info{Name: "mock-model", Backend: backend},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for an exact input prompt.
func (m *Mock) AddResponse(input, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = response
}

// FailNext scripts the next n calls to fail with a transient error.
func (m *Mock) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failWith = &UnavailableError{Backend: m.info.Backend, Err: fmt.Errorf("scripted failure")}
}

// FailWith scripts the next n calls to fail with the given error.
func (m *Mock) FailWith(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failWith = err
}

// Calls returns how many Generate/Stream calls were made.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) next(msgs []core.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failNext > 0 {
		m.failNext--
		return "", m.failWith
	}
	var input string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleUser {
			input = msgs[i].Content
			break
		}
	}
	if resp, ok := m.responses[input]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", input), nil
}

// Generate implements Provider.
func (m *Mock) Generate(ctx context.Context, msgs []core.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.next(msgs)
}

// Stream implements Provider, emitting the canned completion rune by rune.
func (m *Mock) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	frags := make(chan string, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(frags)
		defer close(errs)
		full, err := m.next(msgs)
		if err != nil {
			errs <- err
			return
		}
		for _, r := range full {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case frags <- string(r):
			}
		}
	}()
	return frags, errs
}

// CountTokens implements Provider.
func (m *Mock) CountTokens(msgs []core.Message) int { return EstimateTokens(msgs) }

// Info implements Provider.
func (m *Mock) Info() Info { return m.info }
