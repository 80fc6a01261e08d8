package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/logging"
)

// FailoverOptions configures the failover call helper.
type FailoverOptions struct {
	// CallTimeout bounds each individual provider call. Exceeding it is
	// treated identically to a transient provider failure.
	CallTimeout time.Duration
	Logger      logging.Logger
}

// Outcome is the typed per-call result of a failover invocation. No state is
// shared between calls; each call walks the chain from the start.
type Outcome struct {
	// Backend that produced the successful result.
	Backend string
	// FellBack is true when the primary failed and a fallback answered.
	FellBack bool
	// Tried lists every backend attempted, in order.
	Tried []string
}

// Failover tries an explicit ordered list of providers in sequence. A
// transient failure (UnavailableError, deadline) moves to the next provider;
// any other failure, or exhaustion of the chain, fails the call. The chain is
// immutable after construction and safe for concurrent use.
type Failover struct {
	chain       []Provider
	callTimeout time.Duration
	logger      logging.Logger
}

// NewFailover constructs a failover helper over the given chain. The first
// provider is the configured primary; the rest are fallbacks in order.
func NewFailover(chain []Provider, optFns ...func(o *FailoverOptions)) *Failover {
	opts := FailoverOptions{
		CallTimeout: 60 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Failover{chain: chain, callTimeout: opts.CallTimeout, logger: opts.Logger}
}

// CountTokens delegates to the primary provider.
func (f *Failover) CountTokens(msgs []core.Message) int {
	if len(f.chain) == 0 {
		return 0
	}
	return f.chain[0].CountTokens(msgs)
}

// Generate runs a synchronous completion through the chain.
func (f *Failover) Generate(ctx context.Context, msgs []core.Message) (string, Outcome, error) {
	var outcome Outcome
	var lastErr error
	for i, p := range f.chain {
		backend := p.Info().Backend
		outcome.Tried = append(outcome.Tried, backend)

		callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
		text, err := p.Generate(callCtx, msgs)
		cancel()

		if err == nil {
			outcome.Backend = backend
			outcome.FellBack = i > 0
			return text, outcome, nil
		}
		if ctx.Err() != nil {
			return "", outcome, ctx.Err()
		}
		err = Classify(backend, err)
		if !IsUnavailable(err) {
			return "", outcome, err
		}
		f.logger.Warn("provider unavailable, trying next backend=%s err=%v", backend, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return "", outcome, lastErr
}

// Stream runs a streamed completion through the chain, delivering fragments
// in generation order via emit and returning the full concatenated text.
//
// Failover only happens while nothing has been emitted yet: once a fragment
// has reached the caller the attempt is committed and a later failure fails
// the whole call. An error returned by emit (caller cancellation) aborts
// immediately and is never retried.
func (f *Failover) Stream(ctx context.Context, msgs []core.Message, emit func(string) error) (string, Outcome, error) {
	var outcome Outcome
	var lastErr error
	for i, p := range f.chain {
		backend := p.Info().Backend
		outcome.Tried = append(outcome.Tried, backend)

		text, emitted, err := f.streamOne(ctx, p, msgs, emit)
		if err == nil {
			outcome.Backend = backend
			outcome.FellBack = i > 0
			return text, outcome, nil
		}
		if ctx.Err() != nil {
			return "", outcome, ctx.Err()
		}
		err = Classify(backend, err)
		if emitted || !IsUnavailable(err) {
			return "", outcome, err
		}
		f.logger.Warn("provider unavailable, trying next backend=%s err=%v", backend, err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return "", outcome, lastErr
}

func (f *Failover) streamOne(ctx context.Context, p Provider, msgs []core.Message, emit func(string) error) (string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	frags, errs := p.Stream(callCtx, msgs)

	var sb strings.Builder
	emitted := false
	for frags != nil || errs != nil {
		select {
		case frag, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			if frag == "" {
				continue
			}
			if err := emit(frag); err != nil {
				return "", emitted, err
			}
			emitted = true
			sb.WriteString(frag)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return "", emitted, err
			}
		}
	}
	return sb.String(), emitted, nil
}
