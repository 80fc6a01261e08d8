package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amandahq/converse/core"
)

func userMsgs(text string) []core.Message {
	return []core.Message{core.NewUserMessage(text)}
}

func TestFailover_GeneratePrimarySucceeds(t *testing.T) {
	primary := NewMock("primary")
	primary.AddResponse("hi", "hello there")
	fallback := NewMock("fallback")

	f := NewFailover([]Provider{primary, fallback})
	text, outcome, err := f.Generate(context.Background(), userMsgs("hi"))

	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, "primary", outcome.Backend)
	assert.False(t, outcome.FellBack)
	assert.Equal(t, []string{"primary"}, outcome.Tried)
	assert.Zero(t, fallback.Calls())
}

func TestFailover_GenerateFallsBackOnTransientFailure(t *testing.T) {
	primary := NewMock("primary")
	primary.FailWith(1, errors.New("429 rate limit exceeded"))
	fallback := NewMock("fallback")
	fallback.AddResponse("hi", "from fallback")

	f := NewFailover([]Provider{primary, fallback})
	text, outcome, err := f.Generate(context.Background(), userMsgs("hi"))

	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
	assert.Equal(t, "fallback", outcome.Backend)
	assert.True(t, outcome.FellBack)
	assert.Equal(t, []string{"primary", "fallback"}, outcome.Tried)
}

func TestFailover_GenerateExhaustedChainFails(t *testing.T) {
	primary := NewMock("primary")
	primary.FailWith(1, errors.New("connection timeout"))
	fallback := NewMock("fallback")
	fallback.FailWith(1, errors.New("500 internal server error"))

	f := NewFailover([]Provider{primary, fallback})
	_, outcome, err := f.Generate(context.Background(), userMsgs("hi"))

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, []string{"primary", "fallback"}, outcome.Tried)
}

func TestFailover_StreamFallsBackBeforeFirstFragment(t *testing.T) {
	primary := NewMock("primary")
	primary.FailWith(1, errors.New("model overloaded"))
	fallback := NewMock("fallback")
	fallback.AddResponse("hi", "ok")

	f := NewFailover([]Provider{primary, fallback})

	var got []string
	text, outcome, err := f.Stream(context.Background(), userMsgs("hi"), func(frag string) error {
		got = append(got, frag)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.True(t, outcome.FellBack)
	// Fragments arrive in generation order and concatenate to the result.
	joined := ""
	for _, frag := range got {
		joined += frag
	}
	assert.Equal(t, text, joined)
}

// Once a fragment has reached the caller the attempt is committed: a
// mid-stream failure must not restart on the fallback.
func TestFailover_StreamNoRetryAfterEmission(t *testing.T) {
	primary := &midStreamFailer{}
	fallback := NewMock("fallback")

	f := NewFailover([]Provider{primary, fallback})
	_, _, err := f.Stream(context.Background(), userMsgs("hi"), func(string) error { return nil })

	require.Error(t, err)
	assert.Zero(t, fallback.Calls())
}

func TestFailover_StreamEmitErrorAborts(t *testing.T) {
	primary := NewMock("primary")
	primary.AddResponse("hi", "hello")
	fallback := NewMock("fallback")

	f := NewFailover([]Provider{primary, fallback})
	abort := errors.New("caller gone")
	_, _, err := f.Stream(context.Background(), userMsgs("hi"), func(string) error { return abort })

	require.ErrorIs(t, err, abort)
	assert.Zero(t, fallback.Calls())
}

func TestFailover_CancelledContextNotRetried(t *testing.T) {
	primary := NewMock("primary")
	primary.FailWith(1, context.Canceled)
	fallback := NewMock("fallback")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFailover([]Provider{primary, fallback})
	_, _, err := f.Generate(ctx, userMsgs("hi"))

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fallback.Calls())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("500 internal"), true},
		{"overloaded", errors.New("overloaded_error"), true},
		{"timeout", errors.New("request timeout"), true},
		{"bad request", errors.New("400 invalid request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("test", tt.err)
			assert.Equal(t, tt.unavailable, IsUnavailable(err))
			if tt.unavailable {
				var ue *UnavailableError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, "test", ue.Backend)
			}
		})
	}
}

// midStreamFailer emits one fragment, then fails.
type midStreamFailer struct{}

func (m *midStreamFailer) Generate(context.Context, []core.Message) (string, error) {
	return "", errors.New("not implemented")
}

func (m *midStreamFailer) Stream(ctx context.Context, _ []core.Message) (<-chan string, <-chan error) {
	frags := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(frags)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case frags <- "partial ":
		}
		errs <- errors.New("connection reset mid-stream")
	}()
	return frags, errs
}

func (m *midStreamFailer) CountTokens(msgs []core.Message) int { return EstimateTokens(msgs) }

func (m *midStreamFailer) Info() Info { return Info{Name: "mid", Backend: "mid"} }

func TestEstimateTokens(t *testing.T) {
	msgs := []core.Message{core.NewUserMessage("abcdefgh")} // 8 chars -> 2 tokens
	assert.Equal(t, 2, EstimateTokens(msgs))
}

func TestFailover_CallTimeout(t *testing.T) {
	slow := &neverFinishes{}
	fallback := NewMock("fallback")
	fallback.AddResponse("hi", "rescued")

	f := NewFailover([]Provider{slow, fallback}, func(o *FailoverOptions) {
		o.CallTimeout = 20 * time.Millisecond
	})

	text, outcome, err := f.Generate(context.Background(), userMsgs("hi"))
	require.NoError(t, err)
	assert.Equal(t, "rescued", text)
	assert.True(t, outcome.FellBack)
}

// neverFinishes blocks until its call context expires.
type neverFinishes struct{}

func (n *neverFinishes) Generate(ctx context.Context, _ []core.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (n *neverFinishes) Stream(ctx context.Context, _ []core.Message) (<-chan string, <-chan error) {
	frags := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(frags)
		defer close(errs)
		<-ctx.Done()
		errs <- ctx.Err()
	}()
	return frags, errs
}

func (n *neverFinishes) CountTokens(msgs []core.Message) int { return EstimateTokens(msgs) }

func (n *neverFinishes) Info() Info { return Info{Name: "slow", Backend: "slow"} }
