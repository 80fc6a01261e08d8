// Package openai implements provider.Provider using the OpenAI Chat
// Completions API (streaming and non-streaming). It adapts the engine's
// role-typed messages into the SDK's message format.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/provider"
)

// Options configure the OpenAI provider adapter. Fields mirror a small subset
// of Chat Completion parameters; extend via functional options.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Provider wraps the OpenAI Chat Completions API behind provider.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI provider using the default client (API key from env).
func New(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 2048,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

func (p *Provider) buildParams(msgs []core.Message) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               p.opts.Model,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
	}
}

// Generate implements provider.Provider.
func (p *Provider) Generate(ctx context.Context, msgs []core.Message) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(msgs))
	if err != nil {
		return "", provider.Classify("openai", fmt.Errorf("openai api error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream implements provider.Provider using the SDK's streaming client.
// Fragments are text deltas in generation order.
func (p *Provider) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	frags := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(frags)
		defer close(errs)

		stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(msgs))
		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				case frags <- ch.Delta.Content:
				}
			}
		}
		if err := stream.Err(); err != nil {
			errs <- provider.Classify("openai", fmt.Errorf("openai streaming error: %w", err))
		}
	}()

	return frags, errs
}

// CountTokens implements provider.Provider with the shared estimate.
func (p *Provider) CountTokens(msgs []core.Message) int { return provider.EstimateTokens(msgs) }

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: p.opts.Model, Backend: "openai"}
}
