// Package providers registers LLM provider adapters.
// Import this package with a blank identifier to activate all providers:
//
//	import _ "github.com/ravi-parthasarathy/umlflow/pkg/llm/providers"
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
)

func init() {
	llm.RegisterProvider(llm.ProviderAnthropic, func(model string, opts llm.Options) (llm.Client, error) {
		return newAnthropicClient(model, opts)
	})
}

type anthropicClient struct {
	sdk   anthropicsdk.Client
	model string
}

func newAnthropicClient(model string, opts llm.Options) (*anthropicClient, error) {
	key := llm.ResolveAPIKey(llm.ProviderAnthropic, opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("anthropic: %w: ANTHROPIC_API_KEY not set", llm.ErrNoAPIKey)
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0), // retries go through llm.WithRetry
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &anthropicClient{sdk: anthropicsdk.NewClient(reqOpts...), model: model}, nil
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (a *anthropicClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = a.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (a *anthropicClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	msg, err := a.sdk.Messages.New(ctx, buildAnthropicParams(a.model, req))
	if err != nil {
		return llm.GenerateResponse{}, mapError(err)
	}
	return convertResponse(msg)
}

// buildAnthropicParams maps the request onto the Messages API. System
// messages are folded into the top-level system prompt.
func buildAnthropicParams(model string, req llm.GenerateRequest) anthropicsdk.MessageNewParams {
	system := req.System
	msgs := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = joinNonEmpty(system, m.Content)
		case llm.RoleUser:
			msgs = append(msgs, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		case llm.RoleAssistant:
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: int64(maxTokens(req)),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	return params
}

// convertResponse returns the first text block, as the model answers a
// single diagram per call.
func convertResponse(msg *anthropicsdk.Message) (llm.GenerateResponse, error) {
	var text string
	found := false
	for _, b := range msg.Content {
		if b.Type == "text" {
			text, found = b.Text, true
			break
		}
	}
	if !found {
		return llm.GenerateResponse{}, errors.New("anthropic: response has no text content")
	}

	stop := llm.StopReasonEndTurn
	if msg.StopReason == anthropicsdk.StopReasonMaxTokens {
		stop = llm.StopReasonMaxTokens
	}
	return llm.GenerateResponse{
		Text:       text,
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.StatusCode, apiErr.Error(), err)
	}
	return fmt.Errorf("anthropic: %w", err)
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
