package providers

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
)

func init() {
	llm.RegisterProvider(llm.ProviderOpenAI, func(model string, opts llm.Options) (llm.Client, error) {
		return newOpenAIClient(model, opts)
	})
}

type openaiClient struct {
	sdk   *openai.Client
	model string
}

func newOpenAIClient(model string, opts llm.Options) (*openaiClient, error) {
	key := llm.ResolveAPIKey(llm.ProviderOpenAI, opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("openai: %w: OPENAI_API_KEY not set", llm.ErrNoAPIKey)
	}
	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &openaiClient{sdk: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (c *openaiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = c.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (c *openaiClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	params := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens(req),
		Messages:  buildMessages(req.Messages, req.System),
	}
	resp, err := c.sdk.CreateChatCompletion(ctx, params)
	if err != nil {
		return llm.GenerateResponse{}, mapOpenAIError(err)
	}
	return convertOpenAIResponse(resp)
}

// ─── message conversion ───────────────────────────────────────────────────────

// buildMessages converts unified messages to OpenAI's chat format with the
// system prompt first.
func buildMessages(msgs []llm.Message, system string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func convertOpenAIResponse(resp openai.ChatCompletionResponse) (llm.GenerateResponse, error) {
	if len(resp.Choices) == 0 {
		return llm.GenerateResponse{}, errors.New("openai: response has no choices")
	}
	choice := resp.Choices[0]
	stop := llm.StopReasonEndTurn
	if choice.FinishReason == openai.FinishReasonLength {
		stop = llm.StopReasonMaxTokens
	}
	return llm.GenerateResponse{
		Text:       choice.Message.Content,
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// ─── error mapping ────────────────────────────────────────────────────────────

func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.FromStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return fmt.Errorf("openai: %w", err)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func maxTokens(req llm.GenerateRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return llm.DefaultMaxTokens
}
