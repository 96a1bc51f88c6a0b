package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultMaxTokens caps every completion.
const DefaultMaxTokens = 4096

// NegativePrefix introduces negative instructions in the system text.
const NegativePrefix = "Do NOT do the following: "

// Call describes a single prompt-in, text-out request.
type Call struct {
	Provider      string
	Model         string
	Prompt        string
	Negative      string
	APIKey        string
	OllamaBaseURL string
}

// Request builds the provider-neutral request for c. Negative text, when
// present, becomes the system prompt.
func (c Call) Request() GenerateRequest {
	req := GenerateRequest{
		Messages:  []Message{TextMessage(RoleUser, strings.TrimSpace(c.Prompt))},
		MaxTokens: DefaultMaxTokens,
	}
	if neg := strings.TrimSpace(c.Negative); neg != "" {
		req.System = NegativePrefix + neg
	}
	return req
}

// Generate runs c against its provider and returns the trimmed reply. An
// empty provider means Ollama and an empty model the provider's default.
// In mock mode no network call is made.
func Generate(ctx context.Context, c Call) (string, error) {
	if MockEnabled() {
		slog.Debug("llm mock response", "provider", c.Provider)
		return MockResponse, nil
	}
	provider := strings.TrimSpace(c.Provider)
	if provider == "" {
		provider = ProviderOllama
	}
	model := strings.TrimSpace(c.Model)
	if model == "" {
		model = DefaultModel(provider)
	}

	var opts Options
	if provider == ProviderOllama {
		opts.BaseURL = ResolveOllamaBaseURL(c.OllamaBaseURL)
	} else {
		opts.APIKey = ResolveAPIKey(provider, c.APIKey)
		if opts.APIKey == "" {
			env := APIKeyEnv(provider)
			if env == "" {
				env = "an API key"
			}
			return "", fmt.Errorf("%s: %w: set %s in the environment or pass api_key", provider, ErrNoAPIKey, env)
		}
	}

	client, err := NewClient(provider, model, opts)
	if err != nil {
		return "", err
	}
	slog.Debug("llm call", "provider", provider, "model", model, "prompt_len", len(c.Prompt))
	resp, err := client.Complete(ctx, c.Request())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
