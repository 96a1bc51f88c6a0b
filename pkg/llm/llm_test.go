package llm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
)

func TestParseModelID(t *testing.T) {
	tests := []struct {
		input        string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{"anthropic:claude-3-5-haiku-20241022", "anthropic", "claude-3-5-haiku-20241022", false},
		{"openai:gpt-4o", "openai", "gpt-4o", false},
		{"ollama:qwen2.5-coder:7b", "ollama", "qwen2.5-coder:7b", false},
		{"invalid", "", "", true},
		{":", "", "", true},
		{":model", "", "", true},
		{"provider:", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			prov, model, err := llm.ParseModelID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseModelID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if prov != tt.wantProvider {
				t.Errorf("provider = %q, want %q", prov, tt.wantProvider)
			}
			if model != tt.wantModel {
				t.Errorf("model = %q, want %q", model, tt.wantModel)
			}
		})
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	if _, err := llm.NewClient("unknown_provider", "some-model", llm.Options{}); err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
}

type fakeClient struct {
	model string
	opts  llm.Options
	got   *llm.GenerateRequest
	reply string
}

func (f *fakeClient) Complete(_ context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	*f.got = req
	return llm.GenerateResponse{Text: f.reply}, nil
}

func TestGenerate_UsesRegisteredProvider(t *testing.T) {
	var got llm.GenerateRequest
	var made *fakeClient
	llm.RegisterProvider("fake-test", func(model string, opts llm.Options) (llm.Client, error) {
		made = &fakeClient{model: model, opts: opts, got: &got, reply: "  graph TD\n  A-->B \n"}
		return made, nil
	})
	t.Setenv(llm.MockEnv, "")

	// fake-test has no key variable, so the explicit key is required.
	_, err := llm.Generate(t.Context(), llm.Call{Provider: "fake-test", Model: "m1", Prompt: "draw"})
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Fatalf("Generate without key: err = %v, want ErrNoAPIKey", err)
	}

	text, err := llm.Generate(t.Context(), llm.Call{
		Provider: "fake-test",
		Model:    "m1",
		Prompt:   " draw a flow ",
		Negative: " no prose ",
		APIKey:   "k",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "graph TD\n  A-->B" {
		t.Errorf("text = %q, want trimmed reply", text)
	}
	if made.model != "m1" || made.opts.APIKey != "k" {
		t.Errorf("factory got model=%q key=%q", made.model, made.opts.APIKey)
	}
	if got.System != "Do NOT do the following: no prose" {
		t.Errorf("system = %q", got.System)
	}
	if got.MaxTokens != llm.DefaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", got.MaxTokens, llm.DefaultMaxTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != llm.RoleUser || got.Messages[0].Content != "draw a flow" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestCallRequest_NoNegative(t *testing.T) {
	req := llm.Call{Prompt: "p", Negative: "   "}.Request()
	if req.System != "" {
		t.Errorf("system = %q, want empty", req.System)
	}
}

func TestGenerate_Mock(t *testing.T) {
	t.Setenv(llm.MockEnv, "1")
	text, err := llm.Generate(t.Context(), llm.Call{Provider: "does-not-exist"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != llm.MockResponse {
		t.Errorf("text = %q, want mock response", text)
	}
}

func TestGenerate_MissingKey(t *testing.T) {
	t.Setenv(llm.MockEnv, "")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := llm.Generate(t.Context(), llm.Call{Provider: "openai", Prompt: "x"})
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", " env-key ")
	if got := llm.ResolveAPIKey("anthropic", "  explicit "); got != "explicit" {
		t.Errorf("explicit key = %q", got)
	}
	if got := llm.ResolveAPIKey("anthropic", ""); got != "env-key" {
		t.Errorf("env key = %q", got)
	}
	if got := llm.ResolveAPIKey("ollama", ""); got != "" {
		t.Errorf("ollama key = %q, want empty", got)
	}
}

func TestResolveOllamaBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	if got := llm.ResolveOllamaBaseURL(""); got != llm.DefaultOllamaBaseURL {
		t.Errorf("default = %q", got)
	}
	t.Setenv("OLLAMA_BASE_URL", "http://gpu:11434/")
	if got := llm.ResolveOllamaBaseURL(" "); got != "http://gpu:11434" {
		t.Errorf("env = %q", got)
	}
	if got := llm.ResolveOllamaBaseURL("http://other:1//"); got != "http://other:1" {
		t.Errorf("explicit = %q", got)
	}
}

func TestModels(t *testing.T) {
	if llm.DefaultModel("ollama") != "llama3.2" {
		t.Errorf("ollama default = %q", llm.DefaultModel("ollama"))
	}
	if llm.DefaultModel("openai") != "gpt-4o-mini" {
		t.Errorf("openai default = %q", llm.DefaultModel("openai"))
	}
	if llm.Models("nope") != nil {
		t.Error("unknown provider should have no catalogue")
	}
	want := len(llm.OllamaModels) + len(llm.OpenAIModels) + len(llm.AnthropicModels) + len(llm.GeminiModels)
	if got := len(llm.AllModels()); got != want {
		t.Errorf("AllModels = %d, want %d", got, want)
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		check     func(error) bool
	}{
		{429, true, func(err error) bool { var e *llm.RateLimitError; return errors.As(err, &e) }},
		{401, false, func(err error) bool { var e *llm.AuthError; return errors.As(err, &e) }},
		{403, false, func(err error) bool { var e *llm.AuthError; return errors.As(err, &e) }},
		{400, false, func(err error) bool { var e *llm.ContextLengthError; return errors.As(err, &e) }},
		{503, true, func(err error) bool { var e *llm.ServerError; return errors.As(err, &e) }},
		{404, false, func(err error) bool { var e *llm.LLMError; return errors.As(err, &e) }},
	}
	for _, tt := range tests {
		err := llm.FromStatus(tt.code, "msg", nil)
		if !tt.check(err) {
			t.Errorf("FromStatus(%d) = %T", tt.code, err)
		}
		if llm.Retryable(err) != tt.retryable {
			t.Errorf("Retryable(FromStatus(%d)) = %v, want %v", tt.code, !tt.retryable, tt.retryable)
		}
	}
}

func TestRetryable(t *testing.T) {
	base := func(msg string) llm.LLMError { return llm.LLMError{Message: msg} }
	tests := []struct {
		err      error
		wantTrue bool
	}{
		{&llm.RateLimitError{LLMError: base("rate limit")}, true},
		{&llm.ServerError{LLMError: base("5xx")}, true},
		{&llm.AuthError{LLMError: base("auth")}, false},
		{&llm.ContextLengthError{LLMError: base("ctx")}, false},
		{&llm.ContentFilterError{LLMError: base("filter")}, false},
	}
	for _, tt := range tests {
		got := llm.Retryable(tt.err)
		if got != tt.wantTrue {
			t.Errorf("Retryable(%T) = %v, want %v", tt.err, got, tt.wantTrue)
		}
	}
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := llm.WithRetry(t.Context(), 4, func() error {
		calls++
		return &llm.AuthError{LLMError: llm.LLMError{Code: 401}}
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d err = %v, want one call and an error", calls, err)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := llm.WithRetry(ctx, 4, func() error {
		calls++
		cancel()
		return &llm.ServerError{LLMError: llm.LLMError{Code: 503}}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("ollama: %w", llm.FromStatus(404, "not found", nil))
	if code, ok := llm.StatusCode(wrapped); !ok || code != 404 {
		t.Errorf("StatusCode = %d, %v; want 404, true", code, ok)
	}
	if code, ok := llm.StatusCode(llm.FromStatus(503, "busy", nil)); !ok || code != 503 {
		t.Errorf("StatusCode = %d, %v; want 503, true", code, ok)
	}
	if _, ok := llm.StatusCode(errors.New("dial tcp: refused")); ok {
		t.Error("plain error should carry no status")
	}
}
