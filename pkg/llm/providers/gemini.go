package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
)

func init() {
	llm.RegisterProvider(llm.ProviderGemini, func(model string, opts llm.Options) (llm.Client, error) {
		return newGeminiClient(model, opts)
	})
}

type geminiClient struct {
	key   string
	opts  llm.Options
	model string
}

func newGeminiClient(model string, opts llm.Options) (*geminiClient, error) {
	key := llm.ResolveAPIKey(llm.ProviderGemini, opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("gemini: %w: GEMINI_API_KEY not set", llm.ErrNoAPIKey)
	}
	return &geminiClient{key: key, opts: opts, model: model}, nil
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (c *geminiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	// The SDK client is bound to a context, so it lives for one call.
	clientOpts := []option.ClientOption{option.WithAPIKey(c.key)}
	if c.opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(c.opts.BaseURL))
	}
	if c.opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(c.opts.HTTPClient))
	}
	sdk, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("gemini: create client: %w", err)
	}
	defer func() { _ = sdk.Close() }()

	var resp llm.GenerateResponse
	err = llm.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = c.doComplete(ctx, sdk, req)
		return innerErr
	})
	return resp, err
}

func (c *geminiClient) doComplete(ctx context.Context, sdk *genai.Client, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	model := sdk.GenerativeModel(c.model)
	n := int32(maxTokens(req))
	model.MaxOutputTokens = &n

	system, history, last := buildContents(req)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if last == nil {
		return llm.GenerateResponse{}, errors.New("gemini: no user message to send")
	}

	cs := model.StartChat()
	cs.History = history
	apiResp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return llm.GenerateResponse{}, mapGeminiError(err)
	}
	return convertGeminiResponse(apiResp)
}

// ─── message translation ─────────────────────────────────────────────────────

// buildContents splits the request into system text, chat history and the
// final message that is sent.
func buildContents(req llm.GenerateRequest) (string, []*genai.Content, *genai.Content) {
	system := req.System
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = joinNonEmpty(system, m.Content)
		case llm.RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(contents) == 0 {
		return system, nil, nil
	}
	return system, contents[:len(contents)-1], contents[len(contents)-1]
}

// ─── response conversion ─────────────────────────────────────────────────────

func convertGeminiResponse(resp *genai.GenerateContentResponse) (llm.GenerateResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return llm.GenerateResponse{}, errors.New("gemini: response has no candidates")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return llm.GenerateResponse{}, errors.New("gemini: candidate has no content")
	}
	if cand.FinishReason == genai.FinishReasonSafety {
		return llm.GenerateResponse{}, &llm.ContentFilterError{LLMError: llm.LLMError{Message: "gemini: blocked by safety filter"}}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	stop := llm.StopReasonEndTurn
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		stop = llm.StopReasonMaxTokens
	}
	var usage llm.Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return llm.GenerateResponse{Text: sb.String(), StopReason: stop, Usage: usage}, nil
}

// ─── error mapping ────────────────────────────────────────────────────────────

func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.Code, apiErr.Message, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
