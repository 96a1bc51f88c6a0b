package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
)

const (
	ollamaChatTimeout = 120 * time.Second
	ollamaTagsTimeout = 10 * time.Second
)

func init() {
	llm.RegisterProvider(llm.ProviderOllama, func(model string, opts llm.Options) (llm.Client, error) {
		return newOllamaClient(model, opts), nil
	})
}

// ollamaClient talks to the Ollama HTTP API. There is no Go SDK in use for
// it, so requests are plain JSON over net/http.
type ollamaClient struct {
	baseURL string
	http    *http.Client
	model   string
}

func newOllamaClient(model string, opts llm.Options) *ollamaClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: ollamaChatTimeout}
	}
	return &ollamaClient{
		baseURL: llm.ResolveOllamaBaseURL(opts.BaseURL),
		http:    hc,
		model:   model,
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (c *ollamaClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, 3, func() error {
		var innerErr error
		resp, innerErr = c.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (c *ollamaClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	body, err := json.Marshal(buildOllamaRequest(c.model, req))
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("ollama: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	raw, err := doJSON(c.http, httpReq)
	if err != nil {
		return llm.GenerateResponse{}, err
	}
	return convertOllamaResponse(raw)
}

func buildOllamaRequest(model string, req llm.GenerateRequest) ollamaChatRequest {
	out := ollamaChatRequest{Model: model, Stream: false}
	if req.System != "" {
		out.Messages = append(out.Messages, ollamaMessage{Role: string(llm.RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.MaxTokens > 0 {
		out.Options = map[string]any{"num_predict": req.MaxTokens}
	}
	return out
}

func convertOllamaResponse(raw []byte) (llm.GenerateResponse, error) {
	msg := gjson.GetBytes(raw, "message")
	if !msg.IsObject() {
		return llm.GenerateResponse{}, errors.New("ollama: response has no message")
	}
	content := msg.Get("content")
	if !content.Exists() || content.Type == gjson.Null {
		return llm.GenerateResponse{}, errors.New("ollama: message has no content")
	}
	stop := llm.StopReasonEndTurn
	if gjson.GetBytes(raw, "done_reason").String() == "length" {
		stop = llm.StopReasonMaxTokens
	}
	return llm.GenerateResponse{
		Text:       content.String(),
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  int(gjson.GetBytes(raw, "prompt_eval_count").Int()),
			OutputTokens: int(gjson.GetBytes(raw, "eval_count").Int()),
		},
	}, nil
}

// ListOllamaModels returns the model names installed on the Ollama server
// at baseURL, in the order the server reports them.
func ListOllamaModels(ctx context.Context, hc *http.Client, baseURL string) ([]string, error) {
	if hc == nil {
		hc = &http.Client{Timeout: ollamaTagsTimeout}
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	raw, err := doJSON(hc, req)
	if err != nil {
		return nil, err
	}
	return parseOllamaTags(raw), nil
}

// parseOllamaTags accepts entries that are objects carrying "model" or
// "name", or bare strings.
func parseOllamaTags(raw []byte) []string {
	models := []string{}
	gjson.GetBytes(raw, "models").ForEach(func(_, m gjson.Result) bool {
		switch {
		case m.IsObject():
			name := m.Get("model")
			if !name.Exists() || name.Type == gjson.Null || name.String() == "" {
				name = m.Get("name")
			}
			if name.Exists() && name.Type != gjson.Null {
				models = append(models, name.String())
			}
		case m.Type == gjson.String:
			models = append(models, m.String())
		}
		return true
	})
	return models
}

// doJSON sends req and returns the body of a 2xx response. Other statuses
// are mapped onto the llm error taxonomy.
func doJSON(hc *http.Client, req *http.Request) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = fmt.Sprintf("ollama returned %d", resp.StatusCode)
		}
		return nil, llm.FromStatus(resp.StatusCode, msg, nil)
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("ollama: response is not valid JSON")
	}
	return raw, nil
}
