package providers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/ravi-parthasarathy/umlflow/pkg/llm"
)

func TestBuildAnthropicParams(t *testing.T) {
	req := llm.GenerateRequest{
		System: "Do NOT do the following: prose",
		Messages: []llm.Message{
			llm.TextMessage(llm.RoleSystem, "be terse"),
			llm.TextMessage(llm.RoleUser, "draw"),
		},
	}
	p := buildAnthropicParams("claude-3-5-haiku-20241022", req)
	if p.MaxTokens != int64(llm.DefaultMaxTokens) {
		t.Errorf("max tokens = %d, want %d", p.MaxTokens, llm.DefaultMaxTokens)
	}
	if len(p.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 (system folded out)", len(p.Messages))
	}
	if len(p.System) != 1 || p.System[0].Text != "Do NOT do the following: prose\n\nbe terse" {
		t.Errorf("system = %+v", p.System)
	}
	if string(p.Model) != "claude-3-5-haiku-20241022" {
		t.Errorf("model = %q", p.Model)
	}
}

func TestBuildAnthropicParams_NoSystem(t *testing.T) {
	p := buildAnthropicParams("m", llm.GenerateRequest{MaxTokens: 100, Messages: []llm.Message{llm.TextMessage(llm.RoleUser, "x")}})
	if len(p.System) != 0 {
		t.Errorf("system = %+v, want none", p.System)
	}
	if p.MaxTokens != 100 {
		t.Errorf("max tokens = %d, want 100", p.MaxTokens)
	}
}

func TestAnthropicComplete_FakeServer(t *testing.T) {
	var gotPath, gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-20241022",`+
			`"content":[{"type":"text","text":"sequenceDiagram\n  A->>B: hi"}],`+
			`"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":7,"output_tokens":9}}`)
	}))
	defer srv.Close()

	client, err := newAnthropicClient("claude-3-5-haiku-20241022", llm.Options{APIKey: "a-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("newAnthropicClient: %v", err)
	}
	resp, err := client.Complete(t.Context(), llm.Call{Prompt: "draw", Negative: "prose"}.Request())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "a-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if !strings.Contains(gotBody, "Do NOT do the following: prose") {
		t.Errorf("request body missing system text: %s", gotBody)
	}
	if resp.Text != "sequenceDiagram\n  A->>B: hi" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 9 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestAnthropicComplete_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	client, err := newAnthropicClient("m", llm.Options{APIKey: "bad", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("newAnthropicClient: %v", err)
	}
	_, err = client.Complete(t.Context(), llm.Call{Prompt: "x"}.Request())
	var ae *llm.AuthError
	if !errors.As(err, &ae) {
		t.Errorf("err = %T %v, want *llm.AuthError", err, err)
	}
}

func TestConvertResponse_NoText(t *testing.T) {
	if _, err := convertResponse(&anthropicsdk.Message{}); err == nil {
		t.Error("expected error for a message without text blocks")
	}
}
