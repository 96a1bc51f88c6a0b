package llm

import (
	"fmt"
	"strings"
)

// Role identifies the speaker of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role
	Content string
}

// TextMessage is a convenience constructor for a message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// GenerateRequest is the unified request sent to any provider.
type GenerateRequest struct {
	Messages  []Message
	System    string
	MaxTokens int
}

// GenerateResponse is the unified response from any provider.
type GenerateResponse struct {
	Text       string
	StopReason StopReason
	Usage      Usage
}

// ParseModelID splits "provider:model" into its parts.
func ParseModelID(id string) (provider, model string, err error) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model ID %q: expected \"provider:model\"", id)
	}
	return parts[0], parts[1], nil
}
