package core

import (
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Payload defaults match the upstream's cheapest streaming model.
const (
	DefaultModel     = "llama-3.1-8b-instant"
	DefaultPrompt    = "Write a poem"
	DefaultRole      = openai.ChatMessageRoleUser
	DefaultMaxTokens = 300
)

// PayloadOptions configures the chat-completion body sent to both endpoints.
type PayloadOptions struct {
	Model     string
	Role      string
	Prompt    string
	MaxTokens int
}

// BuildPayload encodes a streaming chat-completion request.
func BuildPayload(opts PayloadOptions) ([]byte, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	role := strings.TrimSpace(opts.Role)
	if role == "" {
		role = DefaultRole
	}
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: role, Content: opts.Prompt},
		},
		Stream:    true,
		MaxTokens: opts.MaxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return body, nil
}
