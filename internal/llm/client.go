// Package llm provides a minimal chat-completion client for any
// OpenAI-compatible provider. The intent parser is the only consumer; it
// needs a single completion call and JSON extraction from the reply.
package llm

import (
	"context"
	"errors"
)

// Chat roles recognized by completion providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrUnavailable indicates the provider could not be reached or
	// returned a non-success status.
	ErrUnavailable = errors.New("llm provider unavailable")

	// ErrEmptyResponse indicates the provider returned no completion.
	ErrEmptyResponse = errors.New("llm returned empty response")

	// ErrNotConfigured indicates no provider credentials are configured.
	ErrNotConfigured = errors.New("llm provider not configured")
)

// Message is a single turn of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces chat completions.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
