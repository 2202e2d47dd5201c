package repositories

import (
	"context"
	"errors"
)

// ErrProviderFailure is surfaced when the completion provider returns a
// non-success status or a payload with no usable text. Callers recover with a
// fixed fallback line; a provider failure never ends a session.
var ErrProviderFailure = errors.New("completion provider failure")

// ChatCompleter abstracts any chat/LLM provider
type ChatCompleter interface {
	// NewChat creates a chat session seeded with a system prompt and history
	NewChat(ctx context.Context, systemPrompt string, history []ChatMessage) (ChatSession, error)
}

// ChatSession represents an ongoing conversation with the provider
type ChatSession interface {
	// SendMessage sends one user message and returns the model's raw reply,
	// marker blocks included. Returns ErrProviderFailure (possibly wrapped)
	// when the provider could not produce text.
	SendMessage(ctx context.Context, message ChatMessage) (ChatMessage, error)
	History() []ChatMessage
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender
type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)
