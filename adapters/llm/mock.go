package llm

import (
	"context"

	"github.com/almawell/alma/domain/repositories"
)

// MockCompleter is a canned provider for local development without
// credentials. Replies cycle through a fixed set of empathetic lines.
type MockCompleter struct {
	Replies []string
}

var defaultMockReplies = []string{
	"Te escucho. ¿Puedes contarme un poco más sobre eso?",
	"Entiendo, suena como algo importante para ti. ¿Cómo te hizo sentir?",
	"Gracias por compartirlo conmigo. ¿Qué crees que te ayudaría ahora mismo?",
}

// NewChat creates a mock chat session
func (m *MockCompleter) NewChat(ctx context.Context, systemPrompt string, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	replies := m.Replies
	if len(replies) == 0 {
		replies = defaultMockReplies
	}
	return &mockChatSession{replies: replies, history: append([]repositories.ChatMessage(nil), history...)}, nil
}

type mockChatSession struct {
	replies []string
	history []repositories.ChatMessage
	turn    int
}

func (s *mockChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	reply := repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: s.replies[s.turn%len(s.replies)],
	}
	s.turn++
	s.history = append(s.history, message, reply)
	return reply, nil
}

func (s *mockChatSession) History() []repositories.ChatMessage {
	return append([]repositories.ChatMessage(nil), s.history...)
}
