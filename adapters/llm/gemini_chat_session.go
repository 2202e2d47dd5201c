package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/almawell/alma/domain/repositories"
)

// geminiChatSession implements the ChatSession interface
type geminiChatSession struct {
	client       *genai.Client
	config       GeminiConfig
	logger       *zap.Logger
	systemPrompt string
	history      []*genai.Content
}

func newGeminiChatSession(
	client *genai.Client,
	config GeminiConfig,
	logger *zap.Logger,
	systemPrompt string,
	history []repositories.ChatMessage,
) *geminiChatSession {
	return &geminiChatSession{
		client:       client,
		config:       config,
		logger:       logger,
		systemPrompt: systemPrompt,
		history:      toGeminiContents(history),
	}
}

// SendMessage sends a message and returns the raw model reply, updating the
// history. Provider trouble surfaces as a wrapped ErrProviderFailure so the
// caller can substitute its fallback line.
func (s *geminiChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	var contents []*genai.Content
	contents = append(contents, genai.NewContentFromText(s.systemPrompt, genai.RoleUser))
	contents = append(contents, s.history...)

	userContent := genai.NewContentFromText(message.Content, genai.RoleUser)
	contents = append(contents, userContent)

	generateConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.config.Temperature),
		TopP:            genai.Ptr(s.config.TopP),
		TopK:            genai.Ptr(s.config.TopK),
		MaxOutputTokens: int32(s.config.MaxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.TimeoutSeconds)*time.Second)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = s.client.Models.GenerateContent(ctx, s.config.Model, contents, generateConfig)
		if err == nil {
			break
		}
		s.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return repositories.ChatMessage{}, fmt.Errorf("%w: %v", repositories.ErrProviderFailure, err)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return repositories.ChatMessage{}, fmt.Errorf("%w: no candidates", repositories.ErrProviderFailure)
	}

	var responseText string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			responseText += part.Text
		}
	}
	if responseText == "" {
		return repositories.ChatMessage{}, fmt.Errorf("%w: empty response", repositories.ErrProviderFailure)
	}

	s.history = append(s.history, userContent, genai.NewContentFromText(responseText, genai.RoleModel))

	s.logger.Debug("Chat message processed",
		zap.Int("historyLength", len(s.history)),
		zap.Int("replyLength", len(responseText)))

	return repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: responseText,
	}, nil
}

// History returns the current conversation history
func (s *geminiChatSession) History() []repositories.ChatMessage {
	return fromGeminiContents(s.history)
}

func toGeminiContents(messages []repositories.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == repositories.AssistantRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

func fromGeminiContents(contents []*genai.Content) []repositories.ChatMessage {
	var messages []repositories.ChatMessage
	for _, content := range contents {
		role := repositories.UserRole
		if content.Role == genai.RoleModel {
			role = repositories.AssistantRole
		}

		var text string
		for _, part := range content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		if text != "" {
			messages = append(messages, repositories.ChatMessage{Role: role, Content: text})
		}
	}
	return messages
}
