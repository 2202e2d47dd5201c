package tts

import (
	"context"

	"go.uber.org/zap"

	"github.com/almawell/alma/domain/repositories"
)

// MockSynthesizer is a development stand-in when no Eleven Labs key is
// configured. Utterances complete instantly and no audio reaches the sink.
type MockSynthesizer struct {
	logger *zap.Logger
}

// NewMockSynthesizer creates a silent synthesizer
func NewMockSynthesizer(logger *zap.Logger) *MockSynthesizer {
	return &MockSynthesizer{logger: logger}
}

// Speak completes the utterance immediately
func (m *MockSynthesizer) Speak(ctx context.Context, u repositories.Utterance) (<-chan repositories.SynthesisEvent, error) {
	m.logger.Debug("Mock synthesis", zap.Int("textLength", len(u.Text)))
	events := make(chan repositories.SynthesisEvent, 2)
	events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventStarted}
	events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventEnded}
	close(events)
	return events, nil
}

// Cancel is a no-op; mock utterances never stay in flight
func (m *MockSynthesizer) Cancel() {}

// Pause is a no-op
func (m *MockSynthesizer) Pause() {}

// Resume is a no-op
func (m *MockSynthesizer) Resume() {}

// Voices returns a single default voice
func (m *MockSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return []repositories.Voice{
		{ID: "mock-es-female", Name: "Alma", Language: "es-ES", Gender: "female", Default: true},
	}, nil
}
