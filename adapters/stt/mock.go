package stt

import (
	"context"
	"sync"

	"github.com/almawell/alma/domain/repositories"
)

// MockRecognizer is a scripted recognizer for local development: each
// listening episode yields the next canned transcript as a final result when
// stopped.
type MockRecognizer struct {
	Transcripts []string

	mu     sync.Mutex
	events chan repositories.RecognitionEvent
	index  int
	active bool
}

// NewMockRecognizer creates a recognizer that replays canned transcripts
func NewMockRecognizer(transcripts []string) *MockRecognizer {
	return &MockRecognizer{
		Transcripts: transcripts,
		events:      make(chan repositories.RecognitionEvent, 8),
	}
}

func (m *MockRecognizer) Start(ctx context.Context, config repositories.RecognitionConfig) error {
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
	return nil
}

func (m *MockRecognizer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.active = false

	if m.index < len(m.Transcripts) {
		m.events <- repositories.RecognitionEvent{
			Kind: repositories.RecognitionEventResult,
			Segments: []repositories.RecognitionSegment{
				{Transcript: m.Transcripts[m.index], IsFinal: true},
			},
		}
		m.index++
	}
	m.events <- repositories.RecognitionEvent{Kind: repositories.RecognitionEventEnd}
}

func (m *MockRecognizer) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.active = false
	m.events <- repositories.RecognitionEvent{Kind: repositories.RecognitionEventEnd}
}

func (m *MockRecognizer) Events() <-chan repositories.RecognitionEvent {
	return m.events
}
