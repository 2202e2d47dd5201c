// Package listening turns continuous speech recognition into committed user
// utterances. Interim updates stream while the recognizer runs; only an
// intentional stop with accumulated final text commits a turn. Permission and
// capture failures demote the session to typed input for its remainder.
package listening

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/almawell/alma/domain/repositories"
)

// ErrMicUnavailable is returned by Start after a permission or capture
// failure; the caller must not retry and should offer typed input instead.
var ErrMicUnavailable = errors.New("microphone unavailable")

// ErrAlreadyListening is returned when Start is called mid-episode
var ErrAlreadyListening = errors.New("already listening")

// EventKind discriminates acquirer events
type EventKind string

const (
	// EventPartial carries the evolving live transcript.
	EventPartial EventKind = "partial"
	// EventCommitted carries a finished user utterance.
	EventCommitted EventKind = "committed"
	// EventStopped means the episode ended with nothing to commit.
	EventStopped EventKind = "stopped"
	// EventMicUnavailable means recognition is off for the rest of the session.
	EventMicUnavailable EventKind = "mic_unavailable"
)

// Event is emitted by the Acquirer toward the session loop
type Event struct {
	Kind EventKind
	Text string
	Code repositories.RecognitionErrorCode
}

// Acquirer owns one listening episode at a time over a shared recognizer
type Acquirer struct {
	recognizer repositories.SpeechRecognizer
	language   string
	logger     *zap.Logger
	events     chan Event

	mu          sync.Mutex
	listening   bool
	intentional bool
	unavailable bool
}

// NewAcquirer creates an acquirer bound to a recognizer and language tag
func NewAcquirer(recognizer repositories.SpeechRecognizer, language string, logger *zap.Logger) *Acquirer {
	return &Acquirer{
		recognizer: recognizer,
		language:   language,
		logger:     logger,
		events:     make(chan Event, 32),
	}
}

// Events returns the acquirer's event stream
func (a *Acquirer) Events() <-chan Event {
	return a.events
}

// Listening reports whether an episode is in flight
func (a *Acquirer) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Available reports whether speech input is still usable this session
func (a *Acquirer) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.unavailable
}

// Start begins a continuous listening episode with interim results. It fails
// with ErrMicUnavailable once recognition has been demoted, and marks the
// demotion itself when the recognizer cannot start at all.
func (a *Acquirer) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.unavailable {
		a.mu.Unlock()
		return ErrMicUnavailable
	}
	if a.listening {
		a.mu.Unlock()
		return ErrAlreadyListening
	}
	a.listening = true
	a.intentional = false
	a.mu.Unlock()

	err := a.recognizer.Start(ctx, repositories.RecognitionConfig{
		Language:       a.language,
		Continuous:     true,
		InterimResults: true,
	})
	if err != nil {
		a.mu.Lock()
		a.listening = false
		a.unavailable = true
		a.mu.Unlock()
		a.logger.Warn("Recognizer failed to start, demoting to typed input", zap.Error(err))
		return ErrMicUnavailable
	}

	go a.consume()
	return nil
}

// Stop requests an intentional stop; accumulated final text commits when the
// recognizer's end event arrives.
func (a *Acquirer) Stop() {
	a.mu.Lock()
	if !a.listening {
		a.mu.Unlock()
		return
	}
	a.intentional = true
	a.mu.Unlock()

	a.recognizer.Stop()
}

// Abort discards the episode outright; nothing is committed
func (a *Acquirer) Abort() {
	a.mu.Lock()
	listening := a.listening
	a.mu.Unlock()
	if listening {
		a.recognizer.Abort()
	}
}

func (a *Acquirer) consume() {
	var committed strings.Builder

	for ev := range a.recognizer.Events() {
		switch ev.Kind {
		case repositories.RecognitionEventResult:
			var interim strings.Builder
			for _, segment := range ev.Segments {
				if segment.IsFinal {
					committed.WriteString(segment.Transcript)
				} else {
					interim.WriteString(segment.Transcript)
				}
			}
			a.emit(Event{Kind: EventPartial, Text: committed.String() + interim.String()})

		case repositories.RecognitionEventError:
			switch ev.Code {
			case repositories.RecognitionErrNoSpeech:
				// Transient silence; keep listening.
			case repositories.RecognitionErrAborted:
				// Clean stop, the end event closes the episode uncommitted.
			case repositories.RecognitionErrNotAllowed, repositories.RecognitionErrAudioCapture:
				a.mu.Lock()
				a.unavailable = true
				a.mu.Unlock()
				a.logger.Warn("Recognition permanently unavailable",
					zap.String("code", string(ev.Code)))
				a.emit(Event{Kind: EventMicUnavailable, Code: ev.Code})
				a.recognizer.Abort()
			default:
				a.logger.Warn("Unclassified recognition error",
					zap.String("code", string(ev.Code)))
			}

		case repositories.RecognitionEventEnd:
			a.finish(committed.String())
			return
		}
	}

	// Recognizer closed its stream without an end event.
	a.finish(committed.String())
}

// finish closes the episode: an intentional stop with non-empty final text
// commits, anything else stops silently.
func (a *Acquirer) finish(text string) {
	a.mu.Lock()
	intentional := a.intentional
	a.listening = false
	a.intentional = false
	a.mu.Unlock()

	text = strings.TrimSpace(text)
	if intentional && text != "" {
		a.emit(Event{Kind: EventCommitted, Text: text})
		return
	}
	a.emit(Event{Kind: EventStopped})
}

func (a *Acquirer) emit(event Event) {
	select {
	case a.events <- event:
	default:
		a.logger.Warn("Acquirer event channel full, dropping event", zap.String("kind", string(event.Kind)))
	}
}
