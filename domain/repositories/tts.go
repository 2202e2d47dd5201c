package repositories

import "context"

// Voice describes one synthesis voice offered by the engine
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
	Default  bool   `json:"default"`
}

// Utterance is one piece of text to synthesize. A zero-value Voice selects
// the engine default.
type Utterance struct {
	Text     string  `json:"text"`
	Voice    Voice   `json:"voice"`
	Language string  `json:"language"`
	Rate     float64 `json:"rate"`
	Pitch    float64 `json:"pitch"`
	Volume   float64 `json:"volume"`
}

// SynthesisEventKind discriminates synthesis lifecycle events
type SynthesisEventKind string

const (
	SynthesisEventStarted  SynthesisEventKind = "started"
	SynthesisEventEnded    SynthesisEventKind = "ended"
	SynthesisEventCanceled SynthesisEventKind = "canceled"
	SynthesisEventError    SynthesisEventKind = "error"
)

// SynthesisEvent reports progress of one Speak call
type SynthesisEvent struct {
	Kind SynthesisEventKind `json:"kind"`
	Err  error              `json:"-"`
}

// SpeechSynthesizer abstracts a text-to-speech engine. One utterance is
// audible at a time; Speak must not be called again before the previous
// utterance ended, errored, or was canceled.
type SpeechSynthesizer interface {
	// Speak starts synthesizing one utterance and returns its event stream.
	// The channel is closed after a terminal event (ended/canceled/error).
	Speak(ctx context.Context, u Utterance) (<-chan SynthesisEvent, error)
	// Cancel stops the in-flight utterance immediately.
	Cancel()
	// Pause and Resume gate playback; the narration watchdog pings them to
	// defeat engine auto-timeouts on long utterances.
	Pause()
	Resume()
	// Voices enumerates the voices available for selection.
	Voices(ctx context.Context) ([]Voice, error)
}
