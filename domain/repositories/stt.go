package repositories

import "context"

// RecognitionErrorCode classifies recognizer errors the way the session core
// reacts to them.
type RecognitionErrorCode string

const (
	// RecognitionErrNoSpeech is transient; listening continues.
	RecognitionErrNoSpeech RecognitionErrorCode = "no-speech"
	// RecognitionErrAborted is a clean stop with nothing committed.
	RecognitionErrAborted RecognitionErrorCode = "aborted"
	// RecognitionErrNotAllowed means permission was denied; no automatic retry.
	RecognitionErrNotAllowed RecognitionErrorCode = "not-allowed"
	// RecognitionErrAudioCapture means no usable microphone.
	RecognitionErrAudioCapture RecognitionErrorCode = "audio-capture"
)

// RecognitionEventKind discriminates recognizer events
type RecognitionEventKind string

const (
	RecognitionEventResult RecognitionEventKind = "result"
	RecognitionEventError  RecognitionEventKind = "error"
	RecognitionEventEnd    RecognitionEventKind = "end"
)

// RecognitionSegment is one transcript alternative segment of a result event
type RecognitionSegment struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

// RecognitionEvent is emitted by a SpeechRecognizer. Result events carry the
// segments from the current result index onward, interim and final mixed.
type RecognitionEvent struct {
	Kind     RecognitionEventKind `json:"kind"`
	Segments []RecognitionSegment `json:"segments,omitempty"`
	Code     RecognitionErrorCode `json:"code,omitempty"`
}

// RecognitionConfig represents recognizer configuration
type RecognitionConfig struct {
	Language       string `json:"language"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
	SampleRate     int    `json:"sample_rate"`
	Encoding       string `json:"encoding"`
}

// SpeechRecognizer abstracts a continuous speech-to-text engine as an event
// source. The engine is a process-wide singleton exclusively owned by one
// session at a time.
type SpeechRecognizer interface {
	// Start begins continuous recognition. It fails if the capability is
	// unavailable; permission errors arrive as events instead.
	Start(ctx context.Context, config RecognitionConfig) error
	// Stop requests a graceful stop; an end event follows.
	Stop()
	// Abort discards the stream without committing anything.
	Abort()
	// Events returns the recognizer's event stream.
	Events() <-chan RecognitionEvent
}
