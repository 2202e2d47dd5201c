// Package stt provides the Google Cloud streaming speech recognizer
package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/almawell/alma/domain/repositories"
)

// GoogleRecognizer implements SpeechRecognizer over the Cloud Speech
// streaming API. Audio arrives through WriteAudio; results, errors, and the
// end of each episode are delivered as recognition events.
type GoogleRecognizer struct {
	client *speech.Client
	logger *zap.Logger
	events chan repositories.RecognitionEvent

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	active bool
}

// NewGoogleRecognizer creates the recognizer; credentials come from the
// environment as for any Cloud client.
func NewGoogleRecognizer(ctx context.Context, logger *zap.Logger) (*GoogleRecognizer, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleRecognizer{
		client: client,
		logger: logger,
		events: make(chan repositories.RecognitionEvent, 32),
	}, nil
}

// Events returns the recognizer's event stream
func (g *GoogleRecognizer) Events() <-chan repositories.RecognitionEvent {
	return g.events
}

// Start opens a continuous streaming recognition episode
func (g *GoogleRecognizer) Start(ctx context.Context, config repositories.RecognitionConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return fmt.Errorf("recognition already active")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := g.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		cancel()
		return err
	}

	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(sampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  config.InterimResults,
				SingleUtterance: !config.Continuous,
			},
		},
	}); err != nil {
		stream.CloseSend()
		cancel()
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.stream = stream
	g.cancel = cancel
	g.active = true

	go g.receive(stream)
	return nil
}

// WriteAudio feeds one chunk of caller audio into the active episode. The
// gateway calls this for every binary frame it receives.
func (g *GoogleRecognizer) WriteAudio(data []byte) error {
	g.mu.Lock()
	stream := g.stream
	active := g.active
	g.mu.Unlock()

	if !active || len(data) == 0 {
		return nil
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Stop closes the audio side gracefully; the end event follows once the
// service has flushed its final results.
func (g *GoogleRecognizer) Stop() {
	g.mu.Lock()
	stream := g.stream
	active := g.active
	g.mu.Unlock()

	if active {
		if err := stream.CloseSend(); err != nil {
			g.logger.Warn("Failed to close recognition send stream", zap.Error(err))
		}
	}
}

// Abort discards the episode without waiting for final results
func (g *GoogleRecognizer) Abort() {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close releases the underlying client
func (g *GoogleRecognizer) Close() error {
	return g.client.Close()
}

func (g *GoogleRecognizer) receive(stream speechpb.Speech_StreamingRecognizeClient) {
	defer func() {
		g.mu.Lock()
		g.active = false
		g.stream = nil
		g.cancel = nil
		g.mu.Unlock()
		g.emit(repositories.RecognitionEvent{Kind: repositories.RecognitionEventEnd})
	}()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			g.emit(repositories.RecognitionEvent{
				Kind: repositories.RecognitionEventError,
				Code: classifyError(err),
			})
			return
		}

		if len(resp.Results) == 0 {
			continue
		}
		var segments []repositories.RecognitionSegment
		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			segments = append(segments, repositories.RecognitionSegment{
				Transcript: result.Alternatives[0].Transcript,
				IsFinal:    result.IsFinal,
			})
		}
		if len(segments) > 0 {
			g.emit(repositories.RecognitionEvent{
				Kind:     repositories.RecognitionEventResult,
				Segments: segments,
			})
		}
	}
}

func (g *GoogleRecognizer) emit(event repositories.RecognitionEvent) {
	select {
	case g.events <- event:
	default:
		g.logger.Warn("Recognition event channel full, dropping event",
			zap.String("kind", string(event.Kind)))
	}
}

// classifyError maps transport errors onto the codes the session reacts to
func classifyError(err error) repositories.RecognitionErrorCode {
	switch status.Code(err) {
	case codes.Canceled:
		return repositories.RecognitionErrAborted
	case codes.OutOfRange, codes.DeadlineExceeded:
		// Stream ran past the service's audio limit without speech.
		return repositories.RecognitionErrNoSpeech
	case codes.PermissionDenied, codes.Unauthenticated:
		return repositories.RecognitionErrNotAllowed
	case codes.FailedPrecondition, codes.InvalidArgument:
		return repositories.RecognitionErrAudioCapture
	default:
		return repositories.RecognitionErrAborted
	}
}

func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "", "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
