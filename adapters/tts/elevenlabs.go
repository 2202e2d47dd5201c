// Package tts provides the Eleven Labs speech synthesizer
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/almawell/alma/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultChunkSize    = 1024
	defaultOutputFormat = "pcm_24000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75
)

// AudioSink receives synthesized audio chunks as they stream in. The
// websocket gateway forwards them to the client as binary frames.
type AudioSink interface {
	WriteAudio(ctx context.Context, chunk []byte) error
}

// ElevenLabsConfig holds configuration for the ElevenLabs adapter.
// APIKey is required; everything else has a default.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

func (c ElevenLabsConfig) withDefaults() ElevenLabsConfig {
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.VoiceID == "" {
		c.VoiceID = defaultVoiceID
	}
	if c.ModelID == "" {
		c.ModelID = defaultModelID
	}
	if c.OutputFormat == "" {
		c.OutputFormat = defaultOutputFormat
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.Stability == 0 {
		c.Stability = defaultStability
	}
	if c.Clarity == 0 {
		c.Clarity = defaultClarity
	}
	return c
}

// NewElevenLabsConfigFromEnv reads the adapter configuration from
// ELEVEN_LABS_* environment variables.
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:      os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
	}

	if chunkSizeStr := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); chunkSizeStr != "" {
		if chunkSize, err := strconv.Atoi(chunkSizeStr); err == nil && chunkSize > 0 {
			config.ChunkSize = chunkSize
		}
	}
	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}
	if clarityStr := os.Getenv("ELEVEN_LABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}
	return config
}

// ElevenLabsSynthesizer implements SpeechSynthesizer over the Eleven Labs
// streaming API. Audio streams into the configured sink; the event channel
// reports start, end, cancellation, and errors per utterance.
type ElevenLabsSynthesizer struct {
	config ElevenLabsConfig
	sink   AudioSink
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewElevenLabsSynthesizer creates a synthesizer streaming into sink
func NewElevenLabsSynthesizer(config ElevenLabsConfig, sink AudioSink, logger *zap.Logger) (*ElevenLabsSynthesizer, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}
	return &ElevenLabsSynthesizer{
		config: config.withDefaults(),
		sink:   sink,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type synthesisRequest struct {
	Text                   string        `json:"text"`
	ModelID                string        `json:"model_id"`
	LanguageCode           string        `json:"language_code,omitempty"`
	VoiceSettings          voiceSettings `json:"voice_settings"`
	ApplyTextNormalization string        `json:"apply_text_normalization,omitempty"`
}

// Speak synthesizes one utterance, streaming audio into the sink. The
// returned channel closes after the terminal event.
func (e *ElevenLabsSynthesizer) Speak(ctx context.Context, utterance repositories.Utterance) (<-chan repositories.SynthesisEvent, error) {
	if strings.TrimSpace(utterance.Text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voiceID := utterance.Voice.ID
	if voiceID == "" {
		voiceID = e.config.VoiceID
	}

	language := ""
	if i := strings.IndexByte(utterance.Language, '-'); i > 0 {
		language = utterance.Language[:i]
	}

	requestBody, err := json.Marshal(synthesisRequest{
		Text:                   utterance.Text,
		ModelID:                e.config.ModelID,
		LanguageCode:           language,
		ApplyTextNormalization: "auto",
		VoiceSettings: voiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.Clarity,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	e.mu.Unlock()

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.config.APIBaseURL, voiceID, e.config.OutputFormat)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	acceptHeader := "audio/mpeg"
	if strings.HasPrefix(e.config.OutputFormat, "pcm") {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.config.APIKey)

	events := make(chan repositories.SynthesisEvent, 4)
	go e.stream(reqCtx, httpReq, events)
	return events, nil
}

func (e *ElevenLabsSynthesizer) stream(ctx context.Context, req *http.Request, events chan<- repositories.SynthesisEvent) {
	defer close(events)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventCanceled}
			return
		}
		events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventError, Err: err}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		events <- repositories.SynthesisEvent{
			Kind: repositories.SynthesisEventError,
			Err:  fmt.Errorf("eleven labs API returned %d: %s", resp.StatusCode, string(errorBody)),
		}
		return
	}

	events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventStarted}

	buffer := make([]byte, e.config.ChunkSize)
	totalBytes := 0
	for {
		if ctx.Err() != nil {
			events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventCanceled}
			return
		}

		n, err := resp.Body.Read(buffer)
		if n > 0 {
			totalBytes += n
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			if e.sink != nil {
				if sinkErr := e.sink.WriteAudio(ctx, chunk); sinkErr != nil {
					if ctx.Err() != nil {
						events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventCanceled}
						return
					}
					events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventError, Err: sinkErr}
					return
				}
			}
		}
		if err == io.EOF {
			e.logger.Debug("Finished streaming audio", zap.Int("totalBytes", totalBytes))
			events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventEnded}
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventCanceled}
				return
			}
			events <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventError, Err: err}
			return
		}
	}
}

// Cancel aborts the in-flight utterance, if any
func (e *ElevenLabsSynthesizer) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pause is a keep-alive no-op; the remote engine has no pausable state
func (e *ElevenLabsSynthesizer) Pause() {}

// Resume pairs with Pause
func (e *ElevenLabsSynthesizer) Resume() {}

// Voices retrieves the available voices
func (e *ElevenLabsSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	url := fmt.Sprintf("%s/voices", e.config.APIBaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	var voicesResponse struct {
		Voices []struct {
			VoiceID string            `json:"voice_id"`
			Name    string            `json:"name"`
			Labels  map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voicesResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	voices := make([]repositories.Voice, 0, len(voicesResponse.Voices))
	for _, v := range voicesResponse.Voices {
		voices = append(voices, repositories.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: v.Labels["language"],
			Gender:   v.Labels["gender"],
			Default:  v.VoiceID == e.config.VoiceID,
		})
	}
	e.logger.Debug("Retrieved available voices", zap.Int("count", len(voices)))
	return voices, nil
}
