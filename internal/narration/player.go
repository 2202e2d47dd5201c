// Package narration speaks one assistant utterance at a time: marker-stripped
// text is chunked to the engine's per-utterance budget and the chunks are
// played strictly sequentially, with a watchdog ping to defeat engine
// auto-timeouts and best-effort skipping of errored chunks.
package narration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/almawell/alma/domain/repositories"
)

const (
	defaultMaxChunkChars    = 200
	defaultInterChunkPause  = 300 * time.Millisecond
	defaultErrorResumePause = 500 * time.Millisecond
	defaultWatchdogInterval = 10 * time.Second
	defaultRate             = 0.9
	defaultPitch            = 1.0
	defaultVolume           = 1.0
)

// Config is the immutable narration configuration resolved at construction
type Config struct {
	Language         string
	VoiceGender      string
	MaxChunkChars    int
	InterChunkPause  time.Duration
	ErrorResumePause time.Duration
	WatchdogInterval time.Duration
	Rate             float64
	Pitch            float64
}

func (c Config) withDefaults() Config {
	if c.MaxChunkChars == 0 {
		c.MaxChunkChars = defaultMaxChunkChars
	}
	if c.InterChunkPause == 0 {
		c.InterChunkPause = defaultInterChunkPause
	}
	if c.ErrorResumePause == 0 {
		c.ErrorResumePause = defaultErrorResumePause
	}
	if c.WatchdogInterval == 0 {
		c.WatchdogInterval = defaultWatchdogInterval
	}
	if c.Rate == 0 {
		c.Rate = defaultRate
	}
	if c.Pitch == 0 {
		c.Pitch = defaultPitch
	}
	return c
}

// EventKind discriminates player events
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventChunkStarted EventKind = "chunk_started"
	EventChunkEnded   EventKind = "chunk_ended"
	EventFinished     EventKind = "finished"
)

// Event reports narration progress. Utterance echoes the id Speak returned,
// so callers can tell which utterance an event belongs to. Finished carries
// Interrupted when the utterance was canceled rather than played to
// completion.
type Event struct {
	Kind        EventKind
	Utterance   int
	Chunk       int
	TotalChunks int
	Interrupted bool
}

// Player owns the synthesis engine for the session's lifetime and plays one
// utterance at a time. Starting a new utterance cancels the previous one
// outright; there is no queueing across utterances.
type Player struct {
	engine repositories.SpeechSynthesizer
	config Config
	logger *zap.Logger
	events chan Event

	mu       sync.Mutex
	cancel   context.CancelFunc
	speaking bool
	seq      int
}

// NewPlayer creates a narration player over a synthesis engine
func NewPlayer(engine repositories.SpeechSynthesizer, config Config, logger *zap.Logger) *Player {
	return &Player{
		engine: engine,
		config: config.withDefaults(),
		logger: logger,
		events: make(chan Event, 32),
	}
}

// Events returns the player's event stream
func (p *Player) Events() <-chan Event {
	return p.events
}

// Speaking reports whether an utterance is in flight
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Speak prepares and narrates one assistant utterance, canceling any prior
// narration first. If nothing remains after stripping, it completes
// immediately with no audio. Returns the utterance id echoed in the events.
func (p *Player) Speak(ctx context.Context, text string) int {
	p.Cancel()

	p.mu.Lock()
	p.seq++
	utterance := p.seq
	p.mu.Unlock()

	script := PrepareScript(text)
	if script == "" {
		p.emit(Event{Kind: EventFinished, Utterance: utterance})
		return utterance
	}

	chunks := Chunk(script, p.config.MaxChunkChars)
	p.logger.Debug("Narration prepared",
		zap.Int("utterance", utterance),
		zap.Int("chunks", len(chunks)),
		zap.Int("scriptLength", len(script)))

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.speaking = true
	p.mu.Unlock()

	go p.run(runCtx, utterance, chunks)
	return utterance
}

// Cancel stops the in-flight and queued chunks immediately. The playing state
// flips to false before the engine is told to stop.
func (p *Player) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.speaking = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.engine.Cancel()
	}
}

func (p *Player) run(ctx context.Context, utterance int, chunks []string) {
	voice := p.resolveVoice(ctx)
	p.emit(Event{Kind: EventStarted, Utterance: utterance, TotalChunks: len(chunks)})

	interrupted := false
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		err := p.speakChunk(ctx, chunk, voice, utterance, i, len(chunks))
		if err == nil {
			if i < len(chunks)-1 && !sleepCtx(ctx, p.config.InterChunkPause) {
				interrupted = true
				break
			}
			continue
		}
		if errors.Is(err, context.Canceled) {
			interrupted = true
			break
		}

		// Non-cancellation chunk errors skip forward; narration is
		// best-effort.
		p.logger.Warn("Synthesis chunk failed, skipping",
			zap.Int("chunk", i+1),
			zap.Int("total", len(chunks)),
			zap.Error(err))
		if !sleepCtx(ctx, p.config.ErrorResumePause) {
			interrupted = true
			break
		}
	}

	p.mu.Lock()
	p.speaking = false
	p.cancel = nil
	p.mu.Unlock()

	p.emit(Event{Kind: EventFinished, Utterance: utterance, TotalChunks: len(chunks), Interrupted: interrupted})
}

func (p *Player) speakChunk(ctx context.Context, chunk string, voice repositories.Voice, utterance, index, total int) error {
	events, err := p.engine.Speak(ctx, repositories.Utterance{
		Text:     chunk,
		Voice:    voice,
		Language: p.config.Language,
		Rate:     p.config.Rate,
		Pitch:    p.config.Pitch,
		Volume:   defaultVolume,
	})
	if err != nil {
		return err
	}

	watchdog := time.NewTicker(p.config.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			p.engine.Cancel()
			return context.Canceled

		case <-watchdog.C:
			// Ping against engine auto-timeouts on long chunks.
			p.engine.Pause()
			p.engine.Resume()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case repositories.SynthesisEventStarted:
				p.emit(Event{Kind: EventChunkStarted, Utterance: utterance, Chunk: index + 1, TotalChunks: total})
			case repositories.SynthesisEventEnded:
				p.emit(Event{Kind: EventChunkEnded, Utterance: utterance, Chunk: index + 1, TotalChunks: total})
				return nil
			case repositories.SynthesisEventCanceled:
				return context.Canceled
			case repositories.SynthesisEventError:
				if ev.Err != nil {
					return ev.Err
				}
				return errors.New("synthesis error")
			}
		}
	}
}

// resolveVoice picks a voice once per utterance: language and gender
// preference first, language alone second, engine default on no match.
func (p *Player) resolveVoice(ctx context.Context) repositories.Voice {
	voices, err := p.engine.Voices(ctx)
	if err != nil || len(voices) == 0 {
		return repositories.Voice{}
	}

	langPrefix := p.config.Language
	if i := strings.IndexByte(langPrefix, '-'); i > 0 {
		langPrefix = langPrefix[:i]
	}

	var languageMatch *repositories.Voice
	for i := range voices {
		v := &voices[i]
		if !strings.HasPrefix(strings.ToLower(v.Language), strings.ToLower(langPrefix)) {
			continue
		}
		if p.config.VoiceGender != "" && strings.EqualFold(v.Gender, p.config.VoiceGender) {
			return *v
		}
		if languageMatch == nil {
			languageMatch = v
		}
	}
	if languageMatch != nil {
		return *languageMatch
	}
	return repositories.Voice{}
}

func (p *Player) emit(event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Narration event channel full, dropping event", zap.String("kind", string(event.Kind)))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
