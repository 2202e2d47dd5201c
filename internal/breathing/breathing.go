// Package breathing runs the guided 4-7-8 breathing exercise: inhale four
// seconds, hold seven, exhale eight, rest two, three cycles. The runner emits
// phase transitions and per-second countdowns and can be skipped at any point.
package breathing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExerciseName is recorded on the session when the exercise completes
const ExerciseName = "Respiración 4-7-8"

// Phase is one stage of a breathing cycle
type Phase string

const (
	PhaseInhale Phase = "inhale"
	PhaseHold   Phase = "hold"
	PhaseExhale Phase = "exhale"
	PhaseRest   Phase = "rest"
)

// Config shapes the exercise; zero values take the 4-7-8 defaults
type Config struct {
	Inhale time.Duration
	Hold   time.Duration
	Exhale time.Duration
	Rest   time.Duration
	Cycles int
	// Tick is the countdown granularity, one second by default.
	Tick time.Duration
}

func (c Config) withDefaults() Config {
	if c.Inhale == 0 {
		c.Inhale = 4 * time.Second
	}
	if c.Hold == 0 {
		c.Hold = 7 * time.Second
	}
	if c.Exhale == 0 {
		c.Exhale = 8 * time.Second
	}
	if c.Rest == 0 {
		c.Rest = 2 * time.Second
	}
	if c.Cycles == 0 {
		c.Cycles = 3
	}
	if c.Tick == 0 {
		c.Tick = time.Second
	}
	return c
}

// EventKind discriminates runner events
type EventKind string

const (
	EventPhase     EventKind = "phase"
	EventCountdown EventKind = "countdown"
	EventDone      EventKind = "done"
)

// Event reports exercise progress. Done carries Skipped when the user
// abandoned the exercise early; a skipped exercise is not recorded.
type Event struct {
	Kind      EventKind
	Phase     Phase
	Cycle     int
	Remaining int
	Skipped   bool
}

// Runner executes one breathing exercise at a time
type Runner struct {
	config Config
	logger *zap.Logger
	events chan Event

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewRunner creates a breathing exercise runner
func NewRunner(config Config, logger *zap.Logger) *Runner {
	return &Runner{
		config: config.withDefaults(),
		logger: logger,
		events: make(chan Event, 64),
	}
}

// Events returns the runner's event stream
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Running reports whether an exercise is in progress
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start begins the exercise. A second start while one is running is ignored.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	go r.run(runCtx)
}

// Skip abandons the exercise; the done event reports it as skipped
func (r *Runner) Skip() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) run(ctx context.Context) {
	phases := []struct {
		phase    Phase
		duration time.Duration
	}{
		{PhaseInhale, r.config.Inhale},
		{PhaseHold, r.config.Hold},
		{PhaseExhale, r.config.Exhale},
		{PhaseRest, r.config.Rest},
	}

	skipped := false
loop:
	for cycle := 1; cycle <= r.config.Cycles; cycle++ {
		for _, p := range phases {
			r.emit(Event{Kind: EventPhase, Phase: p.phase, Cycle: cycle})
			if !r.countdown(ctx, p.phase, cycle, p.duration) {
				skipped = true
				break loop
			}
		}
	}

	r.mu.Lock()
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	r.logger.Debug("Breathing exercise finished", zap.Bool("skipped", skipped))
	r.emit(Event{Kind: EventDone, Skipped: skipped})
}

// countdown emits one tick per interval until the phase elapses; it returns
// false when the exercise was skipped mid-phase.
func (r *Runner) countdown(ctx context.Context, phase Phase, cycle int, duration time.Duration) bool {
	ticks := int(duration / r.config.Tick)
	ticker := time.NewTicker(r.config.Tick)
	defer ticker.Stop()

	for remaining := ticks; remaining > 0; remaining-- {
		r.emit(Event{Kind: EventCountdown, Phase: phase, Cycle: cycle, Remaining: remaining})
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func (r *Runner) emit(event Event) {
	select {
	case r.events <- event:
	default:
		r.logger.Warn("Breathing event channel full, dropping event", zap.String("kind", string(event.Kind)))
	}
}
