package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/almawell/alma/domain/entities"
	"github.com/almawell/alma/domain/repositories"
	"github.com/almawell/alma/internal/breathing"
	"github.com/almawell/alma/internal/dispatch"
	"github.com/almawell/alma/internal/listening"
	"github.com/almawell/alma/internal/markers"
	"github.com/almawell/alma/internal/narration"
	"github.com/almawell/alma/internal/prompt"
	"github.com/almawell/alma/internal/safety"
)

// Config is the immutable session configuration injected at construction.
// Nothing inside the session reads ambient settings.
type Config struct {
	Language       string
	VoiceGender    string
	GreetingDelay  time.Duration
	BreathingDelay time.Duration
	MinuteTick     time.Duration
	Narration      narration.Config
	Breathing      breathing.Config
}

func (c Config) withDefaults() Config {
	if c.Language == "" {
		c.Language = "es-ES"
	}
	if c.GreetingDelay == 0 {
		c.GreetingDelay = 500 * time.Millisecond
	}
	if c.BreathingDelay == 0 {
		c.BreathingDelay = 3 * time.Second
	}
	if c.MinuteTick == 0 {
		c.MinuteTick = time.Minute
	}
	if c.Narration.Language == "" {
		c.Narration.Language = c.Language
	}
	if c.Narration.VoiceGender == "" {
		c.Narration.VoiceGender = c.VoiceGender
	}
	return c
}

// commandKind discriminates session commands
type commandKind string

const (
	cmdStartListening commandKind = "start_listening"
	cmdStopListening  commandKind = "stop_listening"
	cmdSubmitText     commandKind = "text_input"
	cmdEndSession     commandKind = "end_session"
	cmdDismissCrisis  commandKind = "dismiss_crisis"
	cmdBreathingStart commandKind = "breathing_start"
	cmdBreathingSkip  commandKind = "breathing_skip"
)

type command struct {
	kind commandKind
	text string
}

// SessionEventKind discriminates events the session emits toward its host
type SessionEventKind string

const (
	SessionEventPhase          SessionEventKind = "phase"
	SessionEventPartial        SessionEventKind = "partial_transcript"
	SessionEventTurn           SessionEventKind = "turn"
	SessionEventCrisis         SessionEventKind = "crisis"
	SessionEventMicUnavailable SessionEventKind = "mic_unavailable"
	SessionEventBreathing      SessionEventKind = "breathing"
	SessionEventFinalized      SessionEventKind = "finalized"
	SessionEventError          SessionEventKind = "error"
)

// SessionEvent is one host-visible session update. Turn text is
// display-stripped; the raw text lives only in the record for extraction.
type SessionEvent struct {
	Kind      SessionEventKind
	Phase     SessionPhase
	Role      entities.MessageRole
	Text      string
	Breathing *breathing.Event
	Record    *entities.SessionRecord
	Err       error
}

// SessionService runs one therapy session as a single-goroutine event loop.
// All engine callbacks, commands, and timers funnel into that loop; nothing
// mutates the record concurrently.
type SessionService struct {
	completer repositories.ChatCompleter
	sessions  repositories.SessionRepository
	profiles  repositories.ProfileRepository
	config    Config
	logger    *zap.Logger

	player   *narration.Player
	acquirer *listening.Acquirer
	runner   *breathing.Runner
	detector *safety.Detector

	commands chan command
	events   chan SessionEvent
}

// NewSessionService assembles a session over its capabilities
func NewSessionService(
	completer repositories.ChatCompleter,
	recognizer repositories.SpeechRecognizer,
	synthesizer repositories.SpeechSynthesizer,
	sessions repositories.SessionRepository,
	profiles repositories.ProfileRepository,
	config Config,
	logger *zap.Logger,
) *SessionService {
	config = config.withDefaults()
	return &SessionService{
		completer: completer,
		sessions:  sessions,
		profiles:  profiles,
		config:    config,
		logger:    logger,
		player:    narration.NewPlayer(synthesizer, config.Narration, logger),
		acquirer:  listening.NewAcquirer(recognizer, config.Language, logger),
		runner:    breathing.NewRunner(config.Breathing, logger),
		detector:  safety.NewDetector(config.Language),
		commands:  make(chan command, 16),
		events:    make(chan SessionEvent, 64),
	}
}

// Events returns the session's host-facing event stream
func (s *SessionService) Events() <-chan SessionEvent {
	return s.events
}

// StartListening begins a speech episode
func (s *SessionService) StartListening() { s.send(command{kind: cmdStartListening}) }

// StopListening ends the speech episode, committing accumulated text
func (s *SessionService) StopListening() { s.send(command{kind: cmdStopListening}) }

// SubmitText commits a typed utterance, bypassing recognition
func (s *SessionService) SubmitText(text string) { s.send(command{kind: cmdSubmitText, text: text}) }

// EndSession requests explicit termination
func (s *SessionService) EndSession() { s.send(command{kind: cmdEndSession}) }

// DismissCrisis closes the crisis prompt and resumes the session
func (s *SessionService) DismissCrisis() { s.send(command{kind: cmdDismissCrisis}) }

// StartBreathing begins the suggested breathing exercise immediately
func (s *SessionService) StartBreathing() { s.send(command{kind: cmdBreathingStart}) }

// SkipBreathing abandons a running breathing exercise
func (s *SessionService) SkipBreathing() { s.send(command{kind: cmdBreathingSkip}) }

func (s *SessionService) send(cmd command) {
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warn("Session command queue full, dropping command", zap.String("kind", string(cmd.kind)))
	}
}

// sessionLoop carries the mutable state owned by the run goroutine
type sessionLoop struct {
	service *SessionService
	ctx     context.Context
	record  *entities.SessionRecord
	chat    repositories.ChatSession
	dsp     *dispatch.Dispatcher
	phase   SessionPhase

	endAfterNarration bool
	endUtterance      int
	crisisHeld        string
	breathingArmed    bool
	breathingTimer    *time.Timer
	breathingFire     <-chan time.Time
}

// Run executes the session until the user ends it or the context is
// canceled. It returns the finalized record; persistence failure leaves the
// record intact and is reported as a wrapped error alongside it.
func (s *SessionService) Run(ctx context.Context, userID string) (*entities.SessionRecord, error) {
	record := entities.NewSessionRecord(userID, time.Now())

	var profile *entities.Profile
	if s.profiles != nil {
		if p, err := s.profiles.GetByUserID(ctx, userID); err == nil {
			profile = p
		} else {
			s.logger.Debug("No profile for session personalization", zap.String("userId", userID))
		}
	}

	chat, err := s.completer.NewChat(ctx, prompt.System(profile), nil)
	if err != nil {
		return record, err
	}

	loop := &sessionLoop{
		service: s,
		ctx:     ctx,
		record:  record,
		chat:    chat,
		dsp:     dispatch.NewDispatcher(chat, s.logger),
		phase:   PhaseIdle,
	}
	return loop.run(profile)
}

func (l *sessionLoop) run(profile *entities.Profile) (*entities.SessionRecord, error) {
	s := l.service
	s.logger.Info("Session started",
		zap.String("sessionId", l.record.ID.Hex()),
		zap.String("userId", l.record.UserID),
		zap.String("timeOfDay", string(l.record.TimeOfDay)))

	l.setPhase(PhaseGreeting)
	greeting := time.After(s.config.GreetingDelay)

	minutes := time.NewTicker(s.config.MinuteTick)
	defer minutes.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return l.end()

		case <-greeting:
			greeting = nil
			line := prompt.Greeting(profile)
			l.appendAssistant(line)
			s.player.Speak(l.ctx, line)
			l.setPhase(PhaseAwaitingInput)

		case <-minutes.C:
			if err := l.record.TickMinute(); err == nil {
				s.logger.Debug("Session minute elapsed", zap.Int("minutes", l.record.DurationMinutes))
			}

		case cmd := <-s.commands:
			if done, rec, err := l.handleCommand(cmd); done {
				return rec, err
			}

		case ev := <-s.acquirer.Events():
			l.handleListening(ev)

		case result := <-l.dsp.Results():
			l.handleReply(result)

		case ev := <-s.player.Events():
			if done, rec, err := l.handleNarration(ev); done {
				return rec, err
			}

		case <-l.breathingFire:
			l.breathingFire = nil
			l.startBreathing()

		case ev := <-s.runner.Events():
			l.handleBreathing(ev)
		}
	}
}

func (l *sessionLoop) handleCommand(cmd command) (bool, *entities.SessionRecord, error) {
	s := l.service
	switch cmd.kind {
	case cmdStartListening:
		if !l.phase.AcceptsInput() {
			return false, nil, nil
		}
		if err := s.acquirer.Start(l.ctx); err != nil {
			if errors.Is(err, listening.ErrMicUnavailable) {
				l.emit(SessionEvent{Kind: SessionEventMicUnavailable})
				l.setPhase(PhaseAwaitingTyped)
			}
			return false, nil, nil
		}
		// Hearing and speaking never overlap.
		s.player.Cancel()
		l.setPhase(PhaseListening)

	case cmdStopListening:
		s.acquirer.Stop()

	case cmdSubmitText:
		if l.phase.AcceptsInput() && cmd.text != "" {
			s.acquirer.Abort()
			l.commitUserTurn(cmd.text)
		}

	case cmdEndSession:
		rec, err := l.end()
		return true, rec, err

	case cmdDismissCrisis:
		if l.phase == PhaseCrisisInterrupt {
			l.crisisHeld = ""
			l.setPhase(PhaseAwaitingInput)
		}

	case cmdBreathingStart:
		if l.breathingArmed || l.phase == PhaseAwaitingInput {
			l.disarmBreathing()
			l.startBreathing()
		}

	case cmdBreathingSkip:
		s.runner.Skip()
	}
	return false, nil, nil
}

func (l *sessionLoop) handleListening(ev listening.Event) {
	switch ev.Kind {
	case listening.EventPartial:
		l.emit(SessionEvent{Kind: SessionEventPartial, Text: ev.Text})

	case listening.EventCommitted:
		if l.phase == PhaseListening {
			l.setPhase(PhaseAwaitingInput)
		}
		l.commitUserTurn(ev.Text)

	case listening.EventStopped:
		if l.phase == PhaseListening {
			l.setPhase(PhaseAwaitingInput)
		}

	case listening.EventMicUnavailable:
		l.emit(SessionEvent{Kind: SessionEventMicUnavailable})
		l.setPhase(PhaseAwaitingTyped)
	}
}

// commitUserTurn appends a committed utterance and routes it through the
// safety interceptor before anything else sees it.
func (l *sessionLoop) commitUserTurn(text string) {
	s := l.service
	if err := l.record.AppendTurn(entities.MessageRoleUser, text); err != nil {
		return
	}
	l.emit(SessionEvent{Kind: SessionEventTurn, Role: entities.MessageRoleUser, Text: text})

	// Crisis takes precedence over everything, including farewell detection.
	if s.detector.Crisis(text) {
		s.logger.Warn("Crisis language detected", zap.String("sessionId", l.record.ID.Hex()))
		l.crisisHeld = text
		l.setPhase(PhaseCrisisInterrupt)
		l.emit(SessionEvent{Kind: SessionEventCrisis, Text: text})
		return
	}

	if s.detector.SessionEnd(text) {
		// The farewell must still be heard; terminate after its narration.
		l.endAfterNarration = true
	}

	if err := l.dsp.Dispatch(l.ctx, text); err != nil {
		s.logger.Warn("Turn not dispatched", zap.Error(err))
		return
	}
	l.setPhase(PhaseDispatching)
}

func (l *sessionLoop) handleReply(result dispatch.Result) {
	s := l.service

	reply := result.Reply
	if result.Err != nil {
		// Provider failures never end a session; a fixed line stands in.
		reply = prompt.FallbackLine
	}

	l.appendAssistant(reply)
	utterance := s.player.Speak(l.ctx, reply)
	if l.endAfterNarration {
		// Only this reply's own narration may terminate the session; an
		// earlier narration finishing cleanly must not.
		l.endUtterance = utterance
	}
	l.setPhase(PhaseAwaitingInput)

	if result.Err == nil && !l.endAfterNarration && s.detector.BreathingSuggestion(reply) {
		l.armBreathing()
	}
}

// appendAssistant records the raw assistant text and emits the stripped
// version for display.
func (l *sessionLoop) appendAssistant(raw string) {
	if err := l.record.AppendTurn(entities.MessageRoleAssistant, raw); err != nil {
		return
	}
	l.emit(SessionEvent{
		Kind: SessionEventTurn,
		Role: entities.MessageRoleAssistant,
		Text: markers.Strip(raw),
	})
}

func (l *sessionLoop) handleNarration(ev narration.Event) (bool, *entities.SessionRecord, error) {
	if ev.Kind != narration.EventFinished {
		return false, nil, nil
	}
	if l.endAfterNarration && l.endUtterance != 0 && ev.Utterance == l.endUtterance && !ev.Interrupted {
		rec, err := l.end()
		return true, rec, err
	}
	return false, nil, nil
}

func (l *sessionLoop) armBreathing() {
	l.disarmBreathing()
	l.breathingArmed = true
	l.breathingTimer = time.NewTimer(l.service.config.BreathingDelay)
	l.breathingFire = l.breathingTimer.C
}

func (l *sessionLoop) disarmBreathing() {
	if l.breathingTimer != nil {
		l.breathingTimer.Stop()
		l.breathingTimer = nil
		l.breathingFire = nil
	}
	l.breathingArmed = false
}

func (l *sessionLoop) startBreathing() {
	if l.phase == PhaseCrisisInterrupt || l.endAfterNarration || !l.phase.Active() {
		return
	}
	l.breathingArmed = false
	l.service.player.Cancel()
	l.setPhase(PhaseBreathingExercise)
	l.service.runner.Start(l.ctx)
}

func (l *sessionLoop) handleBreathing(ev breathing.Event) {
	s := l.service
	evCopy := ev
	l.emit(SessionEvent{Kind: SessionEventBreathing, Breathing: &evCopy})

	if ev.Kind != breathing.EventDone {
		return
	}
	if !ev.Skipped {
		if err := l.record.RecordExercise(breathing.ExerciseName); err == nil {
			s.logger.Info("Exercise completed", zap.String("exercise", breathing.ExerciseName))
		}
		l.appendAssistant(prompt.BreathingFollowUpLine)
		s.player.Speak(l.ctx, prompt.BreathingFollowUpLine)
	}
	l.setPhase(PhaseAwaitingInput)
}

// end terminates the session exactly once: engines stop before any data is
// touched, a single retroactive completion fills missing analysis and tasks,
// defaults cover whatever remains, and the frozen record is handed off.
func (l *sessionLoop) end() (*entities.SessionRecord, error) {
	s := l.service
	if l.record.Finalized() {
		return l.record, nil
	}

	// Engines first, so no late callback can touch the frozen record.
	s.player.Cancel()
	s.acquirer.Abort()
	s.runner.Skip()
	l.disarmBreathing()
	l.setPhase(PhaseEnding)

	analysis, hasAnalysis := markers.ExtractAnalysis(l.record.Transcript)
	tasks := markers.ExtractTasks(l.record.Transcript)

	if len(l.record.Transcript) > 0 && !hasAnalysis && len(tasks) == 0 {
		if retro := l.retroactiveClose(); retro != nil {
			if a, ok := markers.ExtractAnalysis(retro); ok {
				analysis, hasAnalysis = a, true
			}
			tasks = markers.ExtractTasks(retro)
		}
	}

	if !hasAnalysis {
		analysis = entities.DefaultAnalysis()
	}
	if len(tasks) == 0 {
		tasks = entities.DefaultTasks()
	}
	exercises := l.record.ExercisesCompleted
	if len(exercises) == 0 {
		exercises = []string{entities.DefaultExercise}
	}

	if err := l.record.Finalize(analysis, tasks, exercises); err != nil {
		return l.record, err
	}
	l.setPhase(PhaseTerminated)

	s.logger.Info("Session finalized",
		zap.String("sessionId", l.record.ID.Hex()),
		zap.Int("turns", len(l.record.Transcript)),
		zap.Int("durationMinutes", l.record.DurationMinutes),
		zap.String("predominantEmotion", l.record.Analysis.PredominantEmotion))

	if s.sessions != nil {
		if err := s.sessions.Save(l.ctx, l.record); err != nil {
			// The record stays intact for a caller-level retry.
			s.logger.Error("Session persistence failed", zap.Error(err))
			l.emit(SessionEvent{Kind: SessionEventError, Err: err})
			l.emit(SessionEvent{Kind: SessionEventFinalized, Record: l.record})
			return l.record, err
		}
	}
	l.emit(SessionEvent{Kind: SessionEventFinalized, Record: l.record})
	return l.record, nil
}

// retroactiveClose issues the single best-effort completion asking the model
// to produce the missing analysis and task blocks. Its output is parsed only;
// it never becomes a transcript turn.
func (l *sessionLoop) retroactiveClose() []entities.ConversationTurn {
	reply, err := l.chat.SendMessage(l.ctx, repositories.ChatMessage{
		Role:    repositories.UserRole,
		Content: prompt.RetroactiveClosingPrompt,
	})
	if err != nil {
		l.service.logger.Warn("Retroactive closing request failed", zap.Error(err))
		return nil
	}
	return []entities.ConversationTurn{{Role: entities.MessageRoleAssistant, Text: reply.Content}}
}

func (l *sessionLoop) setPhase(phase SessionPhase) {
	if l.phase == phase {
		return
	}
	l.phase = phase
	l.emit(SessionEvent{Kind: SessionEventPhase, Phase: phase})
}

func (l *sessionLoop) emit(event SessionEvent) {
	select {
	case l.service.events <- event:
	default:
		l.service.logger.Warn("Session event channel full, dropping event",
			zap.String("kind", string(event.Kind)))
	}
}
