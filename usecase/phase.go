package usecase

// SessionPhase is the single source of truth for what the session is doing.
// Every affordance (may listen, may type, may end) derives from it; there are
// no independent boolean flags to drift apart.
type SessionPhase string

const (
	PhaseIdle              SessionPhase = "idle"
	PhaseGreeting          SessionPhase = "greeting"
	PhaseAwaitingInput     SessionPhase = "awaiting_input"
	PhaseListening         SessionPhase = "listening"
	PhaseAwaitingTyped     SessionPhase = "awaiting_typed"
	PhaseDispatching       SessionPhase = "dispatching"
	PhaseBreathingExercise SessionPhase = "breathing_exercise"
	PhaseCrisisInterrupt   SessionPhase = "crisis_interrupt"
	PhaseEnding            SessionPhase = "ending"
	PhaseTerminated        SessionPhase = "terminated"
)

// AcceptsInput reports whether a user utterance may be taken in this phase
func (p SessionPhase) AcceptsInput() bool {
	switch p {
	case PhaseAwaitingInput, PhaseListening, PhaseAwaitingTyped:
		return true
	}
	return false
}

// Active reports whether the session is still running
func (p SessionPhase) Active() bool {
	return p != PhaseIdle && p != PhaseTerminated
}
