package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageRole represents the role of a turn's speaker
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// TimeOfDay classifies when a session started
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
)

// Evolution describes how the user's emotional state moved during a session
type Evolution string

const (
	EvolutionImproved  Evolution = "improved"
	EvolutionWorsened  Evolution = "worsened"
	EvolutionUnchanged Evolution = "unchanged"
)

// TaskFrequency is how often a proposed task should be repeated
type TaskFrequency string

const (
	FrequencyDaily   TaskFrequency = "daily"
	FrequencyWeekly  TaskFrequency = "weekly"
	FrequencyOneTime TaskFrequency = "one-time"
)

// ConversationTurn is one utterance by either party. Turns are immutable once
// appended; their order is chronological and meaningful.
type ConversationTurn struct {
	Role MessageRole `json:"role" bson:"role"`
	Text string      `json:"text" bson:"text"`
}

// EmotionWeight is one entry of an analysis' top-emotions ranking
type EmotionWeight struct {
	Emotion    string `json:"emotion" bson:"emotion"`
	Percentage int    `json:"percentage" bson:"percentage"`
}

// EmotionalAnalysis is the per-session emotional summary produced by the model
type EmotionalAnalysis struct {
	PredominantEmotion string          `json:"predominant_emotion" bson:"predominant_emotion"`
	AverageIntensity   int             `json:"average_intensity" bson:"average_intensity"`
	Evolution          Evolution       `json:"evolution" bson:"evolution"`
	TopEmotions        []EmotionWeight `json:"top_emotions" bson:"top_emotions"`
}

// ProposedTask is a gamified follow-up activity assigned at session end
type ProposedTask struct {
	Title       string        `json:"title" bson:"title"`
	Description string        `json:"description" bson:"description"`
	Frequency   TaskFrequency `json:"frequency" bson:"frequency"`
	Points      int           `json:"points" bson:"points"`
}

// SessionRecord is the aggregate output of one conversational session. It is
// owned exclusively by the session aggregator until handoff: mutated only
// through its methods while the session runs, frozen exactly once on Finalize,
// read-only afterwards.
type SessionRecord struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID             string             `json:"user_id" bson:"user_id"`
	StartedAt          time.Time          `json:"started_at" bson:"started_at"`
	TimeOfDay          TimeOfDay          `json:"time_of_day" bson:"time_of_day"`
	DurationMinutes    int                `json:"duration_minutes" bson:"duration_minutes"`
	Analysis           EmotionalAnalysis  `json:"analysis" bson:"analysis"`
	ExercisesCompleted []string           `json:"exercises_completed" bson:"exercises_completed"`
	Transcript         []ConversationTurn `json:"transcript" bson:"transcript"`
	Tasks              []ProposedTask     `json:"tasks" bson:"tasks"`

	finalized bool
}

// ErrSessionFinalized is returned by any mutation attempted after Finalize.
var ErrSessionFinalized = errors.New("session record is finalized")

// TimeOfDayFor maps a local hour to its session time-of-day bucket
func TimeOfDayFor(hour int) TimeOfDay {
	switch {
	case hour < 12:
		return TimeOfDayMorning
	case hour < 18:
		return TimeOfDayAfternoon
	default:
		return TimeOfDayEvening
	}
}

// NewSessionRecord creates an empty record for a session starting now,
// carrying the placeholder analysis until extraction replaces it.
func NewSessionRecord(userID string, now time.Time) *SessionRecord {
	return &SessionRecord{
		ID:                 primitive.NewObjectID(),
		UserID:             userID,
		StartedAt:          now,
		TimeOfDay:          TimeOfDayFor(now.Hour()),
		Analysis:           DefaultAnalysis(),
		ExercisesCompleted: make([]string, 0),
		Transcript:         make([]ConversationTurn, 0),
		Tasks:              make([]ProposedTask, 0),
	}
}

// AppendTurn adds a turn to the transcript. The transcript is append-only and
// closed once the record is finalized.
func (r *SessionRecord) AppendTurn(role MessageRole, text string) error {
	if r.finalized {
		return ErrSessionFinalized
	}
	r.Transcript = append(r.Transcript, ConversationTurn{Role: role, Text: text})
	return nil
}

// RecordExercise notes a completed guided activity by name
func (r *SessionRecord) RecordExercise(name string) error {
	if r.finalized {
		return ErrSessionFinalized
	}
	r.ExercisesCompleted = append(r.ExercisesCompleted, name)
	return nil
}

// TickMinute advances the wall-clock duration counter by one minute
func (r *SessionRecord) TickMinute() error {
	if r.finalized {
		return ErrSessionFinalized
	}
	r.DurationMinutes++
	return nil
}

// Finalize freezes the record with the session's outcome. It may succeed at
// most once; a second call returns ErrSessionFinalized.
func (r *SessionRecord) Finalize(analysis EmotionalAnalysis, tasks []ProposedTask, exercises []string) error {
	if r.finalized {
		return ErrSessionFinalized
	}
	r.Analysis = analysis
	r.Tasks = tasks
	r.ExercisesCompleted = exercises
	r.finalized = true
	return nil
}

// Finalized reports whether the record has been frozen
func (r *SessionRecord) Finalized() bool {
	return r.finalized
}

// AssistantTurns returns the assistant's turns in chronological order
func (r *SessionRecord) AssistantTurns() []ConversationTurn {
	turns := make([]ConversationTurn, 0, len(r.Transcript))
	for _, t := range r.Transcript {
		if t.Role == MessageRoleAssistant {
			turns = append(turns, t)
		}
	}
	return turns
}

// DefaultAnalysis is the placeholder substituted when no well-formed analysis
// block could be extracted.
func DefaultAnalysis() EmotionalAnalysis {
	return EmotionalAnalysis{
		PredominantEmotion: "neutral",
		AverageIntensity:   5,
		Evolution:          EvolutionUnchanged,
		TopEmotions:        []EmotionWeight{{Emotion: "neutral", Percentage: 100}},
	}
}

// DefaultTasks are assigned when the model produced no extractable tasks
func DefaultTasks() []ProposedTask {
	return []ProposedTask{
		{
			Title:       "Practicar respiración consciente",
			Description: "Dedica 5 minutos cada día a practicar respiración profunda. Esto te ayudará a manejar el estrés y la ansiedad.",
			Frequency:   FrequencyDaily,
			Points:      50,
		},
		{
			Title:       "Registrar emociones diarias",
			Description: "Al final del día, escribe cómo te sentiste y qué situaciones influyeron en tus emociones.",
			Frequency:   FrequencyDaily,
			Points:      75,
		},
		{
			Title:       "Actividad física regular",
			Description: "Realiza al menos 20 minutos de actividad física que disfrutes, 3 veces esta semana.",
			Frequency:   FrequencyWeekly,
			Points:      100,
		},
	}
}

// DefaultExercise is recorded when a session ends with no completed activities
const DefaultExercise = "Conversación terapéutica"

// Validate validates the session record data
func (r *SessionRecord) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	switch r.TimeOfDay {
	case TimeOfDayMorning, TimeOfDayAfternoon, TimeOfDayEvening:
	default:
		return errors.New("invalid time of day")
	}
	return nil
}
