package entities

import (
	"testing"
	"time"
)

func TestNewSessionRecord(t *testing.T) {
	started := time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local)
	record := NewSessionRecord("user-123", started)

	if record.UserID != "user-123" {
		t.Errorf("Expected user ID user-123, got %s", record.UserID)
	}
	if record.TimeOfDay != TimeOfDayMorning {
		t.Errorf("Expected morning, got %s", record.TimeOfDay)
	}
	if record.DurationMinutes != 0 {
		t.Errorf("Expected zero duration, got %d", record.DurationMinutes)
	}
	if len(record.Transcript) != 0 {
		t.Errorf("Expected empty transcript, got %d turns", len(record.Transcript))
	}
	if record.Analysis.PredominantEmotion != "neutral" {
		t.Errorf("Expected placeholder analysis, got %s", record.Analysis.PredominantEmotion)
	}
	if record.Finalized() {
		t.Error("New record should not be finalized")
	}
}

func TestTimeOfDayFor(t *testing.T) {
	cases := []struct {
		hour int
		want TimeOfDay
	}{
		{0, TimeOfDayMorning},
		{11, TimeOfDayMorning},
		{12, TimeOfDayAfternoon},
		{17, TimeOfDayAfternoon},
		{18, TimeOfDayEvening},
		{23, TimeOfDayEvening},
	}
	for _, c := range cases {
		if got := TimeOfDayFor(c.hour); got != c.want {
			t.Errorf("TimeOfDayFor(%d) = %s, want %s", c.hour, got, c.want)
		}
	}
}

func TestAppendTurn(t *testing.T) {
	record := NewSessionRecord("user-123", time.Now())

	if err := record.AppendTurn(MessageRoleUser, "hola"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if err := record.AppendTurn(MessageRoleAssistant, "hola, ¿cómo estás?"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	if len(record.Transcript) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(record.Transcript))
	}
	if record.Transcript[0].Role != MessageRoleUser {
		t.Errorf("Expected user role first, got %s", record.Transcript[0].Role)
	}
	if record.Transcript[1].Text != "hola, ¿cómo estás?" {
		t.Errorf("Unexpected second turn text: %s", record.Transcript[1].Text)
	}

	assistant := record.AssistantTurns()
	if len(assistant) != 1 || assistant[0].Role != MessageRoleAssistant {
		t.Errorf("AssistantTurns returned %v", assistant)
	}
}

func TestFinalizeIsIdempotentGuard(t *testing.T) {
	record := NewSessionRecord("user-123", time.Now())
	record.AppendTurn(MessageRoleUser, "hola")

	if err := record.Finalize(DefaultAnalysis(), DefaultTasks(), []string{DefaultExercise}); err != nil {
		t.Fatalf("First finalize failed: %v", err)
	}
	if !record.Finalized() {
		t.Error("Record should be finalized")
	}

	if err := record.Finalize(DefaultAnalysis(), nil, nil); err != ErrSessionFinalized {
		t.Errorf("Second finalize should return ErrSessionFinalized, got %v", err)
	}
	if len(record.Tasks) != 3 {
		t.Errorf("Second finalize must not mutate the record, tasks = %d", len(record.Tasks))
	}
}

func TestMutationsAfterFinalizeRejected(t *testing.T) {
	record := NewSessionRecord("user-123", time.Now())
	record.Finalize(DefaultAnalysis(), DefaultTasks(), []string{DefaultExercise})

	if err := record.AppendTurn(MessageRoleUser, "tarde"); err != ErrSessionFinalized {
		t.Errorf("AppendTurn after finalize should be rejected, got %v", err)
	}
	if err := record.RecordExercise("Respiración 4-7-8"); err != ErrSessionFinalized {
		t.Errorf("RecordExercise after finalize should be rejected, got %v", err)
	}
	if err := record.TickMinute(); err != ErrSessionFinalized {
		t.Errorf("TickMinute after finalize should be rejected, got %v", err)
	}
	if len(record.Transcript) != 0 {
		t.Errorf("Frozen transcript mutated: %d turns", len(record.Transcript))
	}
}

func TestDefaults(t *testing.T) {
	analysis := DefaultAnalysis()
	if analysis.PredominantEmotion != "neutral" || analysis.AverageIntensity != 5 {
		t.Errorf("Unexpected default analysis: %+v", analysis)
	}
	if analysis.Evolution != EvolutionUnchanged {
		t.Errorf("Expected unchanged evolution, got %s", analysis.Evolution)
	}
	if len(analysis.TopEmotions) != 1 || analysis.TopEmotions[0].Percentage != 100 {
		t.Errorf("Unexpected default top emotions: %+v", analysis.TopEmotions)
	}

	tasks := DefaultTasks()
	if len(tasks) != 3 {
		t.Fatalf("Expected 3 default tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Title == "" || task.Description == "" || task.Points <= 0 {
			t.Errorf("Incomplete default task: %+v", task)
		}
	}
}

func TestSessionRecordValidation(t *testing.T) {
	record := NewSessionRecord("user-123", time.Now())
	if err := record.Validate(); err != nil {
		t.Errorf("Valid record should pass validation, got: %v", err)
	}

	record.UserID = ""
	if err := record.Validate(); err == nil {
		t.Error("Record without user ID should fail validation")
	}

	record.UserID = "user-123"
	record.TimeOfDay = TimeOfDay("midnight")
	if err := record.Validate(); err == nil {
		t.Error("Record with invalid time of day should fail validation")
	}
}
