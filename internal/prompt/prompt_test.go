package prompt

import (
	"strings"
	"testing"

	"github.com/almawell/alma/domain/entities"
)

func TestSystemWithoutProfile(t *testing.T) {
	got := System(nil)
	if !strings.Contains(got, "[ANALISIS_INICIO]") || !strings.Contains(got, "[TAREA_INICIO]") {
		t.Error("System prompt must carry the marker-block contract")
	}
	if strings.Contains(got, "se llama") {
		t.Error("No personalization expected without a profile")
	}
}

func TestSystemPersonalization(t *testing.T) {
	profile := &entities.Profile{Nickname: "Lucía", AssistantName: "Alma"}
	got := System(profile)
	if !strings.Contains(got, "Lucía") {
		t.Error("Nickname missing from personalized prompt")
	}
	if !strings.Contains(got, "Tu nombre es Alma") {
		t.Error("Assistant name missing from personalized prompt")
	}
}

func TestGreeting(t *testing.T) {
	if got := Greeting(nil); got != GreetingLine {
		t.Errorf("Unexpected default greeting: %q", got)
	}
	got := Greeting(&entities.Profile{Nickname: "Lucía"})
	if !strings.Contains(got, "Hola Lucía") {
		t.Errorf("Greeting should address the user by nickname: %q", got)
	}
}
