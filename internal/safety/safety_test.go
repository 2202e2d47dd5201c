package safety

import "testing"

func TestCrisisDetection(t *testing.T) {
	d := NewDetector("es-ES")

	positives := []string{
		"quiero morir",
		"últimamente pienso en el suicidio todo el tiempo",
		"QUIERO MORIR",
		"a veces siento que quiero Hacerme Daño cuando todo sale mal",
		"no quiero vivir más",
	}
	for _, text := range positives {
		if !d.Crisis(text) {
			t.Errorf("Crisis(%q) = false, want true", text)
		}
	}

	negatives := []string{
		"hoy fue un buen día",
		"me siento un poco triste",
		"",
	}
	for _, text := range negatives {
		if d.Crisis(text) {
			t.Errorf("Crisis(%q) = true, want false", text)
		}
	}
}

func TestSessionEndDetection(t *testing.T) {
	d := NewDetector("es-ES")

	positives := []string{
		"gracias, nos vemos",
		"bueno, hasta aquí por hoy",
		"Adiós",
		"creo que eso es todo",
		"me tengo que ir ya",
	}
	for _, text := range positives {
		if !d.SessionEnd(text) {
			t.Errorf("SessionEnd(%q) = false, want true", text)
		}
	}

	if d.SessionEnd("sigamos hablando un rato") {
		t.Error("SessionEnd should not trigger on a continuing utterance")
	}
}

func TestDetectorsAreIndependent(t *testing.T) {
	d := NewDetector("es-ES")

	// Both match here; precedence is the aggregator's job, the detectors
	// just report independently.
	text := "quiero morir, adiós"
	if !d.Crisis(text) {
		t.Error("Crisis should match")
	}
	if !d.SessionEnd(text) {
		t.Error("SessionEnd should match")
	}
}

func TestBreathingSuggestion(t *testing.T) {
	d := NewDetector("es-ES")

	if !d.BreathingSuggestion("¿Te gustaría probar un ejercicio de respiración conmigo?") {
		t.Error("Expected breathing suggestion to be detected")
	}
	if !d.BreathingSuggestion("Podemos hacer un ejercicio para respirar juntos") {
		t.Error("Expected respirar+ejercicio heuristic to match")
	}
	if d.BreathingSuggestion("Respira hondo un momento") {
		t.Error("Plain mention of breathing should not trigger the exercise")
	}
}

func TestEnglishLists(t *testing.T) {
	d := NewDetector("en-US")

	if !d.Crisis("sometimes I want to die") {
		t.Error("English crisis phrase should match")
	}
	if !d.SessionEnd("thanks, see you later") {
		t.Error("English farewell should match")
	}
	if d.Crisis("quiero morir") {
		t.Error("Spanish keywords should not leak into the English detector")
	}
}

func TestUnknownLanguageFallsBackToSpanish(t *testing.T) {
	d := NewDetector("fr-FR")
	if !d.Crisis("quiero morir") {
		t.Error("Unknown language should fall back to the Spanish lists")
	}
}
