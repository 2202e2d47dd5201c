package narration

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkKeepsShortSentencesWhole(t *testing.T) {
	chunks := Chunk("Hola. ¿Cómo te sientes hoy? Estoy aquí para escucharte.", 200)
	if len(chunks) != 3 {
		t.Fatalf("Expected one chunk per sentence, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "Hola." {
		t.Errorf("Unexpected first chunk: %q", chunks[0])
	}
	if chunks[2] != "Estoy aquí para escucharte." {
		t.Errorf("Unexpected last chunk: %q", chunks[2])
	}
}

func TestChunkBudgetProperty(t *testing.T) {
	long := strings.Repeat("una frase con varias palabras que sigue y sigue, ", 20) + "y termina aquí."
	text := "Primera oración corta. " + long + " Última."

	for _, max := range []int{40, 80, 200} {
		for _, chunk := range Chunk(text, max) {
			if utf8.RuneCountInString(chunk) > max {
				t.Errorf("max=%d: chunk exceeds budget (%d runes): %q",
					max, utf8.RuneCountInString(chunk), chunk)
			}
		}
	}
}

func TestChunkOversizedWordUnsplit(t *testing.T) {
	word := strings.Repeat("a", 250)
	chunks := Chunk("Corta. "+word+" final", 200)

	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk, "aaaa") {
			if !strings.Contains(chunk, word) {
				t.Errorf("Oversized word was split: %q", chunk)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("Oversized word missing from chunks: %v", chunks)
	}
}

func TestChunkClauseBoundaries(t *testing.T) {
	sentence := "Cuando sientas que la ansiedad sube, intenta respirar hondo unas cuantas veces; después observa qué pasa en tu cuerpo, sin juzgarlo ni apurarte."
	chunks := Chunk(sentence, 60)

	if len(chunks) < 2 {
		t.Fatalf("Expected the sentence to split on clauses, got %v", chunks)
	}
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 60 {
			t.Errorf("Chunk exceeds budget: %q", chunk)
		}
	}
}

func TestChunkPreservesClauseSeparators(t *testing.T) {
	sentence := "Respira hondo cuando la tensión aparezca; cuenta hasta cuatro, y suelta el aire despacio."
	chunks := Chunk(sentence, 70)

	if len(chunks) != 2 {
		t.Fatalf("Expected two chunks, got %v", chunks)
	}
	// Clauses recombined under the budget keep their original punctuation;
	// a semicolon must not come back as a comma.
	if !strings.Contains(chunks[0], "aparezca; cuenta") {
		t.Errorf("Semicolon not preserved: %q", chunks[0])
	}
	if strings.HasSuffix(chunks[0], ",") || strings.HasSuffix(chunks[0], ";") {
		t.Errorf("Chunk should not end with a dangling separator: %q", chunks[0])
	}
}

func TestChunkTrailingFragmentKept(t *testing.T) {
	chunks := Chunk("Una oración completa. y un resto sin puntuación", 200)
	if len(chunks) != 2 {
		t.Fatalf("Trailing fragment should become its own chunk, got %v", chunks)
	}
	if chunks[1] != "y un resto sin puntuación" {
		t.Errorf("Unexpected trailing chunk: %q", chunks[1])
	}
}

func TestChunkEmpty(t *testing.T) {
	if chunks := Chunk("   ", 200); chunks != nil {
		t.Errorf("Expected nil for blank input, got %v", chunks)
	}
}

func TestPrepareScriptStripsMarkersAndSummary(t *testing.T) {
	text := "Ha sido un placer acompañarte. Cuídate mucho.\n\n" +
		"Resumen de la sesión: hablamos de tu semana y del estrés del trabajo.\n" +
		"[ANALISIS_INICIO]\nEmocion_Predominante: calma\nIntensidad: 3\n[ANALISIS_FIN]\n" +
		"[TAREA_INICIO]\nTitulo: Caminar\nDescripcion: Veinte minutos.\n[TAREA_FIN]"

	got := PrepareScript(text)
	want := "Ha sido un placer acompañarte. Cuídate mucho."
	if got != want {
		t.Errorf("PrepareScript = %q, want %q", got, want)
	}
}

func TestPrepareScriptEmptyWhenOnlyMarkers(t *testing.T) {
	text := "[ANALISIS_INICIO]\nEmocion_Predominante: calma\nIntensidad: 3\n[ANALISIS_FIN]"
	if got := PrepareScript(text); got != "" {
		t.Errorf("Expected empty script, got %q", got)
	}
}
