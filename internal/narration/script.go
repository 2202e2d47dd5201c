package narration

import (
	"strings"

	"github.com/almawell/alma/internal/markers"
)

// summaryLeadIns mark the start of the written session summary the model
// appends before its marker blocks. Everything from the first lead-in onward
// is meant to be read, not heard.
var summaryLeadIns = []string{
	"aquí tienes tu análisis",
	"aqui tienes tu analisis",
	"aquí está tu análisis",
	"aqui esta tu analisis",
	"resumen de la sesión",
	"resumen de la sesion",
	"resumen de nuestra sesión",
	"resumen de nuestra sesion",
	"análisis emocional de la sesión",
	"analisis emocional de la sesion",
	"here is your analysis",
	"session summary",
}

// PrepareScript reduces raw assistant text to what should be narrated:
// marker blocks are stripped and any trailing summary preamble is dropped.
// An empty result means the utterance is silent.
func PrepareScript(text string) string {
	text = markers.Strip(text)
	lower := strings.ToLower(text)
	cut := len(text)
	for _, phrase := range summaryLeadIns {
		if i := strings.Index(lower, phrase); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(text[:cut])
}
