// Package safety holds the pure, stateless detectors applied to every
// committed user utterance before any other processing. Crisis detection takes
// precedence over session-end detection when both match.
package safety

import "strings"

var crisisKeywords = map[string][]string{
	"es": {
		"suicidio",
		"suicidarme",
		"matarme",
		"acabar con mi vida",
		"no quiero vivir",
		"quiero morir",
		"autolesión",
		"autolesion",
		"cortarme",
		"hacerme daño",
		"hacerme dano",
	},
	"en": {
		"suicide",
		"kill myself",
		"end my life",
		"don't want to live",
		"dont want to live",
		"want to die",
		"self-harm",
		"self harm",
		"cut myself",
		"hurt myself",
	},
}

var sessionEndPhrases = map[string][]string{
	"es": {
		"terminemos",
		"terminar",
		"hasta aquí",
		"hasta aqui",
		"me voy",
		"me tengo que ir",
		"tengo que irme",
		"debo irme",
		"ya me voy",
		"chau",
		"adiós",
		"adios",
		"nos vemos",
		"hasta luego",
		"fin de sesión",
		"fin de sesion",
		"finalizar",
		"terminar sesión",
		"terminar sesion",
		"ya es todo",
		"eso es todo",
		"nada más",
		"nada mas",
	},
	"en": {
		"let's finish",
		"lets finish",
		"i have to go",
		"i need to go",
		"i'm leaving",
		"im leaving",
		"goodbye",
		"bye",
		"see you",
		"that's all",
		"thats all",
		"nothing else",
		"end the session",
		"end session",
		"finish the session",
	},
}

var breathingPhrases = map[string][]string{
	"es": {
		"ejercicio de respiración",
		"ejercicio de respiracion",
		"respiración 4-7-8",
		"respiracion 4-7-8",
	},
	"en": {
		"breathing exercise",
		"4-7-8 breathing",
	},
}

// Detector runs the fixed keyword scans for one session language.
type Detector struct {
	lang string
}

// NewDetector creates a detector for a BCP 47 language tag; only the primary
// subtag matters. Unknown languages fall back to Spanish, the app's default.
func NewDetector(language string) *Detector {
	lang := strings.ToLower(language)
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	if _, ok := crisisKeywords[lang]; !ok {
		lang = "es"
	}
	return &Detector{lang: lang}
}

// Crisis reports whether the utterance contains a crisis-risk phrase,
// case-insensitive, at any position. A true result must short-circuit the
// turn: no dispatch, blocking resources prompt instead.
func (d *Detector) Crisis(text string) bool {
	return containsAny(text, crisisKeywords[d.lang])
}

// SessionEnd reports whether the utterance contains a farewell phrase. The
// utterance is still forwarded; the session auto-terminates once the farewell
// reply finishes playing.
func (d *Detector) SessionEnd(text string) bool {
	return containsAny(text, sessionEndPhrases[d.lang])
}

// BreathingSuggestion reports whether assistant text suggests the guided
// breathing exercise.
func (d *Detector) BreathingSuggestion(text string) bool {
	lower := strings.ToLower(text)
	if containsAny(lower, breathingPhrases[d.lang]) {
		return true
	}
	// The original heuristic also accepts "respirar" near "ejercicio".
	if d.lang == "es" {
		return strings.Contains(lower, "respirar") && strings.Contains(lower, "ejercicio")
	}
	return strings.Contains(lower, "breathe") && strings.Contains(lower, "exercise")
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
