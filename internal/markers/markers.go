// Package markers parses the structured blocks the assistant embeds in its
// free-form replies: one emotional-analysis block and any number of proposed
// task blocks, delimited by [ANALISIS_INICIO]/[ANALISIS_FIN] and
// [TAREA_INICIO]/[TAREA_FIN] tags. Parsing is best-effort with per-field
// defaults; extraction always reads the raw assistant text, stripping happens
// only for display and narration.
package markers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/almawell/alma/domain/entities"
)

const (
	defaultTaskPoints = 50
	maxTopEmotions    = 4
	minIntensity      = 1
	maxIntensity      = 10
	defaultIntensity  = 5
	frequencyDaily    = "diaria"
	frequencyWeekly   = "semanal"
	frequencyOneTime  = "única"
)

var (
	analysisBlockRe = regexp.MustCompile(`(?is)\[ANALISIS_INICIO\](.*?)\[ANALISIS_FIN\]`)
	taskBlockRe     = regexp.MustCompile(`(?is)\[TAREA_INICIO\](.*?)\[TAREA_FIN\]`)

	// Dangling open tags without a closing tag swallow the rest of the text.
	danglingAnalysisRe = regexp.MustCompile(`(?is)\[ANALISIS_INICIO\].*\z`)
	danglingTaskRe     = regexp.MustCompile(`(?is)\[TAREA_INICIO\].*\z`)

	predominantRe = regexp.MustCompile(`(?i)Emocion_Predominante:[ \t]*([^\n]+)`)
	intensityRe   = regexp.MustCompile(`(?i)Intensidad:[ \t]*(\d+)`)
	evolutionRe   = regexp.MustCompile(`(?i)Evolucion:[ \t]*([^\n]+)`)
	topEmotionsRe = regexp.MustCompile(`(?i)Top_Emociones:[ \t]*([^\n]+)`)

	titleRe       = regexp.MustCompile(`(?i)Titulo:[ \t]*([^\n]+)`)
	descriptionRe = regexp.MustCompile(`(?i)Descripcion:[ \t]*([^\n]+)`)
	frequencyRe   = regexp.MustCompile(`(?i)Frecuencia:[ \t]*([^\n]+)`)
	pointsRe      = regexp.MustCompile(`(?i)Puntos:[ \t]*(\d+)`)

	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// ExtractAnalysis scans assistant turns from most recent to oldest and
// returns the first well-formed analysis block, parsed with tolerance
// defaults. ok is false when no turn carries a usable block.
func ExtractAnalysis(transcript []entities.ConversationTurn) (entities.EmotionalAnalysis, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role != entities.MessageRoleAssistant {
			continue
		}
		match := analysisBlockRe.FindStringSubmatch(transcript[i].Text)
		if match == nil {
			continue
		}
		analysis, ok := parseAnalysisBlock(match[1])
		if ok {
			return analysis, true
		}
	}
	return entities.EmotionalAnalysis{}, false
}

func parseAnalysisBlock(block string) (entities.EmotionalAnalysis, bool) {
	predominant := firstMatch(predominantRe, block)
	intensityStr := firstMatch(intensityRe, block)
	// A block without the two mandatory fields is not well-formed; the scan
	// continues to older turns.
	if predominant == "" || intensityStr == "" {
		return entities.EmotionalAnalysis{}, false
	}

	intensity, err := strconv.Atoi(intensityStr)
	if err != nil {
		intensity = defaultIntensity
	}
	if intensity < minIntensity {
		intensity = minIntensity
	}
	if intensity > maxIntensity {
		intensity = maxIntensity
	}

	analysis := entities.EmotionalAnalysis{
		PredominantEmotion: predominant,
		AverageIntensity:   intensity,
		Evolution:          normalizeEvolution(firstMatch(evolutionRe, block)),
		TopEmotions:        parseTopEmotions(firstMatch(topEmotionsRe, block)),
	}
	if len(analysis.TopEmotions) == 0 {
		analysis.TopEmotions = []entities.EmotionWeight{{Emotion: predominant, Percentage: 100}}
	}
	return analysis, true
}

func normalizeEvolution(token string) entities.Evolution {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "mejoró", "mejoro", "improved":
		return entities.EvolutionImproved
	case "empeoró", "empeoro", "worsened":
		return entities.EvolutionWorsened
	default:
		return entities.EvolutionUnchanged
	}
}

// parseTopEmotions parses "emotion1:pct1, emotion2:pct2, ..." keeping at most
// four entries. Unparsable percentages default to 0.
func parseTopEmotions(list string) []entities.EmotionWeight {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var emotions []entities.EmotionWeight
	for _, pair := range strings.Split(list, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		emotion := strings.TrimSpace(parts[0])
		if emotion == "" {
			continue
		}
		percentage, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			percentage = 0
		}
		emotions = append(emotions, entities.EmotionWeight{Emotion: emotion, Percentage: percentage})
		if len(emotions) == maxTopEmotions {
			break
		}
	}
	return emotions
}

// ExtractTasks scans assistant turns from most recent to oldest. The first
// turn containing at least one well-formed task block wins; its blocks are
// returned in order. Older turns are consulted only while nothing matched.
func ExtractTasks(transcript []entities.ConversationTurn) []entities.ProposedTask {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role != entities.MessageRoleAssistant {
			continue
		}
		var tasks []entities.ProposedTask
		for _, match := range taskBlockRe.FindAllStringSubmatch(transcript[i].Text, -1) {
			if task, ok := parseTaskBlock(match[1]); ok {
				tasks = append(tasks, task)
			}
		}
		if len(tasks) > 0 {
			return tasks
		}
	}
	return nil
}

func parseTaskBlock(block string) (entities.ProposedTask, bool) {
	title := firstMatch(titleRe, block)
	description := firstMatch(descriptionRe, block)
	if title == "" || description == "" {
		return entities.ProposedTask{}, false
	}

	points := defaultTaskPoints
	if raw := firstMatch(pointsRe, block); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			points = parsed
		}
	}

	return entities.ProposedTask{
		Title:       title,
		Description: description,
		Frequency:   normalizeFrequency(firstMatch(frequencyRe, block)),
		Points:      points,
	}, true
}

func normalizeFrequency(token string) entities.TaskFrequency {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case frequencyDaily, "diario", "daily":
		return entities.FrequencyDaily
	case frequencyWeekly, "weekly":
		return entities.FrequencyWeekly
	default:
		return entities.FrequencyOneTime
	}
}

// Strip removes all well-formed and dangling marker blocks of both kinds.
// Idempotent: stripping stripped text is a no-op.
func Strip(text string) string {
	text = analysisBlockRe.ReplaceAllString(text, "")
	text = taskBlockRe.ReplaceAllString(text, "")
	text = danglingAnalysisRe.ReplaceAllString(text, "")
	text = danglingTaskRe.ReplaceAllString(text, "")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// FormatTask renders a task back into block form, the exact shape the system
// prompt asks the model for. Re-extracting a formatted task yields an equal
// record.
func FormatTask(task entities.ProposedTask) string {
	return fmt.Sprintf(
		"[TAREA_INICIO]\nTitulo: %s\nDescripcion: %s\nFrecuencia: %s\nPuntos: %d\n[TAREA_FIN]",
		task.Title, task.Description, frequencyLabel(task.Frequency), task.Points,
	)
}

func frequencyLabel(frequency entities.TaskFrequency) string {
	switch frequency {
	case entities.FrequencyDaily:
		return frequencyDaily
	case entities.FrequencyWeekly:
		return frequencyWeekly
	default:
		return frequencyOneTime
	}
}

func firstMatch(re *regexp.Regexp, text string) string {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}
