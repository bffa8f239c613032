package flow

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
	"github.com/FranckBG1/agentic-ia-agent/internal/util"
)

// Severity band cutoffs on the distress ratio.
const (
	distressHighThreshold     = 0.70
	distressModerateThreshold = 0.40
)

// criticalEmotionKeywords force severity Élevé regardless of the computed ratio.
var criticalEmotionKeywords = []string{
	"suicide", "suicidaire", "desespoir", "desespere", "depression", "mort",
}

var negativeSentimentWords = []string{
	"mal", "triste", "angoisse", "peur", "epuise", "fatigue", "seul", "vide",
	"perdu", "nul", "honte", "colere", "pleure", "insupportable", "horrible",
}

var positiveSentimentWords = []string{
	"mieux", "bien", "espoir", "calme", "apaise", "content", "heureux", "soulage",
}

var (
	digitPattern           = regexp.MustCompile(`(\d+)`)
	chronicDurationPattern = regexp.MustCompile(`\b(mois|ans?|annees?|longtemps|toujours)\b`)
)

// SeverityAnalyzer derives the severity band, distress ratio and urgency
// score from the collected parameters. The rules are deterministic; no LLM
// call is involved.
type SeverityAnalyzer struct{}

// NewSeverityAnalyzer returns a ready analyzer.
func NewSeverityAnalyzer() *SeverityAnalyzer {
	return &SeverityAnalyzer{}
}

// Analyze computes the analysis result for a complete parameter set.
// isEmergency raises the urgency floor to 7 (10 for a CRITIQUE level,
// carried by emergencyLevel).
func (a *SeverityAnalyzer) Analyze(params models.ParameterSet, isEmergency bool, emergencyLevel models.EmergencyLevel) models.AnalysisResult {
	intensity := ParseIntensity(params[models.ParamIntensity])
	sentiment := sentimentScore(params)
	longDuration := DurationIsChronic(params[models.ParamDuration])

	distress := float64(intensity) / 10
	if longDuration {
		distress += 0.10
	}
	if sentiment < 0 {
		distress += 0.05 * -sentiment
	}
	distress = math.Round(clamp(distress, 0, 1)*100) / 100

	critical := hasCriticalEmotion(params)

	var severity models.SeverityLevel
	switch {
	case critical, intensity >= 8, distress >= distressHighThreshold:
		severity = models.SeverityHigh
	case distress >= distressModerateThreshold:
		severity = models.SeverityModerate
	default:
		severity = models.SeverityLow
	}

	urgency := intensity
	if longDuration {
		urgency += 2
	}
	if critical {
		urgency = 10
	}
	if isEmergency {
		if emergencyLevel == models.EmergencyLevelCritical {
			urgency = 10
		} else if urgency < 7 {
			urgency = 7
		}
	}
	if urgency > 10 {
		urgency = 10
	}
	if urgency < 0 {
		urgency = 0
	}

	return models.AnalysisResult{
		SeverityLevel:    severity,
		UrgencyScore:     urgency,
		DistressRatio:    distress,
		SentimentScore:   sentiment,
		NeedsOrientation: severity != models.SeverityLow || urgency >= 7,
	}
}

// ParseIntensity reads the intensity parameter as an integer in [0,10].
// Accepts "8", "8/10", and common qualitative phrasings; defaults to 5.
func ParseIntensity(raw string) int {
	normalized := util.NormalizeText(raw)
	if m := digitPattern.FindString(normalized); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			if n > 10 {
				n = 10
			}
			if n < 0 {
				n = 0
			}
			return n
		}
	}
	switch {
	case containsAny(normalized, "insupportable", "extreme", "enorme"):
		return 9
	case containsAny(normalized, "fort", "forte", "eleve", "intense", "beaucoup"):
		return 8
	case containsAny(normalized, "faible", "leger", "legere", "un peu"):
		return 3
	case normalized == "":
		return 5
	default:
		return 5
	}
}

// DurationIsChronic reports whether a free-form duration describes a
// condition lasting more than two weeks.
func DurationIsChronic(raw string) bool {
	normalized := util.NormalizeText(raw)
	if chronicDurationPattern.MatchString(normalized) {
		return true
	}
	if m := digitPattern.FindString(normalized); m != "" && strings.Contains(normalized, "semaine") {
		if n, err := strconv.Atoi(m); err == nil {
			return n > 2
		}
	}
	return false
}

func hasCriticalEmotion(params models.ParameterSet) bool {
	emotion := util.NormalizeText(params[models.ParamEmotion])
	return containsAny(emotion, criticalEmotionKeywords...)
}

// sentimentScore is a crude lexicon score in [-1,1] over all collected values.
func sentimentScore(params models.ParameterSet) float64 {
	var text strings.Builder
	for _, key := range models.RequiredParams {
		text.WriteString(util.NormalizeText(params[key]))
		text.WriteString(" ")
	}
	joined := text.String()

	var score float64
	for _, w := range negativeSentimentWords {
		if strings.Contains(joined, w) {
			score -= 0.2
		}
	}
	for _, w := range positiveSentimentWords {
		if strings.Contains(joined, w) {
			score += 0.2
		}
	}
	return clamp(score, -1, 1)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
