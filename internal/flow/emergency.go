// Package flow implements the conversational orchestrator for Zenflow: the
// per-turn state machine, emergency detection, parameter collection,
// severity analysis, booking, and recommendation composition.
package flow

import (
	"strings"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
	"github.com/FranckBG1/agentic-ia-agent/internal/util"
)

// Crisis type labels carried in EmergencyData.Type and used to pick a protocol.
const (
	CrisisTypeSelfHarm = "risque_suicidaire"
	CrisisTypeViolence = "violence"
)

// criticalKeywords trigger a CRITIQUE emergency. Matching is substring-based
// on normalized text; the list errs on the side of false positives.
var criticalKeywords = []string{
	"suicide",
	"suicidaire",
	"me suicider",
	"me tuer",
	"en finir",
	"je veux mourir",
	"envie de mourir",
	"plus envie de vivre",
	"mettre fin a mes jours",
	"mettre fin a ma vie",
	"disparaitre pour toujours",
	"overdose",
	"surdose",
	"avaler des pilules",
	"avaler des medicaments",
	"me jeter",
	"sauter du pont",
	"sauter par la fenetre",
	"pendaison",
	"me pendre",
	"me scarifier",
	"me mutiler",
	"m'automutiler",
	"me faire du mal",
	"me couper les veines",
}

// elevatedKeywords trigger an ELEVATED emergency when no critical keyword matched.
var elevatedKeywords = []string{
	"tuer quelqu'un",
	"faire du mal a quelqu'un",
	"envie de frapper",
	"envie de tout casser",
	"je vais exploser",
	"violence",
	"agresser",
	"me venger",
}

// EmergencyDetector scans user messages for crisis keywords. Detection is a
// pure keyword scan, case and accent insensitive; no LLM call is involved so
// a crisis is never missed because of an upstream outage.
type EmergencyDetector struct{}

// NewEmergencyDetector returns a ready detector.
func NewEmergencyDetector() *EmergencyDetector {
	return &EmergencyDetector{}
}

// Detect scans text and returns the detection outcome. The returned
// KeywordsFound are the matched entries in normalized form.
func (d *EmergencyDetector) Detect(text string) models.EmergencyData {
	normalized := util.NormalizeText(text)

	var found []string
	for _, kw := range criticalKeywords {
		if containsKeyword(normalized, kw) {
			found = append(found, kw)
		}
	}
	if len(found) > 0 {
		return models.EmergencyData{
			IsEmergency:   true,
			Level:         models.EmergencyLevelCritical,
			Type:          CrisisTypeSelfHarm,
			UrgencyScore:  10,
			KeywordsFound: found,
		}
	}

	for _, kw := range elevatedKeywords {
		if containsKeyword(normalized, kw) {
			found = append(found, kw)
		}
	}
	if len(found) > 0 {
		return models.EmergencyData{
			IsEmergency:   true,
			Level:         models.EmergencyLevelElevated,
			Type:          CrisisTypeViolence,
			UrgencyScore:  7,
			KeywordsFound: found,
		}
	}

	return models.EmergencyData{Level: models.EmergencyLevelNone, KeywordsFound: []string{}}
}

func containsKeyword(normalized, keyword string) bool {
	return strings.Contains(normalized, keyword)
}

// Protocol returns the crisis protocol for a detected emergency. The 3114
// national prevention line applies to self-harm; the 15 medical line covers
// the rest.
func (d *EmergencyDetector) Protocol(data models.EmergencyData) models.EmergencyProtocol {
	if data.Type == CrisisTypeSelfHarm {
		return models.EmergencyProtocol{
			Hotline:     "3114",
			HotlineName: "Numéro national de prévention du suicide",
			Message:     "Vous n'êtes pas seul(e). Des professionnels sont disponibles 24h/24 au 3114, gratuitement et en toute confidentialité.",
			Actions: []string{
				"Appelez le 3114 (gratuit, 24h/24, 7j/7)",
				"Si vous êtes en danger immédiat, appelez le 15 ou le 112",
				"Contactez un proche de confiance",
				"Rendez-vous aux urgences les plus proches",
			},
			Banner: models.EmergencyBanner{
				Visible:  true,
				Title:    "Besoin d'aide immédiate ?",
				Subtitle: "3114 — Numéro national de prévention du suicide, gratuit, 24h/24",
			},
		}
	}
	return models.EmergencyProtocol{
		Hotline:     "15",
		HotlineName: "SAMU",
		Message:     "Votre sécurité et celle de votre entourage comptent. Des professionnels peuvent vous aider dès maintenant.",
		Actions: []string{
			"Appelez le 15 (SAMU) ou le 112",
			"Éloignez-vous de la situation si possible",
			"Parlez-en à une personne de confiance",
		},
		Banner: models.EmergencyBanner{
			Visible:  true,
			Title:    "Besoin d'aide immédiate ?",
			Subtitle: "15 — SAMU, disponible 24h/24",
		},
	}
}

// FallbackEmpathicResponse is returned when the LLM cannot produce the
// crisis acknowledgement. It never mentions technical failure.
const FallbackEmpathicResponse = "Je vous entends et je prends ce que vous me dites très au sérieux. " +
	"Vous n'avez pas à traverser cela seul(e) : le 3114 est disponible gratuitement, 24h/24, " +
	"pour vous écouter et vous aider. Je reste là avec vous. Pouvez-vous me dire ce que vous ressentez en ce moment ?"
