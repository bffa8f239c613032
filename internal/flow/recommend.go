package flow

import (
	"github.com/FranckBG1/agentic-ia-agent/internal/models"
	"github.com/FranckBG1/agentic-ia-agent/internal/util"
)

// Recommendation types carried in Recommendation.Type.
const (
	RecTypeBreathing = "exercice_respiration"
	RecTypeActivity  = "activite_interactive"
	RecTypeTips      = "conseils"
	RecTypeAgenda    = "agenda"
	RecTypeCrisis    = "ressource_urgence"
)

// calmBreathingSteps is the guided 4-6 breathing cycle proposed to everyone.
var calmBreathingSteps = []models.BreathingStep{
	{Text: "Inspirez profondément par le nez", Scale: 1.4, Frequency: 4, GainStart: 0.2, GainEnd: 0.8},
	{Text: "Retenez votre souffle", Scale: 1.4, Frequency: 2, GainStart: 0.8, GainEnd: 0.8},
	{Text: "Expirez lentement par la bouche", Scale: 1.0, Frequency: 6, GainStart: 0.8, GainEnd: 0.2},
	{Text: "Marquez une courte pause", Scale: 1.0, Frequency: 2, GainStart: 0.2, GainEnd: 0.2},
}

// RecommendationComposer assembles the prioritized recommendation list for a
// completed analysis. Composition is fully deterministic.
type RecommendationComposer struct{}

// NewRecommendationComposer returns a ready composer.
func NewRecommendationComposer() *RecommendationComposer {
	return &RecommendationComposer{}
}

// Compose builds the ordered recommendations: the breathing exercise first,
// then one interactive activity, then symptom-specific tips, and finally the
// agenda recommendation when calendar changes await confirmation.
func (rc *RecommendationComposer) Compose(analysis models.AnalysisResult, params models.ParameterSet, calendar *models.CalendarAnalysis) []models.Recommendation {
	recs := []models.Recommendation{
		{
			Type:           RecTypeBreathing,
			Title:          "Respiration guidée",
			Message:        "Prenez deux minutes pour suivre cet exercice de respiration. Il aide à faire redescendre la tension immédiatement.",
			BreathingSteps: calmBreathingSteps,
		},
		rc.activityFor(analysis, params),
	}
	recs = append(recs, rc.tipsFor(params)...)

	if calendar != nil && len(calendar.ProposedChanges) > 0 {
		recs = append(recs, models.Recommendation{
			Type:                 RecTypeAgenda,
			Title:                "Alléger votre agenda",
			Message:              calendar.Message,
			ProposedChanges:      calendar.ProposedChanges,
			AwaitingConfirmation: true,
		})
	}
	return recs
}

// activityFor picks exactly one interactive activity from emotion and severity.
func (rc *RecommendationComposer) activityFor(analysis models.AnalysisResult, params models.ParameterSet) models.Recommendation {
	emotion := util.NormalizeText(params[models.ParamEmotion])
	switch {
	case containsAny(emotion, "triste", "tristesse", "deprime", "depression", "melancolie"):
		return models.Recommendation{
			Type:    RecTypeActivity,
			Title:   "Journal de gratitude",
			Message: "Notez chaque soir trois choses positives de votre journée, même petites. Cela aide à rééquilibrer le regard quand la tristesse prend de la place.",
			Link:    "https://zenflow.example/activites/journal-gratitude",
		}
	case containsAny(emotion, "stress", "anxiete", "angoisse", "panique"), analysis.SeverityLevel == models.SeverityHigh:
		return models.Recommendation{
			Type:    RecTypeActivity,
			Title:   "Méditation de pleine conscience",
			Message: "Une séance guidée de 10 minutes pour ancrer votre attention et relâcher la pression.",
			Link:    "https://zenflow.example/activites/meditation-pleine-conscience",
		}
	default:
		return models.Recommendation{
			Type:    RecTypeActivity,
			Title:   "Séance de yoga doux",
			Message: "Quelques postures simples pour relâcher le corps et apaiser le mental.",
			Link:    "https://zenflow.example/activites/yoga-doux",
		}
	}
}

// tipsFor adds symptom-specific advice. At most one tip per symptom family.
func (rc *RecommendationComposer) tipsFor(params models.ParameterSet) []models.Recommendation {
	symptoms := util.NormalizeText(params[models.ParamSymptoms])
	var tips []models.Recommendation

	if containsAny(symptoms, "insomnie", "sommeil", "dormir", "reveil", "nuit") {
		tips = append(tips, models.Recommendation{
			Type:    RecTypeTips,
			Title:   "Retrouver le sommeil",
			Message: "Évitez les écrans une heure avant le coucher, gardez des horaires réguliers et essayez une méditation du soir.",
			Link:    "https://zenflow.example/conseils/sommeil",
			Instructions: []string{
				"Coupez les écrans une heure avant de dormir",
				"Couchez-vous et levez-vous à heures fixes",
				"Écoutez une méditation du soir de 10 minutes",
			},
		})
	}
	if containsAny(symptoms, "fatigue", "epuise", "epuisement") {
		tips = append(tips, models.Recommendation{
			Type:    RecTypeTips,
			Title:   "Recharger votre énergie",
			Message: "Accordez-vous des micro-pauses dans la journée et une activité physique légère : marcher 20 minutes suffit déjà.",
			Link:    "https://zenflow.example/conseils/energie",
		})
	}
	if containsAny(symptoms, "concentration", "concentrer", "memoire", "attention") {
		tips = append(tips, models.Recommendation{
			Type:    RecTypeTips,
			Title:   "Retrouver votre concentration",
			Message: "Travaillez par blocs de 25 minutes avec de vraies pauses, et limitez les notifications pendant ces blocs.",
			Link:    "https://zenflow.example/conseils/concentration",
		})
	}
	return tips
}

// CrisisResources returns the resources attached to every emergency response.
func CrisisResources(protocol models.EmergencyProtocol) []models.Recommendation {
	return []models.Recommendation{
		{
			Type:         RecTypeCrisis,
			Title:        protocol.HotlineName,
			Message:      protocol.Message,
			Hotline:      protocol.Hotline,
			Instructions: append([]string(nil), protocol.Actions...),
		},
		{
			Type:           RecTypeBreathing,
			Title:          "Respiration d'urgence",
			Message:        "En attendant de parler à quelqu'un, respirez avec moi : cet exercice aide à traverser le pic de détresse.",
			BreathingSteps: calmBreathingSteps,
		},
		{
			Type:    RecTypeCrisis,
			Title:   "Contacter un proche",
			Message: "Si vous le pouvez, appelez ou rejoignez une personne de confiance. Ne restez pas seul(e) ce soir.",
		},
	}
}

// ComposeTransition builds the short message introducing the final
// recommendations, mentioning the booking reason when one applies.
func ComposeTransition(booking models.BookingResult) string {
	base := "Merci pour votre confiance. Voici ce que je vous propose pour avancer."
	if booking.NeedsBooking && booking.Reason != "" {
		return base + " Au vu de " + booking.Reason + ", je vous recommande également une consultation avec un professionnel : des créneaux sont proposés ci-dessous."
	}
	return base
}
