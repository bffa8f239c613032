package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/FranckBG1/agentic-ia-agent/internal/genai"
	"github.com/FranckBG1/agentic-ia-agent/internal/models"
	"github.com/FranckBG1/agentic-ia-agent/internal/util"
)

// Specialties proposed for consultations.
const (
	SpecialtyPsychologist = "Psychologue"
	SpecialtyPsychiatrist = "Psychiatre"
	SpecialtyTherapist    = "Thérapeute"
)

const slotsTemperature = 0.8

// Slots are proposed within this window after the current day.
const (
	slotWindowMinDays = 2
	slotWindowMaxDays = 7
)

var psychiatristKeywords = []string{
	"depression", "bipolaire", "schizophrenie", "trouble", "hallucination", "medicament",
}

// BookingAgent decides whether to propose a consultation, picks a specialty
// and generates three candidate slots. The decision rules are deterministic;
// only slot generation involves the LLM, with a fixed fallback roster.
type BookingAgent struct {
	client genai.ClientInterface
	now    func() time.Time
}

// NewBookingAgent returns a booking agent backed by the given LLM client.
func NewBookingAgent(client genai.ClientInterface) *BookingAgent {
	return &BookingAgent{client: client, now: time.Now}
}

// Decide evaluates the booking rules and, when a consultation is warranted,
// returns three slots for the selected specialty.
func (b *BookingAgent) Decide(ctx context.Context, analysis models.AnalysisResult, params models.ParameterSet, isEmergency bool) models.BookingResult {
	needed, reason := b.shouldProposeBooking(analysis, params, isEmergency)
	if !needed {
		return models.BookingResult{NeedsBooking: false, Slots: []models.BookingSlot{}}
	}

	specialty := b.selectSpecialty(analysis, params, isEmergency)
	return models.BookingResult{
		NeedsBooking: true,
		Slots:        b.generateSlots(ctx, specialty),
		Specialty:    specialty,
		Reason:       reason,
	}
}

// shouldProposeBooking returns true when any orientation condition holds,
// with a short French reason for the first one that matched.
func (b *BookingAgent) shouldProposeBooking(analysis models.AnalysisResult, params models.ParameterSet, isEmergency bool) (bool, string) {
	switch {
	case isEmergency:
		return true, "situation d'urgence détectée"
	case analysis.SeverityLevel == models.SeverityHigh:
		return true, "niveau de mal-être élevé"
	case analysis.UrgencyScore >= 7:
		return true, "score d'urgence important"
	case DurationIsChronic(params[models.ParamDuration]):
		return true, "difficultés qui durent depuis plus de deux semaines"
	case analysis.SeverityLevel == models.SeverityModerate:
		return true, "niveau de mal-être modéré"
	default:
		return false, ""
	}
}

func (b *BookingAgent) selectSpecialty(analysis models.AnalysisResult, params models.ParameterSet, isEmergency bool) string {
	joined := util.NormalizeText(params[models.ParamEmotion] + " " + params[models.ParamSymptoms])
	if containsAny(joined, psychiatristKeywords...) {
		return SpecialtyPsychiatrist
	}
	if isEmergency || analysis.SeverityLevel == models.SeverityHigh ||
		containsAny(joined, "stress", "anxiete", "angoisse", "panique") {
		return SpecialtyPsychologist
	}
	if analysis.SeverityLevel == models.SeverityModerate {
		return SpecialtyTherapist
	}
	return SpecialtyPsychologist
}

// generateSlots asks the LLM for three realistic slots, then validates the
// dates fall in the proposal window. Any failure yields the fixed fallback
// roster so a needed orientation is never silently dropped.
func (b *BookingAgent) generateSlots(ctx context.Context, specialty string) []models.BookingSlot {
	if b.client == nil {
		return b.fallbackSlots(specialty)
	}

	today := b.now()
	minDate := today.AddDate(0, 0, slotWindowMinDays).Format("2006-01-02")
	maxDate := today.AddDate(0, 0, slotWindowMaxDays).Format("2006-01-02")
	prompt := fmt.Sprintf(`Génère exactement 3 créneaux de consultation avec un(e) %s, au format JSON strict :
[{"date": "YYYY-MM-DD", "time": "HH:MM", "provider_name": "Dr. Prénom Nom", "mode": "présentiel|téléconsultation", "booking_link": "https://zenflow.example/booking/..."}]
Les dates doivent être comprises entre %s et %s. Réponds UNIQUEMENT avec le JSON.`, specialty, minDate, maxDate)

	raw, err := b.client.GenerateWithTemperature(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(prompt)},
		slotsTemperature)
	if err != nil {
		slog.Warn("BookingAgent.generateSlots: LLM call failed, using fallback slots", "error", err)
		return b.fallbackSlots(specialty)
	}

	var slots []models.BookingSlot
	if err := json.Unmarshal([]byte(genai.CleanJSONResponse(raw)), &slots); err != nil || len(slots) < 3 {
		slog.Warn("BookingAgent.generateSlots: invalid slots from LLM, using fallback slots", "error", err, "count", len(slots))
		return b.fallbackSlots(specialty)
	}

	slots = slots[:3]
	for i := range slots {
		slots[i].Specialty = specialty
		if !b.slotDateInWindow(slots[i].Date) {
			slog.Warn("BookingAgent.generateSlots: slot outside window, using fallback slots", "date", slots[i].Date)
			return b.fallbackSlots(specialty)
		}
	}
	return slots
}

func (b *BookingAgent) slotDateInWindow(date string) bool {
	now := b.now()
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), now.Location())
	if err != nil {
		return false
	}
	// Midnight of the local calendar date; truncating the absolute time
	// would shift the window by the timezone offset.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	min := today.AddDate(0, 0, slotWindowMinDays)
	max := today.AddDate(0, 0, slotWindowMaxDays)
	return !d.Before(min) && !d.After(max)
}

// fallbackSlots is the deterministic roster used when slot generation fails.
func (b *BookingAgent) fallbackSlots(specialty string) []models.BookingSlot {
	today := b.now()
	return []models.BookingSlot{
		{
			Date:         today.AddDate(0, 0, 2).Format("2006-01-02"),
			Time:         "10:00",
			ProviderName: "Dr. Martin Dubois",
			Specialty:    specialty,
			Mode:         "présentiel",
			BookingLink:  "https://zenflow.example/booking/martin-dubois",
		},
		{
			Date:         today.AddDate(0, 0, 5).Format("2006-01-02"),
			Time:         "14:30",
			ProviderName: "Dr. Sophie Laurent",
			Specialty:    specialty,
			Mode:         "téléconsultation",
			BookingLink:  "https://zenflow.example/booking/sophie-laurent",
		},
		{
			Date:         today.AddDate(0, 0, 7).Format("2006-01-02"),
			Time:         "16:00",
			ProviderName: "Dr. Claire Bernard",
			Specialty:    specialty,
			Mode:         "présentiel",
			BookingLink:  "https://zenflow.example/booking/claire-bernard",
		},
	}
}
