package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

// Workload thresholds, in hours of scheduled events per day.
const (
	// OverloadThresholdHours marks a day as excessive.
	OverloadThresholdHours = 8.0
	// DeloadTargetHours is the load deletions aim for. Deletion proposals
	// never push the remaining load below this target.
	DeloadTargetHours = 6.0
	// LightLoadThresholdHours marks a day light enough for a wellness break.
	LightLoadThresholdHours = 4.0
)

// Distress cutoffs steering the calendar decision.
const (
	deleteDistressThreshold   = 0.50
	wellnessDistressThreshold = 0.30
)

const unavailableMessage = "⚠️ Votre agenda est momentanément indisponible, " +
	"je n'ai pas pu vérifier votre charge de travail. Les recommandations restent valables."

// Analyzer applies the offloading rules to one day of the user's calendar.
type Analyzer struct {
	client *Client
}

// NewAnalyzer returns an analyzer over the given client.
func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

// AnalyzeLoad consults the calendar for date and derives the workload
// decision for the given distress ratio. wellnessDone marks that a wellness
// break was already inserted for this date, so the analyzer never stacks a
// second one. Calendar failures never propagate: they degrade to a neutral
// analysis with a warning message.
func (a *Analyzer) AnalyzeLoad(ctx context.Context, date string, distressRatio float64, wellnessDone bool) models.CalendarAnalysis {
	if a == nil || !a.client.Configured() {
		return models.CalendarAnalysis{ProposedChanges: []models.CalendarProposal{}}
	}

	events, total, err := a.client.Consult(ctx, date)
	if err != nil {
		slog.Warn("Analyzer.AnalyzeLoad: calendar consult failed, degrading", "date", date, "error", err)
		return models.CalendarAnalysis{
			ProposedChanges: []models.CalendarProposal{},
			Message:         unavailableMessage,
		}
	}

	analysis := models.CalendarAnalysis{
		TotalHours:      total,
		EventCount:      len(events),
		Overloaded:      total > OverloadThresholdHours,
		ProposedChanges: []models.CalendarProposal{},
	}

	switch {
	case analysis.Overloaded && distressRatio > deleteDistressThreshold:
		analysis.ProposedChanges = proposeDeletions(events, total)
		if len(analysis.ProposedChanges) > 0 {
			analysis.AwaitingConfirmation = true
			analysis.Message = fmt.Sprintf(
				"Votre journée cumule %.1f heures d'activités, ce qui est beaucoup vu votre état actuel. "+
					"Je vous propose d'annuler %d activité(s) pour souffler un peu. Souhaitez-vous appliquer ces changements ?",
				total, len(analysis.ProposedChanges))
		} else {
			analysis.Message = fmt.Sprintf(
				"Votre journée cumule %.1f heures d'activités. Aucune ne peut être annulée sans trop vider votre agenda, "+
					"mais essayez de ménager de vraies pauses entre chaque.", total)
		}
	case !analysis.Overloaded && total < LightLoadThresholdHours && distressRatio < wellnessDistressThreshold && !wellnessDone:
		analysis.ActionsTaken = a.addWellnessBreak(ctx, date)
		if len(analysis.ActionsTaken) > 0 {
			analysis.Message = "Votre journée est plutôt légère : j'ai ajouté une pause bien-être d'une heure à votre agenda."
		}
	default:
		analysis.Message = fmt.Sprintf("Votre charge du jour (%.1f heures) reste raisonnable.", total)
	}
	return analysis
}

// proposeDeletions selects delete candidates for an overloaded day. Events
// are considered in priority order (lowest first, longest first, then id)
// and a candidate is kept only if removing it leaves at least
// DeloadTargetHours on the day.
func proposeDeletions(events []models.CalendarEvent, total float64) []models.CalendarProposal {
	sorted := append([]models.CalendarEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		if sorted[i].DurationHours != sorted[j].DurationHours {
			return sorted[i].DurationHours > sorted[j].DurationHours
		}
		return sorted[i].ID < sorted[j].ID
	})

	hoursToFree := total - DeloadTargetHours
	var proposals []models.CalendarProposal
	var freed float64
	for _, evt := range sorted {
		if freed >= hoursToFree {
			break
		}
		if freed+evt.DurationHours > hoursToFree {
			continue
		}
		proposals = append(proposals, models.CalendarProposal{
			Action:        ActionDelete,
			EventID:       evt.ID,
			EventTitle:    evt.Title,
			EventStart:    evt.Start,
			DurationHours: evt.DurationHours,
			Reason:        "activité non prioritaire un jour déjà surchargé",
		})
		freed += evt.DurationHours
	}
	return proposals
}

// addWellnessBreak inserts a one-hour break; a failure is logged and
// swallowed since the break is a bonus, not a requirement.
func (a *Analyzer) addWellnessBreak(ctx context.Context, date string) []models.CalendarAction {
	err := a.client.AddEvent(ctx, date, "Pause bien-être", 1,
		"Moment pour vous : marche, respiration ou simplement ne rien faire.")
	if err != nil {
		slog.Warn("Analyzer.addWellnessBreak: add failed", "date", date, "error", err)
		return nil
	}
	return []models.CalendarAction{{
		Action:        ActionAdd,
		EventTitle:    "Pause bien-être",
		DurationHours: 1,
		Reason:        "journée légère et état stable",
	}}
}
