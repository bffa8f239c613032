package flow

import (
	"testing"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

func TestComposeBreathingAlwaysFirst(t *testing.T) {
	rc := NewRecommendationComposer()

	recs := rc.Compose(models.AnalysisResult{SeverityLevel: models.SeverityLow}, neutralParams("3"), nil)
	if len(recs) < 2 {
		t.Fatalf("expected at least breathing + activity, got %d", len(recs))
	}
	if recs[0].Type != RecTypeBreathing {
		t.Errorf("first recommendation must be breathing, got %s", recs[0].Type)
	}
	if len(recs[0].BreathingSteps) == 0 {
		t.Error("breathing recommendation must carry steps")
	}
	if recs[1].Type != RecTypeActivity {
		t.Errorf("second recommendation must be the activity, got %s", recs[1].Type)
	}
}

func TestComposeActivitySelection(t *testing.T) {
	rc := NewRecommendationComposer()

	tests := []struct {
		emotion   string
		wantTitle string
	}{
		{"tristesse", "Journal de gratitude"},
		{"anxiété", "Méditation de pleine conscience"},
		{"ennui", "Séance de yoga doux"},
	}
	for _, tt := range tests {
		params := neutralParams("3")
		params[models.ParamEmotion] = tt.emotion
		recs := rc.Compose(models.AnalysisResult{SeverityLevel: models.SeverityLow}, params, nil)
		if recs[1].Title != tt.wantTitle {
			t.Errorf("emotion %q: activity = %q, want %q", tt.emotion, recs[1].Title, tt.wantTitle)
		}
	}
}

func TestComposeSymptomTips(t *testing.T) {
	rc := NewRecommendationComposer()

	params := neutralParams("5")
	params[models.ParamSymptoms] = "insomnie et fatigue"
	recs := rc.Compose(models.AnalysisResult{SeverityLevel: models.SeverityModerate}, params, nil)

	var tipTitles []string
	for _, rec := range recs {
		if rec.Type == RecTypeTips {
			tipTitles = append(tipTitles, rec.Title)
		}
	}
	if len(tipTitles) != 2 {
		t.Fatalf("expected 2 tips for insomnia+fatigue, got %v", tipTitles)
	}
	if tipTitles[0] != "Retrouver le sommeil" {
		t.Errorf("expected sleep tip first, got %q", tipTitles[0])
	}
}

func TestComposeAgendaOnlyWithProposals(t *testing.T) {
	rc := NewRecommendationComposer()
	params := neutralParams("5")

	withProposals := &models.CalendarAnalysis{
		Overloaded: true,
		Message:    "Votre journée semble très chargée.",
		ProposedChanges: []models.CalendarProposal{
			{Action: "DELETE", EventID: "evt-1", EventTitle: "Réunion optionnelle", DurationHours: 2},
		},
	}
	recs := rc.Compose(models.AnalysisResult{SeverityLevel: models.SeverityModerate}, params, withProposals)
	last := recs[len(recs)-1]
	if last.Type != RecTypeAgenda {
		t.Fatalf("expected agenda recommendation last, got %s", last.Type)
	}
	if !last.AwaitingConfirmation {
		t.Error("agenda recommendation must await confirmation")
	}
	if len(last.ProposedChanges) != 1 || last.ProposedChanges[0].EventID != "evt-1" {
		t.Errorf("proposals must be carried verbatim, got %+v", last.ProposedChanges)
	}

	empty := &models.CalendarAnalysis{Overloaded: false, ProposedChanges: []models.CalendarProposal{}}
	recs = rc.Compose(models.AnalysisResult{SeverityLevel: models.SeverityModerate}, params, empty)
	for _, rec := range recs {
		if rec.Type == RecTypeAgenda {
			t.Error("no agenda recommendation expected without proposals")
		}
	}
}

func TestCrisisResources(t *testing.T) {
	d := NewEmergencyDetector()
	proto := d.Protocol(models.EmergencyData{Type: CrisisTypeSelfHarm})

	recs := CrisisResources(proto)
	if len(recs) != 3 {
		t.Fatalf("expected 3 crisis resources, got %d", len(recs))
	}
	if recs[0].Hotline != "3114" {
		t.Errorf("expected hotline resource first, got %+v", recs[0])
	}
	if recs[1].Type != RecTypeBreathing {
		t.Errorf("expected emergency breathing second, got %s", recs[1].Type)
	}
}

func TestComposeTransition(t *testing.T) {
	plain := ComposeTransition(models.BookingResult{})
	if plain == "" {
		t.Fatal("expected non-empty transition message")
	}
	withBooking := ComposeTransition(models.BookingResult{NeedsBooking: true, Reason: "niveau de mal-être élevé"})
	if withBooking == plain {
		t.Error("booking reason should extend the transition message")
	}
}
