package flow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranckBG1/agentic-ia-agent/internal/calendar"
	"github.com/FranckBG1/agentic-ia-agent/internal/models"
	"github.com/FranckBG1/agentic-ia-agent/internal/store"
)

const fullExtraction = `{"emotion": "stress", "causes": "surcharge au travail", "duration": "3 semaines", "symptomes": "insomnie", "intensite": "8"}`

const calmExtraction = `{"emotion": "lassitude", "causes": "semaine chargee", "duration": "quelques jours", "symptomes": "tension passagere", "intensite": "2"}`

func newTestOrchestrator(t *testing.T, responses ...string) *Orchestrator {
	t.Helper()
	st := store.NewInMemoryStore()
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	var client *scriptedGenAI
	if responses != nil {
		client = &scriptedGenAI{responses: responses}
		return NewOrchestrator(st, client, nil)
	}
	return NewOrchestrator(st, nil, nil)
}

func TestProcessMessageCollectsThenAsksConfirmation(t *testing.T) {
	o := newTestOrchestrator(t, fullExtraction)

	resp := o.ProcessMessage(context.Background(), "s-1", "Je dors mal depuis 3 semaines, stressé par le travail, 8/10")

	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if !resp.ParamsComplete {
		t.Fatalf("expected complete params, got %v (rate %v)", resp.CollectedParams, resp.CompletionRate)
	}
	if resp.CompletionRate != 1.0 {
		t.Errorf("completion rate = %v, want 1.0", resp.CompletionRate)
	}
	if !resp.AwaitingConfirmation {
		t.Error("complete collection must ask for confirmation")
	}
	if resp.NeedsBooking {
		t.Error("no booking before the user confirms")
	}
}

func TestProcessMessagePartialCollectionAsksNext(t *testing.T) {
	o := newTestOrchestrator(t,
		`{"emotion": "tristesse"}`,
		"Qu'est-ce qui a déclenché cette tristesse ?")

	resp := o.ProcessMessage(context.Background(), "s-2", "Je me sens triste")

	if resp.ParamsComplete {
		t.Fatal("expected incomplete params")
	}
	if resp.CompletionRate != 0.2 {
		t.Errorf("completion rate = %v, want 0.2", resp.CompletionRate)
	}
	if !strings.Contains(resp.Response, "?") {
		t.Errorf("expected a question, got %q", resp.Response)
	}
}

func TestProcessMessageConfirmationNoRunsAnalysis(t *testing.T) {
	o := newTestOrchestrator(t, fullExtraction)
	ctx := context.Background()

	first := o.ProcessMessage(ctx, "s-3", "Stress au travail depuis 3 semaines, insomnie, 8/10")
	if !first.AwaitingConfirmation {
		t.Fatalf("setup failed: %+v", first)
	}

	resp := o.ProcessMessage(ctx, "s-3", "non")

	if resp.Analysis == nil {
		t.Fatal("expected an analysis result")
	}
	if resp.Analysis.SeverityLevel != models.SeverityHigh {
		t.Errorf("intensity 8 should yield Élevé, got %s", resp.Analysis.SeverityLevel)
	}
	if !resp.NeedsBooking {
		t.Error("Élevé severity must propose a booking")
	}
	if len(resp.Slots) != 3 {
		t.Errorf("expected 3 slots, got %d", len(resp.Slots))
	}
	if len(resp.Recommendations) == 0 || resp.Recommendations[0].Type != RecTypeBreathing {
		t.Errorf("breathing must lead the recommendations, got %+v", resp.Recommendations)
	}
}

func TestProcessMessageConfirmationReopensCollection(t *testing.T) {
	o := newTestOrchestrator(t, fullExtraction)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-4", "Stress, travail, 3 semaines, insomnie, 8/10")
	resp := o.ProcessMessage(ctx, "s-4", "oui")

	if !resp.AwaitingMoreInfo {
		t.Fatalf("expected reopened collection, got %+v", resp)
	}
	if resp.Analysis != nil {
		t.Error("reopening must not run analysis")
	}

	// The reopened turn merges new info and asks for confirmation again.
	resp = o.ProcessMessage(ctx, "s-4", "En fait je me sens aussi très fatigué le matin")
	if !resp.AwaitingConfirmation {
		t.Errorf("expected confirmation prompt after re-collection, got %+v", resp)
	}
}

func TestProcessMessageConfirmationReadyPhraseProceeds(t *testing.T) {
	o := newTestOrchestrator(t, fullExtraction)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-10", "Stress au travail depuis 3 semaines, insomnie, 8/10")
	resp := o.ProcessMessage(ctx, "s-10", "Je suis prêt !")

	if resp.AwaitingMoreInfo {
		t.Fatal("a ready phrase must not reopen collection")
	}
	if resp.Analysis == nil {
		t.Fatal("a ready phrase must proceed to analysis")
	}
}

func TestProcessMessageConfirmationLongAnswerReopens(t *testing.T) {
	o := newTestOrchestrator(t, fullExtraction)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-11", "Stress au travail depuis 3 semaines, insomnie, 8/10")
	resp := o.ProcessMessage(ctx, "s-11", "En fait il faut aussi que je vous parle de mes problèmes de sommeil")

	if !resp.AwaitingMoreInfo {
		t.Fatalf("an answer of more than ten words must reopen collection, got %+v", resp)
	}
	if resp.Analysis != nil {
		t.Error("reopening must not run analysis")
	}
}

// countingCalendar records every request the orchestrator's calendar stage
// issues, answering CONSULT with a light two-hour day.
func countingCalendar(t *testing.T) (*calendar.Analyzer, *[]string) {
	t.Helper()
	var actions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actions = append(actions, r.URL.Query().Get("action_type"))
		resp := map[string]any{
			"code": 200,
			"details": map[string]any{
				"events": []models.CalendarEvent{
					{ID: "evt-1", Title: "Réunion", DurationHours: 2, Priority: 3},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return calendar.NewAnalyzer(calendar.NewClient(calendar.WithEndpoint(srv.URL))), &actions
}

func TestProcessMessagePostFinalSmallTalkDoesNotRerunCalendar(t *testing.T) {
	st := store.NewInMemoryStore()
	t.Cleanup(func() { st.Close() })
	analyzer, actions := countingCalendar(t)
	o := NewOrchestrator(st, &scriptedGenAI{responses: []string{calmExtraction}}, analyzer)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-12", "Un peu de lassitude cette semaine, rien de grave, 2/10")
	resp := o.ProcessMessage(ctx, "s-12", "non")
	if resp.Analysis == nil {
		t.Fatalf("setup failed: %+v", resp)
	}
	if resp.CalendarAnalysis == nil || len(resp.CalendarAnalysis.ActionsTaken) != 1 {
		t.Fatalf("expected one wellness break on the analysis turn, got %+v", resp.CalendarAnalysis)
	}

	for _, text := range []string{"merci", "bonne soirée"} {
		resp = o.ProcessMessage(ctx, "s-12", text)
		if resp.Response != followUpResponse {
			t.Fatalf("%q should get the follow-up acknowledgement, got %q", text, resp.Response)
		}
		if resp.Analysis != nil {
			t.Errorf("%q must not re-run analysis", text)
		}
	}

	var adds int
	for _, action := range *actions {
		if action == calendar.ActionAdd {
			adds++
		}
	}
	if adds != 1 {
		t.Errorf("expected exactly 1 wellness ADD across the conversation, got %d", adds)
	}
}

func TestProcessMessagePostFinalNewInfoRerunsAnalysis(t *testing.T) {
	o := newTestOrchestrator(t, calmExtraction, `{"intensite": "9"}`)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-13", "Un peu de lassitude cette semaine, 2/10")
	first := o.ProcessMessage(ctx, "s-13", "non")
	if first.Analysis == nil || first.Analysis.SeverityLevel != models.SeverityLow {
		t.Fatalf("setup failed: %+v", first.Analysis)
	}

	resp := o.ProcessMessage(ctx, "s-13", "En fait c'est bien pire, 9 sur 10")

	if resp.Analysis == nil {
		t.Fatal("new information after the final response must re-run analysis")
	}
	if resp.Analysis.SeverityLevel != models.SeverityHigh {
		t.Errorf("intensity 9 should yield Élevé, got %s", resp.Analysis.SeverityLevel)
	}
	if len(resp.Slots) != 3 {
		t.Errorf("expected a booking proposal after escalation, got %d slots", len(resp.Slots))
	}
}

func TestWithSessionLockSerializesAccess(t *testing.T) {
	o := newTestOrchestrator(t)

	holding := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		o.WithSessionLock("s-lock", func() {
			close(holding)
			<-release
		})
		close(firstDone)
	}()
	<-holding

	entered := make(chan struct{})
	go o.WithSessionLock("s-lock", func() { close(entered) })
	select {
	case <-entered:
		t.Fatal("second critical section ran while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("second critical section never ran")
	}
	<-firstDone
}

func TestSessionLockRegistryShrinks(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-14", "Bonjour")
	o.WithSessionLock("s-14", func() {})

	o.mu.Lock()
	remaining := len(o.locks)
	o.mu.Unlock()
	if remaining != 0 {
		t.Errorf("lock registry must be empty when no turn is in flight, got %d entries", remaining)
	}
}

func TestProcessMessageEmergencyFlow(t *testing.T) {
	o := newTestOrchestrator(t) // nil client: fallbacks everywhere

	resp := o.ProcessMessage(context.Background(), "s-5", "Je veux me suicider")

	if !resp.IsEmergency {
		t.Fatal("expected emergency envelope")
	}
	if resp.EmergencyData == nil || resp.EmergencyData.Level != models.EmergencyLevelCritical {
		t.Fatalf("expected CRITIQUE emergency data, got %+v", resp.EmergencyData)
	}
	if resp.Protocol == nil || resp.Protocol.Hotline != "3114" {
		t.Fatalf("expected 3114 protocol, got %+v", resp.Protocol)
	}
	if !strings.Contains(resp.Response, "3114") {
		t.Errorf("response must mention the hotline, got %q", resp.Response)
	}
	var hasCrisis bool
	for _, rec := range resp.Recommendations {
		if rec.Type == RecTypeCrisis {
			hasCrisis = true
		}
	}
	if !hasCrisis {
		t.Error("expected crisis resources in recommendations")
	}
	// Collection continues despite the emergency.
	if !strings.Contains(resp.Response, "?") {
		t.Errorf("emergency response should still ask a collection question, got %q", resp.Response)
	}
}

func TestProcessMessageEmergencyIsSticky(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-6", "Je veux en finir")
	for _, text := range []string{"du stress", "le travail", "depuis un mois", "je dors mal"} {
		resp := o.ProcessMessage(ctx, "s-6", text)
		if !resp.IsEmergency {
			t.Fatalf("emergency flag must stay for the whole session, lost on %q", text)
		}
	}
}

func TestProcessMessageEmptySessionIDCreatesOne(t *testing.T) {
	o := newTestOrchestrator(t)

	resp := o.ProcessMessage(context.Background(), "", "Bonjour")
	if resp.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
}

func TestProcessMessageAllLLMFailuresStillRespond(t *testing.T) {
	st := store.NewInMemoryStore()
	t.Cleanup(func() { st.Close() })
	o := NewOrchestrator(st, failingGenAI{}, nil)
	ctx := context.Background()

	resp := o.ProcessMessage(ctx, "s-7", "Je me sens mal")
	if !resp.Success {
		t.Fatalf("LLM failure must not fail the turn: %+v", resp)
	}
	if resp.Response != fallbackQuestions[models.ParamEmotion] {
		t.Errorf("expected fallback question, got %q", resp.Response)
	}
}

type brokenStore struct{}

func (brokenStore) GetSession(string) (*models.Session, error) { return nil, errors.New("down") }
func (brokenStore) SaveSession(models.Session) error           { return errors.New("down") }
func (brokenStore) DeleteSession(string) error                 { return errors.New("down") }
func (brokenStore) CountSessions() (int, error)                { return 0, errors.New("down") }
func (brokenStore) Close() error                               { return nil }

func TestProcessMessageStoreFailure(t *testing.T) {
	o := NewOrchestrator(brokenStore{}, nil, nil)

	resp := o.ProcessMessage(context.Background(), "s-8", "Bonjour")
	if resp.Success {
		t.Fatal("store failure must mark the envelope unsuccessful")
	}
	if resp.Response == "" {
		t.Error("even total failure needs a user-facing message")
	}
}

func TestSessionLifecycleHelpers(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.ProcessMessage(ctx, "s-9", "Bonjour")

	session, err := o.GetSessionInfo("s-9")
	if err != nil {
		t.Fatalf("GetSessionInfo: %v", err)
	}
	if session.Turn != 1 || len(session.History) != 2 {
		t.Errorf("expected 1 turn with user+assistant history, got turn=%d history=%d", session.Turn, len(session.History))
	}

	stats, err := o.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.ActiveSessions != 1 {
		t.Errorf("expected 1 active session, got %d", stats.ActiveSessions)
	}

	if err := o.ResetSession("s-9"); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	if _, err := o.GetSessionInfo("s-9"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after reset, got %v", err)
	}
}
