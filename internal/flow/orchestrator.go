package flow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/FranckBG1/agentic-ia-agent/internal/calendar"
	"github.com/FranckBG1/agentic-ia-agent/internal/genai"
	"github.com/FranckBG1/agentic-ia-agent/internal/models"
	"github.com/FranckBG1/agentic-ia-agent/internal/store"
	"github.com/FranckBG1/agentic-ia-agent/internal/util"
)

const empathyTemperature = 0.9

// maxTransitionsPerTurn bounds the state loop; a turn that does not settle is
// a bug, not a reason to spin.
const maxTransitionsPerTurn = 8

const totalFailureResponse = "Une erreur est survenue de notre côté. Pouvez-vous reformuler votre message ?"

const followUpResponse = "Merci pour votre message. Mes recommandations restent valables ; " +
	"si votre situation évolue, décrivez-moi ce qui a changé et je referai le point avec vous."

// proceedKeywords mean "nothing to add, show me solutions" when the user is
// asked for confirmation. Matching happens on normalized text.
var proceedKeywords = map[string]bool{
	"non":            true,
	"n":              true,
	"no":             true,
	"nope":           true,
	"rien":           true,
	"rien a ajouter": true,
	"c'est tout":     true,
	"ca suffit":      true,
	"pret":           true,
	"prete":          true,
	"je suis pret":   true,
	"je suis prete":  true,
	"allons-y":       true,
	"c'est bon":      true,
}

// reopenKeywords reopen collection explicitly.
var reopenKeywords = map[string]bool{
	"oui":   true,
	"o":     true,
	"yes":   true,
	"ouais": true,
	"ok":    true,
}

// reopenWordThreshold: a confirmation answer longer than this many words is
// treated as new information rather than a yes/no.
const reopenWordThreshold = 10

// Orchestrator owns session lifecycle and sequences the agents for each
// turn: emergency detection, collection, confirmation, analysis, calendar,
// booking and recommendations. It always returns a best-effort envelope and
// never surfaces an error for a user turn.
type Orchestrator struct {
	store     store.Store
	detector  *EmergencyDetector
	collector *ParameterCollector
	analyzer  *SeverityAnalyzer
	booking   *BookingAgent
	composer  *RecommendationComposer
	calendar  *calendar.Analyzer
	client    genai.ClientInterface
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is one ref-counted entry in the lock registry. The entry is
// removed when its last holder releases, so sessions evicted from the store
// leave nothing behind.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewOrchestrator wires the agents together. client may be nil, which keeps
// every stage on its deterministic fallback; calendarAnalyzer may be nil when
// no calendar endpoint is configured.
func NewOrchestrator(st store.Store, client genai.ClientInterface, calendarAnalyzer *calendar.Analyzer) *Orchestrator {
	return &Orchestrator{
		store:     st,
		detector:  NewEmergencyDetector(),
		collector: NewParameterCollector(client),
		analyzer:  NewSeverityAnalyzer(),
		booking:   NewBookingAgent(client),
		composer:  NewRecommendationComposer(),
		calendar:  calendarAnalyzer,
		client:    client,
		now:       time.Now,
		locks:     make(map[string]*sessionLock),
	}
}

// acquireLock blocks until the caller holds the session's mutex.
func (o *Orchestrator) acquireLock(sessionID string) *sessionLock {
	o.mu.Lock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		o.locks[sessionID] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (o *Orchestrator) releaseLock(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()
	o.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(o.locks, sessionID)
	}
	o.mu.Unlock()
}

// WithSessionLock runs fn while holding the session's turn mutex, so
// handler-side read-modify-write cycles on a session cannot interleave with
// a chat turn and write back a stale snapshot.
func (o *Orchestrator) WithSessionLock(sessionID string, fn func()) {
	lock := o.acquireLock(sessionID)
	defer o.releaseLock(sessionID, lock)
	fn()
}

// turnContext carries per-turn working data through the state handlers.
type turnContext struct {
	text      string
	detection models.EmergencyData
	envelope  *models.ChatResponse
	agents    []string
}

// ProcessMessage runs one full conversation turn and returns the response
// envelope. Concurrent turns on the same session are serialized.
func (o *Orchestrator) ProcessMessage(ctx context.Context, sessionID, text string) models.ChatResponse {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	lock := o.acquireLock(sessionID)
	defer o.releaseLock(sessionID, lock)

	session, err := o.loadOrCreateSession(sessionID)
	if err != nil {
		slog.Error("Orchestrator.ProcessMessage: session load failed", "session_id", sessionID, "error", err)
		return models.ChatResponse{
			Success:   false,
			Response:  totalFailureResponse,
			SessionID: sessionID,
			Error:     "session storage unavailable",
		}
	}

	session.Turn++
	session.History = append(session.History, models.TurnRecord{
		Role:      "user",
		Message:   text,
		Timestamp: o.now(),
	})

	tc := &turnContext{
		text:      text,
		detection: o.detector.Detect(text),
		envelope: &models.ChatResponse{
			Success:   true,
			SessionID: sessionID,
		},
	}

	o.runTurn(ctx, session, tc)

	tc.envelope.IsEmergency = session.IsEmergency
	tc.envelope.ParamsComplete = session.ParamsComplete
	tc.envelope.CompletionRate = session.Params.CompletionRate()
	tc.envelope.CollectedParams = session.Params.Clone()
	tc.envelope.EmergencyData = session.EmergencyData
	tc.envelope.Protocol = session.Protocol
	if tc.envelope.Slots == nil {
		tc.envelope.Slots = []models.BookingSlot{}
	}
	if tc.envelope.Recommendations == nil {
		tc.envelope.Recommendations = []models.Recommendation{}
	}
	tc.envelope.Metadata = &models.ResponseMetadata{
		Timestamp:      o.now().Format(time.RFC3339),
		AgentsUsed:     tc.agents,
		EmergencyLevel: o.emergencyLevelLabel(session),
	}
	if session.Analysis != nil {
		tc.envelope.Metadata.Severity = string(session.Analysis.SeverityLevel)
	}

	session.History = append(session.History, models.TurnRecord{
		Role:      "assistant",
		Message:   tc.envelope.Response,
		Timestamp: o.now(),
	})
	session.UpdatedAt = o.now()
	if err := o.store.SaveSession(*session); err != nil {
		slog.Error("Orchestrator.ProcessMessage: session save failed", "session_id", sessionID, "error", err)
	}
	return *tc.envelope
}

// runTurn drives the state machine until the turn settles on
// FINAL_RESPONSE_READY.
func (o *Orchestrator) runTurn(ctx context.Context, session *models.Session, tc *turnContext) {
	session.State = o.resumeState(session, tc)

	for i := 0; session.State != models.StateFinalResponseReady; i++ {
		if i >= maxTransitionsPerTurn {
			slog.Error("Orchestrator.runTurn: state loop did not settle", "session_id", session.ID, "state", session.State)
			tc.envelope.Success = false
			tc.envelope.Response = totalFailureResponse
			session.State = models.StateFinalResponseReady
			break
		}
		switch session.State {
		case models.StateRouting:
			o.handleRouting(ctx, session, tc)
		case models.StateHandlingEmergency:
			o.handleEmergency(ctx, session, tc)
		case models.StateCollectingParams:
			o.handleCollecting(ctx, session, tc)
		case models.StateWaitingUserConfirmation:
			o.handleConfirmation(session, tc)
		case models.StateAnalyzingAndResponding:
			o.handleAnalysis(ctx, session, tc)
		default:
			slog.Warn("Orchestrator.runTurn: unknown state, restarting routing", "state", session.State)
			session.State = models.StateRouting
		}
	}
}

// resumeState decides where a new turn starts. A newly detected emergency
// preempts everything; otherwise the session resumes where the previous turn
// left off.
func (o *Orchestrator) resumeState(session *models.Session, tc *turnContext) models.ConversationState {
	if tc.detection.IsEmergency && !session.IsEmergency {
		return models.StateRouting
	}
	if session.NextState != "" && models.IsValidState(session.NextState) {
		return session.NextState
	}
	return models.StateRouting
}

func (o *Orchestrator) transition(session *models.Session, event models.ConversationEvent) {
	next, err := models.NextState(session.State, event)
	if err != nil {
		slog.Warn("Orchestrator.transition: invalid transition, finalizing turn", "state", session.State, "event", event)
		session.State = models.StateFinalResponseReady
		return
	}
	session.State = next
}

func (o *Orchestrator) handleRouting(ctx context.Context, session *models.Session, tc *turnContext) {
	if tc.detection.IsEmergency && !session.IsEmergency {
		o.transition(session, models.EventEmergencyDetected)
		return
	}
	switch {
	case session.ParamsComplete && session.UserConfirmed:
		// Analysis is recomputed only when the message adds information.
		// Anything else after a final response gets a short acknowledgement
		// instead of re-running the calendar and booking stages.
		if session.Analysis != nil && !o.collectFollowUp(ctx, session, tc) {
			session.NextState = models.StateRouting
			tc.envelope.Response = followUpResponse
			o.transition(session, models.EventRespond)
			return
		}
		o.transition(session, models.EventProceed)
	case session.ParamsComplete:
		o.transition(session, models.EventParamsComplete)
	default:
		o.transition(session, models.EventCollect)
	}
}

// collectFollowUp extracts from a post-analysis message and reports whether
// it changed the parameter set.
func (o *Orchestrator) collectFollowUp(ctx context.Context, session *models.Session, tc *turnContext) bool {
	tc.agents = append(tc.agents, "collection")
	result := o.collector.Collect(ctx, tc.text, session.Params)
	if maps.Equal(result.Params, session.Params) {
		return false
	}
	session.Params = result.Params
	return true
}

// handleEmergency records the crisis, sends the empathetic acknowledgement
// with the hotline protocol, and lets collection continue in the same turn.
func (o *Orchestrator) handleEmergency(ctx context.Context, session *models.Session, tc *turnContext) {
	tc.agents = append(tc.agents, "emergency")

	detection := tc.detection
	session.IsEmergency = true
	session.EmergencyData = &detection
	protocol := o.detector.Protocol(detection)
	session.Protocol = &protocol

	empathy := o.empathicResponse(ctx, tc.text)
	tc.envelope.Recommendations = append(tc.envelope.Recommendations, CrisisResources(protocol)...)

	result := o.collector.Collect(ctx, tc.text, session.Params)
	session.Params = result.Params
	session.ParamsComplete = result.IsComplete
	tc.agents = append(tc.agents, "collection")

	if result.IsComplete {
		session.NextState = models.StateWaitingUserConfirmation
		tc.envelope.AwaitingConfirmation = true
		tc.envelope.Response = empathy + "\n\n" + confirmationPrompt()
		o.transition(session, models.EventParamsComplete)
	} else {
		session.NextState = models.StateCollectingParams
		tc.envelope.Response = empathy + "\n\n" + result.NextQuestion
		o.transition(session, models.EventCollect)
	}
	o.transition(session, models.EventRespond)
}

func (o *Orchestrator) handleCollecting(ctx context.Context, session *models.Session, tc *turnContext) {
	tc.agents = append(tc.agents, "collection")

	result := o.collector.Collect(ctx, tc.text, session.Params)
	session.Params = result.Params
	session.ParamsComplete = result.IsComplete

	if result.IsComplete {
		session.NextState = models.StateWaitingUserConfirmation
		tc.envelope.AwaitingConfirmation = true
		tc.envelope.Response = confirmationPrompt()
		o.transition(session, models.EventParamsComplete)
	} else {
		session.NextState = models.StateCollectingParams
		tc.envelope.Response = result.NextQuestion
		o.transition(session, models.EventCollect)
	}
	o.transition(session, models.EventRespond)
}

// handleConfirmation interprets the user's answer to "anything to add?".
// Short negatives proceed to analysis in the same turn; an explicit yes or a
// substantial message reopens collection.
func (o *Orchestrator) handleConfirmation(session *models.Session, tc *turnContext) {
	normalized := strings.TrimSpace(strings.TrimRight(util.NormalizeText(strings.TrimSpace(tc.text)), ".!?"))

	switch {
	case proceedKeywords[normalized]:
		session.UserConfirmed = true
		o.transition(session, models.EventProceed)
	case reopenKeywords[normalized] || len(strings.Fields(tc.text)) > reopenWordThreshold:
		session.ParamsComplete = false
		session.UserConfirmed = false
		session.NextState = models.StateCollectingParams
		tc.envelope.AwaitingMoreInfo = true
		tc.envelope.Response = "Je vous écoute, dites-m'en plus sur ce que vous vivez."
		o.transition(session, models.EventReopen)
		o.transition(session, models.EventRespond)
	default:
		session.UserConfirmed = true
		o.transition(session, models.EventProceed)
	}
}

// handleAnalysis runs the final pipeline: severity, calendar load, booking
// and recommendation composition, all merged in one envelope.
func (o *Orchestrator) handleAnalysis(ctx context.Context, session *models.Session, tc *turnContext) {
	tc.agents = append(tc.agents, "analysis")

	level := models.EmergencyLevelNone
	if session.EmergencyData != nil {
		level = session.EmergencyData.Level
	}
	analysis := o.analyzer.Analyze(session.Params, session.IsEmergency, level)
	session.Analysis = &analysis
	tc.envelope.Analysis = &analysis

	var calendarAnalysis *models.CalendarAnalysis
	if o.calendar != nil {
		tc.agents = append(tc.agents, "calendar")
		date := o.now().Format("2006-01-02")
		result := o.calendar.AnalyzeLoad(ctx, date, analysis.DistressRatio, session.WellnessBreakDay == date)
		if len(result.ActionsTaken) > 0 {
			session.WellnessBreakDay = date
		}
		calendarAnalysis = &result
		tc.envelope.CalendarAnalysis = calendarAnalysis
		session.PendingProposals = result.ProposedChanges
		tc.envelope.AwaitingConfirmation = result.AwaitingConfirmation
	}

	tc.agents = append(tc.agents, "booking")
	booking := o.booking.Decide(ctx, analysis, session.Params, session.IsEmergency)
	tc.envelope.NeedsBooking = booking.NeedsBooking
	tc.envelope.Slots = booking.Slots

	tc.agents = append(tc.agents, "recommendation")
	tc.envelope.Recommendations = append(tc.envelope.Recommendations,
		o.composer.Compose(analysis, session.Params, calendarAnalysis)...)
	tc.envelope.Response = ComposeTransition(booking)

	session.NextState = models.StateRouting
	o.transition(session, models.EventRespond)
}

// empathicResponse asks the LLM for a short crisis acknowledgement; failures
// fall back to the fixed empathetic text.
func (o *Orchestrator) empathicResponse(ctx context.Context, text string) string {
	if o.client == nil {
		return FallbackEmpathicResponse
	}
	prompt := "Tu es un assistant de soutien psychologique. La personne traverse une crise grave. " +
		"Réponds en français, en 3 phrases maximum : valide sa souffrance avec chaleur, " +
		"rappelle que le 3114 est disponible 24h/24, et invite-la doucement à continuer de parler. " +
		"Ne juge pas, ne minimise pas."
	resp, err := o.client.GenerateWithTemperature(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt),
		openai.UserMessage(text),
	}, empathyTemperature)
	if err != nil || strings.TrimSpace(resp) == "" {
		slog.Warn("Orchestrator.empathicResponse: LLM call failed, using fallback", "error", err)
		return FallbackEmpathicResponse
	}
	return strings.TrimSpace(resp)
}

func confirmationPrompt() string {
	return "Merci pour tous ces éléments. Avez-vous autre chose à ajouter avant que je vous propose des pistes concrètes ? (répondez \"non\" pour voir mes recommandations)"
}

func (o *Orchestrator) loadOrCreateSession(sessionID string) (*models.Session, error) {
	session, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		now := o.now()
		session = &models.Session{
			ID:        sessionID,
			State:     models.StateRouting,
			Params:    models.ParameterSet{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if session.Params == nil {
		session.Params = models.ParameterSet{}
	}
	return session, nil
}

func (o *Orchestrator) emergencyLevelLabel(session *models.Session) string {
	if session.EmergencyData == nil {
		return ""
	}
	return string(session.EmergencyData.Level)
}

// GetSessionInfo returns a session snapshot, or ErrSessionNotFound.
func (o *Orchestrator) GetSessionInfo(sessionID string) (*models.Session, error) {
	session, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// ResetSession removes a session. The lock registry cleans itself up when
// the last holder releases, so nothing to do here beyond the store.
func (o *Orchestrator) ResetSession(sessionID string) error {
	if err := o.store.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Stats describes the orchestrator for the stats endpoint.
type Stats struct {
	ActiveSessions int      `json:"active_sessions"`
	Agents         []string `json:"agents"`
}

// GetStats returns current orchestrator statistics.
func (o *Orchestrator) GetStats() (Stats, error) {
	count, err := o.store.CountSessions()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count sessions: %w", err)
	}
	return Stats{
		ActiveSessions: count,
		Agents:         []string{"emergency", "collection", "analysis", "calendar", "booking", "recommendation"},
	}, nil
}

// Session returns the session for confirm-changes handling; nil when absent.
func (o *Orchestrator) Session(sessionID string) (*models.Session, error) {
	return o.store.GetSession(sessionID)
}

// SaveSession persists handler-side session mutations such as cleared
// calendar proposals.
func (o *Orchestrator) SaveSession(session models.Session) error {
	return o.store.SaveSession(session)
}
