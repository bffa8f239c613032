// Package models defines the core data structures for Zenflow.
//
// It includes session state, the psychological parameter set, analysis and
// booking results, calendar proposals, and the response envelope shared
// across modules.
package models

import (
	"errors"
	"time"
)

// ParamKey identifies one of the five required psychological parameters.
type ParamKey string

const (
	ParamEmotion   ParamKey = "emotion"
	ParamCauses    ParamKey = "causes"
	ParamDuration  ParamKey = "duration"
	ParamSymptoms  ParamKey = "symptomes"
	ParamIntensity ParamKey = "intensite"
)

// RequiredParams lists the five parameters a session must collect, in the
// order collection questions are asked.
var RequiredParams = []ParamKey{ParamEmotion, ParamCauses, ParamDuration, ParamSymptoms, ParamIntensity}

// ParameterSet is a partial mapping of required parameters to free-form
// short values. Values are never empty strings; an absent key means the
// parameter has not been collected yet.
type ParameterSet map[ParamKey]string

// CompletionRate returns the filled/5 ratio for the set.
func (p ParameterSet) CompletionRate() float64 {
	return float64(len(RequiredParams)-len(p.Missing())) / float64(len(RequiredParams))
}

// Missing returns the required parameters not yet collected, in canonical order.
func (p ParameterSet) Missing() []ParamKey {
	var missing []ParamKey
	for _, key := range RequiredParams {
		if p[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// IsComplete reports whether all five required parameters hold non-empty values.
func (p ParameterSet) IsComplete() bool {
	return len(p.Missing()) == 0
}

// Clone returns a copy of the set so callers can merge without mutating shared state.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// EmergencyLevel classifies the outcome of emergency detection.
type EmergencyLevel string

const (
	EmergencyLevelNone     EmergencyLevel = "NONE"
	EmergencyLevelElevated EmergencyLevel = "ELEVATED"
	EmergencyLevelCritical EmergencyLevel = "CRITIQUE"
)

// EmergencyData is the result of scanning a message for crisis keywords.
type EmergencyData struct {
	IsEmergency   bool           `json:"is_emergency"`
	Level         EmergencyLevel `json:"level"`
	Type          string         `json:"type,omitempty"`
	UrgencyScore  int            `json:"urgency_score"`
	KeywordsFound []string       `json:"keywords_found"`
}

// EmergencyBanner is the hotline banner shown alongside a crisis response.
type EmergencyBanner struct {
	Visible  bool   `json:"visible"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// EmergencyProtocol carries the hotline and immediate actions for a crisis type.
type EmergencyProtocol struct {
	Hotline     string          `json:"hotline"`
	HotlineName string          `json:"hotline_name"`
	Message     string          `json:"message"`
	Actions     []string        `json:"actions"`
	Banner      EmergencyBanner `json:"banner"`
}

// SeverityLevel is the rule-based severity band of a session.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "Faible"
	SeverityModerate SeverityLevel = "Modéré"
	SeverityHigh     SeverityLevel = "Élevé"
)

// AnalysisResult is derived once collection completes. DistressRatio is in
// [0,1]; UrgencyScore is an integer in [0,10].
type AnalysisResult struct {
	SeverityLevel    SeverityLevel `json:"severity_level"`
	UrgencyScore     int           `json:"urgency_score"`
	DistressRatio    float64       `json:"taux_mal_etre"`
	SentimentScore   float64       `json:"sentiment_score"`
	NeedsOrientation bool          `json:"needs_orientation"`
}

// CalendarEvent is one event returned by the external calendar collaborator.
type CalendarEvent struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Start         string  `json:"start"`
	DurationHours float64 `json:"duration_hours"`
	Priority      int     `json:"priority"`
}

// CalendarProposal is a delete candidate awaiting user confirmation.
type CalendarProposal struct {
	Action        string  `json:"action"`
	EventID       string  `json:"event_id"`
	EventTitle    string  `json:"event_title"`
	EventStart    string  `json:"event_start"`
	DurationHours float64 `json:"duration"`
	Reason        string  `json:"reason"`
}

// CalendarAction records a change already applied to the calendar (e.g. a
// wellness break added when the day is light).
type CalendarAction struct {
	Action        string  `json:"action"`
	EventTitle    string  `json:"event_title"`
	DurationHours float64 `json:"duration"`
	Reason        string  `json:"reason"`
}

// CalendarAnalysis is the outcome of the calendar load stage.
type CalendarAnalysis struct {
	TotalHours           float64            `json:"charge_totale_heures"`
	EventCount           int                `json:"nombre_evenements"`
	Overloaded           bool               `json:"charge_excessive"`
	ProposedChanges      []CalendarProposal `json:"proposed_changes"`
	ActionsTaken         []CalendarAction   `json:"actions_effectuees,omitempty"`
	Message              string             `json:"calendar_message,omitempty"`
	AwaitingConfirmation bool               `json:"awaiting_confirmation"`
}

// BookingSlot is one candidate consultation slot. Slots are ephemeral and
// only persisted when the user accepts one.
type BookingSlot struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	ProviderName string `json:"provider_name"`
	Specialty    string `json:"specialty,omitempty"`
	Mode         string `json:"mode"`
	BookingLink  string `json:"booking_link"`
}

// BookingResult is the outcome of the booking decision stage.
type BookingResult struct {
	NeedsBooking bool          `json:"needs_booking"`
	Slots        []BookingSlot `json:"slots"`
	Specialty    string        `json:"specialty,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// BreathingStep is one phase of a guided breathing exercise.
type BreathingStep struct {
	Text      string  `json:"text"`
	Scale     float64 `json:"scale"`
	Frequency float64 `json:"frequency"`
	GainStart float64 `json:"gainStart"`
	GainEnd   float64 `json:"gainEnd"`
}

// Recommendation is one coping recommendation in a composed response.
type Recommendation struct {
	Type                 string             `json:"type"`
	Title                string             `json:"titre"`
	Message              string             `json:"message"`
	Link                 string             `json:"lien,omitempty"`
	Hotline              string             `json:"hotline,omitempty"`
	Instructions         []string           `json:"instructions,omitempty"`
	BreathingSteps       []BreathingStep    `json:"breathingSteps,omitempty"`
	ProposedChanges      []CalendarProposal `json:"proposed_changes,omitempty"`
	AwaitingConfirmation bool               `json:"awaiting_confirmation,omitempty"`
}

// TurnRecord is one entry in a session's message history.
type TurnRecord struct {
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds all per-conversation state. The orchestrator exclusively
// owns session lifecycle; agents only receive snapshots.
type Session struct {
	ID               string             `json:"session_id"`
	State            ConversationState  `json:"state"`
	NextState        ConversationState  `json:"next_state,omitempty"`
	Params           ParameterSet       `json:"collected_params"`
	ParamsComplete   bool               `json:"params_complete"`
	UserConfirmed    bool               `json:"user_confirmed"`
	IsEmergency      bool               `json:"is_emergency"`
	EmergencyData    *EmergencyData     `json:"emergency_data,omitempty"`
	Protocol         *EmergencyProtocol `json:"protocol,omitempty"`
	Analysis         *AnalysisResult    `json:"analysis,omitempty"`
	PendingProposals []CalendarProposal `json:"pending_proposals,omitempty"`
	WellnessBreakDay string             `json:"wellness_break_day,omitempty"`
	Turn             int                `json:"turn"`
	History          []TurnRecord       `json:"history,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ResponseMetadata describes how a response envelope was produced.
type ResponseMetadata struct {
	Timestamp      string   `json:"timestamp"`
	AgentsUsed     []string `json:"agents_used"`
	Severity       string   `json:"severity,omitempty"`
	EmergencyLevel string   `json:"emergency_level,omitempty"`
}

// ChatResponse is the merged response envelope returned for every turn.
// The orchestrator always returns a best-effort envelope; Success is false
// only on total failure.
type ChatResponse struct {
	Success              bool               `json:"success"`
	Response             string             `json:"response"`
	SessionID            string             `json:"session_id"`
	IsEmergency          bool               `json:"is_emergency"`
	ParamsComplete       bool               `json:"params_complete"`
	CompletionRate       float64            `json:"completion_rate"`
	CollectedParams      ParameterSet       `json:"collected_params,omitempty"`
	AwaitingConfirmation bool               `json:"awaiting_confirmation,omitempty"`
	AwaitingMoreInfo     bool               `json:"awaiting_more_info,omitempty"`
	NeedsBooking         bool               `json:"needs_booking"`
	Slots                []BookingSlot      `json:"slots"`
	Recommendations      []Recommendation   `json:"recommendations"`
	Analysis             *AnalysisResult    `json:"analysis,omitempty"`
	CalendarAnalysis     *CalendarAnalysis  `json:"calendar_analysis,omitempty"`
	EmergencyData        *EmergencyData     `json:"emergency_data,omitempty"`
	Protocol             *EmergencyProtocol `json:"protocol,omitempty"`
	Error                string             `json:"error,omitempty"`
	Metadata             *ResponseMetadata  `json:"metadata,omitempty"`
}

// Validation constants for inbound requests.
const (
	// MaxMessageLength bounds the size of one chat message.
	MaxMessageLength = 4096
)

// Error variables for request validation and session lookup.
var (
	ErrEmptyMessage      = errors.New("text is required and cannot be empty")
	ErrMessageTooLong    = errors.New("text exceeds maximum length")
	ErrMissingSessionID  = errors.New("session_id is required")
	ErrInvalidIntent     = errors.New("unknown intent")
	ErrInvalidAction     = errors.New("action must be 'apply' or 'cancel'")
	ErrSessionNotFound   = errors.New("session not found")
	ErrMissingSlotData   = errors.New("slot_data is required to accept a booking")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Feedback intents accepted by the orientation endpoint.
const (
	IntentAcceptBooking  = "accepter_booking"
	IntentDeclineBooking = "refuser_booking"
)

// Agenda confirmation actions.
const (
	AgendaActionApply  = "apply"
	AgendaActionCancel = "cancel"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// Validate checks the chat request for user errors.
func (r *ChatRequest) Validate() error {
	if r.Text == "" {
		return ErrEmptyMessage
	}
	if len(r.Text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// OrientationFeedbackRequest is the body of POST /orientation/feedback.
type OrientationFeedbackRequest struct {
	SessionID string       `json:"session_id"`
	Intent    string       `json:"intent"`
	SlotIndex int          `json:"slot_index"`
	SlotData  *BookingSlot `json:"slot_data,omitempty"`
}

// Validate checks the feedback request for user errors.
func (r *OrientationFeedbackRequest) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	switch r.Intent {
	case IntentAcceptBooking, IntentDeclineBooking:
		return nil
	default:
		return ErrInvalidIntent
	}
}

// AgendaConfirmRequest is the body of POST /agenda/confirm_changes.
type AgendaConfirmRequest struct {
	SessionID string   `json:"session_id"`
	EventIDs  []string `json:"event_ids"`
	Action    string   `json:"action"`
}

// Validate checks the agenda confirmation request for user errors.
func (r *AgendaConfirmRequest) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	switch r.Action {
	case AgendaActionApply, AgendaActionCancel:
		return nil
	default:
		return ErrInvalidAction
	}
}

// OrientationFeedbackResponse is returned by POST /orientation/feedback.
type OrientationFeedbackResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	SessionID     string `json:"session_id"`
	Intent        string `json:"intent"`
	SlotIndex     int    `json:"slot_index"`
	CalendarAdded bool   `json:"calendar_added"`
}

// AgendaConfirmResponse is returned by POST /agenda/confirm_changes.
type AgendaConfirmResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
	FailedCount  int    `json:"failed_count"`
}
