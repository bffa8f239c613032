// Package models defines the conversation state machine for Zenflow sessions.
package models

import "fmt"

// ConversationState is one state of the per-session conversation machine.
type ConversationState string

const (
	// StateRouting is the entry state for every turn of a non-emergency session.
	StateRouting ConversationState = "ROUTING"
	// StateHandlingEmergency handles the crisis protocol before collection continues.
	StateHandlingEmergency ConversationState = "HANDLING_EMERGENCY"
	// StateCollectingParams collects the five psychological parameters.
	StateCollectingParams ConversationState = "COLLECTING_PARAMS"
	// StateWaitingUserConfirmation waits for the user to add info or ask for solutions.
	StateWaitingUserConfirmation ConversationState = "WAITING_USER_CONFIRMATION"
	// StateAnalyzingAndResponding runs analysis, booking, calendar and recommendations.
	StateAnalyzingAndResponding ConversationState = "ANALYZING_AND_RESPONDING"
	// StateFinalResponseReady terminates the turn loop; the envelope is complete.
	StateFinalResponseReady ConversationState = "FINAL_RESPONSE_READY"
)

// ConversationEvent drives transitions between conversation states.
type ConversationEvent string

const (
	// EventEmergencyDetected fires when the emergency detector flags the message.
	EventEmergencyDetected ConversationEvent = "EMERGENCY_DETECTED"
	// EventCollect fires while the parameter set is incomplete.
	EventCollect ConversationEvent = "COLLECT"
	// EventParamsComplete fires when all five parameters are present.
	EventParamsComplete ConversationEvent = "PARAMS_COMPLETE"
	// EventProceed fires when the user confirms they want solutions.
	EventProceed ConversationEvent = "PROCEED"
	// EventReopen fires when the user wants to add more information.
	EventReopen ConversationEvent = "REOPEN"
	// EventRespond fires when a turn has produced its final envelope.
	EventRespond ConversationEvent = "RESPOND"
)

// transitions is the full state machine table: current state × event → next
// state. Keeping it as data makes rules like "collection continues after an
// emergency" explicit and testable rather than implied by handler branching.
var transitions = map[ConversationState]map[ConversationEvent]ConversationState{
	StateRouting: {
		EventEmergencyDetected: StateHandlingEmergency,
		EventCollect:           StateCollectingParams,
		EventParamsComplete:    StateWaitingUserConfirmation,
		EventProceed:           StateAnalyzingAndResponding,
		EventRespond:           StateFinalResponseReady,
	},
	StateHandlingEmergency: {
		EventCollect:        StateCollectingParams,
		EventParamsComplete: StateWaitingUserConfirmation,
		EventRespond:        StateFinalResponseReady,
	},
	StateCollectingParams: {
		EventCollect:        StateCollectingParams,
		EventParamsComplete: StateWaitingUserConfirmation,
		EventRespond:        StateFinalResponseReady,
	},
	StateWaitingUserConfirmation: {
		EventProceed: StateAnalyzingAndResponding,
		EventReopen:  StateCollectingParams,
		EventRespond: StateFinalResponseReady,
	},
	StateAnalyzingAndResponding: {
		EventRespond: StateFinalResponseReady,
	},
}

// NextState resolves one transition. It returns ErrInvalidTransition when the
// event is not legal in the current state.
func NextState(current ConversationState, event ConversationEvent) (ConversationState, error) {
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return current, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, current)
}

// IsValidState reports whether s is a known conversation state.
func IsValidState(s ConversationState) bool {
	switch s {
	case StateRouting, StateHandlingEmergency, StateCollectingParams,
		StateWaitingUserConfirmation, StateAnalyzingAndResponding, StateFinalResponseReady:
		return true
	default:
		return false
	}
}
