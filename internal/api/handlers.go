package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

// chatHandler runs one conversation turn: POST /chat.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	envelope := s.orchestrator.ProcessMessage(r.Context(), req.SessionID, req.Text)
	status := http.StatusOK
	if !envelope.Success {
		status = http.StatusInternalServerError
	}
	writeJSONResponse(w, status, envelope)
}

// orientationFeedbackHandler records the user's answer to a booking
// proposal: POST /orientation/feedback. Accepting a slot also books it on
// the calendar when one is configured.
func (s *Server) orientationFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.OrientationFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := models.OrientationFeedbackResponse{
		Success:   true,
		SessionID: req.SessionID,
		Intent:    req.Intent,
		SlotIndex: req.SlotIndex,
	}
	switch req.Intent {
	case models.IntentAcceptBooking:
		if req.SlotData == nil {
			writeError(w, http.StatusBadRequest, models.ErrMissingSlotData.Error())
			return
		}
		resp.Message = fmt.Sprintf("✅ Parfait, votre rendez-vous du %s à %s avec %s est noté. Vous recevrez une confirmation.",
			req.SlotData.Date, req.SlotData.Time, req.SlotData.ProviderName)
		resp.CalendarAdded = s.bookSlot(r, req.SlotData)
	case models.IntentDeclineBooking:
		resp.Message = "Très bien, aucun rendez-vous n'a été pris. Les recommandations restent disponibles si vous changez d'avis."
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// bookSlot mirrors an accepted slot onto the calendar. Failures are logged
// and reported through the calendar_added flag, never as an error.
func (s *Server) bookSlot(r *http.Request, slot *models.BookingSlot) bool {
	if !s.calClient.Configured() {
		return false
	}
	title := fmt.Sprintf("Consultation - %s (%s)", slot.Specialty, slot.ProviderName)
	description := fmt.Sprintf("Rendez-vous %s à %s, mode %s. Lien : %s",
		slot.Date, slot.Time, slot.Mode, slot.BookingLink)
	if err := s.calClient.AddEvent(r.Context(), slot.Date, title, 1, description); err != nil {
		slog.Warn("Server.bookSlot: calendar add failed", "date", slot.Date, "error", err)
		return false
	}
	return true
}

// agendaConfirmHandler applies or cancels pending calendar deletions:
// POST /agenda/confirm_changes.
func (s *Server) agendaConfirmHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.AgendaConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The whole load-modify-save runs under the session's turn mutex so a
	// concurrent chat turn cannot be overwritten with a stale snapshot.
	var (
		resp      models.AgendaConfirmResponse
		errStatus int
	)
	s.orchestrator.WithSessionLock(req.SessionID, func() {
		resp, errStatus = s.applyAgendaConfirm(r, req)
	})
	if errStatus != 0 {
		writeError(w, errStatus, "Session storage unavailable")
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) applyAgendaConfirm(r *http.Request, req models.AgendaConfirmRequest) (models.AgendaConfirmResponse, int) {
	session, err := s.orchestrator.Session(req.SessionID)
	if err != nil {
		return models.AgendaConfirmResponse{}, http.StatusInternalServerError
	}

	if req.Action == models.AgendaActionCancel {
		if session != nil {
			session.PendingProposals = nil
			if err := s.orchestrator.SaveSession(*session); err != nil {
				slog.Warn("Server.applyAgendaConfirm: session save failed", "session_id", req.SessionID, "error", err)
			}
		}
		return models.AgendaConfirmResponse{
			Success: true,
			Message: "Aucun changement n'a été appliqué à votre agenda.",
		}, 0
	}

	eventIDs := req.EventIDs
	if len(eventIDs) == 0 && session != nil {
		for _, proposal := range session.PendingProposals {
			eventIDs = append(eventIDs, proposal.EventID)
		}
	}

	var deleted, failed int
	deletedIDs := make(map[string]bool)
	for _, id := range eventIDs {
		if err := s.calClient.DeleteEvent(r.Context(), id); err != nil {
			slog.Warn("Server.applyAgendaConfirm: delete failed", "event_id", id, "error", err)
			failed++
			continue
		}
		deleted++
		deletedIDs[id] = true
	}

	if session != nil && deleted > 0 {
		var remaining []models.CalendarProposal
		for _, proposal := range session.PendingProposals {
			if !deletedIDs[proposal.EventID] {
				remaining = append(remaining, proposal)
			}
		}
		session.PendingProposals = remaining
		if err := s.orchestrator.SaveSession(*session); err != nil {
			slog.Warn("Server.applyAgendaConfirm: session save failed", "session_id", req.SessionID, "error", err)
		}
	}

	resp := models.AgendaConfirmResponse{
		Success:      failed == 0,
		DeletedCount: deleted,
		FailedCount:  failed,
	}
	switch {
	case deleted > 0 && failed == 0:
		resp.Message = fmt.Sprintf("✅ %d activité(s) annulée(s). Profitez de ce temps pour vous.", deleted)
	case deleted > 0:
		resp.Message = fmt.Sprintf("%d activité(s) annulée(s), %d n'ont pas pu l'être. Vous pouvez réessayer plus tard.", deleted, failed)
	case failed > 0:
		resp.Message = "Les changements n'ont pas pu être appliqués, votre agenda reste inchangé."
	default:
		resp.Message = "Aucun changement en attente."
	}
	return resp, 0
}

// sessionHandler serves GET and DELETE /session/{id}.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/session/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		session, err := s.orchestrator.GetSessionInfo(sessionID)
		if errors.Is(err, models.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Session storage unavailable")
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(session))
	case http.MethodDelete:
		if err := s.orchestrator.ResetSession(sessionID); err != nil {
			writeError(w, http.StatusInternalServerError, "Session storage unavailable")
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session reset", nil))
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// healthHandler serves GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stats, err := s.orchestrator.GetStats()
	status := map[string]interface{}{
		"status":              "healthy",
		"timestamp":           time.Now().Format(time.RFC3339),
		"uptime_seconds":      int(time.Since(s.startedAt).Seconds()),
		"orchestrator_active": err == nil,
		"calendar_configured": s.calClient.Configured(),
	}
	if err == nil {
		status["sessions_active"] = stats.ActiveSessions
	}
	writeJSONResponse(w, http.StatusOK, status)
}

// statsHandler serves GET /stats.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stats, err := s.orchestrator.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Session storage unavailable")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}
