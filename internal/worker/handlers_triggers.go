package worker

import (
	"fmt"
	"net/http"

	"github.com/thebtf/faqlearn/internal/realtime"
	"github.com/thebtf/faqlearn/pkg/models"
)

// handleChatTrigger handles POST /api/triggers/chat: a chat ended or was rated.
// The snapshot is stored for the batch jobs, then offered to the real-time processor.
func (s *Service) handleChatTrigger(w http.ResponseWriter, r *http.Request) {
	var chat models.ChatSession
	if err := decodeBody(r, schemaChatTrigger, &chat); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Interactions != nil {
		if err := s.deps.Interactions.SaveChat(r.Context(), &chat); err != nil {
			s.writeError(w, r, fmt.Errorf("store chat snapshot: %w", err))
			return
		}
	}

	decision, err := s.deps.Realtime.ScheduleChat(&chat)
	s.writeDecision(w, r, decision, err)
}

// handleTicketTrigger handles POST /api/triggers/ticket: a ticket was resolved or closed.
func (s *Service) handleTicketTrigger(w http.ResponseWriter, r *http.Request) {
	var ticket models.Ticket
	if err := decodeBody(r, schemaTicketTrigger, &ticket); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Interactions != nil {
		if err := s.deps.Interactions.SaveTicket(r.Context(), &ticket); err != nil {
			s.writeError(w, r, fmt.Errorf("store ticket snapshot: %w", err))
			return
		}
	}

	decision, err := s.deps.Realtime.ScheduleTicket(&ticket)
	s.writeDecision(w, r, decision, err)
}

// writeDecision answers 202 when processing was scheduled and 200 when it was declined.
func (s *Service) writeDecision(w http.ResponseWriter, r *http.Request, d *realtime.Decision, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if d.Scheduled {
		writeJSONStatus(w, http.StatusAccepted, d)
		return
	}
	writeJSON(w, d)
}

// handleTriggerStatus handles GET /api/triggers.
func (s *Service) handleTriggerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Realtime.Status())
}

// handleClearTriggers handles DELETE /api/triggers. Running executions are not interrupted.
func (s *Service) handleClearTriggers(w http.ResponseWriter, r *http.Request) {
	n := s.deps.Realtime.ClearQueue()
	s.logger.Info().Int("cleared", n).Msg("Real-time queue cleared")
	writeJSON(w, map[string]int{"cleared": n})
}
