package worker

import (
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/faqlearn/internal/audit"
	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/jobs"
	"github.com/thebtf/faqlearn/internal/realtime"
	"github.com/thebtf/faqlearn/internal/review"
)

// writeJSON writes data as a 200 JSON response.
func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// statusFor maps component errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, review.ErrValidation),
		errors.Is(err, review.ErrUnknownAction),
		errors.Is(err, jobs.ErrInvalidSchedule),
		errors.Is(err, audit.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound), errors.Is(err, jobs.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, review.ErrInvalidTransition), errors.Is(err, db.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, realtime.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status matching err. Internal errors are logged and not echoed.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", GetRequestID(r.Context())).
			Msg("Request failed")
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

// handleHealth handles health check requests. An unreachable database answers 503.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	}
	status := http.StatusOK
	if s.deps.Database != nil {
		h := s.deps.Database.HealthCheck(r.Context())
		body["database"] = h
		if h.Status == db.HealthDown {
			body["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSONStatus(w, status, body)
}
