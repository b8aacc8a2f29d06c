package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type scheduleRequest struct {
	CronExpression string `json:"cron_expression"`
}

// handleListJobs handles GET /api/jobs.
func (s *Service) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Jobs.Statuses())
}

// handleJobHistory handles GET /api/jobs/history?name=.
func (s *Service) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Jobs.History(r.URL.Query().Get("name")))
}

// handleRunJob handles POST /api/jobs/{name}/run. The request waits for the run to finish.
// A run that outlasts the request keeps going; the timeout middleware answers 504.
func (s *Service) handleRunJob(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Jobs.Run(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// handleEnableJob handles POST /api/jobs/{name}/enable.
func (s *Service) handleEnableJob(w http.ResponseWriter, r *http.Request) {
	s.toggleJob(w, r, true)
}

// handleDisableJob handles POST /api/jobs/{name}/disable.
func (s *Service) handleDisableJob(w http.ResponseWriter, r *http.Request) {
	s.toggleJob(w, r, false)
}

func (s *Service) toggleJob(w http.ResponseWriter, r *http.Request, enable bool) {
	name := chi.URLParam(r, "name")
	var err error
	if enable {
		err = s.deps.Jobs.Enable(name)
	} else {
		err = s.deps.Jobs.Disable(name)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJobStatus(w, name)
}

// handleScheduleJob handles PUT /api/jobs/{name}/schedule.
func (s *Service) handleScheduleJob(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeBody(r, schemaJobSchedule, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.deps.Jobs.Reschedule(name, req.CronExpression); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJobStatus(w, name)
}

func (s *Service) writeJobStatus(w http.ResponseWriter, name string) {
	for _, st := range s.deps.Jobs.Statuses() {
		if st.Name == name {
			writeJSON(w, st)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
