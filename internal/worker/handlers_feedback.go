package worker

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/faqlearn/pkg/models"
)

type feedbackRequest struct {
	UserID            string              `json:"user_id"`
	FeedbackType      models.FeedbackType `json:"feedback_type"`
	Rating            *int                `json:"rating"`
	Comment           string              `json:"comment"`
	SuggestedAnswer   string              `json:"suggested_answer"`
	SuggestedCategory string              `json:"suggested_category"`
	SuggestedKeywords []string            `json:"suggested_keywords"`
}

// handleFeedback handles POST /api/faqs/{id}/feedback.
// Feedback that could not be applied is answered with 422 and the result body.
func (s *Service) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeBody(r, schemaFeedback, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result := s.deps.Feedback.Process(r.Context(), models.FeedbackRecord{
		FaqID:             chi.URLParam(r, "id"),
		UserID:            req.UserID,
		FeedbackType:      req.FeedbackType,
		Rating:            req.Rating,
		Comment:           req.Comment,
		SuggestedAnswer:   req.SuggestedAnswer,
		SuggestedCategory: req.SuggestedCategory,
		SuggestedKeywords: req.SuggestedKeywords,
	})
	if !result.Processed {
		writeJSONStatus(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, result)
}

// handlePerformance handles GET /api/faqs/{id}/performance.
func (s *Service) handlePerformance(w http.ResponseWriter, r *http.Request) {
	score, err := s.deps.Feedback.Performance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, score)
}

// handleImprovement handles GET /api/faqs/improvement?limit=.
func (s *Service) handleImprovement(w http.ResponseWriter, r *http.Request) {
	limit := DefaultImprovementLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	scores, err := s.deps.Feedback.RankForImprovement(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, scores)
}
