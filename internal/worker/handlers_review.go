package worker

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

type reviewRequest struct {
	Action     models.ReviewAction `json:"action"`
	ReviewerID string              `json:"reviewer_id"`
	Reason     string              `json:"reason"`
	Question   *string             `json:"question"`
	Answer     *string             `json:"answer"`
	Category   *string             `json:"category"`
	Keywords   []string            `json:"keywords"`
}

type bulkReviewRequest struct {
	FaqIDs     []string            `json:"faq_ids"`
	Action     models.ReviewAction `json:"action"`
	ReviewerID string              `json:"reviewer_id"`
	Reason     string              `json:"reason"`
}

// handleListFaqs handles GET /api/faqs.
func (s *Service) handleListFaqs(w http.ResponseWriter, r *http.Request) {
	q, err := parseFaqQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.deps.Review.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// parseFaqQuery reads the list filters. Multi-valued filters accept comma-separated values.
func parseFaqQuery(v url.Values) (db.FaqQuery, error) {
	var q db.FaqQuery
	for _, st := range splitList(v.Get("status")) {
		status := models.FaqStatus(st)
		if !status.Valid() {
			return q, fmt.Errorf("%w: unknown status %q", ErrBadRequest, st)
		}
		q.Statuses = append(q.Statuses, status)
	}

	var err error
	if q.MinConfidence, err = optionalInt(v, "minConfidence"); err != nil {
		return q, err
	}
	if q.MaxConfidence, err = optionalInt(v, "maxConfidence"); err != nil {
		return q, err
	}
	if src := v.Get("source"); src != "" {
		q.Source = models.Source(src)
		if !q.Source.Valid() {
			return q, fmt.Errorf("%w: unknown source %q", ErrBadRequest, src)
		}
	}
	q.Categories = splitList(v.Get("category"))
	if q.CreatedFrom, err = optionalTime(v, "createdFrom"); err != nil {
		return q, err
	}
	if q.CreatedTo, err = optionalTime(v, "createdTo"); err != nil {
		return q, err
	}
	q.ReviewedBy = v.Get("reviewedBy")
	q.CreatedBy = v.Get("createdBy")

	if p, err := optionalInt(v, "page"); err != nil {
		return q, err
	} else if p != nil {
		q.Page = *p
	}
	if l, err := optionalInt(v, "limit"); err != nil {
		return q, err
	} else if l != nil {
		q.Limit = *l
	}

	q.SortBy = v.Get("sortBy")
	switch strings.ToLower(v.Get("sortOrder")) {
	case "", "desc":
		q.SortDesc = true
	case "asc":
	default:
		return q, fmt.Errorf("%w: sortOrder must be asc or desc", ErrBadRequest)
	}
	return q, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalInt(v url.Values, key string) (*int, error) {
	raw := v.Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return &n, nil
}

func optionalTime(v url.Values, key string) (*time.Time, error) {
	raw := v.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", ErrBadRequest, key)
	}
	return &t, nil
}

// handleReviewStats handles GET /api/faqs/stats.
func (s *Service) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Review.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// handleReviewHistory handles GET /api/faqs/{id}/history.
func (s *Service) handleReviewHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Review.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, events)
}

// handleReview handles POST /api/faqs/{id}/review.
func (s *Service) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(r, schemaReview, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	entry, err := s.deps.Review.Review(r.Context(), models.ReviewDecision{
		FaqID:      chi.URLParam(r, "id"),
		Action:     req.Action,
		ReviewerID: req.ReviewerID,
		Reason:     req.Reason,
		Question:   req.Question,
		Answer:     req.Answer,
		Category:   req.Category,
		Keywords:   req.Keywords,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// handleBulkReview handles POST /api/faqs/bulk-review.
func (s *Service) handleBulkReview(w http.ResponseWriter, r *http.Request) {
	var req bulkReviewRequest
	if err := decodeBody(r, schemaBulkReview, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.deps.Review.Bulk(r.Context(), req.FaqIDs, req.Action, req.ReviewerID, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleAutoPublish handles POST /api/faqs/auto-publish.
func (s *Service) handleAutoPublish(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Review.AutoPublish(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"published": n})
}
