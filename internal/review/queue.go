// Package review implements the human review workflow for generated FAQ entries.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/audit"
	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/pkg/models"
)

var (
	// ErrValidation is returned for malformed review requests.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition is returned when the action is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownAction is returned for actions other than approve, reject, publish and edit.
	ErrUnknownAction = errors.New("unknown review action")

	errNotEligible = errors.New("no longer eligible for auto-publish")
)

const (
	// MaxBulkSize bounds the ids of one bulk review.
	MaxBulkSize = 100
	// AutoPublishReviewer is recorded as the reviewer of auto-published entries.
	AutoPublishReviewer = "system:auto-publish"
	// TopCategories is the number of categories reported by Stats.
	TopCategories = 10
)

// transitions maps status and action to the resulting status. Missing pairs are invalid.
var transitions = map[models.FaqStatus]map[models.ReviewAction]models.FaqStatus{
	models.StatusPendingReview: {
		models.ActionApprove: models.StatusApproved,
		models.ActionReject:  models.StatusRejected,
		models.ActionEdit:    models.StatusApproved,
	},
	models.StatusApproved: {
		models.ActionApprove: models.StatusApproved,
		models.ActionPublish: models.StatusPublished,
		models.ActionEdit:    models.StatusApproved,
	},
	models.StatusRejected: {
		models.ActionReject: models.StatusRejected,
	},
	models.StatusPublished: {
		models.ActionPublish: models.StatusPublished,
	},
}

// NextStatus returns the status an action leads to from the given status.
func NextStatus(from models.FaqStatus, action models.ReviewAction) (models.FaqStatus, error) {
	if !validAction(action) {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	to, ok := transitions[from][action]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s entry", ErrInvalidTransition, action, from)
	}
	return to, nil
}

func validAction(a models.ReviewAction) bool {
	switch a {
	case models.ActionApprove, models.ActionReject, models.ActionPublish, models.ActionEdit:
		return true
	}
	return false
}

// UserDirectory resolves user ids to display summaries.
type UserDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.UserSummary, error)
}

// StaticDirectory is a fixed in-memory user directory. Unknown ids resolve to their own id.
type StaticDirectory map[string]models.UserSummary

// Lookup implements UserDirectory.
func (d StaticDirectory) Lookup(_ context.Context, ids []string) (map[string]models.UserSummary, error) {
	out := make(map[string]models.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out[id] = u
			continue
		}
		name := id
		if strings.HasPrefix(id, "system:") {
			name = "System"
		}
		out[id] = models.UserSummary{ID: id, DisplayName: name}
	}
	return out, nil
}

// Page is one page of review rows.
type Page struct {
	Items []models.ReviewRow `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// Queue applies review decisions and answers review queries.
type Queue struct {
	faqs     db.FaqStore
	users    UserDirectory
	audit    *audit.Recorder
	settings settings.Provider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewQueue creates a review queue. users may be nil.
func NewQueue(faqs db.FaqStore, users UserDirectory, recorder *audit.Recorder, sp settings.Provider, logger zerolog.Logger) *Queue {
	if users == nil {
		users = StaticDirectory{}
	}
	if sp == nil {
		sp = settings.Static{}
	}
	return &Queue{
		faqs:     faqs,
		users:    users,
		audit:    recorder,
		settings: sp,
		logger:   logger.With().Str("component", "review").Logger(),
		now:      time.Now,
	}
}

// Review applies one decision and returns the updated entry.
func (q *Queue) Review(ctx context.Context, d models.ReviewDecision) (*models.FaqEntry, error) {
	if err := validate(&d); err != nil {
		return nil, err
	}

	entry, err := db.UpdateFaq(ctx, q.faqs, d.FaqID, func(e *models.FaqEntry) error {
		return q.apply(e, &d)
	})
	q.record(ctx, &d, err)
	if err != nil {
		return nil, err
	}

	q.logger.Info().
		Str("faq_id", entry.ID).
		Str("action", string(d.Action)).
		Str("reviewer", d.ReviewerID).
		Str("status", string(entry.Status)).
		Msg("Review decision applied")
	return entry, nil
}

func validate(d *models.ReviewDecision) error {
	if !validAction(d.Action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, d.Action)
	}
	if strings.TrimSpace(d.FaqID) == "" {
		return fmt.Errorf("%w: faq id is required", ErrValidation)
	}
	if strings.TrimSpace(d.ReviewerID) == "" {
		return fmt.Errorf("%w: reviewer id is required", ErrValidation)
	}
	if d.Action == models.ActionEdit {
		if !d.HasEdits() {
			return fmt.Errorf("%w: edit requires at least one changed field", ErrValidation)
		}
		if d.Question != nil && strings.TrimSpace(*d.Question) == "" {
			return fmt.Errorf("%w: question cannot be empty", ErrValidation)
		}
		if d.Answer != nil && strings.TrimSpace(*d.Answer) == "" {
			return fmt.Errorf("%w: answer cannot be empty", ErrValidation)
		}
	}
	return nil
}

// apply mutates e according to the decision. It runs inside the read-modify-write loop and must
// not have side effects beyond e.
func (q *Queue) apply(e *models.FaqEntry, d *models.ReviewDecision) error {
	to, err := NextStatus(e.Status, d.Action)
	if err != nil {
		return err
	}
	now := q.now()
	from := e.Status

	if d.Action == models.ActionEdit {
		if d.Question != nil {
			e.Question = strings.TrimSpace(*d.Question)
		}
		if d.Answer != nil {
			e.Answer = strings.TrimSpace(*d.Answer)
		}
		if d.Category != nil {
			e.Category = strings.TrimSpace(*d.Category)
		}
		if d.Keywords != nil {
			e.Keywords = append(models.JSONStringArray(nil), d.Keywords...)
		}
		e.Metadata.ReviewFlag = nil
	}

	e.Status = to
	e.ReviewedBy = d.ReviewerID
	e.ReviewedAt = &now
	if to == models.StatusPublished && e.PublishedAt == nil {
		e.PublishedAt = &now
	}
	e.Metadata.AppendReview(models.ReviewEvent{
		Action:     d.Action,
		ReviewerID: d.ReviewerID,
		Reason:     d.Reason,
		FromStatus: from,
		ToStatus:   to,
		ReviewedAt: now,
	})
	return nil
}

func (q *Queue) record(ctx context.Context, d *models.ReviewDecision, err error) {
	entry := models.AuditLog{
		Action:       "faq." + string(d.Action),
		UserID:       d.ReviewerID,
		ResourceType: models.ResourceFaq,
		ResourceID:   d.FaqID,
		Success:      err == nil,
		Details:      d.Reason,
	}
	if err != nil {
		entry.Details = err.Error()
	}
	q.audit.Record(ctx, entry)
}

// Bulk applies the same action to every id in order. Each id succeeds or fails on its own.
func (q *Queue) Bulk(ctx context.Context, ids []string, action models.ReviewAction, reviewerID, reason string) (*models.BulkResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids", ErrValidation)
	}
	if len(ids) > MaxBulkSize {
		return nil, fmt.Errorf("%w: at most %d ids per bulk review, got %d", ErrValidation, MaxBulkSize, len(ids))
	}
	if !validAction(action) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if action == models.ActionEdit {
		return nil, fmt.Errorf("%w: edit is not available in bulk", ErrValidation)
	}

	result := &models.BulkResult{Successful: []string{}, Failed: []models.BulkFailure{}}
	for _, id := range ids {
		_, err := q.Review(ctx, models.ReviewDecision{FaqID: id, Action: action, ReviewerID: reviewerID, Reason: reason})
		if err != nil {
			msg := err.Error()
			if errors.Is(err, db.ErrNotFound) {
				msg = "not found"
			}
			result.Failed = append(result.Failed, models.BulkFailure{FaqID: id, Error: msg})
			continue
		}
		result.Successful = append(result.Successful, id)
	}
	return result, nil
}

// AutoPublish publishes every approved entry whose confidence reaches the auto-publish threshold.
// It returns the number published, and 0 when auto-publishing is disabled.
func (q *Queue) AutoPublish(ctx context.Context) (int, error) {
	s := q.settings.Current()
	if !s.Advanced.EnableAutoPublishing {
		q.logger.Debug().Msg("Auto-publishing disabled")
		return 0, nil
	}
	threshold := s.Thresholds.AutoPublishThreshold

	approved, err := q.faqs.ListFaqsByStatus(ctx, models.StatusApproved)
	if err != nil {
		return 0, fmt.Errorf("list approved entries: %w", err)
	}

	published := 0
	for _, e := range approved {
		if e.Confidence < threshold {
			continue
		}
		d := models.ReviewDecision{FaqID: e.ID, Action: models.ActionPublish, ReviewerID: AutoPublishReviewer}
		// The listing may be stale; eligibility is decided on the entry being saved.
		_, err := db.UpdateFaq(ctx, q.faqs, e.ID, func(cur *models.FaqEntry) error {
			if cur.Status != models.StatusApproved || cur.Confidence < threshold {
				return errNotEligible
			}
			d.Reason = fmt.Sprintf("confidence %d reached auto-publish threshold %d", cur.Confidence, threshold)
			return q.apply(cur, &d)
		})
		if errors.Is(err, errNotEligible) {
			q.logger.Debug().Str("faq_id", e.ID).Msg("Entry changed since listing, not auto-published")
			continue
		}
		q.record(ctx, &d, err)
		if err != nil {
			q.logger.Warn().Err(err).Str("faq_id", e.ID).Msg("Auto-publish failed")
			continue
		}
		published++
	}

	q.logger.Info().Int("published", published).Int("candidates", len(approved)).Msg("Auto-publish completed")
	return published, nil
}

// Query returns one page of entries with creator and reviewer summaries.
func (q *Queue) Query(ctx context.Context, query db.FaqQuery) (*Page, error) {
	query.Normalize()
	entries, total, err := q.faqs.ListFaqs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	var ids []string
	seen := make(map[string]bool)
	for _, e := range entries {
		for _, id := range []string{e.CreatedBy, e.ReviewedBy} {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	users, err := q.users.Lookup(ctx, ids)
	if err != nil {
		q.logger.Warn().Err(err).Msg("User lookup failed, listing without summaries")
		users = nil
	}

	page := &Page{Items: make([]models.ReviewRow, 0, len(entries)), Total: total, Page: query.Page, Limit: query.Limit}
	for _, e := range entries {
		row := models.ReviewRow{FaqEntry: e}
		if u, ok := users[e.CreatedBy]; ok {
			row.Creator = &u
		}
		if u, ok := users[e.ReviewedBy]; ok && e.ReviewedBy != "" {
			row.Reviewer = &u
		}
		page.Items = append(page.Items, row)
	}
	return page, nil
}

// Stats summarizes the queue.
func (q *Queue) Stats(ctx context.Context) (*models.ReviewStats, error) {
	agg, err := q.faqs.FaqAggregates(ctx, TopCategories)
	if err != nil {
		return nil, fmt.Errorf("aggregate entries: %w", err)
	}
	stats := &models.ReviewStats{
		ByStatus:          make(map[models.FaqStatus]int, len(models.AllStatuses)),
		AverageConfidence: agg.AverageConfidence,
		TopCategories:     agg.TopCategories,
		ByReviewer:        agg.ByReviewer,
		GeneratedAt:       q.now(),
	}
	for _, s := range models.AllStatuses {
		stats.ByStatus[s] = agg.ByStatus[s]
		stats.Total += agg.ByStatus[s]
	}
	if stats.TopCategories == nil {
		stats.TopCategories = []models.CategoryCount{}
	}
	if stats.ByReviewer == nil {
		stats.ByReviewer = map[string]int{}
	}
	return stats, nil
}

// History returns the review history of an entry, oldest first.
func (q *Queue) History(ctx context.Context, id string) ([]models.ReviewEvent, error) {
	e, err := q.faqs.GetFaq(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]models.ReviewEvent{}, e.Metadata.ReviewHistory...), nil
}
