// Package memory provides in-memory repositories, used when no database is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// New returns a full set of in-memory repositories.
func New() *db.Repositories {
	return &db.Repositories{
		Faqs:         NewFaqRepo(),
		Patterns:     NewPatternRepo(),
		Interactions: NewInteractionRepo(),
		Audit:        NewAuditRepo(),
		Settings:     NewSettingsRepo(),
		KB:           NewKBRepo(),
	}
}

// FaqRepo stores FAQ entries in memory and is safe for concurrent use.
// Entries are copied on the way in and out.
type FaqRepo struct {
	mu   sync.RWMutex
	byID map[string]*models.FaqEntry
	now  func() time.Time
}

// NewFaqRepo constructs a FaqRepo.
func NewFaqRepo() *FaqRepo {
	return &FaqRepo{
		byID: make(map[string]*models.FaqEntry),
		now:  time.Now,
	}
}

// CreateFaq stores a new entry.
func (r *FaqRepo) CreateFaq(ctx context.Context, entry *models.FaqEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[entry.ID]; ok {
		return db.ErrConflict
	}
	now := r.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.Version = 1
	r.byID[entry.ID] = entry.Clone()
	return nil
}

// SaveFaq stores the full entry when its version matches.
func (r *FaqRepo) SaveFaq(ctx context.Context, entry *models.FaqEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[entry.ID]
	if !ok {
		return db.ErrNotFound
	}
	if current.Version != entry.Version {
		return db.ErrConflict
	}
	entry.Version++
	entry.UpdatedAt = r.now()
	r.byID[entry.ID] = entry.Clone()
	return nil
}

// GetFaq returns an entry by id.
func (r *FaqRepo) GetFaq(ctx context.Context, id string) (*models.FaqEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return entry.Clone(), nil
}

// ListFaqs filters, sorts and pages entries.
func (r *FaqRepo) ListFaqs(ctx context.Context, q db.FaqQuery) ([]*models.FaqEntry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	q.Normalize()

	r.mu.RLock()
	matched := make([]*models.FaqEntry, 0)
	for _, e := range r.byID {
		if matchesQuery(e, &q) {
			matched = append(matched, e.Clone())
		}
	}
	r.mu.RUnlock()

	sortEntries(matched, q.SortBy, q.SortDesc)

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return []*models.FaqEntry{}, total, nil
	}
	end := min(start+q.Limit, total)
	return matched[start:end], total, nil
}

// ListFaqsByStatus returns all entries in any of the statuses, oldest first.
func (r *FaqRepo) ListFaqsByStatus(ctx context.Context, statuses ...models.FaqStatus) ([]*models.FaqEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := db.FaqQuery{Statuses: statuses}
	r.mu.RLock()
	out := make([]*models.FaqEntry, 0)
	for _, e := range r.byID {
		if matchesQuery(e, &q) {
			out = append(out, e.Clone())
		}
	}
	r.mu.RUnlock()
	sortEntries(out, db.SortCreatedAt, false)
	return out, nil
}

// ListCategories returns the distinct non-empty categories.
func (r *FaqRepo) ListCategories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, e := range r.byID {
		if e.Category != "" {
			seen[e.Category] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// FaqAggregates computes queue-wide counters.
func (r *FaqRepo) FaqAggregates(ctx context.Context, topCategories int) (*db.FaqAggregates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg := &db.FaqAggregates{
		ByStatus:   make(map[models.FaqStatus]int),
		ByReviewer: make(map[string]int),
	}
	categories := make(map[string]int)
	var confidenceSum int
	for _, e := range r.byID {
		agg.ByStatus[e.Status]++
		confidenceSum += e.Confidence
		if e.Category != "" {
			categories[e.Category]++
		}
		if e.ReviewedBy != "" {
			agg.ByReviewer[e.ReviewedBy]++
		}
	}
	if len(r.byID) > 0 {
		agg.AverageConfidence = float64(confidenceSum) / float64(len(r.byID))
	}

	for c, n := range categories {
		agg.TopCategories = append(agg.TopCategories, models.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(agg.TopCategories, func(i, j int) bool {
		a, b := agg.TopCategories[i], agg.TopCategories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	if len(agg.TopCategories) > topCategories {
		agg.TopCategories = agg.TopCategories[:topCategories]
	}
	return agg, nil
}

func matchesQuery(e *models.FaqEntry, q *db.FaqQuery) bool {
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, e.Status) {
		return false
	}
	if q.MinConfidence != nil && e.Confidence < *q.MinConfidence {
		return false
	}
	if q.MaxConfidence != nil && e.Confidence > *q.MaxConfidence {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if len(q.Categories) > 0 && !containsString(q.Categories, e.Category) {
		return false
	}
	if q.CreatedFrom != nil && e.CreatedAt.Before(*q.CreatedFrom) {
		return false
	}
	if q.CreatedTo != nil && e.CreatedAt.After(*q.CreatedTo) {
		return false
	}
	if q.ReviewedBy != "" && e.ReviewedBy != q.ReviewedBy {
		return false
	}
	if q.CreatedBy != "" && e.CreatedBy != q.CreatedBy {
		return false
	}
	return true
}

func sortEntries(entries []*models.FaqEntry, by string, desc bool) {
	key := func(e *models.FaqEntry) int64 {
		switch by {
		case db.SortConfidence:
			return int64(e.Confidence)
		case db.SortUsageCount:
			return int64(e.UsageCount)
		case db.SortHelpfulCount:
			return int64(e.HelpfulCount)
		}
		return e.CreatedAt.UnixNano()
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := key(entries[i]), key(entries[j])
		if a == b {
			return entries[i].ID < entries[j].ID
		}
		if desc {
			return a > b
		}
		return a < b
	})
}

func containsStatus(list []models.FaqStatus, s models.FaqStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
