package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// FaqStore provides FAQ entry operations using GORM.
type FaqStore struct {
	store *Store
	db    *gorm.DB
	now   func() time.Time
}

// NewFaqStore creates a new FAQ store.
func NewFaqStore(store *Store) *FaqStore {
	return &FaqStore{store: store, db: store.DB, now: time.Now}
}

// CreateFaq inserts a new entry with version 1.
func (s *FaqStore) CreateFaq(ctx context.Context, entry *models.FaqEntry) error {
	now := s.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.Version = 1

	if err := s.db.WithContext(ctx).Create(faqFromModel(entry)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return db.ErrConflict
		}
		return fmt.Errorf("create faq %s: %w", entry.ID, err)
	}
	return nil
}

// SaveFaq writes the full row guarded by the version column.
func (s *FaqStore) SaveFaq(ctx context.Context, entry *models.FaqEntry) error {
	now := s.now()
	row := faqFromModel(entry)

	result := s.db.WithContext(ctx).
		Model(&FaqEntry{}).
		Where("id = ? AND version = ?", entry.ID, entry.Version).
		Updates(map[string]interface{}{
			"question":          row.Question,
			"answer":            row.Answer,
			"category":          row.Category,
			"keywords":          row.Keywords,
			"confidence":        row.Confidence,
			"status":            row.Status,
			"usage_count":       row.UsageCount,
			"helpful_count":     row.HelpfulCount,
			"not_helpful_count": row.NotHelpfulCount,
			"reviewed_by":       row.ReviewedBy,
			"reviewed_at":       row.ReviewedAt,
			"published_at":      row.PublishedAt,
			"metadata":          row.Metadata,
			"updated_at":        now,
			"version":           entry.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("save faq %s: %w", entry.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&FaqEntry{}).Where("id = ?", entry.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("save faq %s: %w", entry.ID, err)
		}
		if count == 0 {
			return db.ErrNotFound
		}
		return db.ErrConflict
	}

	entry.Version++
	entry.UpdatedAt = now
	return nil
}

// GetFaq retrieves an entry by id.
func (s *FaqStore) GetFaq(ctx context.Context, id string) (*models.FaqEntry, error) {
	var row FaqEntry
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

// ListFaqs filters, sorts and pages entries.
func (s *FaqStore) ListFaqs(ctx context.Context, q db.FaqQuery) ([]*models.FaqEntry, int, error) {
	q.Normalize()

	var total int64
	if err := applyFaqFilters(s.db.WithContext(ctx).Model(&FaqEntry{}), &q).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count faqs: %w", err)
	}

	direction := "ASC"
	if q.SortDesc {
		direction = "DESC"
	}

	var rows []FaqEntry
	err := applyFaqFilters(s.db.WithContext(ctx).Model(&FaqEntry{}), &q).
		Order(fmt.Sprintf("%s %s, id ASC", q.SortBy, direction)).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list faqs: %w", err)
	}

	return toFaqModels(rows), int(total), nil
}

// ListFaqsByStatus returns every entry in the given statuses, oldest first.
func (s *FaqStore) ListFaqsByStatus(ctx context.Context, statuses ...models.FaqStatus) ([]*models.FaqEntry, error) {
	query := s.db.WithContext(ctx).Model(&FaqEntry{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var rows []FaqEntry
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list faqs by status: %w", err)
	}
	return toFaqModels(rows), nil
}

// ListCategories returns the distinct non-empty categories.
func (s *FaqStore) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).
		Model(&FaqEntry{}).
		Where("category <> ''").
		Distinct().
		Order("category").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FaqAggregates computes queue-wide counters.
func (s *FaqStore) FaqAggregates(ctx context.Context, topCategories int) (*db.FaqAggregates, error) {
	agg := &db.FaqAggregates{
		ByStatus:   make(map[models.FaqStatus]int),
		ByReviewer: make(map[string]int),
	}
	ctx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "faq_aggregates")
	defer cancel()
	base := s.db.WithContext(ctx).Model(&FaqEntry{})

	var statusRows []struct {
		Status models.FaqStatus
		Count  int
	}
	if err := base.Session(&gorm.Session{}).Select("status, COUNT(*) AS count").Group("status").Scan(&statusRows).Error; err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, r := range statusRows {
		agg.ByStatus[r.Status] = r.Count
	}

	var avg struct{ Average float64 }
	if err := base.Session(&gorm.Session{}).Select("COALESCE(AVG(confidence), 0) AS average").Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("average confidence: %w", err)
	}
	agg.AverageConfidence = avg.Average

	var categoryRows []models.CategoryCount
	err := base.Session(&gorm.Session{}).
		Select("category, COUNT(*) AS count").
		Where("category <> ''").
		Group("category").
		Order("count DESC, category ASC").
		Limit(topCategories).
		Scan(&categoryRows).Error
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	agg.TopCategories = categoryRows

	var reviewerRows []struct {
		ReviewedBy string
		Count      int
	}
	err = base.Session(&gorm.Session{}).
		Select("reviewed_by, COUNT(*) AS count").
		Where("reviewed_by IS NOT NULL AND reviewed_by <> ''").
		Group("reviewed_by").
		Scan(&reviewerRows).Error
	if err != nil {
		return nil, fmt.Errorf("count by reviewer: %w", err)
	}
	for _, r := range reviewerRows {
		agg.ByReviewer[r.ReviewedBy] = r.Count
	}

	return agg, nil
}

func applyFaqFilters(query *gorm.DB, q *db.FaqQuery) *gorm.DB {
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	if q.MinConfidence != nil {
		query = query.Where("confidence >= ?", *q.MinConfidence)
	}
	if q.MaxConfidence != nil {
		query = query.Where("confidence <= ?", *q.MaxConfidence)
	}
	if q.Source != "" {
		query = query.Where("source = ?", q.Source)
	}
	if len(q.Categories) > 0 {
		query = query.Where("category IN ?", q.Categories)
	}
	if q.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *q.CreatedFrom)
	}
	if q.CreatedTo != nil {
		query = query.Where("created_at <= ?", *q.CreatedTo)
	}
	if q.ReviewedBy != "" {
		query = query.Where("reviewed_by = ?", q.ReviewedBy)
	}
	if q.CreatedBy != "" {
		query = query.Where("created_by = ?", q.CreatedBy)
	}
	return query
}

func toFaqModels(rows []FaqEntry) []*models.FaqEntry {
	out := make([]*models.FaqEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out
}
