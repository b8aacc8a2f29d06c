package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// PatternStore provides learning-pattern operations using GORM.
type PatternStore struct {
	store *Store
	db    *gorm.DB
}

// NewPatternStore creates a new pattern store.
func NewPatternStore(store *Store) *PatternStore {
	return &PatternStore{store: store, db: store.DB}
}

// GetPattern retrieves a pattern by id.
func (s *PatternStore) GetPattern(ctx context.Context, id int64) (*models.LearningPattern, error) {
	var row LearningPattern
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

// ListPatterns returns patterns of a category (all when empty), most frequent first.
func (s *PatternStore) ListPatterns(ctx context.Context, category string, limit int) ([]*models.LearningPattern, error) {
	query := s.db.WithContext(ctx).Model(&LearningPattern{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []LearningPattern
	if err := query.Order("frequency DESC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*models.LearningPattern, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// CreatePattern stores a new pattern and sets its id.
func (s *PatternStore) CreatePattern(ctx context.Context, p *models.LearningPattern) error {
	row := patternFromModel(p)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	p.ID = row.ID
	return nil
}

// UpdatePattern updates an existing pattern.
func (s *PatternStore) UpdatePattern(ctx context.Context, p *models.LearningPattern) error {
	result := s.db.WithContext(ctx).
		Model(&LearningPattern{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"category":     p.Category,
			"signature":    p.Signature,
			"frequency":    p.Frequency,
			"confidence":   p.Confidence,
			"source_ids":   p.SourceIDs,
			"last_seen_at": p.LastSeenAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteStalePatterns removes rarely seen patterns not seen since the cutoff.
func (s *PatternStore) DeleteStalePatterns(ctx context.Context, before time.Time, maxFrequency int) (int64, error) {
	ctx, cancel := s.store.WithTimeout(ctx, SlowQueryTimeout, "delete_stale_patterns")
	defer cancel()

	result := s.db.WithContext(ctx).
		Where("last_seen_at < ? AND frequency <= ?", before, maxFrequency).
		Delete(&LearningPattern{})
	return result.RowsAffected, result.Error
}
