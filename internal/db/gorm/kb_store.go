package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// KBStore keeps knowledge-base articles in the service database.
type KBStore struct {
	db *gorm.DB
}

// NewKBStore creates a new knowledge-base store.
func NewKBStore(store *Store) *KBStore {
	return &KBStore{db: store.DB}
}

// GetArticle returns the article for an FAQ id.
func (s *KBStore) GetArticle(ctx context.Context, faqID string) (*models.KBArticle, error) {
	var row KBArticle
	err := s.db.WithContext(ctx).Where("faq_id = ?", faqID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return &models.KBArticle{
		FaqID:       row.FaqID,
		Title:       row.Title,
		Body:        row.Body,
		Category:    row.Category,
		Tags:        row.Tags,
		ConvertedAt: row.ConvertedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// UpsertArticle inserts or replaces an article.
func (s *KBStore) UpsertArticle(ctx context.Context, a *models.KBArticle) error {
	row := &KBArticle{
		FaqID:       a.FaqID,
		Title:       a.Title,
		Body:        a.Body,
		Category:    a.Category,
		Tags:        a.Tags,
		ConvertedAt: a.ConvertedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "faq_id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}
