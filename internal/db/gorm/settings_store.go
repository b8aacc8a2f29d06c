package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/faqlearn/internal/db"
)

// SettingsStore is the key to JSON settings table.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(store *Store) *SettingsStore {
	return &SettingsStore{db: store.DB}
}

// GetSetting returns the raw JSON stored under key.
func (s *SettingsStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var row LearningSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return row.Value, nil
}

// PutSetting upserts the raw JSON for key.
func (s *SettingsStore) PutSetting(ctx context.Context, key string, value []byte) error {
	row := &LearningSetting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(row).Error
}
