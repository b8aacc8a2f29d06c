package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store, err := NewStoreFromDB(gdb)
	require.NoError(t, err)
	return store, mock
}

func TestFaqStore_SaveFaqIncrementsVersion(t *testing.T) {
	store, mock := newMockStore(t)
	faqs := NewFaqStore(store)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	faqs.now = func() time.Time { return fixed }

	mock.ExpectExec(`UPDATE "faq_entries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.FaqEntry{ID: "faq-1", Status: models.StatusApproved, Confidence: 90, Version: 3}
	require.NoError(t, faqs.SaveFaq(context.Background(), entry))

	assert.Equal(t, 4, entry.Version)
	assert.True(t, entry.UpdatedAt.Equal(fixed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFaqStore_SaveFaqStaleVersion(t *testing.T) {
	store, mock := newMockStore(t)
	faqs := NewFaqStore(store)

	mock.ExpectExec(`UPDATE "faq_entries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "faq_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entry := &models.FaqEntry{ID: "faq-1", Version: 1}
	err := faqs.SaveFaq(context.Background(), entry)

	assert.ErrorIs(t, err, db.ErrConflict)
	assert.Equal(t, 1, entry.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFaqStore_SaveFaqMissing(t *testing.T) {
	store, mock := newMockStore(t)
	faqs := NewFaqStore(store)

	mock.ExpectExec(`UPDATE "faq_entries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "faq_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := faqs.SaveFaq(context.Background(), &models.FaqEntry{ID: "nope", Version: 1})
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFaqStore_GetFaqNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	faqs := NewFaqStore(store)

	mock.ExpectQuery(`SELECT \* FROM "faq_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := faqs.GetFaq(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFaqStore_GetFaqDecodesRow(t *testing.T) {
	store, mock := newMockStore(t)
	faqs := NewFaqStore(store)
	published := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "question", "answer", "status", "confidence", "keywords", "metadata", "reviewed_by", "published_at", "version"}).
		AddRow("faq-1", "How do I reset my password?", "Settings > Security", "published", 88,
			[]byte(`["password","reset"]`), []byte(`{"version":1,"review_flag":{"priority":"high","reason":"low rating"}}`),
			"alice", published, 7)
	mock.ExpectQuery(`SELECT \* FROM "faq_entries"`).WillReturnRows(rows)

	entry, err := faqs.GetFaq(context.Background(), "faq-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPublished, entry.Status)
	assert.Equal(t, models.JSONStringArray{"password", "reset"}, entry.Keywords)
	assert.Equal(t, "alice", entry.ReviewedBy)
	require.NotNil(t, entry.PublishedAt)
	assert.True(t, entry.PublishedAt.Equal(published))
	assert.Nil(t, entry.ReviewedAt)
	require.NotNil(t, entry.Metadata.ReviewFlag)
	assert.Equal(t, models.PriorityHigh, entry.Metadata.ReviewFlag.Priority)
	assert.Equal(t, 7, entry.Version)
}

func TestSettingsStore_GetSettingNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	settings := NewSettingsStore(store)

	mock.ExpectQuery(`SELECT \* FROM "learning_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}))

	_, err := settings.GetSetting(context.Background(), models.SettingsConfidenceThresholds)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPatternStore_DeleteStalePatterns(t *testing.T) {
	store, mock := newMockStore(t)
	patterns := NewPatternStore(store)

	mock.ExpectExec(`DELETE FROM "learning_patterns" WHERE`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := patterns.DeleteStalePatterns(context.Background(), time.Now(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
