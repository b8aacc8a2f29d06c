package kb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/db/memory"
	"github.com/thebtf/faqlearn/pkg/models"
)

type publishedOnly struct {
	db.FaqReader
	entries []*models.FaqEntry
}

func (p publishedOnly) ListFaqsByStatus(_ context.Context, _ ...models.FaqStatus) ([]*models.FaqEntry, error) {
	return p.entries, nil
}

type brokenKB struct{ db.KBStore }

func (brokenKB) GetArticle(context.Context, string) (*models.KBArticle, error) {
	return nil, errors.New("kb offline")
}

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func published(id string, updated time.Time) *models.FaqEntry {
	return &models.FaqEntry{
		ID:        id,
		Question:  "Question " + id,
		Answer:    "Answer " + id,
		Category:  "Account",
		Keywords:  models.JSONStringArray{"reset"},
		Status:    models.StatusPublished,
		UpdatedAt: updated,
	}
}

func TestNeedsPush(t *testing.T) {
	e := published("f1", base.Add(2*time.Hour))

	assert.True(t, NeedsPush(e, nil))
	assert.True(t, NeedsPush(e, &models.KBArticle{ConvertedAt: base, UpdatedAt: base.Add(time.Hour)}))
	assert.False(t, NeedsPush(e, &models.KBArticle{ConvertedAt: base, UpdatedAt: base.Add(3 * time.Hour)}), "edited on the knowledge-base side")
	assert.False(t, NeedsPush(e, &models.KBArticle{ConvertedAt: base.Add(2 * time.Hour), UpdatedAt: base}), "already pushed")
}

func TestSyncer_Sync(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKBRepo()
	require.NoError(t, store.UpsertArticle(ctx, &models.KBArticle{FaqID: "stale", ConvertedAt: base, UpdatedAt: base}))
	require.NoError(t, store.UpsertArticle(ctx, &models.KBArticle{FaqID: "fresh", Title: "kept", ConvertedAt: base.Add(5 * time.Hour), UpdatedAt: base.Add(5 * time.Hour)}))

	faqs := publishedOnly{entries: []*models.FaqEntry{
		published("new", base.Add(time.Hour)),
		published("stale", base.Add(time.Hour)),
		published("fresh", base.Add(time.Hour)),
	}}
	s := NewSyncer(faqs, store, zerolog.Nop())
	s.now = func() time.Time { return base.Add(10 * time.Hour) }

	res, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Result{Checked: 3, Created: 1, Updated: 1, Skipped: 1}, res)
	assert.Equal(t, 2, res.Pushed())

	a, err := store.GetArticle(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, "Question stale", a.Title)
	assert.Equal(t, base.Add(10*time.Hour), a.ConvertedAt)

	a, err = store.GetArticle(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "kept", a.Title)

	res, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Pushed(), "second run has nothing to push")
}

func TestSyncer_CollectsErrors(t *testing.T) {
	faqs := publishedOnly{entries: []*models.FaqEntry{published("a", base), published("b", base)}}
	s := NewSyncer(faqs, brokenKB{}, zerolog.Nop())

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, 0, res.Pushed())
}
