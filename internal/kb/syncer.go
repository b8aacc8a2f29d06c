// Package kb pushes published FAQ entries into the knowledge base.
package kb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// Result summarizes one sync run.
type Result struct {
	Checked int      `json:"checked"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Pushed returns the number of articles written.
func (r *Result) Pushed() int {
	return r.Created + r.Updated
}

// Syncer copies published entries into a KBStore.
type Syncer struct {
	faqs   db.FaqReader
	store  db.KBStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewSyncer creates a knowledge-base syncer.
func NewSyncer(faqs db.FaqReader, store db.KBStore, logger zerolog.Logger) *Syncer {
	return &Syncer{
		faqs:   faqs,
		store:  store,
		logger: logger.With().Str("component", "kb-sync").Logger(),
		now:    time.Now,
	}
}

// NeedsPush reports whether an entry must be pushed over its existing article. The entry has
// to be newer than both the last push and the last edit made on the knowledge-base side.
func NeedsPush(e *models.FaqEntry, a *models.KBArticle) bool {
	if a == nil {
		return true
	}
	return e.UpdatedAt.After(a.UpdatedAt) && e.UpdatedAt.After(a.ConvertedAt)
}

// Sync pushes every published entry that is missing from or newer than the knowledge base.
// Per-entry failures are collected in the result and do not stop the run.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	entries, err := s.faqs.ListFaqsByStatus(ctx, models.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list published entries: %w", err)
	}

	res := &Result{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		existing, err := s.store.GetArticle(ctx, e.ID)
		switch {
		case errors.Is(err, db.ErrNotFound):
			existing = nil
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("%s: get article: %v", e.ID, err))
			continue
		}

		if !NeedsPush(e, existing) {
			res.Skipped++
			continue
		}

		if err := s.store.UpsertArticle(ctx, models.ArticleFromFaq(e, s.now())); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: upsert article: %v", e.ID, err))
			continue
		}
		if existing == nil {
			res.Created++
		} else {
			res.Updated++
		}
	}

	s.logger.Info().
		Int("checked", res.Checked).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("errors", len(res.Errors)).
		Msg("Knowledge base sync completed")
	return res, nil
}
