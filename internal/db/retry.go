package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/thebtf/faqlearn/pkg/models"
)

// MaxConflictRetries is how many times UpdateFaq re-reads and re-applies a mutation that lost
// a version race.
const MaxConflictRetries = 3

// UpdateFaq performs a read-modify-write of one entry. mutate receives a fresh copy each
// attempt; an error from mutate aborts without saving. ErrConflict is retried.
func UpdateFaq(ctx context.Context, store FaqStore, id string, mutate func(*models.FaqEntry) error) (*models.FaqEntry, error) {
	var lastErr error
	for attempt := 0; attempt < MaxConflictRetries; attempt++ {
		entry, err := store.GetFaq(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(entry); err != nil {
			return nil, err
		}
		err = store.SaveFaq(ctx, entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("update faq %s after %d attempts: %w", id, MaxConflictRetries, lastErr)
}
