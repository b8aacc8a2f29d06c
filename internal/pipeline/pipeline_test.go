package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/db/memory"
	"github.com/thebtf/faqlearn/internal/dedup"
	"github.com/thebtf/faqlearn/internal/generator"
	"github.com/thebtf/faqlearn/internal/normalizer"
	"github.com/thebtf/faqlearn/internal/pattern"
	"github.com/thebtf/faqlearn/pkg/models"
)

func newTestPipeline(t *testing.T) (*Pipeline, *db.Repositories) {
	t.Helper()
	repos := memory.New()
	log := zerolog.Nop()
	detector := dedup.NewDetector(repos.Faqs, nil, nil, log)
	gen := generator.New(repos.Faqs, detector, nil, nil, nil, log)
	rec := pattern.NewRecognizer(repos.Patterns, pattern.DefaultConfig(), log)
	p := New(normalizer.New(), rec, gen, repos.Interactions, NewStoreSource(repos.Interactions), log)
	return p, repos
}

func helpful() *bool {
	v := true
	return &v
}

func resetChat(id string, ended time.Time) *models.ChatSession {
	rating := 5
	return &models.ChatSession{
		ID:       id,
		Category: "Account",
		Messages: []models.ChatMessage{
			{Role: models.RoleCustomer, Content: "How do I reset my password?"},
			{Role: models.RoleAgent, Content: "Go to Settings > Security and click Reset password.", Helpful: helpful()},
			{Role: models.RoleAgent, Content: "The reset email arrives within a minute.", Helpful: helpful()},
			{Role: models.RoleCustomer, Content: "Thanks"},
		},
		SatisfactionRating: &rating,
		StartedAt:          ended.Add(-10 * time.Minute),
		EndedAt:            ended,
	}
}

func TestProcessChat_CreatesEntryAndMarker(t *testing.T) {
	p, repos := newTestPipeline(t)
	ctx := context.Background()

	res, err := p.ProcessChat(ctx, resetChat("c-1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)
	assert.NotEmpty(t, res.FaqID)
	assert.NotZero(t, res.PatternID)

	entry, err := repos.Faqs.GetFaq(ctx, res.FaqID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingReview, entry.Status)
	assert.Equal(t, "c-1", entry.SourceID)

	done, err := repos.Interactions.IsProcessed(ctx, models.SourceChat, "c-1")
	require.NoError(t, err)
	assert.True(t, done)

	again, err := p.ProcessChat(ctx, resetChat("c-1", time.Now()))
	require.NoError(t, err)
	assert.True(t, again.Skipped, "an interaction is processed once")
}

func TestProcessChat_PatternFrequencyGrows(t *testing.T) {
	p, repos := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.ProcessChat(ctx, resetChat("c-1", time.Now()))
	require.NoError(t, err)
	second, err := p.ProcessChat(ctx, resetChat("c-2", time.Now()))
	require.NoError(t, err)

	assert.Equal(t, first.PatternID, second.PatternID)
	pat, err := repos.Patterns.GetPattern(ctx, first.PatternID)
	require.NoError(t, err)
	assert.Equal(t, 2, pat.Frequency)
}

func TestProcessChat_NotNormalizableIsMarkedRejected(t *testing.T) {
	p, repos := newTestPipeline(t)
	ctx := context.Background()

	res, err := p.ProcessChat(ctx, &models.ChatSession{ID: "c-9", Messages: []models.ChatMessage{
		{Role: models.RoleAgent, Content: "Hello, how can I help?"},
	}})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, res.Outcome)

	done, err := repos.Interactions.IsProcessed(ctx, models.SourceChat, "c-9")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestProcessChat_DuplicateIsDiscarded(t *testing.T) {
	p, repos := newTestPipeline(t)
	ctx := context.Background()
	require.NoError(t, repos.Faqs.CreateFaq(ctx, &models.FaqEntry{
		ID: "live", Question: "How do I reset my password?", Answer: "x", Status: models.StatusPublished,
	}))

	res, err := p.ProcessChat(ctx, resetChat("c-1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDiscarded, res.Outcome)
	assert.Empty(t, res.FaqID)
}

func TestProcessTicket(t *testing.T) {
	p, _ := newTestPipeline(t)
	created := time.Now().Add(-5 * time.Hour)
	resolved := created.Add(2 * time.Hour)

	res, err := p.ProcessTicket(context.Background(), &models.Ticket{
		ID:          "t-1",
		Subject:     "Invoice download",
		Description: "Where can I download my invoice?",
		Category:    "Billing",
		Status:      models.TicketResolved,
		Resolution:  "Go to Settings > Billing > Invoices and click Download PDF on the invoice you need.",
		CreatedAt:   created,
		ResolvedAt:  &resolved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)
	assert.Equal(t, models.SourceTicket, res.Source)
}

func TestProcessWindow(t *testing.T) {
	p, repos := newTestPipeline(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repos.Interactions.SaveChat(ctx, resetChat("c-1", now.Add(-30*time.Minute))))
	require.NoError(t, repos.Interactions.SaveChat(ctx, resetChat("c-2", now.Add(-20*time.Minute))))
	require.NoError(t, repos.Interactions.SaveChat(ctx, resetChat("old", now.Add(-3*time.Hour))))
	require.NoError(t, repos.Interactions.SaveChat(ctx, &models.ChatSession{
		ID:       "bad",
		Messages: []models.ChatMessage{{Role: models.RoleAgent, Content: "hi"}},
		EndedAt:  now.Add(-10 * time.Minute),
	}))
	require.NoError(t, repos.Interactions.MarkProcessed(ctx, &models.ProcessedInteraction{
		Source: models.SourceChat, SourceID: "c-2", Outcome: models.OutcomeCreated, ProcessedAt: now,
	}))

	result, err := p.ProcessWindow(ctx, now.Add(-time.Hour), now, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)
}

func TestProcessWindow_NoSource(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.source = nil
	_, err := p.ProcessWindow(context.Background(), time.Now().Add(-time.Hour), time.Now(), 10)
	assert.Error(t, err)
}

// slowMarker holds the first MarkProcessed call until release is closed.
type slowMarker struct {
	db.InteractionStore
	marks   atomic.Int32
	release chan struct{}
}

func (s *slowMarker) MarkProcessed(ctx context.Context, m *models.ProcessedInteraction) error {
	if s.marks.Add(1) == 1 {
		<-s.release
	}
	return s.InteractionStore.MarkProcessed(ctx, m)
}

func TestProcess_SameInteractionIsSerialized(t *testing.T) {
	repos := memory.New()
	log := zerolog.Nop()
	detector := dedup.NewDetector(repos.Faqs, nil, nil, log)
	gen := generator.New(repos.Faqs, detector, nil, nil, nil, log)
	rec := pattern.NewRecognizer(repos.Patterns, pattern.DefaultConfig(), log)
	marker := &slowMarker{InteractionStore: repos.Interactions, release: make(chan struct{})}
	p := New(normalizer.New(), rec, gen, marker, NewStoreSource(repos.Interactions), log)

	ctx := context.Background()
	now := time.Now()
	chat := resetChat("c-1", now.Add(-5*time.Minute))
	require.NoError(t, repos.Interactions.SaveChat(ctx, chat))

	var (
		wg     sync.WaitGroup
		single *Result
		window *WindowResult
		errs   [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		single, errs[0] = p.ProcessChat(ctx, chat)
	}()
	require.Eventually(t, func() bool { return marker.marks.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	go func() {
		defer wg.Done()
		window, errs[1] = p.ProcessWindow(ctx, now.Add(-time.Hour), now, 10)
	}()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), marker.marks.Load(), "the window waits for the running interaction")

	close(marker.release)
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.Equal(t, models.OutcomeCreated, single.Outcome)
	assert.Equal(t, 1, window.Skipped)
	assert.Zero(t, window.Processed)
	assert.Equal(t, int32(1), marker.marks.Load())

	entries, err := repos.Faqs.ListFaqsByStatus(ctx, models.AllStatuses...)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, single.FaqID, entries[0].ID)
}

func TestKeyLocks(t *testing.T) {
	var k keyLocks
	ctx := context.Background()

	unlock, err := k.lock(ctx, "chat-1")
	require.NoError(t, err)

	other, err := k.lock(ctx, "chat-2")
	require.NoError(t, err, "keys do not block each other")
	other()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = k.lock(short, "chat-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := k.lock(ctx, "chat-1")
	require.NoError(t, err)
	again()
	assert.Empty(t, k.held)
}
