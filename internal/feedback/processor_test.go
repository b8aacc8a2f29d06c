package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/faqlearn/internal/db/memory"
	"github.com/thebtf/faqlearn/internal/scoring"
	"github.com/thebtf/faqlearn/pkg/models"
)

func rating(v int) *int { return &v }

func newTestProcessor(t *testing.T, entries ...*models.FaqEntry) (*Processor, *memory.FaqRepo) {
	t.Helper()
	repo := memory.NewFaqRepo()
	for _, e := range entries {
		require.NoError(t, repo.CreateFaq(context.Background(), e))
	}
	p := NewProcessor(repo, scoring.NewCalculator(nil), zerolog.Nop())
	p.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	return p, repo
}

func entry(id string, status models.FaqStatus, confidence int) *models.FaqEntry {
	return &models.FaqEntry{ID: id, Question: "q " + id, Answer: "a " + id, Status: status, Confidence: confidence}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name string
		rec  models.FeedbackRecord
		want Assessment
	}{
		{"helpful", models.FeedbackRecord{FeedbackType: models.FeedbackHelpful}, Assessment{Sentiment: models.SentimentPositive, Delta: 2}},
		{"helpful rated 5", models.FeedbackRecord{FeedbackType: models.FeedbackHelpful, Rating: rating(5)}, Assessment{Sentiment: models.SentimentPositive, Delta: 3}},
		{"not helpful", models.FeedbackRecord{FeedbackType: models.FeedbackNotHelpful}, Assessment{Sentiment: models.SentimentNegative, Delta: -3, Flag: true, Priority: models.PriorityMedium}},
		{"not helpful rated 1", models.FeedbackRecord{FeedbackType: models.FeedbackNotHelpful, Rating: rating(1)}, Assessment{Sentiment: models.SentimentNegative, Delta: -5, Flag: true, Priority: models.PriorityHigh}},
		{"suggestion without answer", models.FeedbackRecord{FeedbackType: models.FeedbackSuggestion, Comment: "nice"}, Assessment{Sentiment: models.SentimentNeutral}},
		{"suggestion with answer", models.FeedbackRecord{FeedbackType: models.FeedbackSuggestion, SuggestedAnswer: "x"}, Assessment{Sentiment: models.SentimentNeutral, Flag: true, Priority: models.PriorityLow}},
		{"correction", models.FeedbackRecord{FeedbackType: models.FeedbackCorrection}, Assessment{Sentiment: models.SentimentNegative, Delta: -5, Flag: true, Priority: models.PriorityHigh}},
		{"neutral rating", models.FeedbackRecord{FeedbackType: models.FeedbackHelpful, Rating: rating(3)}, Assessment{Sentiment: models.SentimentPositive, Delta: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assess(&tt.rec))
		})
	}
}

func TestProcess_NotHelpfulLowRating(t *testing.T) {
	p, repo := newTestProcessor(t, entry("f1", models.StatusPublished, 70))

	result := p.Process(context.Background(), models.FeedbackRecord{
		FaqID:        "f1",
		UserID:       "u1",
		FeedbackType: models.FeedbackNotHelpful,
		Rating:       rating(1),
	})
	require.True(t, result.Processed, result.Error)
	assert.Equal(t, 65, result.NewConfidence)
	assert.Equal(t, -5, result.ConfidenceChange)
	assert.Equal(t, models.SentimentNegative, result.Sentiment)
	assert.True(t, result.FlaggedForReview)
	assert.Equal(t, models.PriorityHigh, result.Priority)

	stored, err := repo.GetFaq(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)
	assert.Equal(t, 1, stored.NotHelpfulCount)
	assert.Equal(t, 0, stored.HelpfulCount)
	require.Len(t, stored.Metadata.FeedbackHistory, 1)
	assert.Equal(t, -5, stored.Metadata.FeedbackHistory[0].ConfidenceDelta)
	require.NotNil(t, stored.Metadata.ReviewFlag)
	assert.Equal(t, models.PriorityHigh, stored.Metadata.ReviewFlag.Priority)
	assert.Equal(t, "low rating (1)", stored.Metadata.ReviewFlag.Reason)
}

func TestProcess_ClampsConfidence(t *testing.T) {
	p, _ := newTestProcessor(t, entry("top", models.StatusPublished, 99), entry("bottom", models.StatusPublished, 2))

	up := p.Process(context.Background(), models.FeedbackRecord{FaqID: "top", FeedbackType: models.FeedbackHelpful, Rating: rating(5)})
	assert.Equal(t, 100, up.NewConfidence)
	assert.Equal(t, 1, up.ConfidenceChange)

	down := p.Process(context.Background(), models.FeedbackRecord{FaqID: "bottom", FeedbackType: models.FeedbackCorrection, Rating: rating(1)})
	assert.Equal(t, 0, down.NewConfidence)
	assert.Equal(t, -2, down.ConfidenceChange)
}

func TestProcess_SuggestionIsStoredNotApplied(t *testing.T) {
	p, repo := newTestProcessor(t, entry("f1", models.StatusPublished, 70))

	result := p.Process(context.Background(), models.FeedbackRecord{
		FaqID:             "f1",
		FeedbackType:      models.FeedbackSuggestion,
		SuggestedAnswer:   "Use the new portal.",
		SuggestedKeywords: []string{"portal"},
	})
	require.True(t, result.Processed)
	assert.Equal(t, models.PriorityLow, result.Priority)

	stored, err := repo.GetFaq(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "a f1", stored.Answer)
	require.Len(t, stored.Metadata.SuggestionLog, 1)
	assert.Equal(t, "Use the new portal.", stored.Metadata.SuggestionLog[0].SuggestedAnswer)
}

func TestProcess_FlagKeepsHigherPriority(t *testing.T) {
	p, _ := newTestProcessor(t, entry("f1", models.StatusPublished, 70))
	ctx := context.Background()

	p.Process(ctx, models.FeedbackRecord{FaqID: "f1", FeedbackType: models.FeedbackCorrection})
	result := p.Process(ctx, models.FeedbackRecord{FaqID: "f1", FeedbackType: models.FeedbackNotHelpful})
	assert.Equal(t, models.PriorityHigh, result.Priority)
}

func TestProcess_NeverFails(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	for _, rec := range []models.FeedbackRecord{
		{FaqID: "missing", FeedbackType: models.FeedbackHelpful},
		{FaqID: "", FeedbackType: models.FeedbackHelpful},
		{FaqID: "f1", FeedbackType: "love"},
		{FaqID: "f1", FeedbackType: models.FeedbackHelpful, Rating: rating(9)},
	} {
		result := p.Process(ctx, rec)
		require.NotNil(t, result)
		assert.False(t, result.Processed)
		assert.NotEmpty(t, result.Error)
	}
}

func TestApplyAggregate(t *testing.T) {
	p, _ := newTestProcessor(t, entry("f1", models.StatusPublished, 70))
	ctx := context.Background()

	e, err := p.ApplyAggregate(ctx, "f1", models.AggregateNotHelpful, 3)
	require.NoError(t, err)
	assert.Equal(t, 64, e.Confidence)

	e, err = p.ApplyAggregate(ctx, "f1", models.AggregateHelpful, 10)
	require.NoError(t, err)
	assert.Equal(t, 69, e.Confidence)

	_, err = p.ApplyAggregate(ctx, "f1", "meh", 1)
	assert.Error(t, err)
}

func events(sentiments ...models.Sentiment) []models.FeedbackEvent {
	out := make([]models.FeedbackEvent, len(sentiments))
	for i, s := range sentiments {
		out[i] = models.FeedbackEvent{Sentiment: s}
	}
	return out
}

func TestTrend(t *testing.T) {
	pos, neg, neu := models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral

	assert.Equal(t, models.TrendStable, Trend(nil))
	assert.Equal(t, models.TrendStable, Trend(events(pos, pos, pos, pos, pos)), "no older window")
	assert.Equal(t, models.TrendImproving, Trend(events(neg, neg, neg, neg, neg, pos, pos, pos, pos, pos)))
	assert.Equal(t, models.TrendDeclining, Trend(events(pos, pos, pos, pos, pos, pos, neg, neg, pos, pos, pos)))
	assert.Equal(t, models.TrendStable, Trend(events(pos, neu, pos, neu, pos, neu, pos, neu, pos, pos)))
}

func TestPerformanceAndRanking(t *testing.T) {
	good := entry("good", models.StatusPublished, 90)
	good.HelpfulCount, good.UsageCount = 9, 99
	poor := entry("poor", models.StatusApproved, 40)
	poor.NotHelpfulCount, poor.UsageCount = 4, 4
	pending := entry("pending", models.StatusPendingReview, 10)

	p, _ := newTestProcessor(t, good, poor, pending)
	ctx := context.Background()

	score, err := p.Performance(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, 100.0, score.Helpfulness)
	assert.Equal(t, 50.0, score.AverageRating)
	assert.Equal(t, models.TrendStable, score.Trend)

	ranked, err := p.RankForImprovement(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2, "pending entries are not ranked")
	assert.Equal(t, "poor", ranked[0].FaqID)
	assert.Equal(t, "good", ranked[1].FaqID)

	_, err = p.Performance(ctx, "missing")
	assert.Error(t, err)
}
