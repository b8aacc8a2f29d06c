// Package feedback turns end-user feedback into confidence changes, review flags and
// performance scores.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/scoring"
	"github.com/thebtf/faqlearn/pkg/models"
)

// TrendWindow is the number of events compared on each side of a trend.
const TrendWindow = 5

// trendBand is the minimum change in average sentiment that counts as a trend.
const trendBand = 0.1

var errInvalidFeedback = errors.New("invalid feedback")

// Assessment is the effect a single feedback record has on its entry.
type Assessment struct {
	Sentiment models.Sentiment
	Delta     int
	Flag      bool
	Priority  models.Priority
}

// Assess classifies a feedback record.
func Assess(rec *models.FeedbackRecord) Assessment {
	var a Assessment
	switch rec.FeedbackType {
	case models.FeedbackHelpful:
		a = Assessment{Sentiment: models.SentimentPositive, Delta: 2}
	case models.FeedbackNotHelpful:
		a = Assessment{Sentiment: models.SentimentNegative, Delta: -3, Flag: true, Priority: models.PriorityMedium}
	case models.FeedbackSuggestion:
		a = Assessment{Sentiment: models.SentimentNeutral}
		if strings.TrimSpace(rec.SuggestedAnswer) != "" {
			a.Flag, a.Priority = true, models.PriorityLow
		}
	case models.FeedbackCorrection:
		a = Assessment{Sentiment: models.SentimentNegative, Delta: -5, Flag: true, Priority: models.PriorityHigh}
	}

	if rec.Rating != nil {
		switch {
		case *rec.Rating <= 2:
			a.Delta -= 2
			a.Flag, a.Priority = true, models.PriorityHigh
		case *rec.Rating >= 4:
			a.Delta++
		}
	}
	return a
}

// Processor applies feedback to FAQ entries.
type Processor struct {
	faqs        db.FaqStore
	scorer      *scoring.Calculator
	performance *scoring.PerformanceCalculator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProcessor creates a feedback processor.
func NewProcessor(faqs db.FaqStore, scorer *scoring.Calculator, logger zerolog.Logger) *Processor {
	if scorer == nil {
		scorer = scoring.NewCalculator(nil)
	}
	return &Processor{
		faqs:        faqs,
		scorer:      scorer,
		performance: scoring.NewPerformanceCalculator(nil),
		logger:      logger.With().Str("component", "feedback").Logger(),
		now:         time.Now,
	}
}

// Process records one feedback submission. It never returns an error; failures are reported
// in the result with Processed=false.
func (p *Processor) Process(ctx context.Context, rec models.FeedbackRecord) *models.FeedbackResult {
	if err := validate(&rec); err != nil {
		return &models.FeedbackResult{Error: err.Error()}
	}

	a := Assess(&rec)
	var before int
	entry, err := db.UpdateFaq(ctx, p.faqs, rec.FaqID, func(e *models.FaqEntry) error {
		before = e.Confidence
		now := p.now()

		e.UsageCount++
		switch rec.FeedbackType {
		case models.FeedbackHelpful:
			e.HelpfulCount++
		case models.FeedbackNotHelpful:
			e.NotHelpfulCount++
		}
		e.AdjustConfidence(a.Delta)

		e.Metadata.AppendFeedback(models.FeedbackEvent{
			UserID:          rec.UserID,
			FeedbackType:    rec.FeedbackType,
			Rating:          rec.Rating,
			Comment:         rec.Comment,
			Sentiment:       a.Sentiment,
			ConfidenceDelta: e.Confidence - before,
			RecordedAt:      now,
		})
		if rec.FeedbackType == models.FeedbackSuggestion || rec.FeedbackType == models.FeedbackCorrection {
			e.Metadata.AppendSuggestion(models.Suggestion{
				UserID:            rec.UserID,
				FeedbackType:      rec.FeedbackType,
				SuggestedAnswer:   rec.SuggestedAnswer,
				SuggestedCategory: rec.SuggestedCategory,
				SuggestedKeywords: rec.SuggestedKeywords,
				Comment:           rec.Comment,
				RecordedAt:        now,
			})
		}
		if a.Flag {
			e.Metadata.Flag(a.Priority, flagReason(&rec), now)
		}
		return nil
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("faq_id", rec.FaqID).Str("type", string(rec.FeedbackType)).Msg("Feedback not processed")
		return &models.FeedbackResult{Error: err.Error()}
	}

	result := &models.FeedbackResult{
		Processed:        true,
		ConfidenceChange: entry.Confidence - before,
		NewConfidence:    entry.Confidence,
		Sentiment:        a.Sentiment,
		FlaggedForReview: a.Flag,
	}
	if a.Flag {
		result.Priority = entry.Metadata.ReviewFlag.Priority
	}

	p.logger.Debug().
		Str("faq_id", entry.ID).
		Str("type", string(rec.FeedbackType)).
		Int("confidence", entry.Confidence).
		Bool("flagged", a.Flag).
		Msg("Feedback processed")
	return result
}

func validate(rec *models.FeedbackRecord) error {
	if strings.TrimSpace(rec.FaqID) == "" {
		return fmt.Errorf("%w: faq id is required", errInvalidFeedback)
	}
	if !rec.FeedbackType.Valid() {
		return fmt.Errorf("%w: unknown feedback type %q", errInvalidFeedback, rec.FeedbackType)
	}
	if rec.Rating != nil && (*rec.Rating < 1 || *rec.Rating > 5) {
		return fmt.Errorf("%w: rating must be between 1 and 5", errInvalidFeedback)
	}
	return nil
}

func flagReason(rec *models.FeedbackRecord) string {
	switch {
	case rec.FeedbackType == models.FeedbackCorrection:
		return "user correction"
	case rec.Rating != nil && *rec.Rating <= 2:
		return fmt.Sprintf("low rating (%d)", *rec.Rating)
	case rec.FeedbackType == models.FeedbackSuggestion:
		return "suggested answer"
	default:
		return "marked not helpful"
	}
}

// ApplyAggregate adjusts an entry's confidence by an aggregated feedback signal of count n.
func (p *Processor) ApplyAggregate(ctx context.Context, faqID string, agg models.FeedbackAggregate, n int) (*models.FaqEntry, error) {
	switch agg {
	case models.AggregateHelpful, models.AggregateNotHelpful, models.AggregateImproved:
	default:
		return nil, fmt.Errorf("%w: unknown aggregate %q", errInvalidFeedback, agg)
	}
	return db.UpdateFaq(ctx, p.faqs, faqID, func(e *models.FaqEntry) error {
		e.SetConfidence(p.scorer.ApplyFeedback(e.Confidence, agg, n))
		return nil
	})
}

// Performance scores how well an entry is serving users.
func (p *Processor) Performance(ctx context.Context, faqID string) (*models.PerformanceScore, error) {
	e, err := p.faqs.GetFaq(ctx, faqID)
	if err != nil {
		return nil, err
	}
	return p.score(e), nil
}

func (p *Processor) score(e *models.FaqEntry) *models.PerformanceScore {
	history := e.Metadata.FeedbackHistory
	var ratings []int
	for _, ev := range history {
		if ev.Rating != nil {
			ratings = append(ratings, *ev.Rating)
		}
	}
	c := p.performance.Calculate(scoring.PerformanceParams{
		HelpfulCount:    e.HelpfulCount,
		NotHelpfulCount: e.NotHelpfulCount,
		Ratings:         ratings,
		Confidence:      e.Confidence,
		UsageCount:      e.UsageCount,
		FeedbackCount:   len(history),
	})
	return &models.PerformanceScore{
		FaqID:         e.ID,
		Score:         c.Score,
		Helpfulness:   c.Helpfulness,
		AverageRating: c.AverageRating,
		Confidence:    c.Confidence,
		Usage:         c.Usage,
		Volume:        c.Volume,
		Trend:         Trend(history),
		ComputedAt:    p.now(),
	}
}

// Trend compares the average sentiment of the TrendWindow most recent events with the
// TrendWindow events before them. Positive counts 1, neutral 0.5, negative 0.
func Trend(history []models.FeedbackEvent) models.Trend {
	n := len(history)
	if n <= TrendWindow {
		return models.TrendStable
	}
	recent := averageSentiment(history[n-TrendWindow:])
	older := averageSentiment(history[max(0, n-2*TrendWindow) : n-TrendWindow])
	switch diff := recent - older; {
	case diff > trendBand:
		return models.TrendImproving
	case diff < -trendBand:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func averageSentiment(events []models.FeedbackEvent) float64 {
	var sum float64
	for _, ev := range events {
		switch ev.Sentiment {
		case models.SentimentPositive:
			sum++
		case models.SentimentNeutral:
			sum += 0.5
		}
	}
	return sum / float64(len(events))
}

// RankForImprovement returns approved and published entries with the lowest performance first.
func (p *Processor) RankForImprovement(ctx context.Context, limit int) ([]*models.PerformanceScore, error) {
	entries, err := p.faqs.ListFaqsByStatus(ctx, models.StatusApproved, models.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list live entries: %w", err)
	}
	scores := make([]*models.PerformanceScore, 0, len(entries))
	for _, e := range entries {
		scores = append(scores, p.score(e))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score < scores[j].Score
	})
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}
