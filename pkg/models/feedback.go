package models

import "time"

// FeedbackType is the kind of end-user feedback on an FAQ entry.
type FeedbackType string

const (
	FeedbackHelpful    FeedbackType = "helpful"
	FeedbackNotHelpful FeedbackType = "not_helpful"
	FeedbackSuggestion FeedbackType = "suggestion"
	FeedbackCorrection FeedbackType = "correction"
)

// Valid reports whether t is a known feedback type.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackHelpful, FeedbackNotHelpful, FeedbackSuggestion, FeedbackCorrection:
		return true
	}
	return false
}

// Sentiment classifies a feedback event.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// FeedbackRecord is a feedback submission from an end user.
type FeedbackRecord struct {
	FaqID             string       `json:"faq_id"`
	UserID            string       `json:"user_id,omitempty"`
	FeedbackType      FeedbackType `json:"feedback_type"`
	Rating            *int         `json:"rating,omitempty"` // 1-5
	Comment           string       `json:"comment,omitempty"`
	SuggestedAnswer   string       `json:"suggested_answer,omitempty"`
	SuggestedCategory string       `json:"suggested_category,omitempty"`
	SuggestedKeywords []string     `json:"suggested_keywords,omitempty"`
}

// FeedbackResult reports what processing a feedback record did.
type FeedbackResult struct {
	Processed        bool      `json:"processed"`
	ConfidenceChange int       `json:"confidence_change"`
	NewConfidence    int       `json:"new_confidence,omitempty"`
	Sentiment        Sentiment `json:"sentiment,omitempty"`
	FlaggedForReview bool      `json:"flagged_for_review"`
	Priority         Priority  `json:"priority,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Trend is the direction of recent feedback relative to older feedback.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// PerformanceScore summarizes how well an entry is serving users.
type PerformanceScore struct {
	FaqID         string    `json:"faq_id"`
	Score         float64   `json:"score"`
	Helpfulness   float64   `json:"helpfulness"`
	AverageRating float64   `json:"average_rating"`
	Confidence    float64   `json:"confidence"`
	Usage         float64   `json:"usage"`
	Volume        float64   `json:"volume"`
	Trend         Trend     `json:"trend"`
	ComputedAt    time.Time `json:"computed_at"`
}
