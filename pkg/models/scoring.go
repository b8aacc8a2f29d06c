package models

// Recommendation is the action suggested for a scored FAQ candidate.
type Recommendation string

const (
	RecommendAutoPublish Recommendation = "auto_publish"
	RecommendReview      Recommendation = "needs_review"
	RecommendReject      Recommendation = "reject"
)

// ScoreComponents is the per-factor breakdown of a confidence score.
// Every factor is in [0,100].
type ScoreComponents struct {
	SourceQuality      float64 `json:"source_quality"`
	PatternFrequency   float64 `json:"pattern_frequency"`
	ResolutionSuccess  float64 `json:"resolution_success"`
	UserSatisfaction   float64 `json:"user_satisfaction"`
	ContextClarity     float64 `json:"context_clarity"`
	AnswerCompleteness float64 `json:"answer_completeness"`
	Similarity         float64 `json:"similarity"`
	ProviderConfidence float64 `json:"provider_confidence"`
}

// ConfidenceResult is the outcome of scoring one candidate.
type ConfidenceResult struct {
	Overall        int             `json:"overall"`
	Components     ScoreComponents `json:"components"`
	Recommendation Recommendation  `json:"recommendation"`
}

// FeedbackAggregate is the aggregated feedback signal applied to an existing score.
type FeedbackAggregate string

const (
	AggregateHelpful    FeedbackAggregate = "helpful"
	AggregateNotHelpful FeedbackAggregate = "not_helpful"
	AggregateImproved   FeedbackAggregate = "improved"
)

// ClampConfidence bounds a confidence value to [0,100].
func ClampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampScore bounds a sub-score to [0,100].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
