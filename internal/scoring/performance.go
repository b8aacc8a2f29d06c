package scoring

import (
	"math"
)

// PerformanceConfig contains the weights of the performance score formula.
type PerformanceConfig struct {
	HelpfulnessWeight float64 `json:"helpfulness_weight"`
	RatingWeight      float64 `json:"rating_weight"`
	ConfidenceWeight  float64 `json:"confidence_weight"`
	UsageWeight       float64 `json:"usage_weight"`
	VolumeWeight      float64 `json:"volume_weight"`
}

// DefaultPerformanceConfig returns the default performance weights.
func DefaultPerformanceConfig() *PerformanceConfig {
	return &PerformanceConfig{
		HelpfulnessWeight: 0.40,
		RatingWeight:      0.25,
		ConfidenceWeight:  0.20,
		UsageWeight:       0.10,
		VolumeWeight:      0.05,
	}
}

// PerformanceCalculator rates how well a published entry serves users.
type PerformanceCalculator struct {
	config *PerformanceConfig
}

// NewPerformanceCalculator creates a new performance calculator.
func NewPerformanceCalculator(config *PerformanceConfig) *PerformanceCalculator {
	if config == nil {
		config = DefaultPerformanceConfig()
	}
	return &PerformanceCalculator{config: config}
}

// PerformanceParams contains input parameters for performance calculation.
type PerformanceParams struct {
	HelpfulCount    int
	NotHelpfulCount int
	// Ratings are the 1-5 ratings found in the feedback history.
	Ratings    []int
	Confidence int
	UsageCount int
	// FeedbackCount is the number of recorded feedback events.
	FeedbackCount int
}

// PerformanceComponents is the breakdown of a performance score. Every part is in [0,100].
type PerformanceComponents struct {
	Helpfulness   float64 `json:"helpfulness"`
	AverageRating float64 `json:"average_rating"`
	Confidence    float64 `json:"confidence"`
	Usage         float64 `json:"usage"`
	Volume        float64 `json:"volume"`
	Score         float64 `json:"score"`
}

// Calculate computes the performance score.
//
// Formula:
//
//	helpfulness = helpful / (helpful + notHelpful) × 100   (50 without votes)
//	rating      = (avg − 1) / 4 × 100                       (50 without ratings)
//	usage       = min(100, 25 × log10(usage + 1))
//	volume      = min(100, 2 × feedbackCount)
//	score       = .40 helpfulness + .25 rating + .20 confidence + .10 usage + .05 volume
func (p *PerformanceCalculator) Calculate(params PerformanceParams) PerformanceComponents {
	helpfulness := 50.0
	if votes := params.HelpfulCount + params.NotHelpfulCount; votes > 0 {
		helpfulness = float64(params.HelpfulCount) / float64(votes) * 100
	}

	rating := 50.0
	if len(params.Ratings) > 0 {
		var sum float64
		for _, r := range params.Ratings {
			sum += math.Max(1, math.Min(5, float64(r)))
		}
		rating = (sum/float64(len(params.Ratings)) - 1) / 4 * 100
	}

	confidence := math.Max(0, math.Min(100, float64(params.Confidence)))
	usage := math.Min(100, 25*math.Log10(float64(max(params.UsageCount, 0))+1))
	volume := math.Min(100, 2*float64(max(params.FeedbackCount, 0)))

	score := helpfulness*p.config.HelpfulnessWeight +
		rating*p.config.RatingWeight +
		confidence*p.config.ConfidenceWeight +
		usage*p.config.UsageWeight +
		volume*p.config.VolumeWeight

	return PerformanceComponents{
		Helpfulness:   helpfulness,
		AverageRating: rating,
		Confidence:    confidence,
		Usage:         usage,
		Volume:        volume,
		Score:         math.Round(score*100) / 100,
	}
}
