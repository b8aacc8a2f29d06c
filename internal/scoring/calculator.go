// Package scoring provides confidence score calculation for FAQ candidates.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/pkg/models"
)

// Defaults for absent optional inputs.
const (
	DefaultProviderConfidence = 70.0
	defaultSatisfaction       = 70.0
	defaultChatResolution     = 70.0
	defaultSimilarityScore    = 60.0
	defaultFrequencyScore     = 40.0
)

var (
	interrogativePattern = regexp.MustCompile(`(?i)\b(how|what|why|when|where|who|which|can|could|do|does|is|are|should|will|would)\b`)
	actionablePattern    = regexp.MustCompile(`(?i)\b(go to|click|select|open|navigate|enter|reset|update|contact|choose|follow|install|log ?in|sign ?in|change|restart|check|visit|press|type|download|enable|disable)\b`)
	listLinePattern      = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s+`)
)

// Input is everything the calculator looks at for one candidate.
type Input struct {
	Data *models.NormalizedData
	// PatternFrequency is the frequency of the matched pattern, 0 when none matched.
	PatternFrequency int
	// ProviderConfidence is the generative provider's own 0-100 confidence, nil when unused.
	ProviderConfidence *float64
	// Similarity is the highest similarity to an existing entry in [0,1], nil when not checked.
	Similarity *float64
}

// Calculator computes confidence scores for FAQ candidates.
type Calculator struct {
	settings settings.Provider
}

// NewCalculator creates a new confidence calculator.
// If provider is nil, uses the default settings.
func NewCalculator(provider settings.Provider) *Calculator {
	if provider == nil {
		provider = settings.Static{}
	}
	return &Calculator{settings: provider}
}

// Calculate computes the overall confidence and recommendation for a candidate.
//
// The scoring formula:
//
//	Overall = round(Σ factor_i × weight_i), clamped to [0,100]
//
// over the eight factors of models.ScoreComponents.
func (c *Calculator) Calculate(in Input) models.ConfidenceResult {
	s := c.settings.Current()
	comps := c.CalculateComponents(in)
	w := s.Weights

	total := comps.SourceQuality*w.SourceQualityWeight +
		comps.PatternFrequency*w.PatternFrequencyWeight +
		comps.ResolutionSuccess*w.ResolutionSuccessWeight +
		comps.UserSatisfaction*w.UserSatisfactionWeight +
		comps.ContextClarity*w.ContextClarityWeight +
		comps.AnswerCompleteness*w.AnswerCompletenessWeight +
		comps.Similarity*w.SimilarityWeight +
		comps.ProviderConfidence*w.ProviderConfidenceWeight

	overall := models.ClampConfidence(int(math.Round(total)))
	return models.ConfidenceResult{
		Overall:        overall,
		Components:     comps,
		Recommendation: recommend(overall, s.Thresholds),
	}
}

// CalculateComponents returns the individual factor scores.
// Useful for explaining a score to reviewers.
func (c *Calculator) CalculateComponents(in Input) models.ScoreComponents {
	data := in.Data
	if data == nil {
		data = &models.NormalizedData{}
	}

	provider := DefaultProviderConfidence
	if in.ProviderConfidence != nil {
		provider = *in.ProviderConfidence
	}

	return models.ScoreComponents{
		SourceQuality:      models.ClampScore(sourceQuality(data)),
		PatternFrequency:   models.ClampScore(frequencyScore(in.PatternFrequency)),
		ResolutionSuccess:  models.ClampScore(resolutionSuccess(data)),
		UserSatisfaction:   models.ClampScore(satisfactionScore(data.Metadata.SatisfactionRating)),
		ContextClarity:     models.ClampScore(contextClarity(data.Question)),
		AnswerCompleteness: models.ClampScore(answerCompleteness(data.Answer)),
		Similarity:         models.ClampScore(similarityScore(in.Similarity)),
		ProviderConfidence: models.ClampScore(provider),
	}
}

// Recommend maps an overall confidence to a recommendation using the current thresholds.
func (c *Calculator) Recommend(overall int) models.Recommendation {
	return recommend(overall, c.settings.Current().Thresholds)
}

func recommend(overall int, t models.ConfidenceThresholds) models.Recommendation {
	switch {
	case overall >= t.AutoPublishThreshold:
		return models.RecommendAutoPublish
	case overall >= t.ReviewThreshold:
		return models.RecommendReview
	default:
		return models.RecommendReject
	}
}

// ApplyFeedback adjusts an existing confidence by an aggregated feedback signal of count n.
//
//	helpful      +min(5,  n × f)
//	not_helpful  −min(10, n × f × 2)
//	improved     +min(3,  n × f × 0.5)
//
// where f is the configured feedback adjustment factor.
func (c *Calculator) ApplyFeedback(current int, agg models.FeedbackAggregate, n int) int {
	if n <= 0 {
		return models.ClampConfidence(current)
	}
	f := c.settings.Current().Weights.FeedbackAdjustmentFactor
	count := float64(n)

	var delta float64
	switch agg {
	case models.AggregateHelpful:
		delta = math.Min(5, count*f)
	case models.AggregateNotHelpful:
		delta = -math.Min(10, count*f*2)
	case models.AggregateImproved:
		delta = math.Min(3, count*f*0.5)
	}
	return models.ClampConfidence(current + int(math.Round(delta)))
}

func sourceQuality(d *models.NormalizedData) float64 {
	var score float64
	switch d.Source {
	case models.SourceTicket:
		score = 70
		if h := d.Metadata.ResolutionTimeHours; h != nil {
			switch {
			case *h <= 4:
				score += 15
			case *h <= 24:
				score += 10
			case *h <= 72:
				score += 5
			}
		}
	default:
		score = 60
		if m := d.Metadata.SessionDurationMinutes; m != nil {
			switch {
			case *m > 30:
				score += 5
			case *m >= 2:
				score += 10
			}
		}
	}
	if strings.TrimSpace(d.Category) != "" {
		score += 5
	}
	if len(d.Metadata.Tags) > 0 || len(d.Keywords) > 0 {
		score += 5
	}
	return score
}

func frequencyScore(freq int) float64 {
	switch {
	case freq >= 10:
		return 95
	case freq >= 5:
		return 85
	case freq >= 3:
		return 70
	case freq >= 2:
		return 55
	default:
		return defaultFrequencyScore
	}
}

func resolutionSuccess(d *models.NormalizedData) float64 {
	var score float64
	if d.Source == models.SourceTicket {
		score = 50
		if d.Metadata.Resolved != nil && *d.Metadata.Resolved {
			score = 85
		}
	} else {
		score = defaultChatResolution
		if r := d.Metadata.HelpfulRatio; r != nil {
			score = 40 + 60*math.Max(0, math.Min(1, *r))
		}
	}
	if d.Metadata.SatisfactionRating != nil {
		score = (score + satisfactionScore(d.Metadata.SatisfactionRating)) / 2
	}
	return score
}

func satisfactionScore(rating *int) float64 {
	if rating == nil {
		return defaultSatisfaction
	}
	r := math.Max(1, math.Min(5, float64(*rating)))
	return (r - 1) / 4 * 100
}

func contextClarity(question string) float64 {
	q := strings.TrimSpace(question)
	score := 50.0

	n := utf8.RuneCountInString(q)
	switch {
	case n < 20:
		score -= 10
	case n <= 200:
		score += 20
	default:
		score += 5
	}
	if strings.Contains(q, "?") {
		score += 15
	}
	if interrogativePattern.MatchString(q) {
		score += 15
	}
	return score
}

func answerCompleteness(answer string) float64 {
	a := strings.TrimSpace(answer)
	score := 40.0

	n := utf8.RuneCountInString(a)
	switch {
	case n > 1000:
		score += 15
	case n >= 50:
		score += 30
	}
	if actionablePattern.MatchString(a) {
		score += 15
	}
	if IsStructured(a) {
		score += 15
	}
	return score
}

// IsActionable reports whether text contains instruction verbs.
func IsActionable(text string) bool {
	return actionablePattern.MatchString(text)
}

// IsStructured reports whether text uses lists, numbered steps, navigation paths or line breaks.
func IsStructured(text string) bool {
	return listLinePattern.MatchString(text) ||
		strings.Contains(text, " > ") ||
		strings.Contains(text, "→") ||
		strings.Contains(strings.TrimSpace(text), "\n")
}

func similarityScore(sim *float64) float64 {
	if sim == nil {
		return defaultSimilarityScore
	}
	switch {
	case *sim > 0.9:
		return 30
	case *sim > 0.7:
		return 80
	case *sim > 0.5:
		return 70
	default:
		return defaultSimilarityScore
	}
}
