// Package scoring provides confidence score calculation for FAQ candidates.
package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/pkg/models"
)

// CalculatorSuite is a test suite for the Calculator.
type CalculatorSuite struct {
	suite.Suite
	calc     *Calculator
	settings *models.LearningSettings
}

func (s *CalculatorSuite) SetupTest() {
	s.settings = models.DefaultLearningSettings()
	s.calc = NewCalculator(settings.Static{Settings: s.settings})
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }
func ptrB(v bool) *bool       { return &v }

func passwordReset() *models.NormalizedData {
	return &models.NormalizedData{
		Question: "How do I reset my password?",
		Answer:   "Go to settings > security > reset.",
		Category: "Account",
		Keywords: []string{"password", "reset"},
		Source:   models.SourceChat,
		SourceID: "chat-1",
	}
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *CalculatorSuite) TestCalculate_GoodScenarios_PasswordReset() {
	result := s.calc.Calculate(Input{
		Data:               passwordReset(),
		PatternFrequency:   6,
		ProviderConfidence: ptrF(80),
		Similarity:         ptrF(0.2),
	})

	// 0.15×70 + 0.20×85 + 0.15×70 + 0.15×70 + 0.10×100 + 0.15×70 + 0.05×60 + 0.05×80 = 76
	s.Equal(models.ScoreComponents{
		SourceQuality:      70,
		PatternFrequency:   85,
		ResolutionSuccess:  70,
		UserSatisfaction:   70,
		ContextClarity:     100,
		AnswerCompleteness: 70,
		Similarity:         60,
		ProviderConfidence: 80,
	}, result.Components)
	s.Equal(76, result.Overall)
	s.Equal(models.RecommendReview, result.Recommendation)
}

func (s *CalculatorSuite) TestCalculate_GoodScenarios_LowerThresholdAutoPublishes() {
	s.settings.Thresholds.AutoPublishThreshold = 75

	result := s.calc.Calculate(Input{
		Data:               passwordReset(),
		PatternFrequency:   6,
		ProviderConfidence: ptrF(80),
		Similarity:         ptrF(0.2),
	})

	s.Equal(76, result.Overall)
	s.Equal(models.RecommendAutoPublish, result.Recommendation)
}

func (s *CalculatorSuite) TestCalculateComponents_GoodScenarios_FastTicket() {
	data := &models.NormalizedData{
		Question: "Why was my card charged twice?",
		Answer:   "Duplicate charges are authorization holds. They drop off within 3 business days.",
		Category: "Billing",
		Source:   models.SourceTicket,
		Metadata: models.InteractionMetadata{
			ResolutionTimeHours: ptrF(2),
			Resolved:            ptrB(true),
			SatisfactionRating:  ptrI(5),
			Tags:                []string{"billing"},
		},
	}

	comps := s.calc.CalculateComponents(Input{Data: data})

	s.Equal(95.0, comps.SourceQuality, "ticket 70 + fast resolution 15 + category 5 + tags 5")
	s.Equal(92.5, comps.ResolutionSuccess, "resolved 85 averaged with satisfaction 100")
	s.Equal(100.0, comps.UserSatisfaction)
	s.Equal(DefaultProviderConfidence, comps.ProviderConfidence)
}

func (s *CalculatorSuite) TestCalculateComponents_GoodScenarios_ChatSignals() {
	data := &models.NormalizedData{
		Question: "Where can I download invoices?",
		Answer:   "Open Billing and click Invoices.",
		Source:   models.SourceChat,
		Metadata: models.InteractionMetadata{
			SessionDurationMinutes: ptrF(10),
			HelpfulRatio:           ptrF(0.5),
		},
	}

	comps := s.calc.CalculateComponents(Input{Data: data})

	s.Equal(70.0, comps.SourceQuality, "chat 60 + duration 10")
	s.Equal(70.0, comps.ResolutionSuccess, "40 + 60×0.5")
}

// =============================================================================
// WORSE SCENARIOS - Degraded but acceptable operations
// =============================================================================

func (s *CalculatorSuite) TestFrequencyBands() {
	cases := map[int]float64{0: 40, 1: 40, 2: 55, 3: 70, 4: 70, 5: 85, 9: 85, 10: 95, 500: 95}
	for freq, want := range cases {
		comps := s.calc.CalculateComponents(Input{Data: passwordReset(), PatternFrequency: freq})
		s.Equal(want, comps.PatternFrequency, "frequency %d", freq)
	}
}

func (s *CalculatorSuite) TestSimilarityBands() {
	cases := map[float64]float64{0.95: 30, 0.91: 30, 0.9: 80, 0.8: 80, 0.6: 70, 0.5: 60, 0.0: 60}
	for sim, want := range cases {
		comps := s.calc.CalculateComponents(Input{Data: passwordReset(), Similarity: ptrF(sim)})
		s.Equal(want, comps.Similarity, "similarity %.2f", sim)
	}
}

func (s *CalculatorSuite) TestCalculate_WorseScenarios_ShortVagueQuestion() {
	data := &models.NormalizedData{Question: "Broken", Answer: "ok", Source: models.SourceChat}

	comps := s.calc.CalculateComponents(Input{Data: data})

	s.Equal(40.0, comps.ContextClarity, "50 − 10 for a short question")
	s.Equal(40.0, comps.AnswerCompleteness)
	s.Equal(60.0, comps.SourceQuality)
}

func (s *CalculatorSuite) TestCalculate_WorseScenarios_LowRating() {
	data := passwordReset()
	data.Metadata.SatisfactionRating = ptrI(1)

	comps := s.calc.CalculateComponents(Input{Data: data})

	s.Equal(0.0, comps.UserSatisfaction)
	s.Equal(35.0, comps.ResolutionSuccess, "70 averaged with 0")
}

// =============================================================================
// BAD SCENARIOS - Edge cases and error conditions
// =============================================================================

func (s *CalculatorSuite) TestCalculate_BadScenarios_NilData() {
	s.NotPanics(func() {
		result := s.calc.Calculate(Input{})
		s.GreaterOrEqual(result.Overall, 0)
		s.LessOrEqual(result.Overall, 100)
	})
}

func (s *CalculatorSuite) TestCalculate_BadScenarios_ProviderOutOfRange() {
	high := s.calc.CalculateComponents(Input{Data: passwordReset(), ProviderConfidence: ptrF(250)})
	s.Equal(100.0, high.ProviderConfidence)

	low := s.calc.CalculateComponents(Input{Data: passwordReset(), ProviderConfidence: ptrF(-5)})
	s.Equal(0.0, low.ProviderConfidence)
}

func (s *CalculatorSuite) TestCalculate_BadScenarios_OverweightClamped() {
	s.settings.Weights = models.ConfidenceWeights{
		SourceQualityWeight: 1, PatternFrequencyWeight: 1, ResolutionSuccessWeight: 1,
		UserSatisfactionWeight: 1, ContextClarityWeight: 1, AnswerCompletenessWeight: 1,
		SimilarityWeight: 1, ProviderConfidenceWeight: 1,
	}

	result := s.calc.Calculate(Input{Data: passwordReset(), PatternFrequency: 10})
	s.Equal(100, result.Overall)
}

func (s *CalculatorSuite) TestCalculate_BadScenarios_RatingOutOfRange() {
	data := passwordReset()
	data.Metadata.SatisfactionRating = ptrI(9)

	comps := s.calc.CalculateComponents(Input{Data: data})
	s.Equal(100.0, comps.UserSatisfaction)
}

func TestCalculator_ApplyFeedback(t *testing.T) {
	calc := NewCalculator(nil)

	tests := []struct {
		name    string
		current int
		agg     models.FeedbackAggregate
		n       int
		want    int
	}{
		{"helpful small", 70, models.AggregateHelpful, 3, 73},
		{"helpful capped", 70, models.AggregateHelpful, 10, 75},
		{"not helpful", 70, models.AggregateNotHelpful, 2, 66},
		{"not helpful capped", 70, models.AggregateNotHelpful, 10, 60},
		{"improved", 70, models.AggregateImproved, 4, 72},
		{"improved capped", 70, models.AggregateImproved, 100, 73},
		{"clamp high", 98, models.AggregateHelpful, 5, 100},
		{"clamp low", 3, models.AggregateNotHelpful, 10, 0},
		{"zero count", 70, models.AggregateHelpful, 0, 70},
		{"unknown aggregate", 70, models.FeedbackAggregate("meh"), 4, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.ApplyFeedback(tt.current, tt.agg, tt.n))
		})
	}
}

func TestCalculator_ApplyFeedbackUsesFactor(t *testing.T) {
	s := models.DefaultLearningSettings()
	s.Weights.FeedbackAdjustmentFactor = 0.5
	calc := NewCalculator(settings.Static{Settings: s})

	assert.Equal(t, 72, calc.ApplyFeedback(70, models.AggregateHelpful, 4))
}

func TestCalculator_Recommend(t *testing.T) {
	calc := NewCalculator(nil)

	assert.Equal(t, models.RecommendAutoPublish, calc.Recommend(85))
	assert.Equal(t, models.RecommendReview, calc.Recommend(84))
	assert.Equal(t, models.RecommendReview, calc.Recommend(60))
	assert.Equal(t, models.RecommendReject, calc.Recommend(59))
}

func TestIsStructured(t *testing.T) {
	assert.True(t, IsStructured("1. Open settings\n2. Click reset"))
	assert.True(t, IsStructured("- first\n- second"))
	assert.True(t, IsStructured("Settings > Security"))
	assert.False(t, IsStructured("Just restart the app."))
}

func TestPerformanceCalculator(t *testing.T) {
	perf := NewPerformanceCalculator(nil)

	empty := perf.Calculate(PerformanceParams{Confidence: 70})
	assert.InDelta(t, 46.5, empty.Score, 0.001)

	busy := perf.Calculate(PerformanceParams{
		HelpfulCount:    8,
		NotHelpfulCount: 2,
		Ratings:         []int{5, 4},
		Confidence:      90,
		UsageCount:      99,
		FeedbackCount:   10,
	})
	require.InDelta(t, 80.0, busy.Helpfulness, 0.001)
	assert.InDelta(t, 87.5, busy.AverageRating, 0.001)
	assert.InDelta(t, 50.0, busy.Usage, 0.001)
	assert.InDelta(t, 20.0, busy.Volume, 0.001)
	assert.InDelta(t, 77.88, busy.Score, 0.01)
}
