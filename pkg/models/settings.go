package models

// Configuration keys of the learning settings store.
const (
	SettingsConfidenceThresholds  = "confidence_thresholds"
	SettingsFaqGeneration         = "faq_generation"
	SettingsConfidenceCalculation = "confidence_calculation"
	SettingsAdvanced              = "advanced_settings"
	SettingsDataProcessing        = "data_processing"
)

// SettingsKeys lists every key the loader reads, in load order.
var SettingsKeys = []string{
	SettingsConfidenceThresholds,
	SettingsFaqGeneration,
	SettingsConfidenceCalculation,
	SettingsAdvanced,
	SettingsDataProcessing,
}

// ConfidenceThresholds decides the recommendation for a scored candidate.
type ConfidenceThresholds struct {
	AutoPublishThreshold int `json:"autoPublishThreshold"`
	ReviewThreshold      int `json:"reviewThreshold"`
}

// FaqGenerationSettings controls the generator.
type FaqGenerationSettings struct {
	UseTemplates                 bool    `json:"useTemplates"`
	EnableCategoryAutoAssignment bool    `json:"enableCategoryAutoAssignment"`
	EnableDuplicateDetection     bool    `json:"enableDuplicateDetection"`
	EnableQualityValidation      bool    `json:"enableQualityValidation"`
	MergeSimilarFaqs             bool    `json:"mergeSimilarFaqs"`
	SimilarityThreshold          float64 `json:"similarityThreshold"`
	MinConfidenceThreshold       int     `json:"minConfidenceThreshold"`
	MinQualityScore              int     `json:"minQualityScore"`
}

// ConfidenceWeights weights the eight confidence factors. Weights sum to 1.0.
type ConfidenceWeights struct {
	SourceQualityWeight      float64 `json:"sourceQualityWeight"`
	PatternFrequencyWeight   float64 `json:"patternFrequencyWeight"`
	ResolutionSuccessWeight  float64 `json:"resolutionSuccessWeight"`
	UserSatisfactionWeight   float64 `json:"userSatisfactionWeight"`
	ContextClarityWeight     float64 `json:"contextClarityWeight"`
	AnswerCompletenessWeight float64 `json:"answerCompletenessWeight"`
	SimilarityWeight         float64 `json:"similarityWeight"`
	ProviderConfidenceWeight float64 `json:"providerConfidenceWeight"`
	FeedbackAdjustmentFactor float64 `json:"feedbackAdjustmentFactor"`
}

// Sum returns the total of the eight factor weights.
func (w ConfidenceWeights) Sum() float64 {
	return w.SourceQualityWeight + w.PatternFrequencyWeight + w.ResolutionSuccessWeight +
		w.UserSatisfactionWeight + w.ContextClarityWeight + w.AnswerCompletenessWeight +
		w.SimilarityWeight + w.ProviderConfidenceWeight
}

// AdvancedSettings holds the feature switches.
type AdvancedSettings struct {
	EnableRealTimeProcessing      bool    `json:"enableRealTimeProcessing"`
	EnableAutoPublishing          bool    `json:"enableAutoPublishing"`
	ChatFeedbackThreshold         float64 `json:"chatFeedbackThreshold"`
	TicketResolutionTimeThreshold float64 `json:"ticketResolutionTimeThreshold"` // hours
	RetentionPeriodDays           int     `json:"retentionPeriodDays"`
}

// DataProcessingSettings controls intake gating and batch sizes.
type DataProcessingSettings struct {
	MinChatMessages   int `json:"minChatMessages"`
	MinTicketMessages int `json:"minTicketMessages"`
	ProcessingDelay   int `json:"processingDelay"` // milliseconds
	BatchSize         int `json:"batchSize"`
}

// LearningSettings is the full set of learning settings.
type LearningSettings struct {
	Thresholds     ConfidenceThresholds   `json:"confidence_thresholds"`
	Generation     FaqGenerationSettings  `json:"faq_generation"`
	Weights        ConfidenceWeights      `json:"confidence_calculation"`
	Advanced       AdvancedSettings       `json:"advanced_settings"`
	DataProcessing DataProcessingSettings `json:"data_processing"`
}

// DefaultLearningSettings returns the coded defaults.
func DefaultLearningSettings() *LearningSettings {
	return &LearningSettings{
		Thresholds: ConfidenceThresholds{
			AutoPublishThreshold: 85,
			ReviewThreshold:      60,
		},
		Generation: FaqGenerationSettings{
			UseTemplates:                 true,
			EnableCategoryAutoAssignment: true,
			EnableDuplicateDetection:     true,
			EnableQualityValidation:      true,
			MergeSimilarFaqs:             true,
			SimilarityThreshold:          0.8,
			MinConfidenceThreshold:       60,
			MinQualityScore:              50,
		},
		Weights: DefaultConfidenceWeights(),
		Advanced: AdvancedSettings{
			EnableRealTimeProcessing:      true,
			EnableAutoPublishing:          true,
			ChatFeedbackThreshold:         0.7,
			TicketResolutionTimeThreshold: 72,
			RetentionPeriodDays:           90,
		},
		DataProcessing: DataProcessingSettings{
			MinChatMessages:   4,
			MinTicketMessages: 2,
			ProcessingDelay:   30000,
			BatchSize:         50,
		},
	}
}

// DefaultConfidenceWeights returns the default factor weights.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		SourceQualityWeight:      0.15,
		PatternFrequencyWeight:   0.20,
		ResolutionSuccessWeight:  0.15,
		UserSatisfactionWeight:   0.15,
		ContextClarityWeight:     0.10,
		AnswerCompletenessWeight: 0.15,
		SimilarityWeight:         0.05,
		ProviderConfidenceWeight: 0.05,
		FeedbackAdjustmentFactor: 1.0,
	}
}
