// Package generator turns normalized interactions into FAQ entries.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/dedup"
	"github.com/thebtf/faqlearn/internal/generative"
	"github.com/thebtf/faqlearn/internal/scoring"
	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/pkg/models"
	"github.com/thebtf/faqlearn/pkg/similarity"
)

var (
	// ErrDuplicate is returned when the candidate is a near-exact copy of an existing entry.
	ErrDuplicate = errors.New("duplicate of existing entry")
	// ErrQualityRejected is returned when the answer scores below the minimum quality.
	ErrQualityRejected = errors.New("answer quality below minimum")
	// ErrLowConfidence is returned when the candidate confidence is below the minimum.
	ErrLowConfidence = errors.New("confidence below minimum")
	// ErrInvalidInput is returned for candidates without a question or answer.
	ErrInvalidInput = errors.New("candidate needs a question and an answer")
	// ErrProviderFailed is returned when the configured provider could not write the answer.
	// Nothing is stored for the candidate.
	ErrProviderFailed = errors.New("provider generation failed")
)

// CreatedBy is the creator recorded on generated entries.
const CreatedBy = "system:generator"

// DefaultCategory is assigned when nothing better is known.
const DefaultCategory = "General"

// Generation strategies recorded in the entry metadata.
const (
	StrategyTemplate         = "template"
	StrategyTemplateProvider = "template+provider"
	StrategyProvider         = "provider"
	StrategyNormalized       = "normalized"
)

// Outcome is the result of generating one candidate.
type Outcome struct {
	Entry    *models.FaqEntry
	Merged   bool
	Strategy string
	Score    models.ConfidenceResult
	Quality  int
}

// BatchFailure is one candidate that could not be generated.
type BatchFailure struct {
	Item  *models.NormalizedData `json:"item"`
	Error string                 `json:"error"`
}

// BatchResult reports the outcome of GenerateBatch.
type BatchResult struct {
	Successful []*models.FaqEntry `json:"successful"`
	Failed     []BatchFailure     `json:"failed"`
}

// Generator produces and stores FAQ entries.
type Generator struct {
	faqs      db.FaqStore
	detector  *dedup.Detector
	scorer    *scoring.Calculator
	provider  generative.Provider
	settings  settings.Provider
	templates []Template
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// Option customizes a Generator.
type Option func(*Generator)

// WithTemplates replaces the built-in template catalog.
func WithTemplates(t []Template) Option {
	return func(g *Generator) { g.templates = t }
}

// New creates a generator. provider may be nil, in which case template and normalized answers
// are used as they are.
func New(faqs db.FaqStore, detector *dedup.Detector, scorer *scoring.Calculator, provider generative.Provider, sp settings.Provider, logger zerolog.Logger, opts ...Option) *Generator {
	if sp == nil {
		sp = settings.Static{}
	}
	if scorer == nil {
		scorer = scoring.NewCalculator(sp)
	}
	g := &Generator{
		faqs:      faqs,
		detector:  detector,
		scorer:    scorer,
		provider:  provider,
		settings:  sp,
		templates: DefaultTemplates(),
		logger:    logger.With().Str("component", "generator").Logger(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs one candidate through duplicate detection, answer generation, category
// assignment, quality validation and scoring, then creates a pending entry or merges the
// candidate into an existing one.
func (g *Generator) Generate(ctx context.Context, data *models.NormalizedData, patternFrequency int) (*Outcome, error) {
	if data == nil || strings.TrimSpace(data.Question) == "" || strings.TrimSpace(data.Answer) == "" {
		return nil, ErrInvalidInput
	}
	s := g.settings.Current()

	var dup *dedup.Result
	if s.Generation.EnableDuplicateDetection && g.detector != nil {
		res, err := g.detector.Check(ctx, data.Question)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if res.Action == dedup.ActionDiscard {
			best := res.Best()
			return nil, fmt.Errorf("%w: %s (similarity %.2f)", ErrDuplicate, best.Entry.ID, best.Similarity)
		}
		dup = res
	}

	vocabulary, err := g.vocabulary(ctx, s)
	if err != nil {
		return nil, err
	}

	candidate := *data
	candidate.Keywords = append([]string(nil), data.Keywords...)

	var tmpl *Template
	if s.Generation.UseTemplates {
		tmpl = matchTemplate(g.templates, candidate.Keywords, candidate.Category)
	}
	answer, strategy, providerConfidence, suggested, err := g.compose(ctx, &candidate, tmpl, vocabulary)
	if err != nil {
		return nil, err
	}
	candidate.Answer = answer
	if len(suggested.keywords) > 0 {
		candidate.Keywords = dedup.UnionKeywords(candidate.Keywords, suggested.keywords)
	}
	candidate.Category = g.assignCategory(s, &candidate, suggested.category, tmpl, vocabulary)

	quality := QualityScore(candidate.Answer, candidate.Keywords)
	if s.Generation.EnableQualityValidation && quality < s.Generation.MinQualityScore {
		return nil, fmt.Errorf("%w: %d < %d", ErrQualityRejected, quality, s.Generation.MinQualityScore)
	}

	in := scoring.Input{
		Data:               &candidate,
		PatternFrequency:   patternFrequency,
		ProviderConfidence: providerConfidence,
	}
	if dup != nil {
		highest := dup.Highest
		in.Similarity = &highest
	}
	score := g.scorer.Calculate(in)
	if score.Overall < s.Generation.MinConfidenceThreshold {
		return nil, fmt.Errorf("%w: %d < %d", ErrLowConfidence, score.Overall, s.Generation.MinConfidenceThreshold)
	}

	if dup != nil && dup.Action == dedup.ActionMerge && s.Generation.MergeSimilarFaqs {
		best := dup.Best()
		merged, err := g.detector.Merge(ctx, best.Entry.ID, &candidate, score.Overall, best.Similarity)
		if err != nil {
			return nil, fmt.Errorf("merge into %s: %w", best.Entry.ID, err)
		}
		return &Outcome{Entry: merged, Merged: true, Strategy: strategy, Score: score, Quality: quality}, nil
	}

	entry := &models.FaqEntry{
		ID:         g.newID(),
		Question:   strings.TrimSpace(candidate.Question),
		Answer:     candidate.Answer,
		Category:   candidate.Category,
		Keywords:   dedup.UnionKeywords(nil, candidate.Keywords),
		Confidence: score.Overall,
		Status:     models.StatusPendingReview,
		Source:     candidate.Source,
		SourceID:   candidate.SourceID,
		CreatedBy:  CreatedBy,
		Metadata: models.FaqMetadata{
			Version: models.MetadataVersion,
			Generation: &models.GenerationInfo{
				Strategy:       strategy,
				QualityScore:   quality,
				Components:     score.Components,
				Recommendation: score.Recommendation,
				GeneratedAt:    g.now(),
			},
		},
	}
	if tmpl != nil && strategy != StrategyProvider {
		entry.Metadata.Generation.TemplateID = tmpl.ID
	}
	if err := g.faqs.CreateFaq(ctx, entry); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	g.logger.Info().
		Str("faq_id", entry.ID).
		Str("source_id", entry.SourceID).
		Str("strategy", strategy).
		Int("confidence", entry.Confidence).
		Str("recommendation", string(score.Recommendation)).
		Msg("FAQ entry generated")
	return &Outcome{Entry: entry, Strategy: strategy, Score: score, Quality: quality}, nil
}

// GenerateBatch generates every candidate in order. A failing candidate is reported and the
// batch continues.
func (g *Generator) GenerateBatch(ctx context.Context, items []*models.NormalizedData) *BatchResult {
	result := &BatchResult{
		Successful: []*models.FaqEntry{},
		Failed:     []BatchFailure{},
	}
	for _, item := range items {
		outcome, err := g.Generate(ctx, item, 0)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Item: item, Error: err.Error()})
			continue
		}
		result.Successful = append(result.Successful, outcome.Entry)
	}
	g.logger.Info().
		Int("successful", len(result.Successful)).
		Int("failed", len(result.Failed)).
		Msg("Batch generation completed")
	return result
}

type suggestion struct {
	category string
	keywords []string
}

// compose picks the answer text. A matched template is refined by the provider when one is
// configured; otherwise the provider writes the answer from the interaction. Without a
// provider the template or normalized answer is used as is.
func (g *Generator) compose(ctx context.Context, data *models.NormalizedData, tmpl *Template, vocabulary []string) (string, string, *float64, suggestion, error) {
	if g.provider == nil {
		if tmpl != nil {
			return tmpl.Answer, StrategyTemplate, nil, suggestion{}, nil
		}
		return strings.TrimSpace(data.Answer), StrategyNormalized, nil, suggestion{}, nil
	}

	req := generative.Request{
		Question:   data.Question,
		Context:    data.Context,
		Category:   data.Category,
		Keywords:   data.Keywords,
		Categories: vocabulary,
	}
	strategy := StrategyProvider
	if tmpl != nil {
		req.DraftAnswer = tmpl.Answer
		strategy = StrategyTemplateProvider
	} else if req.Context == "" {
		req.Context = data.Answer
	}

	answer, err := g.provider.Generate(ctx, req)
	if err != nil {
		return "", "", nil, suggestion{}, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	if strings.TrimSpace(answer.Answer) == "" {
		return "", "", nil, suggestion{}, fmt.Errorf("%w: empty answer", ErrProviderFailed)
	}
	confidence := answer.Confidence
	return answer.Answer, strategy, &confidence, suggestion{category: answer.Category, keywords: answer.Keywords}, nil
}

// vocabulary is the known category set: stored categories plus template categories.
func (g *Generator) vocabulary(ctx context.Context, s *models.LearningSettings) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(c string) {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(c))
	}
	if s.Generation.EnableCategoryAutoAssignment {
		stored, err := g.faqs.ListCategories(ctx)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		for _, c := range stored {
			add(c)
		}
	}
	for _, t := range g.templates {
		add(t.Category)
	}
	return out, nil
}

// assignCategory keeps an explicit category. Otherwise it takes the provider suggestion when it
// names a known category, then the matched template's category, then the known category whose
// template keywords and name overlap the candidate most, then DefaultCategory.
func (g *Generator) assignCategory(s *models.LearningSettings, data *models.NormalizedData, suggested string, tmpl *Template, vocabulary []string) string {
	if c := strings.TrimSpace(data.Category); c != "" {
		return c
	}
	if !s.Generation.EnableCategoryAutoAssignment {
		return DefaultCategory
	}
	if c, ok := lookupFold(vocabulary, suggested); ok {
		return c
	}
	if tmpl != nil && tmpl.Category != "" {
		return tmpl.Category
	}

	terms := append([]string(nil), data.Keywords...)
	for t := range similarity.Terms(data.Question) {
		terms = append(terms, t)
	}
	best, bestScore := DefaultCategory, 0
	for _, c := range vocabulary {
		var words []string
		for t := range similarity.Terms(c) {
			words = append(words, t)
		}
		for _, t := range g.templates {
			if strings.EqualFold(t.Category, c) {
				words = append(words, t.Keywords...)
			}
		}
		if score := similarity.KeywordOverlap(words, terms); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func lookupFold(list []string, s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return v, true
		}
	}
	return "", false
}

// QualityScore rates an answer from 0 to 100:
//
//	length 50-1000 runes   30 (else 10)
//	actionable language    25
//	structured formatting  20
//	three or more keywords 25
func QualityScore(answer string, keywords []string) int {
	score := 10
	if n := utf8.RuneCountInString(strings.TrimSpace(answer)); n >= 50 && n <= 1000 {
		score = 30
	}
	if scoring.IsActionable(answer) {
		score += 25
	}
	if scoring.IsStructured(answer) {
		score += 20
	}
	if len(keywords) >= 3 {
		score += 25
	}
	return score
}
