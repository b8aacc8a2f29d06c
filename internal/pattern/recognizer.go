// Package pattern provides pattern recognition over normalized interactions.
package pattern

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// Config contains configuration for the pattern recognizer.
type Config struct {
	// MinMatchScore is the minimum signature similarity to count as the same pattern (0.0-1.0).
	MinMatchScore float64
	// MaxPatternsScanned bounds how many patterns of a category are compared per interaction.
	MaxPatternsScanned int
}

// DefaultConfig returns the default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		MinMatchScore:      0.5,
		MaxPatternsScanned: 500,
	}
}

// Result contains the result of pattern recognition.
type Result struct {
	Pattern    *models.LearningPattern
	MatchScore float64
	IsNew      bool
}

// Frequency returns the matched pattern's frequency, 0 when nothing matched.
func (r *Result) Frequency() int {
	if r == nil || r.Pattern == nil {
		return 0
	}
	return r.Pattern.Frequency
}

// PatternID returns the matched pattern's id, 0 when nothing matched.
func (r *Result) PatternID() int64 {
	if r == nil || r.Pattern == nil {
		return 0
	}
	return r.Pattern.ID
}

// Recognizer groups interactions into recurring learning patterns.
type Recognizer struct {
	store  db.PatternStore
	config Config
	logger zerolog.Logger
	now    func() time.Time

	// mu serializes analyze so two interactions never create the same pattern twice.
	mu sync.Mutex
}

// NewRecognizer creates a new pattern recognizer.
func NewRecognizer(store db.PatternStore, config Config, logger zerolog.Logger) *Recognizer {
	return &Recognizer{
		store:  store,
		config: config,
		logger: logger.With().Str("component", "pattern").Logger(),
		now:    time.Now,
	}
}

// Analyze matches the interaction against known patterns of its category and records the
// occurrence. An interaction without a usable signature yields an empty result.
func (r *Recognizer) Analyze(ctx context.Context, data *models.NormalizedData) (*Result, error) {
	signature := models.ExtractSignature(data.Keywords, data.Question)
	if len(signature) == 0 {
		return &Result{}, nil
	}
	sourceKey := models.InteractionKey(data.Source, data.SourceID)

	r.mu.Lock()
	defer r.mu.Unlock()

	candidates, err := r.store.ListPatterns(ctx, data.Category, r.config.MaxPatternsScanned)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}

	var best *models.LearningPattern
	bestScore := 0.0
	for _, p := range candidates {
		if score := models.CalculateMatchScore(signature, p.Signature); score > bestScore {
			best, bestScore = p, score
		}
	}

	now := r.now()
	if best != nil && bestScore >= r.config.MinMatchScore {
		best.AddOccurrence(sourceKey, now)
		if err := r.store.UpdatePattern(ctx, best); err != nil {
			return nil, fmt.Errorf("update pattern %d: %w", best.ID, err)
		}
		r.logger.Debug().
			Int64("pattern_id", best.ID).
			Int("frequency", best.Frequency).
			Float64("score", bestScore).
			Msg("Interaction matched existing pattern")
		return &Result{Pattern: best, MatchScore: bestScore}, nil
	}

	p := models.NewLearningPattern(data.Category, signature, sourceKey, now)
	if err := r.store.CreatePattern(ctx, p); err != nil {
		return nil, fmt.Errorf("create pattern: %w", err)
	}
	r.logger.Debug().
		Int64("pattern_id", p.ID).
		Strs("signature", signature).
		Msg("New pattern created")
	return &Result{Pattern: p, MatchScore: 1, IsNew: true}, nil
}

// RefreshFrequencies resets every pattern's frequency to the number of processed interactions
// that reference it. Patterns without references keep a frequency of one.
// Returns the number of patterns whose frequency changed.
func (r *Recognizer) RefreshFrequencies(ctx context.Context, counts map[int64]int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	patterns, err := r.store.ListPatterns(ctx, "", 0)
	if err != nil {
		return 0, fmt.Errorf("list patterns: %w", err)
	}

	changed := 0
	for _, p := range patterns {
		want := max(counts[p.ID], 1)
		if want == p.Frequency {
			continue
		}
		p.SetFrequency(want)
		if err := r.store.UpdatePattern(ctx, p); err != nil {
			return changed, fmt.Errorf("update pattern %d: %w", p.ID, err)
		}
		changed++
	}

	if changed > 0 {
		r.logger.Info().Int("changed", changed).Int("patterns", len(patterns)).Msg("Pattern frequencies refreshed")
	}
	return changed, nil
}

// Insight returns a one-line human-readable summary of a pattern.
func Insight(p *models.LearningPattern) string {
	var b strings.Builder
	b.WriteString("Seen ")
	b.WriteString(strconv.Itoa(p.Frequency))
	if p.Frequency == 1 {
		b.WriteString(" time")
	} else {
		b.WriteString(" times")
	}
	if p.Category != "" {
		b.WriteString(" in ")
		b.WriteString(p.Category)
	}
	if len(p.Signature) > 0 {
		n := min(len(p.Signature), 3)
		b.WriteString(": ")
		b.WriteString(strings.Join(p.Signature[:n], ", "))
	}
	return b.String()
}
