// Package dedup detects near-duplicate FAQ candidates and merges them into existing entries.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/generative"
	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/pkg/models"
	"github.com/thebtf/faqlearn/pkg/similarity"
)

// ErrMergeFailed is returned when the provider could not combine the two answers. The
// existing entry is left unchanged.
var ErrMergeFailed = errors.New("answer merge failed")

// Similarity bands on the highest match.
const (
	DiscardThreshold = 0.95
	MergeThreshold   = 0.85
	MaxMatches       = 5
)

// Action is what the pipeline should do with a candidate.
type Action string

const (
	ActionDiscard      Action = "discard"
	ActionMerge        Action = "merge"
	ActionKeepSeparate Action = "keep_separate"
)

// Match is an existing entry similar to the candidate.
type Match struct {
	Entry      *models.FaqEntry `json:"entry"`
	Similarity float64          `json:"similarity"`
}

// Result is the outcome of a duplicate check.
type Result struct {
	Matches     []Match `json:"matches"`
	Highest     float64 `json:"highest"`
	IsDuplicate bool    `json:"is_duplicate"`
	Action      Action  `json:"action"`
}

// Best returns the highest match, or nil.
func (r *Result) Best() *Match {
	if r == nil || len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// Detector compares candidates against approved and published entries.
type Detector struct {
	faqs     db.FaqStore
	provider generative.Provider
	settings settings.Provider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDetector creates a duplicate detector. provider may be nil; merges then keep the
// longer answer.
func NewDetector(faqs db.FaqStore, provider generative.Provider, sp settings.Provider, logger zerolog.Logger) *Detector {
	if provider == nil {
		provider = generative.Static{}
	}
	if sp == nil {
		sp = settings.Static{}
	}
	return &Detector{
		faqs:     faqs,
		provider: provider,
		settings: sp,
		logger:   logger.With().Str("component", "dedup").Logger(),
		now:      time.Now,
	}
}

// Check scores the candidate question against every approved or published entry.
func (d *Detector) Check(ctx context.Context, question string) (*Result, error) {
	existing, err := d.faqs.ListFaqsByStatus(ctx, models.StatusApproved, models.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list comparable entries: %w", err)
	}

	corpus := make([]string, len(existing))
	for i, e := range existing {
		corpus[i] = e.Question
	}

	result := &Result{Action: ActionKeepSeparate}
	for _, m := range similarity.TopMatches(question, corpus, MaxMatches) {
		result.Matches = append(result.Matches, Match{Entry: existing[m.Index], Similarity: m.Score})
	}
	if best := result.Best(); best != nil {
		result.Highest = best.Similarity
	}

	result.IsDuplicate = result.Highest >= d.settings.Current().Generation.SimilarityThreshold
	result.Action = Classify(result.Highest)
	return result, nil
}

// Classify maps a similarity to the merge policy.
func Classify(highest float64) Action {
	switch {
	case highest >= DiscardThreshold:
		return ActionDiscard
	case highest >= MergeThreshold:
		return ActionMerge
	default:
		return ActionKeepSeparate
	}
}

// Merge folds a candidate into an existing entry: the provider combines the answers, keywords
// are unioned, the usage count is incremented, provenance is recorded and confidence becomes
// the higher of the two.
func (d *Detector) Merge(ctx context.Context, existingID string, candidate *models.NormalizedData, candidateConfidence int, sim float64) (*models.FaqEntry, error) {
	// Merged text is reused across conflict retries while the stored answer is unchanged.
	var mergedFor, merged string

	entry, err := db.UpdateFaq(ctx, d.faqs, existingID, func(e *models.FaqEntry) error {
		if e.Status == models.StatusRejected {
			return fmt.Errorf("merge into rejected entry %s", e.ID)
		}
		if merged == "" || mergedFor != e.Answer {
			text, err := d.combine(ctx, e, candidate)
			if err != nil {
				return err
			}
			merged, mergedFor = text, e.Answer
		}

		previous := e.Confidence
		e.Answer = merged
		e.Keywords = UnionKeywords(e.Keywords, candidate.Keywords)
		e.UsageCount++
		e.SetConfidence(max(e.Confidence, candidateConfidence))
		e.Metadata.AppendMerge(models.MergeEvent{
			Source:              candidate.Source,
			SourceID:            candidate.SourceID,
			Question:            candidate.Question,
			Similarity:          sim,
			PreviousConfidence:  previous,
			CandidateConfidence: candidateConfidence,
			MergedAt:            d.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info().
		Str("faq_id", entry.ID).
		Str("source_id", candidate.SourceID).
		Float64("similarity", sim).
		Int("confidence", entry.Confidence).
		Msg("Candidate merged into existing entry")
	return entry, nil
}

func (d *Detector) combine(ctx context.Context, e *models.FaqEntry, candidate *models.NormalizedData) (string, error) {
	text, err := d.provider.Merge(ctx, generative.MergeRequest{
		Question:        e.Question,
		ExistingAnswer:  e.Answer,
		CandidateAnswer: candidate.Answer,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMergeFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrMergeFailed)
	}
	return text, nil
}

// UnionKeywords appends the new keywords not already present, case-insensitively.
func UnionKeywords(existing models.JSONStringArray, add []string) models.JSONStringArray {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make(models.JSONStringArray, 0, len(existing)+len(add))
	for _, k := range existing {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	for _, k := range add {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(k))
	}
	return out
}
