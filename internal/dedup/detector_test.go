package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/faqlearn/internal/db/memory"
	"github.com/thebtf/faqlearn/internal/generative"
	"github.com/thebtf/faqlearn/pkg/models"
)

type mergeProvider struct {
	generative.Static
	err   error
	calls int
}

func (p *mergeProvider) Merge(_ context.Context, req generative.MergeRequest) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return req.ExistingAnswer + " | " + req.CandidateAnswer, nil
}

func seedEntry(t *testing.T, repo *memory.FaqRepo, id, question string, status models.FaqStatus, confidence int) {
	t.Helper()
	require.NoError(t, repo.CreateFaq(context.Background(), &models.FaqEntry{
		ID:         id,
		Question:   question,
		Answer:     "Open Settings > Security and choose Reset password.",
		Keywords:   models.JSONStringArray{"password", "Reset"},
		Confidence: confidence,
		Status:     status,
	}))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ActionDiscard, Classify(1.0))
	assert.Equal(t, ActionDiscard, Classify(0.95))
	assert.Equal(t, ActionMerge, Classify(0.949))
	assert.Equal(t, ActionMerge, Classify(0.85))
	assert.Equal(t, ActionKeepSeparate, Classify(0.8499))
	assert.Equal(t, ActionKeepSeparate, Classify(0))
}

func TestDetector_Check(t *testing.T) {
	repo := memory.NewFaqRepo()
	seedEntry(t, repo, "pub", "How do I reset my password?", models.StatusPublished, 80)
	seedEntry(t, repo, "appr", "How do I change my billing address?", models.StatusApproved, 80)
	seedEntry(t, repo, "pending", "How do I reset my password?", models.StatusPendingReview, 80)
	seedEntry(t, repo, "rej", "How do I reset my password?", models.StatusRejected, 80)

	d := NewDetector(repo, nil, nil, zerolog.Nop())
	result, err := d.Check(context.Background(), "how do I reset my password")
	require.NoError(t, err)

	require.Len(t, result.Matches, 1, "only approved and published entries are compared")
	assert.Equal(t, "pub", result.Best().Entry.ID)
	assert.Equal(t, 1.0, result.Highest)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, ActionDiscard, result.Action)
}

func TestDetector_CheckNoMatches(t *testing.T) {
	d := NewDetector(memory.NewFaqRepo(), nil, nil, zerolog.Nop())

	result, err := d.Check(context.Background(), "Where are invoices stored?")
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, ActionKeepSeparate, result.Action)
	assert.Nil(t, result.Best())
}

func TestDetector_CheckTopFive(t *testing.T) {
	repo := memory.NewFaqRepo()
	questions := []string{
		"reset password account",
		"reset password email",
		"reset password phone",
		"reset password admin",
		"reset password team",
		"reset password mobile",
		"reset password browser",
	}
	for i, q := range questions {
		seedEntry(t, repo, string(rune('a'+i)), q, models.StatusPublished, 70)
	}

	d := NewDetector(repo, nil, nil, zerolog.Nop())
	result, err := d.Check(context.Background(), "reset password")
	require.NoError(t, err)
	assert.Len(t, result.Matches, MaxMatches)
	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t, result.Matches[i-1].Similarity, result.Matches[i].Similarity)
	}
}

func TestDetector_Merge(t *testing.T) {
	repo := memory.NewFaqRepo()
	seedEntry(t, repo, "pub", "How do I reset my password?", models.StatusPublished, 70)
	provider := &mergeProvider{}
	d := NewDetector(repo, provider, nil, zerolog.Nop())

	candidate := &models.NormalizedData{
		Question: "How can I reset my password?",
		Answer:   "Use the Forgot password link.",
		Keywords: []string{"password", "forgot", "reset"},
		Source:   models.SourceTicket,
		SourceID: "t-9",
	}
	merged, err := d.Merge(context.Background(), "pub", candidate, 88, 0.9)
	require.NoError(t, err)

	assert.Equal(t, "Open Settings > Security and choose Reset password. | Use the Forgot password link.", merged.Answer)
	assert.Equal(t, models.JSONStringArray{"password", "Reset", "forgot"}, merged.Keywords)
	assert.Equal(t, 1, merged.UsageCount)
	assert.Equal(t, 88, merged.Confidence)
	require.Len(t, merged.Metadata.MergeHistory, 1)
	assert.Equal(t, "t-9", merged.Metadata.MergeHistory[0].SourceID)
	assert.Equal(t, 70, merged.Metadata.MergeHistory[0].PreviousConfidence)
	assert.Equal(t, 1, provider.calls)

	stored, err := repo.GetFaq(context.Background(), "pub")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestDetector_MergeKeepsHigherConfidence(t *testing.T) {
	repo := memory.NewFaqRepo()
	seedEntry(t, repo, "pub", "How do I reset my password?", models.StatusPublished, 92)
	d := NewDetector(repo, nil, nil, zerolog.Nop())

	merged, err := d.Merge(context.Background(), "pub", &models.NormalizedData{Answer: "short"}, 60, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 92, merged.Confidence)
	assert.Equal(t, "Open Settings > Security and choose Reset password.", merged.Answer, "offline merge keeps the longer answer")
}

func TestDetector_MergeProviderFailureLeavesEntry(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"provider error", errors.New("provider 503")},
		{"provider unavailable", generative.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewFaqRepo()
			seedEntry(t, repo, "pub", "How do I reset my password?", models.StatusPublished, 70)
			d := NewDetector(repo, &mergeProvider{err: tt.err}, nil, zerolog.Nop())

			_, err := d.Merge(context.Background(), "pub", &models.NormalizedData{Answer: "Use the Forgot password link."}, 90, 0.9)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMergeFailed)
			assert.ErrorIs(t, err, tt.err)

			stored, err := repo.GetFaq(context.Background(), "pub")
			require.NoError(t, err)
			assert.Equal(t, 70, stored.Confidence)
			assert.Equal(t, 0, stored.UsageCount)
			assert.Equal(t, "Open Settings > Security and choose Reset password.", stored.Answer)
			assert.Empty(t, stored.Metadata.MergeHistory)
		})
	}
}

func TestDetector_MergeMissing(t *testing.T) {
	d := NewDetector(memory.NewFaqRepo(), nil, nil, zerolog.Nop())
	_, err := d.Merge(context.Background(), "nope", &models.NormalizedData{}, 60, 0.9)
	assert.Error(t, err)
}
