package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0, ClampConfidence(-5))
	assert.Equal(t, 100, ClampConfidence(140))
	assert.Equal(t, 42, ClampConfidence(42))

	entry := &FaqEntry{Confidence: 3}
	entry.AdjustConfidence(-10)
	assert.Equal(t, 0, entry.Confidence)
	entry.AdjustConfidence(250)
	assert.Equal(t, 100, entry.Confidence)
}

func TestFaqMetadata_FeedbackHistoryEvictsOldest(t *testing.T) {
	var m FaqMetadata
	for i := 0; i < MaxFeedbackHistory+5; i++ {
		m.AppendFeedback(FeedbackEvent{Comment: time.Duration(i).String()})
	}

	require.Len(t, m.FeedbackHistory, MaxFeedbackHistory)
	assert.Equal(t, time.Duration(5).String(), m.FeedbackHistory[0].Comment)
	assert.Equal(t, time.Duration(MaxFeedbackHistory+4).String(), m.FeedbackHistory[MaxFeedbackHistory-1].Comment)
}

func TestFaqMetadata_FlagKeepsHigherPriority(t *testing.T) {
	var m FaqMetadata
	now := time.Now()

	m.Flag(PriorityHigh, "correction", now)
	m.Flag(PriorityLow, "suggestion", now)
	require.NotNil(t, m.ReviewFlag)
	assert.Equal(t, PriorityHigh, m.ReviewFlag.Priority)
	assert.Equal(t, "correction", m.ReviewFlag.Reason)

	m.Flag(PriorityHigh, "low rating", now)
	assert.Equal(t, "low rating", m.ReviewFlag.Reason)
}

func TestFaqMetadata_ScanValue(t *testing.T) {
	rating := 2
	m := FaqMetadata{}
	m.AppendFeedback(FeedbackEvent{FeedbackType: FeedbackNotHelpful, Rating: &rating, ConfidenceDelta: -5})
	m.Flag(PriorityHigh, "low rating", time.Unix(1700000000, 0).UTC())

	v, err := m.Value()
	require.NoError(t, err)

	var out FaqMetadata
	require.NoError(t, out.Scan(v))
	assert.Equal(t, MetadataVersion, out.Version)
	require.Len(t, out.FeedbackHistory, 1)
	assert.Equal(t, -5, out.FeedbackHistory[0].ConfidenceDelta)
	assert.Equal(t, 2, *out.FeedbackHistory[0].Rating)
	assert.Equal(t, PriorityHigh, out.ReviewFlag.Priority)
}

func TestFaqMetadata_ScanNull(t *testing.T) {
	var m FaqMetadata
	require.NoError(t, m.Scan(nil))
	assert.Equal(t, MetadataVersion, m.Version)
	assert.Error(t, m.Scan(42))
}

func TestFaqEntry_CloneIsDeep(t *testing.T) {
	now := time.Now()
	entry := &FaqEntry{ID: "a", Keywords: JSONStringArray{"x"}, PublishedAt: &now}
	entry.Metadata.AppendReview(ReviewEvent{Action: ActionApprove})

	c := entry.Clone()
	c.Keywords[0] = "y"
	c.Metadata.ReviewHistory[0].Action = ActionReject
	*c.PublishedAt = now.Add(time.Hour)

	assert.Equal(t, "x", entry.Keywords[0])
	assert.Equal(t, ActionApprove, entry.Metadata.ReviewHistory[0].Action)
	assert.True(t, entry.PublishedAt.Equal(now))
}
