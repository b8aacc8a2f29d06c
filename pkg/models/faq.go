// Package models contains domain models for the FAQ learning service.
package models

import (
	"database/sql/driver"
	"time"

	json "github.com/goccy/go-json"
)

// FaqStatus represents the review lifecycle state of an FAQ entry.
type FaqStatus string

const (
	// StatusPendingReview is the initial state of every generated entry.
	StatusPendingReview FaqStatus = "pending_review"
	// StatusApproved means a reviewer accepted the entry but it is not yet live.
	StatusApproved FaqStatus = "approved"
	// StatusRejected is terminal. Rejected entries are retained, never deleted.
	StatusRejected FaqStatus = "rejected"
	// StatusPublished means the entry is live in the knowledge base.
	StatusPublished FaqStatus = "published"
)

// Valid reports whether s is a known status.
func (s FaqStatus) Valid() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusRejected, StatusPublished:
		return true
	}
	return false
}

// AllStatuses lists the statuses in lifecycle order.
var AllStatuses = []FaqStatus{StatusPendingReview, StatusApproved, StatusRejected, StatusPublished}

// FaqEntry is a learned question/answer pair.
type FaqEntry struct {
	ID              string          `json:"id"`
	Question        string          `json:"question"`
	Answer          string          `json:"answer"`
	Category        string          `json:"category"`
	Keywords        JSONStringArray `json:"keywords"`
	Confidence      int             `json:"confidence"` // 0-100
	Status          FaqStatus       `json:"status"`
	UsageCount      int             `json:"usage_count"`
	HelpfulCount    int             `json:"helpful_count"`
	NotHelpfulCount int             `json:"not_helpful_count"`
	Source          Source          `json:"source"`
	SourceID        string          `json:"source_id"`
	CreatedBy       string          `json:"created_by"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	PublishedAt     *time.Time      `json:"published_at,omitempty"`
	Metadata        FaqMetadata     `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// SetConfidence stores v clamped to [0,100].
func (f *FaqEntry) SetConfidence(v int) {
	f.Confidence = ClampConfidence(v)
}

// AdjustConfidence adds delta and clamps.
func (f *FaqEntry) AdjustConfidence(delta int) {
	f.SetConfidence(f.Confidence + delta)
}

// Clone returns a deep copy of the entry.
func (f *FaqEntry) Clone() *FaqEntry {
	if f == nil {
		return nil
	}
	c := *f
	c.Keywords = append(JSONStringArray(nil), f.Keywords...)
	if f.ReviewedAt != nil {
		t := *f.ReviewedAt
		c.ReviewedAt = &t
	}
	if f.PublishedAt != nil {
		t := *f.PublishedAt
		c.PublishedAt = &t
	}
	c.Metadata = f.Metadata.clone()
	return &c
}

// Limits on the metadata logs. The oldest element is evicted first.
const (
	MetadataVersion    = 1
	MaxFeedbackHistory = 100
	MaxMergeHistory    = 50
	MaxSuggestionLog   = 100
	MaxReviewHistory   = 100
)

// Priority ranks how urgently a flagged entry needs attention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities: low < medium < high.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ReviewFlag marks an entry for reviewer attention.
type ReviewFlag struct {
	Priority  Priority  `json:"priority"`
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
}

// FeedbackEvent is one feedback submission as recorded on the entry.
type FeedbackEvent struct {
	UserID          string       `json:"user_id,omitempty"`
	FeedbackType    FeedbackType `json:"feedback_type"`
	Rating          *int         `json:"rating,omitempty"`
	Comment         string       `json:"comment,omitempty"`
	Sentiment       Sentiment    `json:"sentiment"`
	ConfidenceDelta int          `json:"confidence_delta"`
	RecordedAt      time.Time    `json:"recorded_at"`
}

// Suggestion stores a user-proposed change. Suggestions are never applied automatically.
type Suggestion struct {
	UserID            string       `json:"user_id,omitempty"`
	FeedbackType      FeedbackType `json:"feedback_type"`
	SuggestedAnswer   string       `json:"suggested_answer,omitempty"`
	SuggestedCategory string       `json:"suggested_category,omitempty"`
	SuggestedKeywords []string     `json:"suggested_keywords,omitempty"`
	Comment           string       `json:"comment,omitempty"`
	RecordedAt        time.Time    `json:"recorded_at"`
}

// MergeEvent records that a candidate was folded into this entry.
type MergeEvent struct {
	Source              Source    `json:"source"`
	SourceID            string    `json:"source_id"`
	Question            string    `json:"question"`
	Similarity          float64   `json:"similarity"`
	PreviousConfidence  int       `json:"previous_confidence"`
	CandidateConfidence int       `json:"candidate_confidence"`
	MergedAt            time.Time `json:"merged_at"`
}

// ReviewEvent records one review decision.
type ReviewEvent struct {
	Action     ReviewAction `json:"action"`
	ReviewerID string       `json:"reviewer_id"`
	Reason     string       `json:"reason,omitempty"`
	FromStatus FaqStatus    `json:"from_status"`
	ToStatus   FaqStatus    `json:"to_status"`
	ReviewedAt time.Time    `json:"reviewed_at"`
}

// GenerationInfo records how the entry was produced.
type GenerationInfo struct {
	Strategy       string          `json:"strategy"`
	TemplateID     string          `json:"template_id,omitempty"`
	QualityScore   int             `json:"quality_score"`
	Components     ScoreComponents `json:"components"`
	Recommendation Recommendation  `json:"recommendation"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// FaqMetadata is the structured, versioned metadata column of an FAQ entry.
type FaqMetadata struct {
	Version         int             `json:"version"`
	FeedbackHistory []FeedbackEvent `json:"feedback_history,omitempty"`
	MergeHistory    []MergeEvent    `json:"merge_history,omitempty"`
	SuggestionLog   []Suggestion    `json:"suggestion_log,omitempty"`
	ReviewHistory   []ReviewEvent   `json:"review_history,omitempty"`
	Generation      *GenerationInfo `json:"generation,omitempty"`
	ReviewFlag      *ReviewFlag     `json:"review_flag,omitempty"`
}

// AppendFeedback records e, evicting the oldest events beyond MaxFeedbackHistory.
func (m *FaqMetadata) AppendFeedback(e FeedbackEvent) {
	m.FeedbackHistory = appendCapped(m.FeedbackHistory, e, MaxFeedbackHistory)
}

// AppendMerge records e, evicting the oldest events beyond MaxMergeHistory.
func (m *FaqMetadata) AppendMerge(e MergeEvent) {
	m.MergeHistory = appendCapped(m.MergeHistory, e, MaxMergeHistory)
}

// AppendSuggestion records s, evicting the oldest beyond MaxSuggestionLog.
func (m *FaqMetadata) AppendSuggestion(s Suggestion) {
	m.SuggestionLog = appendCapped(m.SuggestionLog, s, MaxSuggestionLog)
}

// AppendReview records e, evicting the oldest beyond MaxReviewHistory.
func (m *FaqMetadata) AppendReview(e ReviewEvent) {
	m.ReviewHistory = appendCapped(m.ReviewHistory, e, MaxReviewHistory)
}

// Flag raises the review flag. An existing flag keeps the higher priority.
func (m *FaqMetadata) Flag(p Priority, reason string, at time.Time) {
	if m.ReviewFlag != nil && m.ReviewFlag.Priority.Rank() > p.Rank() {
		return
	}
	m.ReviewFlag = &ReviewFlag{Priority: p, Reason: reason, FlaggedAt: at}
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append([]T(nil), s[len(s)-limit:]...)
	}
	return s
}

func (m FaqMetadata) clone() FaqMetadata {
	c := m
	c.FeedbackHistory = append([]FeedbackEvent(nil), m.FeedbackHistory...)
	c.MergeHistory = append([]MergeEvent(nil), m.MergeHistory...)
	c.SuggestionLog = append([]Suggestion(nil), m.SuggestionLog...)
	c.ReviewHistory = append([]ReviewEvent(nil), m.ReviewHistory...)
	if m.Generation != nil {
		g := *m.Generation
		c.Generation = &g
	}
	if m.ReviewFlag != nil {
		f := *m.ReviewFlag
		c.ReviewFlag = &f
	}
	return c
}

// Scan implements sql.Scanner for FaqMetadata.
func (m *FaqMetadata) Scan(src interface{}) error {
	data, err := columnBytes("FaqMetadata", src)
	if err != nil {
		return err
	}
	*m = FaqMetadata{}
	if data == nil {
		m.Version = MetadataVersion
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	return nil
}

// Value implements driver.Valuer for FaqMetadata.
func (m FaqMetadata) Value() (driver.Value, error) {
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	return json.Marshal(m)
}
