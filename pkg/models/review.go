package models

import "time"

// ReviewAction is a reviewer decision.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
	ActionPublish ReviewAction = "publish"
	ActionEdit    ReviewAction = "edit"
)

// ReviewDecision is a single review request against one entry.
type ReviewDecision struct {
	FaqID      string       `json:"faq_id"`
	Action     ReviewAction `json:"action"`
	ReviewerID string       `json:"reviewer_id"`
	Reason     string       `json:"reason,omitempty"`
	Question   *string      `json:"question,omitempty"`
	Answer     *string      `json:"answer,omitempty"`
	Category   *string      `json:"category,omitempty"`
	Keywords   []string     `json:"keywords,omitempty"`
}

// HasEdits reports whether the decision carries any edited field.
func (d *ReviewDecision) HasEdits() bool {
	return d.Question != nil || d.Answer != nil || d.Category != nil || d.Keywords != nil
}

// UserSummary is the display form of a creator or reviewer.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// ReviewRow is an FAQ entry as listed in the review queue.
type ReviewRow struct {
	*FaqEntry
	Creator  *UserSummary `json:"creator,omitempty"`
	Reviewer *UserSummary `json:"reviewer,omitempty"`
}

// ReviewStats summarizes the review queue.
type ReviewStats struct {
	Total             int               `json:"total"`
	ByStatus          map[FaqStatus]int `json:"by_status"`
	AverageConfidence float64           `json:"average_confidence"`
	TopCategories     []CategoryCount   `json:"top_categories"`
	ByReviewer        map[string]int    `json:"by_reviewer"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// CategoryCount is a category with its entry count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// BulkFailure is one failed item of a bulk review.
type BulkFailure struct {
	FaqID string `json:"faq_id"`
	Error string `json:"error"`
}

// BulkResult reports per-item outcomes of a bulk review.
type BulkResult struct {
	Successful []string      `json:"successful"`
	Failed     []BulkFailure `json:"failed"`
}
