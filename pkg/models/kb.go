package models

import "time"

// KBArticle is the knowledge-base copy of a published FAQ entry.
type KBArticle struct {
	FaqID       string          `json:"faq_id"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Category    string          `json:"category"`
	Tags        JSONStringArray `json:"tags"`
	ConvertedAt time.Time       `json:"converted_at"` // When the FAQ was last pushed into this article
	UpdatedAt   time.Time       `json:"updated_at"`   // Last modification on the knowledge-base side
}

// ArticleFromFaq converts a published entry into its article form.
func ArticleFromFaq(f *FaqEntry, now time.Time) *KBArticle {
	return &KBArticle{
		FaqID:       f.ID,
		Title:       f.Question,
		Body:        f.Answer,
		Category:    f.Category,
		Tags:        append(JSONStringArray(nil), f.Keywords...),
		ConvertedAt: now,
		UpdatedAt:   now,
	}
}
