package gorm

import (
	"database/sql"
	"time"

	"github.com/thebtf/faqlearn/pkg/models"
)

// GORM Models

// Note: JSON types (JSONStringArray, FaqMetadata) come from pkg/models
// and already implement sql.Scanner and driver.Valuer.

// FaqEntry is the stored form of an FAQ entry.
type FaqEntry struct {
	CreatedAt       time.Time              `gorm:"index:idx_faq_created,sort:desc;not null"`
	UpdatedAt       time.Time              `gorm:"autoUpdateTime:false;not null"`
	ReviewedAt      sql.NullTime
	PublishedAt     sql.NullTime
	Metadata        models.FaqMetadata     `gorm:"type:jsonb"`
	Keywords        models.JSONStringArray `gorm:"type:jsonb"`
	ID              string                 `gorm:"primaryKey;type:varchar(36)"`
	Question        string                 `gorm:"type:text;not null"`
	Answer          string                 `gorm:"type:text;not null"`
	Category        string                 `gorm:"index;not null"`
	Status          models.FaqStatus       `gorm:"type:text;check:status IN ('pending_review', 'approved', 'rejected', 'published');index:idx_faq_status_confidence,priority:1;not null"`
	Source          models.Source          `gorm:"type:text;check:source IN ('chat', 'ticket');index;not null"`
	SourceID        string                 `gorm:"index"`
	CreatedBy       string                 `gorm:"index"`
	ReviewedBy      sql.NullString         `gorm:"index"`
	Confidence      int                    `gorm:"check:confidence BETWEEN 0 AND 100;index:idx_faq_status_confidence,priority:2;not null"`
	UsageCount      int                    `gorm:"not null"`
	HelpfulCount    int                    `gorm:"not null"`
	NotHelpfulCount int                    `gorm:"not null"`
	Version         int                    `gorm:"not null"`
}

func (FaqEntry) TableName() string { return "faq_entries" }

func faqFromModel(e *models.FaqEntry) *FaqEntry {
	return &FaqEntry{
		ID:              e.ID,
		Question:        e.Question,
		Answer:          e.Answer,
		Category:        e.Category,
		Keywords:        e.Keywords,
		Confidence:      e.Confidence,
		Status:          e.Status,
		UsageCount:      e.UsageCount,
		HelpfulCount:    e.HelpfulCount,
		NotHelpfulCount: e.NotHelpfulCount,
		Source:          e.Source,
		SourceID:        e.SourceID,
		CreatedBy:       e.CreatedBy,
		ReviewedBy:      sqlNullString(e.ReviewedBy),
		ReviewedAt:      sqlNullTime(e.ReviewedAt),
		PublishedAt:     sqlNullTime(e.PublishedAt),
		Metadata:        e.Metadata,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		Version:         e.Version,
	}
}

func (f *FaqEntry) toModel() *models.FaqEntry {
	e := &models.FaqEntry{
		ID:              f.ID,
		Question:        f.Question,
		Answer:          f.Answer,
		Category:        f.Category,
		Keywords:        f.Keywords,
		Confidence:      f.Confidence,
		Status:          f.Status,
		UsageCount:      f.UsageCount,
		HelpfulCount:    f.HelpfulCount,
		NotHelpfulCount: f.NotHelpfulCount,
		Source:          f.Source,
		SourceID:        f.SourceID,
		CreatedBy:       f.CreatedBy,
		ReviewedBy:      f.ReviewedBy.String,
		Metadata:        f.Metadata,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
		Version:         f.Version,
	}
	if f.ReviewedAt.Valid {
		t := f.ReviewedAt.Time
		e.ReviewedAt = &t
	}
	if f.PublishedAt.Valid {
		t := f.PublishedAt.Time
		e.PublishedAt = &t
	}
	return e
}

// LearningPattern is the stored form of a learning pattern.
type LearningPattern struct {
	LastSeenAt time.Time              `gorm:"index;not null"`
	CreatedAt  time.Time              `gorm:"not null"`
	Signature  models.JSONStringArray `gorm:"type:jsonb"`
	SourceIDs  models.JSONStringArray `gorm:"type:jsonb"`
	Category   string                 `gorm:"index;not null"`
	ID         int64                  `gorm:"primaryKey;autoIncrement"`
	Frequency  int                    `gorm:"index;not null"`
	Confidence int                    `gorm:"check:confidence BETWEEN 0 AND 100;not null"`
}

func (LearningPattern) TableName() string { return "learning_patterns" }

func patternFromModel(p *models.LearningPattern) *LearningPattern {
	return &LearningPattern{
		ID:         p.ID,
		Category:   p.Category,
		Signature:  p.Signature,
		Frequency:  p.Frequency,
		Confidence: p.Confidence,
		SourceIDs:  p.SourceIDs,
		LastSeenAt: p.LastSeenAt,
		CreatedAt:  p.CreatedAt,
	}
}

func (p *LearningPattern) toModel() *models.LearningPattern {
	return &models.LearningPattern{
		ID:         p.ID,
		Category:   p.Category,
		Signature:  p.Signature,
		Frequency:  p.Frequency,
		Confidence: p.Confidence,
		SourceIDs:  p.SourceIDs,
		LastSeenAt: p.LastSeenAt,
		CreatedAt:  p.CreatedAt,
	}
}

// ChatSnapshot holds the latest received copy of a chat session.
type ChatSnapshot struct {
	EndedAt   time.Time `gorm:"index"`
	UpdatedAt time.Time
	ID        string `gorm:"primaryKey"`
	Status    string `gorm:"type:text"`
	Payload   []byte `gorm:"type:jsonb;not null"`
}

func (ChatSnapshot) TableName() string { return "chat_snapshots" }

// TicketSnapshot holds the latest received copy of a ticket.
type TicketSnapshot struct {
	ResolvedAt sql.NullTime `gorm:"index"`
	UpdatedAt  time.Time
	ID         string              `gorm:"primaryKey"`
	Status     models.TicketStatus `gorm:"type:text"`
	Payload    []byte              `gorm:"type:jsonb;not null"`
}

func (TicketSnapshot) TableName() string { return "ticket_snapshots" }

// ProcessedInteraction marks an interaction already run through the pipeline.
type ProcessedInteraction struct {
	ProcessedAt time.Time             `gorm:"index;not null"`
	PatternID   sql.NullInt64         `gorm:"index"`
	Source      models.Source         `gorm:"type:text;uniqueIndex:idx_processed_source,priority:1;not null"`
	SourceID    string                `gorm:"uniqueIndex:idx_processed_source,priority:2;not null"`
	FaqID       sql.NullString        `gorm:"index"`
	Outcome     models.ProcessOutcome `gorm:"type:text;not null"`
	Detail      string                `gorm:"type:text"`
	ID          int64                 `gorm:"primaryKey;autoIncrement"`
}

func (ProcessedInteraction) TableName() string { return "processed_interactions" }

// AuditLog is the stored form of an audit entry.
type AuditLog struct {
	Timestamp    time.Time       `gorm:"index:idx_audit_timestamp,sort:desc;not null"`
	ID           string          `gorm:"primaryKey;type:varchar(36)"`
	Action       string          `gorm:"index;not null"`
	Severity     models.Severity `gorm:"type:text;check:severity IN ('info', 'warning', 'critical');not null"`
	UserID       string          `gorm:"index"`
	ResourceType string          `gorm:"index:idx_audit_resource,priority:1"`
	ResourceID   string          `gorm:"index:idx_audit_resource,priority:2"`
	Details      string          `gorm:"type:text"`
	Success      bool            `gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_logs" }

func (a *AuditLog) toModel() *models.AuditLog {
	return &models.AuditLog{
		ID:           a.ID,
		Action:       a.Action,
		Severity:     a.Severity,
		UserID:       a.UserID,
		ResourceType: a.ResourceType,
		ResourceID:   a.ResourceID,
		Timestamp:    a.Timestamp,
		Success:      a.Success,
		Details:      a.Details,
	}
}

// LearningSetting is one key of the settings store.
type LearningSetting struct {
	UpdatedAt time.Time `gorm:"not null"`
	Key       string    `gorm:"primaryKey;type:varchar(64)"`
	Value     []byte    `gorm:"type:jsonb;not null"`
}

func (LearningSetting) TableName() string { return "learning_settings" }

// KBArticle is the knowledge-base copy of a published entry.
type KBArticle struct {
	ConvertedAt time.Time              `gorm:"not null"`
	UpdatedAt   time.Time              `gorm:"autoUpdateTime:false;not null"`
	Tags        models.JSONStringArray `gorm:"type:jsonb"`
	FaqID       string                 `gorm:"primaryKey;type:varchar(36)"`
	Title       string                 `gorm:"type:text;not null"`
	Body        string                 `gorm:"type:text;not null"`
	Category    string                 `gorm:"index"`
}

func (KBArticle) TableName() string { return "kb_articles" }

// sqlNullString creates a sql.NullString from a string.
func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func sqlNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func sqlNullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
