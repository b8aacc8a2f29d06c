package models

import "time"

// Severity grades an audit entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AuditLog is one entry of the audit trail.
type AuditLog struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Severity     Severity  `json:"severity"`
	UserID       string    `json:"user_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	Details      string    `json:"details,omitempty"`
}

// Audit resource types.
const (
	ResourceFaq = "faq_entry"
	ResourceJob = "scheduled_job"
)
