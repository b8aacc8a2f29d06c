// Package db defines the repository interfaces of the FAQ learning service.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/thebtf/faqlearn/pkg/models"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a versioned save lost a race with another writer.
	ErrConflict = errors.New("version conflict")
)

// Sort fields accepted by FaqQuery.
const (
	SortCreatedAt    = "created_at"
	SortConfidence   = "confidence"
	SortUsageCount   = "usage_count"
	SortHelpfulCount = "helpful_count"
)

// MaxPageSize bounds FaqQuery.Limit.
const MaxPageSize = 100

// FaqQuery filters and pages FAQ entries. Zero values mean "no filter".
type FaqQuery struct {
	Statuses      []models.FaqStatus
	MinConfidence *int
	MaxConfidence *int
	Source        models.Source
	Categories    []string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	ReviewedBy    string
	CreatedBy     string
	Page          int // 1-based
	Limit         int
	SortBy        string
	SortDesc      bool
}

// Normalize applies paging and sort defaults in place.
func (q *FaqQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	switch q.SortBy {
	case SortCreatedAt, SortConfidence, SortUsageCount, SortHelpfulCount:
	default:
		q.SortBy = SortCreatedAt
	}
}

// FaqAggregates are the queue-wide counters used for review statistics.
type FaqAggregates struct {
	ByStatus          map[models.FaqStatus]int
	AverageConfidence float64
	TopCategories     []models.CategoryCount
	ByReviewer        map[string]int
}

// FaqReader defines read operations for FAQ entries.
type FaqReader interface {
	GetFaq(ctx context.Context, id string) (*models.FaqEntry, error)
	ListFaqs(ctx context.Context, q FaqQuery) ([]*models.FaqEntry, int, error)
	ListFaqsByStatus(ctx context.Context, statuses ...models.FaqStatus) ([]*models.FaqEntry, error)
	ListCategories(ctx context.Context) ([]string, error)
	FaqAggregates(ctx context.Context, topCategories int) (*FaqAggregates, error)
}

// FaqWriter defines write operations for FAQ entries.
// Entries are never deleted.
type FaqWriter interface {
	CreateFaq(ctx context.Context, entry *models.FaqEntry) error
	// SaveFaq persists the full row if entry.Version still matches the stored version,
	// then increments entry.Version. A stale version returns ErrConflict.
	SaveFaq(ctx context.Context, entry *models.FaqEntry) error
}

// FaqStore combines read and write operations for FAQ entries.
type FaqStore interface {
	FaqReader
	FaqWriter
}

// PatternStore persists learning patterns.
type PatternStore interface {
	GetPattern(ctx context.Context, id int64) (*models.LearningPattern, error)
	ListPatterns(ctx context.Context, category string, limit int) ([]*models.LearningPattern, error)
	CreatePattern(ctx context.Context, p *models.LearningPattern) error
	UpdatePattern(ctx context.Context, p *models.LearningPattern) error
	// DeleteStalePatterns removes patterns last seen before the cutoff with frequency <= maxFrequency.
	DeleteStalePatterns(ctx context.Context, before time.Time, maxFrequency int) (int64, error)
}

// InteractionStore holds interaction snapshots and processed markers.
type InteractionStore interface {
	SaveChat(ctx context.Context, chat *models.ChatSession) error
	SaveTicket(ctx context.Context, ticket *models.Ticket) error
	ListChats(ctx context.Context, from, to time.Time, limit int) ([]*models.ChatSession, error)
	ListTickets(ctx context.Context, from, to time.Time, limit int) ([]*models.Ticket, error)
	PurgeSnapshots(ctx context.Context, before time.Time) (int64, error)

	MarkProcessed(ctx context.Context, p *models.ProcessedInteraction) error
	IsProcessed(ctx context.Context, source models.Source, sourceID string) (bool, error)
	CountProcessedByPattern(ctx context.Context) (map[int64]int, error)
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}

// AuditFilter selects audit entries. Zero values mean "no filter".
type AuditFilter struct {
	Action       string
	ResourceType string
	ResourceID   string
	UserID       string
	From         *time.Time
	To           *time.Time
	Limit        int
}

// AuditStore is the append-only audit trail.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, f AuditFilter) ([]*models.AuditLog, error)
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)
}

// SettingsStore is the key to JSON configuration store.
type SettingsStore interface {
	// GetSetting returns the raw JSON for key, or ErrNotFound.
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte) error
}

// KBStore is the knowledge-base article store the sync job pushes into.
type KBStore interface {
	GetArticle(ctx context.Context, faqID string) (*models.KBArticle, error)
	UpsertArticle(ctx context.Context, article *models.KBArticle) error
}

// Repositories bundles every store the service needs.
type Repositories struct {
	Faqs         FaqStore
	Patterns     PatternStore
	Interactions InteractionStore
	Audit        AuditStore
	Settings     SettingsStore
	KB           KBStore
	// Health is nil for backends without a connection to check.
	Health HealthChecker
}

// Health states.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// Health is a point-in-time view of the database connection.
type Health struct {
	CheckedAt  time.Time     `json:"checked_at"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	OpenConns  int           `json:"open_conns"`
	InUseConns int           `json:"in_use_conns"`
	WaitCount  int64         `json:"wait_count"`
}

// HealthChecker reports database health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) *Health
}
