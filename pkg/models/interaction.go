package models

import "time"

// Source identifies the kind of support interaction an FAQ was learned from.
type Source string

const (
	// SourceChat is a live chat session between a customer and an agent or bot.
	SourceChat Source = "chat"
	// SourceTicket is a support ticket.
	SourceTicket Source = "ticket"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceChat || s == SourceTicket
}

// MessageRole identifies the author of a message within an interaction.
type MessageRole string

const (
	RoleCustomer MessageRole = "customer"
	RoleAgent    MessageRole = "agent"
	RoleBot      MessageRole = "bot"
)

// ChatMessage is a single message of a chat session.
type ChatMessage struct {
	ID            string      `json:"id"`
	Role          MessageRole `json:"role"`
	Content       string      `json:"content"`
	Helpful       *bool       `json:"helpful,omitempty"`
	BotConfidence *float64    `json:"bot_confidence,omitempty"` // 0.0-1.0
	SentAt        time.Time   `json:"sent_at"`
}

// ChatSession is a raw chat transcript as delivered by the chat collaborator.
type ChatSession struct {
	ID                 string        `json:"id"`
	Status             string        `json:"status"`
	Category           string        `json:"category,omitempty"`
	Tags               []string      `json:"tags,omitempty"`
	Messages           []ChatMessage `json:"messages"`
	SatisfactionRating *int          `json:"satisfaction_rating,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	EndedAt            time.Time     `json:"ended_at"`
}

// Duration returns the session length, zero when the session has not ended.
func (c *ChatSession) Duration() time.Duration {
	if c.EndedAt.IsZero() || c.EndedAt.Before(c.StartedAt) {
		return 0
	}
	return c.EndedAt.Sub(c.StartedAt)
}

// HelpfulCount returns the number of messages marked helpful.
func (c *ChatSession) HelpfulCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Helpful != nil && *m.Helpful {
			n++
		}
	}
	return n
}

// HelpfulRatio returns helpful/rated messages, or nil when nothing was rated.
func (c *ChatSession) HelpfulRatio() *float64 {
	rated, helpful := 0, 0
	for _, m := range c.Messages {
		if m.Helpful == nil {
			continue
		}
		rated++
		if *m.Helpful {
			helpful++
		}
	}
	if rated == 0 {
		return nil
	}
	ratio := float64(helpful) / float64(rated)
	return &ratio
}

// AverageBotConfidence averages the confidence of bot messages that report one.
// Sessions without scored bot messages return 0.
func (c *ChatSession) AverageBotConfidence() float64 {
	var sum float64
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleBot && m.BotConfidence != nil {
			sum += *m.BotConfidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketPending  TicketStatus = "pending"
	TicketResolved TicketStatus = "resolved"
	TicketClosed   TicketStatus = "closed"
)

// TicketMessage is a single reply on a ticket.
type TicketMessage struct {
	Role     MessageRole `json:"role"`
	Content  string      `json:"content"`
	Internal bool        `json:"internal,omitempty"`
	SentAt   time.Time   `json:"sent_at"`
}

// Ticket is a raw support ticket as delivered by the ticketing collaborator.
type Ticket struct {
	ID                 string          `json:"id"`
	Subject            string          `json:"subject"`
	Description        string          `json:"description"`
	Category           string          `json:"category,omitempty"`
	Tags               []string        `json:"tags,omitempty"`
	Status             TicketStatus    `json:"status"`
	Resolution         string          `json:"resolution,omitempty"`
	Messages           []TicketMessage `json:"messages"`
	SLABreached        bool            `json:"sla_breached"`
	SatisfactionRating *int            `json:"satisfaction_rating,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
}

// ResolutionTime returns the time from creation to resolution, or nil if unresolved.
func (t *Ticket) ResolutionTime() *time.Duration {
	if t.ResolvedAt == nil || t.ResolvedAt.Before(t.CreatedAt) {
		return nil
	}
	d := t.ResolvedAt.Sub(t.CreatedAt)
	return &d
}

// IsResolved reports whether the ticket reached a resolved or closed state.
func (t *Ticket) IsResolved() bool {
	return t.Status == TicketResolved || t.Status == TicketClosed
}

// InteractionMetadata carries the per-source facts the confidence calculator looks at.
// Optional facts are pointers so "absent" is distinguishable from zero.
type InteractionMetadata struct {
	ResolutionTimeHours    *float64  `json:"resolution_time_hours,omitempty"`
	SessionDurationMinutes *float64  `json:"session_duration_minutes,omitempty"`
	Resolved               *bool     `json:"resolved,omitempty"`
	SatisfactionRating     *int      `json:"satisfaction_rating,omitempty"`
	HelpfulRatio           *float64  `json:"helpful_ratio,omitempty"`
	Tags                   []string  `json:"tags,omitempty"`
	Language               string    `json:"language,omitempty"`
	MessageCount           int       `json:"message_count"`
	OccurredAt             time.Time `json:"occurred_at"`
}

// NormalizedData is the canonical question/answer pair extracted from one interaction.
// It is the immutable input to the generation pipeline.
type NormalizedData struct {
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Category   string              `json:"category,omitempty"`
	Keywords   []string            `json:"keywords"`
	Confidence int                 `json:"confidence"`
	Context    string              `json:"context,omitempty"`
	SourceID   string              `json:"source_id"`
	Source     Source              `json:"source"`
	Metadata   InteractionMetadata `json:"metadata"`
}

// InteractionKey returns the "<source>-<id>" key used for markers and debouncing.
func InteractionKey(source Source, id string) string {
	return string(source) + "-" + id
}

// ProcessOutcome records what the pipeline did with an interaction.
type ProcessOutcome string

const (
	OutcomeCreated   ProcessOutcome = "created"
	OutcomeMerged    ProcessOutcome = "merged"
	OutcomeDiscarded ProcessOutcome = "discarded"
	OutcomeRejected  ProcessOutcome = "rejected"
	OutcomeFailed    ProcessOutcome = "failed"
)

// ProcessedInteraction marks an interaction as already run through the pipeline.
type ProcessedInteraction struct {
	ID          int64          `json:"id"`
	Source      Source         `json:"source"`
	SourceID    string         `json:"source_id"`
	PatternID   int64          `json:"pattern_id,omitempty"`
	FaqID       string         `json:"faq_id,omitempty"`
	Outcome     ProcessOutcome `json:"outcome"`
	Detail      string         `json:"detail,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}
