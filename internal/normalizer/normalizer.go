// Package normalizer extracts question/answer pairs from raw support interactions.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/thebtf/faqlearn/internal/privacy"
	"github.com/thebtf/faqlearn/pkg/models"
	"github.com/thebtf/faqlearn/pkg/similarity"
)

// ErrNotNormalizable is returned when an interaction holds no usable question/answer pair.
var ErrNotNormalizable = errors.New("interaction has no question/answer pair")

// MaxKeywords bounds the keywords extracted per interaction.
const MaxKeywords = 8

// Normalizer turns raw interactions into NormalizedData.
type Normalizer interface {
	NormalizeChat(ctx context.Context, chat *models.ChatSession) (*models.NormalizedData, error)
	NormalizeTicket(ctx context.Context, ticket *models.Ticket) (*models.NormalizedData, error)
}

// Default is the built-in normalizer.
type Default struct {
	detectLanguage func(string) string
	redact         func(string) string
}

// New returns the default normalizer with language tagging and credential redaction.
func New() *Default {
	return &Default{detectLanguage: DetectLanguage, redact: privacy.Redact}
}

// NormalizeChat picks the first customer question and the helpful agent or bot replies to it.
// Without helpful replies the first reply is used.
func (n *Default) NormalizeChat(ctx context.Context, chat *models.ChatSession) (*models.NormalizedData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrNotNormalizable
	}

	qi := questionIndex(chat.Messages)
	if qi < 0 {
		return nil, fmt.Errorf("chat %s: %w: no customer question", chat.ID, ErrNotNormalizable)
	}

	var helpful []string
	first := ""
	for _, m := range chat.Messages[qi+1:] {
		if m.Role == models.RoleCustomer || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if first == "" {
			first = strings.TrimSpace(m.Content)
		}
		if m.Helpful != nil && *m.Helpful {
			helpful = append(helpful, strings.TrimSpace(m.Content))
		}
	}
	answer := strings.Join(helpful, "\n")
	if answer == "" {
		answer = first
	}
	if answer == "" {
		return nil, fmt.Errorf("chat %s: %w: no reply", chat.ID, ErrNotNormalizable)
	}

	question := n.scrub(strings.TrimSpace(chat.Messages[qi].Content))
	answer = n.scrub(answer)
	data := &models.NormalizedData{
		Question:   question,
		Answer:     answer,
		Category:   strings.TrimSpace(chat.Category),
		Keywords:   similarity.TopTerms(question+"\n"+answer, MaxKeywords),
		Confidence: 50,
		Context:    n.scrub(chatTranscript(chat.Messages)),
		SourceID:   chat.ID,
		Source:     models.SourceChat,
		Metadata: models.InteractionMetadata{
			SatisfactionRating: chat.SatisfactionRating,
			HelpfulRatio:       chat.HelpfulRatio(),
			Tags:               append([]string(nil), chat.Tags...),
			MessageCount:       len(chat.Messages),
			OccurredAt:         chat.StartedAt,
		},
	}
	if c := chat.AverageBotConfidence(); c > 0 {
		data.Confidence = models.ClampConfidence(int(math.Round(c * 100)))
	}
	if d := chat.Duration(); d > 0 {
		minutes := d.Minutes()
		data.Metadata.SessionDurationMinutes = &minutes
	}
	if !chat.EndedAt.IsZero() {
		data.Metadata.OccurredAt = chat.EndedAt
	}
	data.Metadata.Language = n.language(question + " " + answer)
	return data, nil
}

// NormalizeTicket uses the first question sentence of the description (or the subject) as the
// question and the resolution (or the last public agent reply) as the answer.
func (n *Default) NormalizeTicket(ctx context.Context, ticket *models.Ticket) (*models.NormalizedData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrNotNormalizable
	}

	question := firstQuestion(ticket.Description)
	if question == "" {
		question = strings.TrimSpace(ticket.Subject)
	}
	if question == "" {
		return nil, fmt.Errorf("ticket %s: %w: no question", ticket.ID, ErrNotNormalizable)
	}

	answer := strings.TrimSpace(ticket.Resolution)
	if answer == "" {
		for i := len(ticket.Messages) - 1; i >= 0; i-- {
			m := ticket.Messages[i]
			if m.Role != models.RoleCustomer && !m.Internal && strings.TrimSpace(m.Content) != "" {
				answer = strings.TrimSpace(m.Content)
				break
			}
		}
	}
	if answer == "" {
		return nil, fmt.Errorf("ticket %s: %w: no resolution", ticket.ID, ErrNotNormalizable)
	}

	question, answer = n.scrub(question), n.scrub(answer)
	resolved := ticket.IsResolved()
	data := &models.NormalizedData{
		Question:   question,
		Answer:     answer,
		Category:   strings.TrimSpace(ticket.Category),
		Keywords:   similarity.TopTerms(n.scrub(ticket.Subject)+"\n"+question+"\n"+answer, MaxKeywords),
		Confidence: 50,
		Context:    n.scrub(strings.TrimSpace(ticket.Subject + "\n" + ticket.Description)),
		SourceID:   ticket.ID,
		Source:     models.SourceTicket,
		Metadata: models.InteractionMetadata{
			Resolved:           &resolved,
			SatisfactionRating: ticket.SatisfactionRating,
			Tags:               append([]string(nil), ticket.Tags...),
			MessageCount:       len(ticket.Messages),
			OccurredAt:         ticket.CreatedAt,
		},
	}
	if resolved {
		data.Confidence = 70
	}
	if d := ticket.ResolutionTime(); d != nil {
		hours := d.Hours()
		data.Metadata.ResolutionTimeHours = &hours
		data.Metadata.OccurredAt = *ticket.ResolvedAt
	}
	data.Metadata.Language = n.language(question + " " + answer)
	return data, nil
}

func (n *Default) scrub(text string) string {
	if n.redact == nil {
		return text
	}
	return n.redact(text)
}

func (n *Default) language(text string) string {
	if n.detectLanguage == nil {
		return ""
	}
	return n.detectLanguage(text)
}

// questionIndex returns the first customer message that asks something, falling back to the
// first customer message.
func questionIndex(messages []models.ChatMessage) int {
	fallback := -1
	for i, m := range messages {
		if m.Role != models.RoleCustomer || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if strings.Contains(m.Content, "?") {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback
}

func firstQuestion(text string) string {
	end := strings.Index(text, "?")
	if end < 0 {
		return ""
	}
	start := strings.LastIndexAny(text[:end], ".!\n") + 1
	return strings.TrimSpace(text[start : end+1])
}

func chatTranscript(messages []models.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
