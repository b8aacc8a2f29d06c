// Package pipeline runs single interactions and time windows through normalization, pattern
// recognition and FAQ generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/generator"
	"github.com/thebtf/faqlearn/internal/normalizer"
	"github.com/thebtf/faqlearn/internal/pattern"
	"github.com/thebtf/faqlearn/pkg/models"
)

// InteractionSource delivers resolved interactions for batch processing.
type InteractionSource interface {
	ResolvedChats(ctx context.Context, from, to time.Time, limit int) ([]*models.ChatSession, error)
	ResolvedTickets(ctx context.Context, from, to time.Time, limit int) ([]*models.Ticket, error)
}

// StoreSource reads interaction snapshots captured by the trigger endpoints.
type StoreSource struct {
	store db.InteractionStore
}

// NewStoreSource wraps an interaction store.
func NewStoreSource(store db.InteractionStore) *StoreSource {
	return &StoreSource{store: store}
}

// ResolvedChats returns chats that ended inside the window.
func (s *StoreSource) ResolvedChats(ctx context.Context, from, to time.Time, limit int) ([]*models.ChatSession, error) {
	chats, err := s.store.ListChats(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	out := chats[:0]
	for _, c := range chats {
		if !c.EndedAt.IsZero() {
			out = append(out, c)
		}
	}
	return out, nil
}

// ResolvedTickets returns resolved or closed tickets inside the window.
func (s *StoreSource) ResolvedTickets(ctx context.Context, from, to time.Time, limit int) ([]*models.Ticket, error) {
	tickets, err := s.store.ListTickets(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	out := tickets[:0]
	for _, t := range tickets {
		if t.IsResolved() {
			out = append(out, t)
		}
	}
	return out, nil
}

// Result describes what happened to one interaction.
type Result struct {
	Source    models.Source         `json:"source"`
	SourceID  string                `json:"source_id"`
	Outcome   models.ProcessOutcome `json:"outcome,omitempty"`
	FaqID     string                `json:"faq_id,omitempty"`
	PatternID int64                 `json:"pattern_id,omitempty"`
	Skipped   bool                  `json:"skipped"`
	Detail    string                `json:"detail,omitempty"`
}

// WindowResult summarizes a batch run.
type WindowResult struct {
	Processed int      `json:"processed"`
	Generated int      `json:"generated"`
	Merged    int      `json:"merged"`
	Discarded int      `json:"discarded"`
	Rejected  int      `json:"rejected"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Pipeline is the single entry point both triggering paths use.
type Pipeline struct {
	normalizer   normalizer.Normalizer
	recognizer   *pattern.Recognizer
	generator    *generator.Generator
	interactions db.InteractionStore
	source       InteractionSource
	logger       zerolog.Logger
	now          func() time.Time

	// keys keeps the window job and real-time signals off the same interaction at once.
	keys keyLocks
}

// New creates a pipeline. source may be nil when only single interactions are processed.
func New(n normalizer.Normalizer, r *pattern.Recognizer, g *generator.Generator, interactions db.InteractionStore, source InteractionSource, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		normalizer:   n,
		recognizer:   r,
		generator:    g,
		interactions: interactions,
		source:       source,
		logger:       logger.With().Str("component", "pipeline").Logger(),
		now:          time.Now,
	}
}

// ProcessChat runs one chat session through the pipeline.
func (p *Pipeline) ProcessChat(ctx context.Context, chat *models.ChatSession) (*Result, error) {
	return p.process(ctx, models.SourceChat, chat.ID, func() (*models.NormalizedData, error) {
		return p.normalizer.NormalizeChat(ctx, chat)
	})
}

// ProcessTicket runs one ticket through the pipeline.
func (p *Pipeline) ProcessTicket(ctx context.Context, ticket *models.Ticket) (*Result, error) {
	return p.process(ctx, models.SourceTicket, ticket.ID, func() (*models.NormalizedData, error) {
		return p.normalizer.NormalizeTicket(ctx, ticket)
	})
}

// ProcessWindow processes up to batchSize chats and batchSize tickets from the window.
// Items are handled one at a time and a failing item never stops the batch.
func (p *Pipeline) ProcessWindow(ctx context.Context, from, to time.Time, batchSize int) (*WindowResult, error) {
	if p.source == nil {
		return nil, errors.New("no interaction source configured")
	}
	chats, err := p.source.ResolvedChats(ctx, from, to, batchSize)
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	tickets, err := p.source.ResolvedTickets(ctx, from, to, batchSize)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	out := &WindowResult{}
	tally := func(res *Result, err error, key string) {
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", key, err))
			return
		}
		if res.Skipped {
			out.Skipped++
			return
		}
		out.Processed++
		switch res.Outcome {
		case models.OutcomeCreated:
			out.Generated++
		case models.OutcomeMerged:
			out.Merged++
		case models.OutcomeDiscarded:
			out.Discarded++
		case models.OutcomeRejected:
			out.Rejected++
		}
	}

	for _, chat := range chats {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := p.ProcessChat(ctx, chat)
		tally(res, err, models.InteractionKey(models.SourceChat, chat.ID))
	}
	for _, ticket := range tickets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := p.ProcessTicket(ctx, ticket)
		tally(res, err, models.InteractionKey(models.SourceTicket, ticket.ID))
	}

	p.logger.Info().
		Time("from", from).
		Time("to", to).
		Int("processed", out.Processed).
		Int("generated", out.Generated).
		Int("merged", out.Merged).
		Int("skipped", out.Skipped).
		Int("errors", len(out.Errors)).
		Msg("Window processed")
	return out, nil
}

func (p *Pipeline) process(ctx context.Context, source models.Source, sourceID string, normalize func() (*models.NormalizedData, error)) (*Result, error) {
	res := &Result{Source: source, SourceID: sourceID}

	unlock, err := p.keys.lock(ctx, models.InteractionKey(source, sourceID))
	if err != nil {
		return nil, fmt.Errorf("wait for %s %s: %w", source, sourceID, err)
	}
	defer unlock()

	done, err := p.interactions.IsProcessed(ctx, source, sourceID)
	if err != nil {
		return nil, fmt.Errorf("check processed marker: %w", err)
	}
	if done {
		res.Skipped = true
		return res, nil
	}

	data, err := normalize()
	if errors.Is(err, normalizer.ErrNotNormalizable) {
		res.Outcome, res.Detail = models.OutcomeRejected, err.Error()
		return res, p.mark(ctx, res)
	}
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	match, err := p.recognizer.Analyze(ctx, data)
	if err != nil {
		p.logger.Warn().Err(err).Str("source_id", sourceID).Msg("Pattern analysis failed, continuing without pattern")
	}
	res.PatternID = match.PatternID()

	outcome, err := p.generator.Generate(ctx, data, match.Frequency())
	switch {
	case err == nil:
		res.FaqID = outcome.Entry.ID
		res.Outcome = models.OutcomeCreated
		if outcome.Merged {
			res.Outcome = models.OutcomeMerged
		}
	case errors.Is(err, generator.ErrDuplicate):
		res.Outcome, res.Detail = models.OutcomeDiscarded, err.Error()
	case errors.Is(err, generator.ErrQualityRejected),
		errors.Is(err, generator.ErrLowConfidence),
		errors.Is(err, generator.ErrInvalidInput):
		res.Outcome, res.Detail = models.OutcomeRejected, err.Error()
	default:
		// Not marked, so a later run can retry.
		return nil, fmt.Errorf("generate: %w", err)
	}

	p.logger.Debug().
		Str("source_id", sourceID).
		Str("outcome", string(res.Outcome)).
		Str("faq_id", res.FaqID).
		Msg("Interaction processed")
	return res, p.mark(ctx, res)
}

func (p *Pipeline) mark(ctx context.Context, res *Result) error {
	err := p.interactions.MarkProcessed(ctx, &models.ProcessedInteraction{
		Source:      res.Source,
		SourceID:    res.SourceID,
		PatternID:   res.PatternID,
		FaqID:       res.FaqID,
		Outcome:     res.Outcome,
		Detail:      res.Detail,
		ProcessedAt: p.now(),
	})
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
