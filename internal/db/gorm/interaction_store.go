package gorm

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/faqlearn/pkg/models"
)

// InteractionStore keeps interaction snapshots and processed markers using GORM.
type InteractionStore struct {
	store *Store
	db    *gorm.DB
}

// NewInteractionStore creates a new interaction store.
func NewInteractionStore(store *Store) *InteractionStore {
	return &InteractionStore{store: store, db: store.DB}
}

// SaveChat upserts the latest snapshot of a chat.
func (s *InteractionStore) SaveChat(ctx context.Context, chat *models.ChatSession) error {
	payload, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("encode chat %s: %w", chat.ID, err)
	}
	row := &ChatSnapshot{
		ID:      chat.ID,
		Status:  chat.Status,
		EndedAt: chat.EndedAt,
		Payload: payload,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "ended_at", "payload", "updated_at"}),
		}).
		Create(row).Error
}

// SaveTicket upserts the latest snapshot of a ticket.
func (s *InteractionStore) SaveTicket(ctx context.Context, ticket *models.Ticket) error {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", ticket.ID, err)
	}
	row := &TicketSnapshot{
		ID:         ticket.ID,
		Status:     ticket.Status,
		ResolvedAt: sqlNullTime(ticket.ResolvedAt),
		Payload:    payload,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "resolved_at", "payload", "updated_at"}),
		}).
		Create(row).Error
}

// ListChats returns chats that ended within [from, to), oldest first.
func (s *InteractionStore) ListChats(ctx context.Context, from, to time.Time, limit int) ([]*models.ChatSession, error) {
	var rows []ChatSnapshot
	query := s.db.WithContext(ctx).
		Where("ended_at >= ? AND ended_at < ?", from, to).
		Order("ended_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	out := make([]*models.ChatSession, 0, len(rows))
	for _, r := range rows {
		var chat models.ChatSession
		if err := json.Unmarshal(r.Payload, &chat); err != nil {
			return nil, fmt.Errorf("decode chat %s: %w", r.ID, err)
		}
		out = append(out, &chat)
	}
	return out, nil
}

// ListTickets returns tickets resolved within [from, to), oldest first.
func (s *InteractionStore) ListTickets(ctx context.Context, from, to time.Time, limit int) ([]*models.Ticket, error) {
	var rows []TicketSnapshot
	query := s.db.WithContext(ctx).
		Where("resolved_at >= ? AND resolved_at < ?", from, to).
		Order("resolved_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	out := make([]*models.Ticket, 0, len(rows))
	for _, r := range rows {
		var ticket models.Ticket
		if err := json.Unmarshal(r.Payload, &ticket); err != nil {
			return nil, fmt.Errorf("decode ticket %s: %w", r.ID, err)
		}
		out = append(out, &ticket)
	}
	return out, nil
}

// PurgeSnapshots deletes chats and tickets that finished before the cutoff.
func (s *InteractionStore) PurgeSnapshots(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := s.store.WithTimeout(ctx, SlowQueryTimeout, "purge_snapshots")
	defer cancel()

	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := tx.Where("ended_at < ?", before).Delete(&ChatSnapshot{})
		if chats.Error != nil {
			return chats.Error
		}
		tickets := tx.Where("resolved_at < ?", before).Delete(&TicketSnapshot{})
		if tickets.Error != nil {
			return tickets.Error
		}
		total = chats.RowsAffected + tickets.RowsAffected
		return nil
	})
	return total, err
}

// MarkProcessed upserts the marker for an interaction.
func (s *InteractionStore) MarkProcessed(ctx context.Context, p *models.ProcessedInteraction) error {
	row := &ProcessedInteraction{
		Source:      p.Source,
		SourceID:    p.SourceID,
		PatternID:   sqlNullInt64(p.PatternID),
		FaqID:       sqlNullString(p.FaqID),
		Outcome:     p.Outcome,
		Detail:      p.Detail,
		ProcessedAt: p.ProcessedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"pattern_id", "faq_id", "outcome", "detail", "processed_at"}),
		}).
		Create(row).Error
	if err != nil {
		return err
	}
	p.ID = row.ID
	return nil
}

// IsProcessed reports whether a marker exists.
func (s *InteractionStore) IsProcessed(ctx context.Context, source models.Source, sourceID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ProcessedInteraction{}).
		Where("source = ? AND source_id = ?", source, sourceID).
		Count(&count).Error
	return count > 0, err
}

// CountProcessedByPattern counts markers per pattern id.
func (s *InteractionStore) CountProcessedByPattern(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		PatternID int64
		Count     int
	}
	err := s.db.WithContext(ctx).
		Model(&ProcessedInteraction{}).
		Select("pattern_id, COUNT(*) AS count").
		Where("pattern_id IS NOT NULL").
		Group("pattern_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.PatternID] = r.Count
	}
	return out, nil
}

// PurgeProcessed deletes markers older than the cutoff.
func (s *InteractionStore) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := s.store.WithTimeout(ctx, SlowQueryTimeout, "purge_processed")
	defer cancel()

	result := s.db.WithContext(ctx).Where("processed_at < ?", before).Delete(&ProcessedInteraction{})
	return result.RowsAffected, result.Error
}
