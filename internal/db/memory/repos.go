package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// PatternRepo stores learning patterns in memory.
type PatternRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]models.LearningPattern
}

// NewPatternRepo constructs a PatternRepo.
func NewPatternRepo() *PatternRepo {
	return &PatternRepo{byID: make(map[int64]models.LearningPattern)}
}

// GetPattern returns a pattern by id.
func (r *PatternRepo) GetPattern(ctx context.Context, id int64) (*models.LearningPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return clonePattern(p), nil
}

// ListPatterns returns patterns of a category (all categories when empty), most frequent first.
func (r *PatternRepo) ListPatterns(ctx context.Context, category string, limit int) ([]*models.LearningPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*models.LearningPattern, 0)
	for _, p := range r.byID {
		if category == "" || p.Category == category {
			out = append(out, clonePattern(p))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreatePattern stores a new pattern and assigns its id.
func (r *PatternRepo) CreatePattern(ctx context.Context, p *models.LearningPattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.byID[p.ID] = *clonePattern(*p)
	return nil
}

// UpdatePattern replaces a stored pattern.
func (r *PatternRepo) UpdatePattern(ctx context.Context, p *models.LearningPattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return db.ErrNotFound
	}
	r.byID[p.ID] = *clonePattern(*p)
	return nil
}

// DeleteStalePatterns removes rarely seen patterns not seen since the cutoff.
func (r *PatternRepo) DeleteStalePatterns(ctx context.Context, before time.Time, maxFrequency int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.byID {
		if p.LastSeenAt.Before(before) && p.Frequency <= maxFrequency {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func clonePattern(p models.LearningPattern) *models.LearningPattern {
	p.Signature = append(models.JSONStringArray(nil), p.Signature...)
	p.SourceIDs = append(models.JSONStringArray(nil), p.SourceIDs...)
	return &p
}

// InteractionRepo stores interaction snapshots and processed markers in memory.
type InteractionRepo struct {
	mu        sync.RWMutex
	chats     map[string]models.ChatSession
	tickets   map[string]models.Ticket
	processed map[string]models.ProcessedInteraction
	nextID    int64
}

// NewInteractionRepo constructs an InteractionRepo.
func NewInteractionRepo() *InteractionRepo {
	return &InteractionRepo{
		chats:     make(map[string]models.ChatSession),
		tickets:   make(map[string]models.Ticket),
		processed: make(map[string]models.ProcessedInteraction),
	}
}

// SaveChat upserts a chat snapshot.
func (r *InteractionRepo) SaveChat(ctx context.Context, chat *models.ChatSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.ID] = *chat
	return nil
}

// SaveTicket upserts a ticket snapshot.
func (r *InteractionRepo) SaveTicket(ctx context.Context, ticket *models.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = *ticket
	return nil
}

// ListChats returns chats that ended within [from, to), oldest first.
func (r *InteractionRepo) ListChats(ctx context.Context, from, to time.Time, limit int) ([]*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*models.ChatSession, 0)
	for _, c := range r.chats {
		if inWindow(c.EndedAt, from, to) {
			c := c
			out = append(out, &c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListTickets returns tickets resolved within [from, to), oldest first.
func (r *InteractionRepo) ListTickets(ctx context.Context, from, to time.Time, limit int) ([]*models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*models.Ticket, 0)
	for _, t := range r.tickets {
		if t.ResolvedAt != nil && inWindow(*t.ResolvedAt, from, to) {
			t := t
			out = append(out, &t)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ResolvedAt.Before(*out[j].ResolvedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeSnapshots drops chats and tickets that finished before the cutoff.
func (r *InteractionRepo) PurgeSnapshots(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.chats {
		if !c.EndedAt.IsZero() && c.EndedAt.Before(before) {
			delete(r.chats, id)
			n++
		}
	}
	for id, t := range r.tickets {
		if t.ResolvedAt != nil && t.ResolvedAt.Before(before) {
			delete(r.tickets, id)
			n++
		}
	}
	return n, nil
}

// MarkProcessed upserts the marker for an interaction.
func (r *InteractionRepo) MarkProcessed(ctx context.Context, p *models.ProcessedInteraction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := models.InteractionKey(p.Source, p.SourceID)
	if existing, ok := r.processed[key]; ok {
		p.ID = existing.ID
	} else {
		r.nextID++
		p.ID = r.nextID
	}
	r.processed[key] = *p
	return nil
}

// IsProcessed reports whether a marker exists.
func (r *InteractionRepo) IsProcessed(ctx context.Context, source models.Source, sourceID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.processed[models.InteractionKey(source, sourceID)]
	return ok, nil
}

// CountProcessedByPattern counts markers per pattern id.
func (r *InteractionRepo) CountProcessedByPattern(ctx context.Context) (map[int64]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]int)
	for _, p := range r.processed {
		if p.PatternID != 0 {
			out[p.PatternID]++
		}
	}
	return out, nil
}

// PurgeProcessed removes markers older than the cutoff.
func (r *InteractionRepo) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, p := range r.processed {
		if p.ProcessedAt.Before(before) {
			delete(r.processed, key)
			n++
		}
	}
	return n, nil
}

func inWindow(t, from, to time.Time) bool {
	return !t.IsZero() && !t.Before(from) && t.Before(to)
}

// AuditRepo is an in-memory audit trail.
type AuditRepo struct {
	mu      sync.RWMutex
	entries []models.AuditLog
}

// NewAuditRepo constructs an AuditRepo.
func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

// AppendAudit appends an entry.
func (r *AuditRepo) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// ListAudit returns matching entries, newest first.
func (r *AuditRepo) ListAudit(ctx context.Context, f db.AuditFilter) ([]*models.AuditLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.AuditLog, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if f.Action != "" && e.Action != f.Action ||
			f.ResourceType != "" && e.ResourceType != f.ResourceType ||
			f.ResourceID != "" && e.ResourceID != f.ResourceID ||
			f.UserID != "" && e.UserID != f.UserID ||
			f.From != nil && e.Timestamp.Before(*f.From) ||
			f.To != nil && e.Timestamp.After(*f.To) {
			continue
		}
		out = append(out, &e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// PurgeAudit removes entries older than the cutoff.
func (r *AuditRepo) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if !e.Timestamp.Before(before) {
			kept = append(kept, e)
		}
	}
	n := int64(len(r.entries) - len(kept))
	r.entries = kept
	return n, nil
}

// SettingsRepo is an in-memory key to JSON store.
type SettingsRepo struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewSettingsRepo constructs a SettingsRepo.
func NewSettingsRepo() *SettingsRepo {
	return &SettingsRepo{values: make(map[string][]byte)}
}

// GetSetting returns the raw JSON for key.
func (r *SettingsRepo) GetSetting(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// PutSetting stores the raw JSON for key.
func (r *SettingsRepo) PutSetting(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = append([]byte(nil), value...)
	return nil
}

// KBRepo is an in-memory knowledge base.
type KBRepo struct {
	mu       sync.RWMutex
	articles map[string]models.KBArticle
}

// NewKBRepo constructs a KBRepo.
func NewKBRepo() *KBRepo {
	return &KBRepo{articles: make(map[string]models.KBArticle)}
}

// GetArticle returns the article for an FAQ id.
func (r *KBRepo) GetArticle(ctx context.Context, faqID string) (*models.KBArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.articles[faqID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &a, nil
}

// UpsertArticle stores an article.
func (r *KBRepo) UpsertArticle(ctx context.Context, article *models.KBArticle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.articles[article.FaqID] = *article
	return nil
}
