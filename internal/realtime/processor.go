// Package realtime debounces processing signals from the chat and ticketing systems and runs
// each interaction through the pipeline after a settle delay.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/faqlearn/internal/pipeline"
	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/pkg/models"
)

// ExecutionTimeout bounds a single pipeline run.
const ExecutionTimeout = 2 * time.Minute

var (
	// ErrStopped is returned when scheduling on a stopped processor.
	ErrStopped = errors.New("real-time processor stopped")
)

// Executor runs one interaction through the pipeline. *pipeline.Pipeline satisfies it.
type Executor interface {
	ProcessChat(ctx context.Context, chat *models.ChatSession) (*pipeline.Result, error)
	ProcessTicket(ctx context.Context, ticket *models.Ticket) (*pipeline.Result, error)
}

// Decision is the answer to a processing signal.
type Decision struct {
	Key       string    `json:"key"`
	Scheduled bool      `json:"scheduled"`
	Replaced  bool      `json:"replaced,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RunAt     time.Time `json:"run_at,omitempty"`
}

// TaskStatus describes one pending or running execution.
type TaskStatus struct {
	Key         string        `json:"key"`
	Source      models.Source `json:"source"`
	SourceID    string        `json:"source_id"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	RunAt       time.Time     `json:"run_at"`
	Running     bool          `json:"running"`
}

// Status is a snapshot of the processor queue.
type Status struct {
	Enabled bool         `json:"enabled"`
	Pending int          `json:"pending"`
	Running int          `json:"running"`
	Tasks   []TaskStatus `json:"tasks"`
}

type task struct {
	gen         uint64
	source      models.Source
	sourceID    string
	timer       *time.Timer
	scheduledAt time.Time
	runAt       time.Time
	run         func(context.Context) error
	running     bool
	// due is set when the timer fired while an earlier execution of the key was still running.
	due bool
}

type instruments struct {
	scheduled metric.Int64Counter
	replaced  metric.Int64Counter
	executed  metric.Int64Counter
	failed    metric.Int64Counter
}

// Processor owns the debounce queue. Only the latest signal for a key runs; keys are
// independent of each other. A key never executes twice at the same time: a signal that comes
// due while its key is running starts when that run ends.
type Processor struct {
	exec     Executor
	settings settings.Provider
	logger   zerolog.Logger
	metrics  instruments
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*task
	active  map[string]*task
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

// NewProcessor creates a real-time processor.
func NewProcessor(exec Executor, sp settings.Provider, logger zerolog.Logger) *Processor {
	if sp == nil {
		sp = settings.Static{}
	}
	return &Processor{
		exec:     exec,
		settings: sp,
		logger:   logger.With().Str("component", "realtime").Logger(),
		metrics:  newInstruments(),
		now:      time.Now,
		pending:  make(map[string]*task),
		active:   make(map[string]*task),
	}
}

func newInstruments() instruments {
	meter := otel.Meter("github.com/thebtf/faqlearn/internal/realtime")
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			otel.Handle(err)
		}
		return c
	}
	return instruments{
		scheduled: counter("faqlearn.realtime.scheduled", "Interactions scheduled for processing"),
		replaced:  counter("faqlearn.realtime.replaced", "Pending executions replaced by a newer signal"),
		executed:  counter("faqlearn.realtime.executed", "Executions that completed"),
		failed:    counter("faqlearn.realtime.failed", "Executions that failed"),
	}
}

func (p *Processor) count(c metric.Int64Counter, source models.Source) {
	if c == nil {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", string(source))))
}

// ChatEligible reports whether a chat session qualifies for real-time processing.
func ChatEligible(chat *models.ChatSession, s *models.LearningSettings) (bool, string) {
	if n := len(chat.Messages); n < s.DataProcessing.MinChatMessages {
		return false, fmt.Sprintf("only %d messages, need %d", n, s.DataProcessing.MinChatMessages)
	}
	if chat.HelpfulCount() == 0 {
		return false, "no helpful messages"
	}
	if hasScoredBotMessage(chat) {
		if avg := chat.AverageBotConfidence(); avg < s.Advanced.ChatFeedbackThreshold {
			return false, fmt.Sprintf("bot confidence %.2f below %.2f", avg, s.Advanced.ChatFeedbackThreshold)
		}
	}
	return true, ""
}

func hasScoredBotMessage(chat *models.ChatSession) bool {
	for _, m := range chat.Messages {
		if m.Role == models.RoleBot && m.BotConfidence != nil {
			return true
		}
	}
	return false
}

// TicketEligible reports whether a ticket qualifies for real-time processing.
func TicketEligible(ticket *models.Ticket, s *models.LearningSettings) (bool, string) {
	if !ticket.IsResolved() {
		return false, fmt.Sprintf("ticket is %s", ticket.Status)
	}
	if n := len(ticket.Messages); n < s.DataProcessing.MinTicketMessages {
		return false, fmt.Sprintf("only %d messages, need %d", n, s.DataProcessing.MinTicketMessages)
	}
	if ticket.SLABreached {
		return false, "SLA breached"
	}
	d := ticket.ResolutionTime()
	if d == nil {
		return false, "no resolution time"
	}
	if hours := d.Hours(); hours > s.Advanced.TicketResolutionTimeThreshold {
		return false, fmt.Sprintf("resolved after %.1fh, limit %.0fh", hours, s.Advanced.TicketResolutionTimeThreshold)
	}
	return true, ""
}

// ScheduleChat queues a chat session for processing after the configured delay. A repeat
// signal for the same session replaces the pending one.
func (p *Processor) ScheduleChat(chat *models.ChatSession) (*Decision, error) {
	s := p.settings.Current()
	key := models.InteractionKey(models.SourceChat, chat.ID)
	if !s.Advanced.EnableRealTimeProcessing {
		return &Decision{Key: key, Reason: "real-time processing disabled"}, nil
	}
	if ok, reason := ChatEligible(chat, s); !ok {
		return &Decision{Key: key, Reason: reason}, nil
	}
	return p.schedule(key, models.SourceChat, chat.ID, delay(s), func(ctx context.Context) error {
		_, err := p.exec.ProcessChat(ctx, chat)
		return err
	})
}

// ScheduleTicket queues a resolved ticket for processing after the configured delay.
func (p *Processor) ScheduleTicket(ticket *models.Ticket) (*Decision, error) {
	s := p.settings.Current()
	key := models.InteractionKey(models.SourceTicket, ticket.ID)
	if !s.Advanced.EnableRealTimeProcessing {
		return &Decision{Key: key, Reason: "real-time processing disabled"}, nil
	}
	if ok, reason := TicketEligible(ticket, s); !ok {
		return &Decision{Key: key, Reason: reason}, nil
	}
	return p.schedule(key, models.SourceTicket, ticket.ID, delay(s), func(ctx context.Context) error {
		_, err := p.exec.ProcessTicket(ctx, ticket)
		return err
	})
}

func delay(s *models.LearningSettings) time.Duration {
	return time.Duration(max(s.DataProcessing.ProcessingDelay, 0)) * time.Millisecond
}

func (p *Processor) schedule(key string, source models.Source, sourceID string, d time.Duration, run func(context.Context) error) (*Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, ErrStopped
	}

	replaced := false
	if old, ok := p.pending[key]; ok {
		replaced = old.timer.Stop() || old.due
	}

	p.gen++
	gen := p.gen
	now := p.now()
	t := &task{
		gen:         gen,
		source:      source,
		sourceID:    sourceID,
		scheduledAt: now,
		runAt:       now.Add(d),
		run:         run,
	}
	t.timer = time.AfterFunc(d, func() { p.fire(key, gen) })
	p.pending[key] = t

	p.count(p.metrics.scheduled, source)
	if replaced {
		p.count(p.metrics.replaced, source)
	}
	p.logger.Debug().Str("key", key).Dur("delay", d).Bool("replaced", replaced).Msg("Interaction scheduled")

	return &Decision{Key: key, Scheduled: true, Replaced: replaced, RunAt: t.runAt}, nil
}

func (p *Processor) fire(key string, gen uint64) {
	p.mu.Lock()
	t, ok := p.pending[key]
	if p.stopped || !ok || t.gen != gen {
		p.mu.Unlock()
		return
	}
	if _, busy := p.active[key]; busy {
		t.due = true
		p.mu.Unlock()
		p.logger.Debug().Str("key", key).Msg("Key still running, execution deferred")
		return
	}
	delete(p.pending, key)
	t.running = true
	p.active[key] = t
	p.wg.Add(1)
	p.mu.Unlock()

	defer p.wg.Done()
	for t != nil {
		p.execute(key, t)
		t = p.next(key)
	}
}

// next releases key and claims its deferred execution, if any.
func (p *Processor) next(key string) *task {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, key)
	t, ok := p.pending[key]
	if p.stopped || !ok || !t.due {
		return nil
	}
	delete(p.pending, key)
	t.running = true
	p.active[key] = t
	return t
}

func (p *Processor) execute(key string, t *task) {
	ctx, cancel := context.WithTimeout(context.Background(), ExecutionTimeout)
	err := t.run(ctx)
	cancel()

	if err != nil {
		p.count(p.metrics.failed, t.source)
		p.logger.Error().Err(err).Str("key", key).Msg("Real-time processing failed")
		return
	}
	p.count(p.metrics.executed, t.source)
	p.logger.Debug().Str("key", key).Msg("Real-time processing completed")
}

// ClearQueue cancels every pending execution and returns how many were cancelled.
// Executions already running are left to finish.
func (p *Processor) ClearQueue() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clearLocked()
}

func (p *Processor) clearLocked() int {
	n := 0
	for key, t := range p.pending {
		t.timer.Stop()
		delete(p.pending, key)
		n++
	}
	return n
}

// Status returns a snapshot of pending and running executions, ordered by key.
func (p *Processor) Status() Status {
	enabled := p.settings.Current().Advanced.EnableRealTimeProcessing

	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		Enabled: enabled && !p.stopped,
		Pending: len(p.pending),
		Running: len(p.active),
		Tasks:   make([]TaskStatus, 0, len(p.pending)+len(p.active)),
	}
	for _, tasks := range []map[string]*task{p.active, p.pending} {
		for key, t := range tasks {
			st.Tasks = append(st.Tasks, TaskStatus{
				Key:         key,
				Source:      t.source,
				SourceID:    t.sourceID,
				ScheduledAt: t.scheduledAt,
				RunAt:       t.runAt,
				Running:     t.running,
			})
		}
	}
	sort.Slice(st.Tasks, func(i, j int) bool {
		if st.Tasks[i].Key != st.Tasks[j].Key {
			return st.Tasks[i].Key < st.Tasks[j].Key
		}
		return st.Tasks[i].Running
	})
	return st
}

// Stop cancels pending executions and waits for running ones. Later signals return ErrStopped.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancelled := p.clearLocked()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().Int("cancelled", cancelled).Msg("Real-time processor stopped")
}
