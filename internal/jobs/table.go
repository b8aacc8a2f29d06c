package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/internal/kb"
	"github.com/thebtf/faqlearn/internal/pipeline"
)

// Job names.
const (
	HourlyDataProcessing          = "hourly-data-processing"
	DailyAutoPublish              = "daily-auto-publish"
	DailyKBSync                   = "daily-kb-sync"
	WeeklyComprehensiveProcessing = "weekly-comprehensive-processing"
	DailyCleanup                  = "daily-cleanup"
	PatternFrequencyRefresh       = "pattern-frequency-refresh"
)

// WeeklyBatchMultiplier scales the configured batch size for the weekly run.
const WeeklyBatchMultiplier = 5

var errNotConfigured = errors.New("dependency not configured")

// Outcome is what a job body reports back to the orchestrator.
type Outcome struct {
	Items  int
	Errors []string
}

// Func is a job body.
type Func func(ctx context.Context) (*Outcome, error)

// Definition is one row of the job table.
type Definition struct {
	Name string
	Spec string
	Run  Func
}

// WindowProcessor runs the pipeline over a time window.
type WindowProcessor interface {
	ProcessWindow(ctx context.Context, from, to time.Time, batchSize int) (*pipeline.WindowResult, error)
}

// AutoPublisher publishes approved entries above the threshold.
type AutoPublisher interface {
	AutoPublish(ctx context.Context) (int, error)
}

// KBSyncer pushes published entries into the knowledge base.
type KBSyncer interface {
	Sync(ctx context.Context) (*kb.Result, error)
}

// FrequencyRefresher recomputes pattern frequencies from processed-interaction counts.
type FrequencyRefresher interface {
	RefreshFrequencies(ctx context.Context, counts map[int64]int) (int, error)
}

// Deps are the collaborators the job bodies call. A job whose dependency is nil fails when run.
type Deps struct {
	Pipeline     WindowProcessor
	Review       AutoPublisher
	KB           KBSyncer
	Recognizer   FrequencyRefresher
	Interactions db.InteractionStore
	Patterns     db.PatternStore
	Audit        db.AuditStore
}

// Table returns the job table in display order.
func (o *Orchestrator) Table(d Deps) []Definition {
	return []Definition{
		{Name: HourlyDataProcessing, Spec: "0 * * * *", Run: o.processWindow(d.Pipeline, time.Hour, 1)},
		{Name: DailyAutoPublish, Spec: "0 2 * * *", Run: autoPublish(d.Review)},
		{Name: DailyKBSync, Spec: "0 3 * * *", Run: kbSync(d.KB)},
		{Name: WeeklyComprehensiveProcessing, Spec: "0 0 * * 0", Run: o.processWindow(d.Pipeline, 7*24*time.Hour, WeeklyBatchMultiplier)},
		{Name: DailyCleanup, Spec: "0 4 * * *", Run: o.cleanup(d)},
		{Name: PatternFrequencyRefresh, Spec: "0 */6 * * *", Run: refreshFrequencies(d.Interactions, d.Recognizer)},
	}
}

func (o *Orchestrator) processWindow(p WindowProcessor, window time.Duration, multiplier int) Func {
	return func(ctx context.Context) (*Outcome, error) {
		if p == nil {
			return nil, fmt.Errorf("pipeline: %w", errNotConfigured)
		}
		to := o.now()
		batch := o.settings.Current().DataProcessing.BatchSize * multiplier
		res, err := p.ProcessWindow(ctx, to.Add(-window), to, batch)
		if err != nil {
			return nil, err
		}
		return &Outcome{Items: res.Processed, Errors: res.Errors}, nil
	}
}

func autoPublish(r AutoPublisher) Func {
	return func(ctx context.Context) (*Outcome, error) {
		if r == nil {
			return nil, fmt.Errorf("review queue: %w", errNotConfigured)
		}
		n, err := r.AutoPublish(ctx)
		if err != nil {
			return nil, err
		}
		return &Outcome{Items: n}, nil
	}
}

func kbSync(s KBSyncer) Func {
	return func(ctx context.Context) (*Outcome, error) {
		if s == nil {
			return nil, fmt.Errorf("knowledge base: %w", errNotConfigured)
		}
		res, err := s.Sync(ctx)
		if err != nil {
			return nil, err
		}
		return &Outcome{Items: res.Pushed(), Errors: res.Errors}, nil
	}
}

// cleanup purges processed markers, interaction snapshots, audit entries and single-occurrence
// patterns older than the retention period. Each step runs even when an earlier one failed.
func (o *Orchestrator) cleanup(d Deps) Func {
	return func(ctx context.Context) (*Outcome, error) {
		if d.Interactions == nil || d.Audit == nil || d.Patterns == nil {
			return nil, fmt.Errorf("stores: %w", errNotConfigured)
		}
		days := o.settings.Current().Advanced.RetentionPeriodDays
		cutoff := o.now().AddDate(0, 0, -days)

		out := &Outcome{}
		steps := []struct {
			name string
			run  func() (int64, error)
		}{
			{"processed markers", func() (int64, error) { return d.Interactions.PurgeProcessed(ctx, cutoff) }},
			{"interaction snapshots", func() (int64, error) { return d.Interactions.PurgeSnapshots(ctx, cutoff) }},
			{"audit logs", func() (int64, error) { return d.Audit.PurgeAudit(ctx, cutoff) }},
			{"stale patterns", func() (int64, error) { return d.Patterns.DeleteStalePatterns(ctx, cutoff, 1) }},
		}
		for _, step := range steps {
			n, err := step.run()
			if err != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("purge %s: %v", step.name, err))
				continue
			}
			out.Items += int(n)
		}
		if len(out.Errors) == len(steps) {
			return out, errors.New("every cleanup step failed")
		}
		return out, nil
	}
}

func refreshFrequencies(store db.InteractionStore, r FrequencyRefresher) Func {
	return func(ctx context.Context) (*Outcome, error) {
		if store == nil || r == nil {
			return nil, fmt.Errorf("pattern refresh: %w", errNotConfigured)
		}
		counts, err := store.CountProcessedByPattern(ctx)
		if err != nil {
			return nil, fmt.Errorf("count processed interactions: %w", err)
		}
		changed, err := r.RefreshFrequencies(ctx, counts)
		if err != nil {
			return nil, err
		}
		return &Outcome{Items: changed}, nil
	}
}
