// Package jobs owns the scheduled job table: cron schedules, single-flight execution, run
// history and job status.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/faqlearn/internal/audit"
	"github.com/thebtf/faqlearn/internal/settings"
	"github.com/thebtf/faqlearn/pkg/models"
)

// MaxHistory bounds the in-memory run history.
const MaxHistory = 100

// Audit actors.
const (
	SchedulerActor = "system:scheduler"
	ManualActor    = "system:manual"
)

var (
	// ErrUnknownJob is returned for a job name that is not in the table.
	ErrUnknownJob = errors.New("unknown job")
	// ErrInvalidSchedule is returned for a cron expression that does not parse.
	ErrInvalidSchedule = errors.New("invalid cron expression")
)

type job struct {
	def      Definition
	spec     string
	schedule cron.Schedule
	enabled  bool
	entryID  cron.EntryID
	state    models.JobState
	lastRun  *time.Time
	errMsg   string
}

// Orchestrator runs the job table. A job never runs twice at the same time: a trigger that
// arrives while the job is running waits for and shares the in-flight result.
type Orchestrator struct {
	cron     *cron.Cron
	group    singleflight.Group
	recorder *audit.Recorder
	settings settings.Provider
	logger   zerolog.Logger
	location *time.Location
	now      func() time.Time

	runs     metric.Int64Counter
	duration metric.Float64Histogram

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	history []models.JobExecutionResult
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	location *time.Location
}

// WithLocation interprets cron expressions in loc instead of the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// New creates an orchestrator with the default job table. Call Start to begin firing schedules.
func New(deps Deps, sp settings.Provider, recorder *audit.Recorder, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if sp == nil {
		sp = settings.Static{}
	}
	cfg := options{location: time.Local}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := logger.With().Str("component", "jobs").Logger()
	o := &Orchestrator{
		cron:     cron.New(cron.WithLogger(cronLogger{log: log}), cron.WithLocation(cfg.location)),
		location: cfg.location,
		recorder: recorder,
		settings: sp,
		logger:   log,
		now:      time.Now,
		jobs:     make(map[string]*job),
	}
	o.initMetrics()

	for _, def := range o.Table(deps) {
		if err := o.Register(def); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() {
	meter := otel.Meter("github.com/thebtf/faqlearn/internal/jobs")
	var err error
	if o.runs, err = meter.Int64Counter("faqlearn.jobs.runs", metric.WithDescription("Job executions")); err != nil {
		otel.Handle(err)
	}
	if o.duration, err = meter.Float64Histogram("faqlearn.jobs.duration",
		metric.WithDescription("Job execution time"), metric.WithUnit("s")); err != nil {
		otel.Handle(err)
	}
}

// Register adds a job to the table, enabled.
func (o *Orchestrator) Register(def Definition) error {
	sched, err := cron.ParseStandard(def.Spec)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, def.Spec, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.jobs[def.Name]; ok {
		return fmt.Errorf("job %s already registered", def.Name)
	}
	j := &job{def: def, spec: def.Spec, schedule: sched, state: models.JobIdle}
	o.jobs[def.Name] = j
	o.order = append(o.order, def.Name)
	o.enableLocked(j)
	return nil
}

func (o *Orchestrator) enableLocked(j *job) {
	name := j.def.Name
	j.entryID = o.cron.Schedule(j.schedule, cron.FuncJob(func() { o.fire(name) }))
	j.enabled = true
}

func (o *Orchestrator) lookup(name string) (*job, error) {
	j, ok := o.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j, nil
}

// Start begins firing schedules.
func (o *Orchestrator) Start() {
	o.cron.Start()
	o.logger.Info().Int("jobs", len(o.order)).Msg("Job scheduler started")
}

// Stop stops firing schedules and waits for running jobs, or for ctx.
func (o *Orchestrator) Stop(ctx context.Context) error {
	done := o.cron.Stop()
	select {
	case <-done.Done():
		o.logger.Info().Msg("Job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) fire(name string) {
	res, err := o.execute(context.Background(), name, models.TriggerScheduled)
	if err != nil {
		o.logger.Error().Err(err).Str("job", name).Msg("Scheduled job could not start")
		return
	}
	if !res.Success {
		o.logger.Warn().Str("job", name).Strs("errors", res.Errors).Msg("Scheduled job failed")
	}
}

// Run executes a job now. If the job is already running, Run waits for that run and returns
// its result. When ctx ends first Run returns its error and the job finishes in the background.
func (o *Orchestrator) Run(ctx context.Context, name string) (*models.JobExecutionResult, error) {
	return o.execute(ctx, name, models.TriggerManual)
}

func (o *Orchestrator) execute(ctx context.Context, name string, trigger models.JobTrigger) (*models.JobExecutionResult, error) {
	o.mu.Lock()
	j, err := o.lookup(name)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// The run outlives the caller: a cancelled request stops waiting, not the job.
	ch := o.group.DoChan(name, func() (interface{}, error) {
		return o.runJob(context.WithoutCancel(ctx), j, trigger), nil
	})
	select {
	case r := <-ch:
		if r.Shared {
			o.logger.Debug().Str("job", name).Str("trigger", string(trigger)).Msg("Joined in-flight run")
		}
		return r.Val.(*models.JobExecutionResult), nil
	case <-ctx.Done():
		o.logger.Warn().Str("job", name).Msg("Caller stopped waiting, job keeps running")
		return nil, fmt.Errorf("wait for job %s: %w", name, ctx.Err())
	}
}

func (o *Orchestrator) runJob(ctx context.Context, j *job, trigger models.JobTrigger) *models.JobExecutionResult {
	name := j.def.Name
	start := o.now()

	o.mu.Lock()
	j.state = models.JobRunning
	o.mu.Unlock()

	o.logger.Info().Str("job", name).Str("trigger", string(trigger)).Msg("Job started")
	out, err := safeRun(ctx, j.def.Run)
	end := o.now()

	res := &models.JobExecutionResult{
		ID:        uuid.NewString(),
		JobName:   name,
		Trigger:   trigger,
		StartTime: start,
		EndTime:   end,
		Success:   err == nil,
	}
	if out != nil {
		res.ItemsProcessed = out.Items
		res.Errors = append(res.Errors, out.Errors...)
	}
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}

	o.mu.Lock()
	j.lastRun = &start
	if err != nil {
		j.state, j.errMsg = models.JobError, err.Error()
	} else {
		j.state, j.errMsg = models.JobIdle, ""
	}
	o.history = append(o.history, *res)
	if len(o.history) > MaxHistory {
		o.history = append([]models.JobExecutionResult(nil), o.history[len(o.history)-MaxHistory:]...)
	}
	o.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("job", name), attribute.Bool("success", res.Success))
	if o.runs != nil {
		o.runs.Add(ctx, 1, attrs)
	}
	if o.duration != nil {
		o.duration.Record(ctx, res.Duration().Seconds(), attrs)
	}

	actor := SchedulerActor
	if trigger == models.TriggerManual {
		actor = ManualActor
	}
	o.recorder.Record(context.WithoutCancel(ctx), models.AuditLog{
		Action:       "job.run",
		UserID:       actor,
		ResourceType: models.ResourceJob,
		ResourceID:   name,
		Success:      res.Success,
		Details:      fmt.Sprintf("trigger=%s items=%d errors=%d", trigger, res.ItemsProcessed, len(res.Errors)),
	})

	ev := o.logger.Info()
	if err != nil {
		ev = o.logger.Error().Err(err)
	}
	ev.Str("job", name).
		Int("items", res.ItemsProcessed).
		Int("errors", len(res.Errors)).
		Dur("duration", res.Duration()).
		Msg("Job finished")
	return res
}

func safeRun(ctx context.Context, fn Func) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Enable resumes firing a job's schedule.
func (o *Orchestrator) Enable(name string) error {
	o.mu.Lock()
	j, err := o.lookup(name)
	if err == nil && !j.enabled {
		o.enableLocked(j)
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.audit("job.enable", name, "")
	return nil
}

// Disable stops firing a job's schedule. Manual runs still work.
func (o *Orchestrator) Disable(name string) error {
	o.mu.Lock()
	j, err := o.lookup(name)
	if err == nil && j.enabled {
		o.cron.Remove(j.entryID)
		j.enabled = false
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.audit("job.disable", name, "")
	return nil
}

// Reschedule replaces a job's cron expression.
func (o *Orchestrator) Reschedule(name, spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, spec, err)
	}

	o.mu.Lock()
	j, err := o.lookup(name)
	if err == nil {
		j.spec, j.schedule = spec, sched
		if j.enabled {
			o.cron.Remove(j.entryID)
			o.enableLocked(j)
		}
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.audit("job.reschedule", name, spec)
	return nil
}

func (o *Orchestrator) audit(action, name, details string) {
	o.recorder.Record(context.Background(), models.AuditLog{
		Action:       action,
		UserID:       ManualActor,
		ResourceType: models.ResourceJob,
		ResourceID:   name,
		Success:      true,
		Details:      details,
	})
}

// Statuses lists every job in table order.
func (o *Orchestrator) Statuses() []models.JobStatus {
	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.JobStatus, 0, len(o.order))
	for _, name := range o.order {
		j := o.jobs[name]
		st := models.JobStatus{
			Name:           name,
			CronExpression: j.spec,
			Enabled:        j.enabled,
			Status:         j.state,
			ErrorMessage:   j.errMsg,
		}
		if j.lastRun != nil {
			last := *j.lastRun
			st.LastRun = &last
		}
		if j.enabled {
			next := j.schedule.Next(now.In(o.location))
			st.NextRun = &next
		}
		out = append(out, st)
	}
	return out
}

// History returns recorded runs, newest first, optionally filtered by job name.
func (o *Orchestrator) History(name string) []models.JobExecutionResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.JobExecutionResult, 0, len(o.history))
	for i := len(o.history) - 1; i >= 0; i-- {
		if name != "" && o.history[i].JobName != name {
			continue
		}
		out = append(out, o.history[i])
	}
	return out
}

// cronLogger routes the cron library's logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
