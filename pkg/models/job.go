package models

import "time"

// JobState is the run state of a scheduled job.
type JobState string

const (
	JobIdle    JobState = "idle"
	JobRunning JobState = "running"
	JobError   JobState = "error"
)

// JobTrigger says how a run was started.
type JobTrigger string

const (
	TriggerScheduled JobTrigger = "scheduled"
	TriggerManual    JobTrigger = "manual"
)

// JobExecutionResult is the record of one job run.
type JobExecutionResult struct {
	ID             string     `json:"id"`
	JobName        string     `json:"job_name"`
	Trigger        JobTrigger `json:"trigger"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Success        bool       `json:"success"`
	ItemsProcessed int        `json:"items_processed"`
	Errors         []string   `json:"errors,omitempty"`
}

// Duration returns the wall time of the run.
func (r *JobExecutionResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// JobStatus is the externally visible state of a scheduled job.
type JobStatus struct {
	Name           string     `json:"name"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
	Status         JobState   `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}
