package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/faqlearn/pkg/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

// fakeWorker answers the worker API routes with canned responses.
type fakeWorker struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeWorker) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeWorker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery,
		Auth: r.Header.Get("Authorization"), Body: string(body),
	})
	f.mu.Unlock()

	next := time.Date(2024, 6, 11, 2, 0, 0, 0, time.UTC)
	start := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	reply := func(v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.URL.Path == "/api/jobs":
		reply([]models.JobStatus{
			{Name: "daily-auto-publish", CronExpression: "0 2 * * *", Enabled: true, Status: models.JobIdle, NextRun: &next},
			{Name: "daily-kb-sync", CronExpression: "0 3 * * *", Status: models.JobError, ErrorMessage: "kb offline"},
		})
	case r.URL.Path == "/api/jobs/history":
		reply([]models.JobExecutionResult{
			{ID: "r2", JobName: "daily-cleanup", Trigger: models.TriggerManual, StartTime: start, EndTime: start.Add(2 * time.Second), Success: true, ItemsProcessed: 7},
			{ID: "r1", JobName: "daily-cleanup", Trigger: models.TriggerScheduled, StartTime: start, EndTime: start, Errors: []string{"purge audit logs: boom"}},
		})
	case r.URL.Path == "/api/jobs/daily-auto-publish/run":
		reply(models.JobExecutionResult{JobName: "daily-auto-publish", StartTime: start, EndTime: start.Add(1500 * time.Millisecond), Success: true, ItemsProcessed: 3})
	case r.URL.Path == "/api/jobs/nightly-nothing/run":
		http.Error(w, "unknown job: nightly-nothing", http.StatusNotFound)
	case strings.HasPrefix(r.URL.Path, "/api/jobs/daily-kb-sync/"):
		reply(models.JobStatus{Name: "daily-kb-sync", CronExpression: "30 5 * * *", Enabled: !strings.HasSuffix(r.URL.Path, "/disable")})
	case r.URL.Path == "/api/faqs/stats":
		reply(models.ReviewStats{
			Total:             5,
			ByStatus:          map[models.FaqStatus]int{models.StatusPendingReview: 2, models.StatusPublished: 3},
			AverageConfidence: 77.5,
			TopCategories:     []models.CategoryCount{{Category: "billing", Count: 4}},
			ByReviewer:        map[string]int{"rev-1": 3},
		})
	case r.URL.Path == "/api/audit/export":
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "ID,Action\na1,faq.approve\n")
	default:
		http.NotFound(w, r)
	}
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--url", srv.URL, "--token", "tok"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func newFakeWorker(t *testing.T) (*fakeWorker, *httptest.Server) {
	t.Helper()
	fw := &fakeWorker{}
	srv := httptest.NewServer(fw)
	t.Cleanup(srv.Close)
	return fw, srv
}

func TestJobsList(t *testing.T) {
	fw, srv := newFakeWorker(t)

	out, err := runCLI(t, srv, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "daily-auto-publish")
	assert.Contains(t, out, "0 2 * * *")
	assert.Contains(t, out, "error: kb offline")
	assert.Contains(t, out, "disabled")
	assert.Equal(t, "Bearer tok", fw.last().Auth)
}

func TestJobsHistoryLimitAndFilter(t *testing.T) {
	fw, srv := newFakeWorker(t)

	out, err := runCLI(t, srv, "jobs", "history", "--name", "daily-cleanup", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "name=daily-cleanup", fw.last().Query)
	assert.Contains(t, out, "manual")
	assert.NotContains(t, out, "purge audit logs", "second run is cut by --limit")
}

func TestJobsRun(t *testing.T) {
	fw, srv := newFakeWorker(t)

	out, err := runCLI(t, srv, "jobs", "run", "daily-auto-publish")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, fw.last().Method)
	assert.Contains(t, out, "daily-auto-publish finished in 1.5s, 3 item(s)")
}

func TestJobsRunUnknown(t *testing.T) {
	_, srv := newFakeWorker(t)

	_, err := runCLI(t, srv, "jobs", "run", "nightly-nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "unknown job")
}

func TestJobsScheduleAndToggle(t *testing.T) {
	fw, srv := newFakeWorker(t)

	out, err := runCLI(t, srv, "jobs", "schedule", "daily-kb-sync", "30 5 * * *")
	require.NoError(t, err)
	req := fw.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/jobs/daily-kb-sync/schedule", req.Path)
	assert.JSONEq(t, `{"cron_expression":"30 5 * * *"}`, req.Body)
	assert.Contains(t, out, "daily-kb-sync: enabled, 30 5 * * *")

	out, err = runCLI(t, srv, "jobs", "disable", "daily-kb-sync")
	require.NoError(t, err)
	assert.Contains(t, out, "daily-kb-sync: disabled")
}

func TestReviewStats(t *testing.T) {
	_, srv := newFakeWorker(t)

	out, err := runCLI(t, srv, "review", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total entries:      5")
	assert.Contains(t, out, "Average confidence: 77.5")
	assert.Contains(t, out, "billing")
	assert.Contains(t, out, "rev-1")
}

func TestAuditExportToFile(t *testing.T) {
	fw, srv := newFakeWorker(t)
	path := filepath.Join(t.TempDir(), "audit.csv")

	out, err := runCLI(t, srv, "audit", "export", "--format", "csv", "--action", "faq.approve", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID,Action\na1,faq.approve\n", string(data))
	assert.Equal(t, "action=faq.approve&format=csv", fw.last().Query)
}
