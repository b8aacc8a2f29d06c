package generative

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, zerolog.Nop())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, "closed", cb.State())
	cb.RecordFailure()
	assert.Equal(t, "open", cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, "half-open", cb.State())

	cb.RecordFailure()
	assert.Equal(t, "open", cb.State(), "a failed probe reopens the circuit")

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, zerolog.Nop())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	assert.False(t, cb.Allow(), "only one probe while half-open")

	cb.Abandon()
	assert.Equal(t, "half-open", cb.State())
	assert.True(t, cb.Allow(), "an abandoned probe frees the slot")
}

func TestParseAnswer(t *testing.T) {
	answer, err := parseAnswer("Here you go:\n```json\n{\"answer\":\" Open Settings. \",\"category\":\"Account\",\"confidence\":140}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Open Settings.", answer.Answer)
	assert.Equal(t, "Account", answer.Category)
	assert.Equal(t, 100.0, answer.Confidence)

	_, err = parseAnswer("no json here")
	assert.Error(t, err)

	_, err = parseAnswer(`{"answer":"  "}`)
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	p := Static{}

	answer, err := p.Generate(ctx, Request{Question: "q", DraftAnswer: "draft", Category: "General"})
	require.NoError(t, err)
	assert.Equal(t, "draft", answer.Answer)
	assert.Equal(t, 70.0, answer.Confidence)

	_, err = p.Generate(ctx, Request{Question: "q"})
	assert.ErrorIs(t, err, ErrUnavailable)

	merged, err := p.Merge(ctx, MergeRequest{ExistingAnswer: "short", CandidateAnswer: "a longer answer"})
	require.NoError(t, err)
	assert.Equal(t, "a longer answer", merged)
}

func TestBuildGeneratePrompt(t *testing.T) {
	prompt := buildGeneratePrompt(Request{
		Question:    "How do I reset my password?",
		DraftAnswer: "Go to settings.",
		Keywords:    []string{"password", "reset"},
		Categories:  []string{"Account", "Billing"},
	})
	assert.Contains(t, prompt, "Question: How do I reset my password?")
	assert.Contains(t, prompt, "Draft answer to refine:\nGo to settings.")
	assert.Contains(t, prompt, "Choose the category from: Account, Billing")
}

func messageResponse(text string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",` +
		`"content":[{"type":"text","text":` + text + `}],` +
		`"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":30}}`
}

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultAnthropicConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 1000
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	cfg.FailureThreshold = 2

	p, err := NewAnthropic(cfg, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestAnthropic_Generate(t *testing.T) {
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageResponse(`"{\"answer\":\"Open Settings > Security.\",\"category\":\"Account\",\"confidence\":82}"`)))
	})

	answer, err := p.Generate(context.Background(), Request{Question: "How do I reset my password?"})
	require.NoError(t, err)
	assert.Equal(t, "Open Settings > Security.", answer.Answer)
	assert.Equal(t, 82.0, answer.Confidence)
	assert.Equal(t, "closed", p.BreakerState())
}

func TestAnthropic_ServerErrorsOpenBreaker(t *testing.T) {
	var calls int32
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`))
	})

	_, err := p.Merge(context.Background(), MergeRequest{Question: "q", ExistingAnswer: "a", CandidateAnswer: "b"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "open", p.BreakerState())

	before := atomic.LoadInt32(&calls)
	_, err = p.Merge(context.Background(), MergeRequest{Question: "q"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, before, atomic.LoadInt32(&calls), "open circuit must fail fast")
}

func TestAnthropic_TruncatesContext(t *testing.T) {
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {})
	p.config.ContextTokens = 5

	long := "one two three four five six seven eight nine ten eleven twelve"
	short := p.truncate(long)
	assert.NotEqual(t, long, short)
	assert.True(t, len(short) < len(long))
	assert.Equal(t, "short text", p.truncate("short text"))
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic(AnthropicConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
