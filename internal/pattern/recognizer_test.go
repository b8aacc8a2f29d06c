package pattern

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/faqlearn/internal/db/memory"
	"github.com/thebtf/faqlearn/pkg/models"
)

func newTestRecognizer(t *testing.T) (*Recognizer, *memory.PatternRepo) {
	t.Helper()
	store := memory.NewPatternRepo()
	r := NewRecognizer(store, DefaultConfig(), zerolog.Nop())
	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	return r, store
}

func resetData(id string) *models.NormalizedData {
	return &models.NormalizedData{
		Question: "How do I reset my password?",
		Answer:   "Go to settings > security > reset.",
		Category: "Account",
		Keywords: []string{"password", "reset"},
		Source:   models.SourceChat,
		SourceID: id,
	}
}

func TestRecognizer_NewPattern(t *testing.T) {
	r, store := newTestRecognizer(t)

	result, err := r.Analyze(context.Background(), resetData("1"))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.IsNew {
		t.Error("Expected a new pattern")
	}
	if result.Frequency() != 1 {
		t.Errorf("Expected frequency 1, got %d", result.Frequency())
	}

	stored, err := store.GetPattern(context.Background(), result.PatternID())
	if err != nil {
		t.Fatalf("GetPattern failed: %v", err)
	}
	if stored.Category != "Account" {
		t.Errorf("Expected category Account, got %q", stored.Category)
	}
}

func TestRecognizer_MatchIncrementsFrequency(t *testing.T) {
	r, _ := newTestRecognizer(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if _, err := r.Analyze(ctx, resetData(id)); err != nil {
			t.Fatalf("Analyze %s failed: %v", id, err)
		}
	}

	result, err := r.Analyze(ctx, resetData("4"))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.IsNew {
		t.Error("Expected a match with the existing pattern")
	}
	if result.Frequency() != 4 {
		t.Errorf("Expected frequency 4, got %d", result.Frequency())
	}
}

func TestRecognizer_SameSourceCountsOnce(t *testing.T) {
	r, _ := newTestRecognizer(t)
	ctx := context.Background()

	_, _ = r.Analyze(ctx, resetData("1"))
	result, err := r.Analyze(ctx, resetData("1"))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Frequency() != 1 {
		t.Errorf("Re-analyzing the same interaction must not raise frequency, got %d", result.Frequency())
	}
}

func TestRecognizer_DifferentCategoryIsSeparate(t *testing.T) {
	r, _ := newTestRecognizer(t)
	ctx := context.Background()

	first, _ := r.Analyze(ctx, resetData("1"))
	other := resetData("2")
	other.Category = "Billing"
	second, err := r.Analyze(ctx, other)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if second.PatternID() == first.PatternID() {
		t.Error("Patterns in different categories must not merge")
	}
}

func TestRecognizer_EmptySignature(t *testing.T) {
	r, _ := newTestRecognizer(t)

	result, err := r.Analyze(context.Background(), &models.NormalizedData{Question: "how?", Source: models.SourceChat, SourceID: "x"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Pattern != nil || result.Frequency() != 0 {
		t.Error("Expected an empty result for an interaction without signature")
	}
}

func TestRecognizer_RefreshFrequencies(t *testing.T) {
	r, store := newTestRecognizer(t)
	ctx := context.Background()

	a, _ := r.Analyze(ctx, resetData("1"))
	_, _ = r.Analyze(ctx, resetData("2"))

	changed, err := r.RefreshFrequencies(ctx, map[int64]int{a.PatternID(): 7})
	if err != nil {
		t.Fatalf("RefreshFrequencies failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("Expected 1 changed pattern, got %d", changed)
	}

	p, _ := store.GetPattern(ctx, a.PatternID())
	if p.Frequency != 7 {
		t.Errorf("Expected frequency 7, got %d", p.Frequency)
	}

	changed, _ = r.RefreshFrequencies(ctx, map[int64]int{})
	p, _ = store.GetPattern(ctx, a.PatternID())
	if changed != 1 || p.Frequency != 1 {
		t.Errorf("Unreferenced pattern should drop to frequency 1, got %d (changed %d)", p.Frequency, changed)
	}
}

func TestInsight(t *testing.T) {
	p := models.NewLearningPattern("Account", []string{"password", "reset"}, "chat-1", time.Now())
	if got := Insight(p); got != "Seen 1 time in Account: password, reset" {
		t.Errorf("Unexpected insight %q", got)
	}
}
