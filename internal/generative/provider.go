// Package generative is the boundary to the generative-answer capability.
package generative

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when the provider cannot serve a request right now.
// Generation and merge report it as a failure of the candidate.
var ErrUnavailable = errors.New("generative provider unavailable")

// Request asks for an answer to one question.
type Request struct {
	Question string
	// Context is supporting transcript text. It may be truncated to fit the model budget.
	Context string
	// DraftAnswer is a template or normalized answer to refine. Empty asks for a fresh answer.
	DraftAnswer string
	Category    string
	Keywords    []string
	// Categories is the existing category vocabulary the provider should pick from.
	Categories []string
}

// Answer is the provider's response.
type Answer struct {
	Answer     string   `json:"answer"`
	Category   string   `json:"category,omitempty"`
	Confidence float64  `json:"confidence"` // 0-100
	Keywords   []string `json:"keywords,omitempty"`
}

// MergeRequest asks the provider to combine two answers to the same question.
type MergeRequest struct {
	Question        string
	ExistingAnswer  string
	CandidateAnswer string
}

// Provider generates and merges FAQ answers.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Answer, error)
	Merge(ctx context.Context, req MergeRequest) (string, error)
}

// Static is an offline provider. It returns the draft answer (or the question context) as
// the answer and keeps the longer of two answers on merge.
type Static struct {
	Confidence float64
}

// Generate implements Provider.
func (s Static) Generate(_ context.Context, req Request) (*Answer, error) {
	text := strings.TrimSpace(req.DraftAnswer)
	if text == "" {
		text = strings.TrimSpace(req.Context)
	}
	if text == "" {
		return nil, ErrUnavailable
	}
	confidence := s.Confidence
	if confidence == 0 {
		confidence = 70
	}
	return &Answer{
		Answer:     text,
		Category:   req.Category,
		Confidence: confidence,
		Keywords:   append([]string(nil), req.Keywords...),
	}, nil
}

// Merge implements Provider.
func (s Static) Merge(_ context.Context, req MergeRequest) (string, error) {
	existing := strings.TrimSpace(req.ExistingAnswer)
	candidate := strings.TrimSpace(req.CandidateAnswer)
	if len(candidate) > len(existing) {
		return candidate, nil
	}
	return existing, nil
}
