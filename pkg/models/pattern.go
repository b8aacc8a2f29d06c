package models

import (
	"sort"
	"strings"
	"time"
)

// LearningPattern is a recurring question shape observed across interactions.
// Frequency feeds the pattern-frequency factor of the confidence score.
type LearningPattern struct {
	ID         int64           `json:"id"`
	Category   string          `json:"category"`
	Signature  JSONStringArray `json:"signature"`  // Sorted keyword set identifying the pattern
	Frequency  int             `json:"frequency"`  // How many interactions matched, >= 1
	Confidence int             `json:"confidence"` // 0-100
	SourceIDs  JSONStringArray `json:"source_ids"` // Most recent interaction keys
	LastSeenAt time.Time       `json:"last_seen_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MaxPatternSources bounds the interaction keys kept per pattern.
const MaxPatternSources = 50

// NewLearningPattern creates a pattern from its first occurrence.
func NewLearningPattern(category string, signature []string, sourceKey string, now time.Time) *LearningPattern {
	p := &LearningPattern{
		Category:   category,
		Signature:  signature,
		Frequency:  1,
		SourceIDs:  JSONStringArray{sourceKey},
		LastSeenAt: now,
		CreatedAt:  now,
	}
	p.updateConfidence()
	return p
}

// AddOccurrence records a new interaction matching this pattern.
// A source already counted does not raise the frequency twice.
func (p *LearningPattern) AddOccurrence(sourceKey string, now time.Time) {
	p.LastSeenAt = now
	if p.SourceIDs.Contains(sourceKey) {
		return
	}
	p.Frequency++
	p.SourceIDs = appendCapped(p.SourceIDs, sourceKey, MaxPatternSources)
	p.updateConfidence()
}

// SetFrequency overwrites the frequency, never below one, and rescales confidence.
func (p *LearningPattern) SetFrequency(n int) {
	p.Frequency = max(n, 1)
	p.updateConfidence()
}

// updateConfidence scales confidence with frequency, saturating at ten occurrences.
func (p *LearningPattern) updateConfidence() {
	c := 30 + 50*min(p.Frequency, 10)/10
	if p.Category != "" {
		c += 10
	}
	p.Confidence = ClampConfidence(c)
}

// ExtractSignature builds a pattern signature from keywords and the question text.
// The result is lower-cased, de-duplicated and sorted.
func ExtractSignature(keywords []string, question string) []string {
	var signature []string
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			signature = append(signature, k)
		}
	}

	for _, word := range strings.FieldsFunc(question, isWordSeparator) {
		if len(word) > 3 && isSignificantWord(word) {
			signature = append(signature, strings.ToLower(word))
		}
	}

	signature = uniqueStrings(signature)
	sort.Strings(signature)
	return signature
}

func isWordSeparator(r rune) bool {
	switch r {
	case ' ', '-', '_', '.', ',', '?', '!', ':', ';', '\n', '\t', '"', '\'', '(', ')':
		return true
	}
	return false
}

// isSignificantWord filters out common stop words.
func isSignificantWord(word string) bool {
	stopWords := map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "that": true,
		"this": true, "from": true, "have": true, "not": true, "are": true,
		"was": true, "but": true, "all": true, "can": true, "had": true,
		"were": true, "been": true, "will": true, "when": true, "what": true,
		"does": true, "how": true, "where": true, "why": true, "which": true,
		"please": true, "thanks": true, "hello": true, "there": true, "your": true,
	}
	return !stopWords[strings.ToLower(word)]
}

// uniqueStrings returns a slice with duplicate strings removed.
func uniqueStrings(s []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

// CalculateMatchScore computes the Jaccard similarity between two signatures.
func CalculateMatchScore(sig1, sig2 []string) float64 {
	if len(sig1) == 0 || len(sig2) == 0 {
		return 0.0
	}

	set1 := make(map[string]bool, len(sig1))
	for _, s := range sig1 {
		set1[strings.ToLower(s)] = true
	}
	set2 := make(map[string]bool, len(sig2))
	for _, s := range sig2 {
		set2[strings.ToLower(s)] = true
	}

	matches := 0
	for s := range set2 {
		if set1[s] {
			matches++
		}
	}

	unionSize := len(set1) + len(set2) - matches
	if unionSize == 0 {
		return 0.0
	}
	return float64(matches) / float64(unionSize)
}
