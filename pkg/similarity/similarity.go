// Package similarity provides text similarity utilities.
package similarity

import (
	"sort"
	"strings"
)

// Terms tokenizes text into its set of meaningful terms.
func Terms(text string) map[string]bool {
	terms := make(map[string]bool)
	addTerms(terms, text)
	return terms
}

// addTerms tokenizes text and adds meaningful terms to the set.
func addTerms(terms map[string]bool, text string) {
	// Simple tokenization: split on non-alphanumeric, filter short words
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	})

	for _, word := range words {
		if len(word) >= 3 && !stopWords[word] {
			terms[word] = true
		}
	}
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true, "can": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"for": true, "from": true, "with": true, "about": true, "into": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "by": true,
	"it": true, "its": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "why": true,
	"you": true, "your": true, "my": true, "me": true, "our": true,
}

// JaccardSimilarity calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func JaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// TextSimilarity is the Jaccard similarity of the term sets of two texts.
func TextSimilarity(a, b string) float64 {
	return JaccardSimilarity(Terms(a), Terms(b))
}

// Match is a scored corpus item.
type Match struct {
	Index int
	Score float64
}

// TopMatches scores query against every corpus text and returns the best k
// matches with a score above zero, highest first. Ties keep corpus order.
func TopMatches(query string, corpus []string, k int) []Match {
	queryTerms := Terms(query)
	if len(queryTerms) == 0 || k <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(corpus))
	for i, text := range corpus {
		score := JaccardSimilarity(queryTerms, Terms(text))
		if score > 0 {
			matches = append(matches, Match{Index: i, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// KeywordOverlap counts keywords present in both lists, case-insensitively.
func KeywordOverlap(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[strings.ToLower(k)] = true
	}
	n := 0
	seen := make(map[string]bool, len(b))
	for _, k := range b {
		k = strings.ToLower(k)
		if set[k] && !seen[k] {
			n++
			seen[k] = true
		}
	}
	return n
}

// TopTerms returns up to limit meaningful terms of text, most frequent first.
// Ties keep the order of first appearance.
func TopTerms(text string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	}) {
		if len(word) < 3 || stopWords[word] {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}
