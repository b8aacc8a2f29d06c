// Package privacy scrubs credentials and payment data out of support transcripts
// before they are learned into FAQ entries.
package privacy

import (
	"regexp"
	"strings"
	"unicode"
)

// Marker replaces redacted values.
const Marker = "[REDACTED]"

// secretPatterns match credentials customers and agents paste into conversations.
// Order matters: longer prefixes come before their shorter forms.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[a-zA-Z0-9_-]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`(?i)(secret[_-]?key|secret[_-]?token|auth[_-]?token)\s*[:=]\s*['"]?[a-zA-Z0-9_-]{20,}['"]?`),
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`gh[pous]_[a-zA-Z0-9]{36,}`),
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_.-]{20,}`),
}

// cardCandidate matches 13-19 digit runs optionally grouped by spaces or dashes.
// Candidates are confirmed with a Luhn check so order numbers survive.
var cardCandidate = regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)

// ContainsSecrets reports whether text holds a credential or a card number.
func ContainsSecrets(text string) bool {
	if text == "" {
		return false
	}
	for _, pattern := range secretPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	for _, m := range cardCandidate.FindAllString(text, -1) {
		if isCardNumber(m) {
			return true
		}
	}
	return false
}

// Redact replaces credentials and card numbers in text with Marker.
// Key names of key=value pairs are kept.
func Redact(text string) string {
	if text == "" {
		return text
	}

	result := text
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, redactMatch)
	}
	return cardCandidate.ReplaceAllStringFunc(result, func(match string) string {
		if !isCardNumber(match) {
			return match
		}
		digits := onlyDigits(match)
		return Marker + "-" + digits[len(digits)-4:]
	})
}

func redactMatch(match string) string {
	if idx := strings.IndexAny(match, "=:"); idx != -1 {
		return match[:idx+1] + Marker
	}
	if len(match) > 8 {
		return match[:4] + "..." + Marker
	}
	return Marker
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// isCardNumber applies the Luhn checksum to the digits of s.
func isCardNumber(s string) bool {
	digits := onlyDigits(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
