package policy

import (
	"regexp"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// MaxLogTextRunes bounds how much task text reaches a log line.
const MaxLogTextRunes = 48

// RedactPII masks emails, card numbers and phone numbers.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	// Cards before phones, otherwise a card number reads as a phone number.
	for _, rule := range []struct {
		pattern *regexp.Regexp
		marker  string
	}{
		{emailPattern, "[REDACTED_EMAIL]"},
		{cardPattern, "[REDACTED_CARD]"},
		{phonePattern, "[REDACTED_PHONE]"},
	} {
		next := rule.pattern.ReplaceAllString(out, rule.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// LogText prepares user-entered task text for a log field.
func LogText(text string) string {
	out, _ := RedactPII(text)
	if utf8.RuneCountInString(out) <= MaxLogTextRunes {
		return out
	}
	runes := []rune(out)
	return string(runes[:MaxLogTextRunes]) + "…"
}
