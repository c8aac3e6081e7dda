package policy

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRedactPII(t *testing.T) {
	input := "Call +1 (555) 123-9876 about card 4242 4242 4242 4242, cc sam@example.com"
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIILeavesPlainText(t *testing.T) {
	out, changed := RedactPII("Buy milk")
	if changed || out != "Buy milk" {
		t.Fatalf("RedactPII() = %q, %v; want unchanged", out, changed)
	}
}

func TestLogTextTruncates(t *testing.T) {
	got := LogText(strings.Repeat("é", MaxLogTextRunes+10))
	if n := utf8.RuneCountInString(got); n != MaxLogTextRunes+1 {
		t.Fatalf("rune count = %d, want %d", n, MaxLogTextRunes+1)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("LogText() = %q, want ellipsis suffix", got)
	}
}
