package textutil

import (
	"strings"
	"testing"
)

func TestCountNonBlankLines(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty", "", 0},
		{"only blanks", "\n  \n\t\n", 0},
		{"mixed", "a\n\nb\n   \nc", 3},
		{"no trailing newline", "one line", 1},
	}
	for _, tc := range cases {
		if got := CountNonBlankLines(tc.text); got != tc.expected {
			t.Fatalf("%s: got %d, want %d", tc.name, got, tc.expected)
		}
	}
}

func TestDescriptionHashStableAndTrimmed(t *testing.T) {
	a := DescriptionHash("  role description  ")
	b := DescriptionHash("role description")
	if a != b {
		t.Fatalf("expected trimmed inputs to hash equal: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(a))
	}
	if a == DescriptionHash("different description") {
		t.Fatal("different inputs should not collide")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := Truncate(long, 500)
	if len(got) != 500 {
		t.Fatalf("expected 500 bytes, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
	if Truncate("short", 500) != "short" {
		t.Fatal("short input should pass through")
	}
}

func TestCleanTitle(t *testing.T) {
	if got := CleanTitle("  ACME  CORP "); got != "Acme Corp" {
		t.Fatalf("all-caps input: got %q", got)
	}
	if got := CleanTitle("Senior PM, Growth"); got != "Senior PM, Growth" {
		t.Fatalf("mixed-case input should be preserved: got %q", got)
	}
	if got := CleanTitle("   "); got != "" {
		t.Fatalf("blank input: got %q", got)
	}
}
