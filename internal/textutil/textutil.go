package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CountNonBlankLines returns the number of lines in text containing any
// non-whitespace character.
func CountNonBlankLines(text string) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// DescriptionHash computes the content-addressed dedup key for a job
// description: the first 16 hex characters of the SHA-256 of the trimmed text.
func DescriptionHash(text string) string {
	normalized := strings.TrimSpace(text)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// Truncate shortens text to at most limit bytes, appending an ellipsis marker
// when truncation occurred. Limits below the marker length return the bare cut.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	const marker = "..."
	if limit <= len(marker) {
		return text[:limit]
	}
	return text[:limit-len(marker)] + marker
}

var titleCaser = cases.Title(language.Und)

// CleanTitle collapses whitespace in a job or company label. All-caps input
// is re-cased so "ACME CORP" renders as "Acme Corp"; mixed-case input is left
// alone to preserve acronyms like "PM".
func CleanTitle(value string) string {
	trimmed := strings.Join(strings.Fields(value), " ")
	if trimmed == "" {
		return ""
	}
	if trimmed == strings.ToUpper(trimmed) && trimmed != strings.ToLower(trimmed) {
		return titleCaser.String(strings.ToLower(trimmed))
	}
	return trimmed
}
