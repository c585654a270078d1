package editorial

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const seoSummaryLimit = 160

var tagStripExpr = regexp.MustCompile(`<[^>]*>`)

// SEOSummary derives a plain-text teaser from the sanitized HTML body,
// truncated at a word boundary.
func SEOSummary(bodyHTML string) string {
	text := tagStripExpr.ReplaceAllString(bodyHTML, " ")
	text = strings.TrimSpace(spaceExpr.ReplaceAllString(text, " "))
	if len(text) <= seoSummaryLimit {
		return text
	}

	cut := text[:runeBoundary(text, seoSummaryLimit)]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,;:.") + "…"
}

// runeBoundary backs a byte offset off to the nearest rune start so slicing
// never splits a multi-byte character.
func runeBoundary(text string, limit int) int {
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}
