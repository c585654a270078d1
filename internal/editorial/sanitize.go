// Package editorial holds the pure text transformations of the pipeline:
// output sanitization, title validity checks, slug normalization, and
// generation-context assembly. Nothing here touches I/O except the
// assembler's injected page fetcher.
package editorial

import (
	"fmt"
	"regexp"
	"strings"

	"newsroom/internal/domain"
)

// InsufficientContentSentinel is the fixed phrase the model is instructed to
// return instead of content when the source material is too thin to expand.
const InsufficientContentSentinel = "INSUFFICIENT_SOURCE_CONTENT"

var (
	codeFenceExpr = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\n?```\\s*$")
	preambleExpr  = regexp.MustCompile(`(?i)^\s*(here(('|’)s| is) (the |your |a )?(title|headline|article|content|html|rewritten [a-z]+)[^:\n]*:|(title|headline|article|output)\s*:|sure[,!][^\n]*:)\s*`)
	docTagExpr    = regexp.MustCompile(`(?is)<!doctype[^>]*>|</?(html|head|body)[^>]*>|<title[^>]*>.*?</title>|<style[^>]*>.*?</style>|<script[^>]*>.*?</script>|<meta[^>]*>|<link[^>]*>`)
	anyTagExpr    = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	h1Expr        = regexp.MustCompile(`(?i)<h1[\s>]`)
	mdHeadingExpr = regexp.MustCompile(`(?m)^\s*#{1,6}\s+\S`)
	mdEmphasis    = regexp.MustCompile(`\*\*[^*\n]+\*\*|(?m)^\s*[-*]\s+\S`)
	titleNoise    = regexp.MustCompile("[#*_`>\\[\\]]")
	spaceExpr     = regexp.MustCompile(`\s+`)
)

// Declined reports whether the raw model output is the deliberate
// insufficient-content signal rather than a formatting problem.
func Declined(raw string) bool {
	return strings.Contains(raw, InsufficientContentSentinel)
}

// CleanTitle applies the plain-title sanitizer contract: strip wrapper
// artifacts, markup tags, and markdown, collapse to a single line.
func CleanTitle(raw string) string {
	text := stripWrapper(raw)
	text = docTagExpr.ReplaceAllString(text, "")
	text = tagStripExpr.ReplaceAllString(text, " ")
	text = titleNoise.ReplaceAllString(text, "")
	text = spaceExpr.ReplaceAllString(text, " ")
	text = strings.Trim(text, ` "'“”`)
	return strings.TrimSpace(text)
}

// CleanBodyHTML applies the html-body sanitizer contract. The result must be
// an HTML fragment: at least one tag, no markdown syntax, and no
// document-level heading.
func CleanBodyHTML(raw string) (string, error) {
	text := stripWrapper(raw)
	text = docTagExpr.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if !anyTagExpr.MatchString(text) {
		return "", fmt.Errorf("%w: no HTML tags in body", domain.ErrOutputFormat)
	}
	if h1Expr.MatchString(text) {
		return "", fmt.Errorf("%w: body contains a top-level heading", domain.ErrOutputFormat)
	}
	if mdHeadingExpr.MatchString(text) || mdEmphasis.MatchString(text) {
		return "", fmt.Errorf("%w: body contains raw markdown", domain.ErrOutputFormat)
	}
	return text, nil
}

// stripWrapper removes code fences and conversational preambles the model
// sometimes wraps its answer in.
func stripWrapper(raw string) string {
	text := strings.TrimSpace(raw)
	// A preamble can sit outside the fence and vice versa, so alternate
	// until neither strips anything.
	for {
		prev := text
		if m := codeFenceExpr.FindStringSubmatch(text); m != nil {
			text = strings.TrimSpace(m[1])
		}
		text = strings.TrimSpace(preambleExpr.ReplaceAllString(text, ""))
		if text == prev {
			return text
		}
	}
}
