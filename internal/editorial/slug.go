package editorial

import (
	"regexp"
	"strings"
)

const maxSlugLength = 80

const fallbackSlug = "article"

var (
	nonSlugExpr   = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRunExpr = regexp.MustCompile(`-+`)
)

// Slugify normalizes a title to a URL-safe, lowercase, punctuation-stripped
// identifier. Collision disambiguation is the caller's concern.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = nonSlugExpr.ReplaceAllString(slug, "-")
	slug = hyphenRunExpr.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}
