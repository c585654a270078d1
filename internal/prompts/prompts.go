// Package prompts owns the generation prompt roles, their embedded default
// templates, and placeholder substitution. Stored template overrides are
// resolved by the caller at generation time; defaults always exist.
package prompts

import (
	_ "embed"
	"strings"
)

// Role names a stored prompt template slot.
type Role string

const (
	RoleArticleTitle    Role = "article_title"
	RoleArticleBody     Role = "article_body"
	RolePredictionTitle Role = "prediction_title"
	RolePredictionBody  Role = "prediction_body"
)

//go:embed templates/article_title.md
var defaultArticleTitle string

//go:embed templates/article_body.md
var defaultArticleBody string

//go:embed templates/prediction_title.md
var defaultPredictionTitle string

//go:embed templates/prediction_body.md
var defaultPredictionBody string

// Default returns the embedded template for a role.
func Default(role Role) string {
	switch role {
	case RoleArticleTitle:
		return defaultArticleTitle
	case RoleArticleBody:
		return defaultArticleBody
	case RolePredictionTitle:
		return defaultPredictionTitle
	case RolePredictionBody:
		return defaultPredictionBody
	}
	return ""
}

// Build assembles the final prompt: the persona directive (when present) is
// prepended to the template, then each {{name}} placeholder is substituted.
func Build(template, personaDirective string, vars map[string]string) string {
	prompt := strings.TrimSpace(template)
	if directive := strings.TrimSpace(personaDirective); directive != "" {
		prompt = directive + "\n\n" + prompt
	}
	for name, value := range vars {
		prompt = strings.ReplaceAll(prompt, "{{"+name+"}}", value)
	}
	return prompt
}
