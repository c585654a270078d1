package editorial

import (
	"fmt"
	"strings"
	"unicode"

	"newsroom/internal/domain"
)

const (
	minTitleRunes = 10
	// maxTitleSimilarity is the token-overlap ratio above which a generated
	// title is considered a copy of the source headline.
	maxTitleSimilarity = 0.8
)

// ValidateTitle rejects generated titles that are too short or too similar
// to the source headline they were meant to replace.
func ValidateTitle(generated, sourceTitle string) error {
	if len([]rune(strings.TrimSpace(generated))) < minTitleRunes {
		return fmt.Errorf("%w: generated title too short (%q)", domain.ErrOutputFormat, generated)
	}
	if sourceTitle == "" {
		return nil
	}
	if similarity(generated, sourceTitle) > maxTitleSimilarity {
		return fmt.Errorf("%w: generated title too similar to source", domain.ErrOutputFormat)
	}
	return nil
}

// similarity is the Jaccard ratio over lowercase word sets.
func similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}
