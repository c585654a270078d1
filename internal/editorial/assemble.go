package editorial

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

const truncationMarker = "\n[content truncated]"

// Assembler builds the generation context for a source item, falling back to
// scraping the linked page when the ingested fields are too thin.
type Assembler struct {
	fetcher    ports.PageFetcher
	charBudget int
	minChars   int
	logger     *slog.Logger
}

// NewAssembler wires the optional page fetcher and size limits.
func NewAssembler(fetcher ports.PageFetcher, charBudget, minChars int, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		fetcher:    fetcher,
		charBudget: charBudget,
		minChars:   minChars,
		logger:     logger,
	}
}

// ArticleContext concatenates the item's raw title, description, and body
// into a labeled block, scraping the source link when that block is below
// the minimum threshold. It fails with domain.ErrInsufficientContext when
// even the fallback leaves too little material.
func (a *Assembler) ArticleContext(ctx context.Context, item *domain.SourceItem) (string, error) {
	var sections []string
	appendSection := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			sections = append(sections, label+": "+value)
		}
	}
	appendSection("Title", item.Title)
	appendSection("Description", item.Description)
	appendSection("Content", item.Body)

	combined := strings.Join(sections, "\n\n")

	if len(combined) < a.minChars && item.Link != "" && a.fetcher != nil {
		page, err := a.fetcher.ExtractMainText(ctx, item.Link)
		if err != nil {
			// Best-effort fallback; the threshold check below decides.
			a.logger.Debug("page fallback failed", "item", item.ID, "link", item.Link, "error", err)
		}
		if page = strings.TrimSpace(page); page != "" {
			sections = append(sections, "Page content: "+page)
			combined = strings.Join(sections, "\n\n")
		}
	}

	if len(combined) < a.minChars {
		return "", fmt.Errorf("%w: %d chars available, %d required", domain.ErrInsufficientContext, len(combined), a.minChars)
	}
	return a.truncate(combined), nil
}

// FixtureContext renders the prediction variant's context from a single
// fixture lookup result.
func (a *Assembler) FixtureContext(fixture *domain.Fixture) (string, error) {
	if fixture == nil || fixture.HomeTeam == "" || fixture.AwayTeam == "" {
		return "", fmt.Errorf("%w: fixture is missing team data", domain.ErrInsufficientContext)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fixture: %s vs %s", fixture.HomeTeam, fixture.AwayTeam)
	if fixture.League != "" {
		fmt.Fprintf(&b, "\nCompetition: %s", fixture.League)
	}
	if !fixture.KickoffAt.IsZero() {
		fmt.Fprintf(&b, "\nKickoff: %s", fixture.KickoffAt.UTC().Format("Monday 2 January 2006, 15:04 MST"))
	}
	if fixture.Venue != "" {
		fmt.Fprintf(&b, "\nVenue: %s", fixture.Venue)
	}
	if fixture.HomeForm != "" {
		fmt.Fprintf(&b, "\nRecent form %s: %s", fixture.HomeTeam, fixture.HomeForm)
	}
	if fixture.AwayForm != "" {
		fmt.Fprintf(&b, "\nRecent form %s: %s", fixture.AwayTeam, fixture.AwayForm)
	}
	return a.truncate(b.String()), nil
}

func (a *Assembler) truncate(text string) string {
	if a.charBudget <= 0 || len(text) <= a.charBudget {
		return text
	}
	return text[:runeBoundary(text, a.charBudget)] + truncationMarker
}
