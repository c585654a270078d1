package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/editorial"
	"newsroom/internal/ports"
	"newsroom/internal/prompts"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Items     ports.SourceItemRepository
	Content   ports.ContentRepository
	Settings  ports.SettingsRepository
	Generator ports.TextGenerator
	Assembler *editorial.Assembler
	Images    ports.ImageProcessor
	Fixtures  ports.FixtureProvider
	Notifier  ports.Notifier
	Logger    *slog.Logger

	Generation config.GenerationConfig
	Pipeline   config.PipelineConfig
}

// RunRequest triggers one pipeline run for a single source item.
type RunRequest struct {
	SourceItemID string
	PersonaID    string
	CategoryHint string
}

// RunResult reports the produced content record.
type RunResult struct {
	ContentID string
	Slug      string
}

// Pipeline rewrites one claimed source item into a publishable content
// record. A run that claims the processing flag always releases it: the item
// lands in processed, skipped, or error, never stuck in processing.
type Pipeline struct {
	items     ports.SourceItemRepository
	content   ports.ContentRepository
	settings  ports.SettingsRepository
	generator ports.TextGenerator
	assembler *editorial.Assembler
	images    ports.ImageProcessor
	fixtures  ports.FixtureProvider
	notifier  ports.Notifier
	logger    *slog.Logger

	titleTimeout    time.Duration
	bodyTimeout     time.Duration
	defaultCategory string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		items:           deps.Items,
		content:         deps.Content,
		settings:        deps.Settings,
		generator:       deps.Generator,
		assembler:       deps.Assembler,
		images:          deps.Images,
		fixtures:        deps.Fixtures,
		notifier:        deps.Notifier,
		logger:          deps.Logger,
		titleTimeout:    time.Duration(deps.Generation.TitleTimeoutSec) * time.Second,
		bodyTimeout:     time.Duration(deps.Generation.BodyTimeoutSec) * time.Second,
		defaultCategory: deps.Pipeline.DefaultCategory,
	}
}

// Run executes one pipeline run. Re-triggering a processed item returns the
// existing content without generating anything; a concurrent run surfaces as
// domain.ErrConflict.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	item, err := p.items.BeginProcessing(ctx, req.SourceItemID)
	if err != nil {
		return nil, err
	}

	if item.Status == domain.StatusProcessed {
		p.logger.Info("source item already processed", "item", item.ID, "content", item.ProcessedContentID)
		return p.existingResult(ctx, item)
	}

	result, err := p.produce(ctx, item, req)
	if err != nil {
		p.fail(ctx, item.ID, err)
		return nil, err
	}

	// Finish runs on a detached context so a canceled trigger request
	// cannot leave the item stuck in processing.
	finishCtx := context.WithoutCancel(ctx)
	if err := p.items.Finish(finishCtx, item.ID, domain.StatusProcessed, result.ContentID, ""); err != nil {
		p.logger.Error("finish after success failed", "item", item.ID, "error", err)
		// The item must still reach a terminal state; fall back to the
		// failure path rather than leaving the claim held.
		finishErr := fmt.Errorf("finish item %s: %w", item.ID, err)
		p.fail(ctx, item.ID, finishErr)
		return nil, finishErr
	}

	p.logger.Info("pipeline run completed", "item", item.ID, "content", result.ContentID, "slug", result.Slug)
	return result, nil
}

func (p *Pipeline) existingResult(ctx context.Context, item *domain.SourceItem) (*RunResult, error) {
	result := &RunResult{ContentID: item.ProcessedContentID}
	record, err := p.content.Get(ctx, item.ProcessedContentID)
	if err != nil {
		return nil, fmt.Errorf("load existing content for %s: %w", item.ID, err)
	}
	if record != nil {
		result.Slug = record.Slug
	}
	return result, nil
}

// fail writes the terminal status for a failed run and alerts operators on
// genuine errors. Skips are deliberate editorial outcomes and stay quiet.
func (p *Pipeline) fail(ctx context.Context, itemID string, runErr error) {
	status := domain.TerminalStatus(runErr)
	reason := runErr.Error()

	finishCtx := context.WithoutCancel(ctx)
	if err := p.items.Finish(finishCtx, itemID, status, "", reason); err != nil {
		p.logger.Error("finish after failure failed", "item", itemID, "status", status, "error", err)
	}

	if status == domain.StatusSkipped {
		p.logger.Info("source item skipped", "item", itemID, "reason", reason)
		return
	}

	p.logger.Error("pipeline run failed", "item", itemID, "reason", reason)
	if p.notifier != nil {
		if err := p.notifier.NotifyFailure(finishCtx, itemID, reason); err != nil {
			p.logger.Warn("failure notification not delivered", "item", itemID, "error", err)
		}
	}
}

func (p *Pipeline) produce(ctx context.Context, item *domain.SourceItem, req RunRequest) (*RunResult, error) {
	directive := p.personaDirective(ctx, req.PersonaID)

	sourceCtx, fixtureID, err := p.assembleContext(ctx, item)
	if err != nil {
		return nil, err
	}

	titleRole, bodyRole := prompts.RoleArticleTitle, prompts.RoleArticleBody
	if item.Kind == domain.KindFixture {
		titleRole, bodyRole = prompts.RolePredictionTitle, prompts.RolePredictionBody
	}

	title, err := p.generateTitle(ctx, titleRole, directive, sourceCtx, item.Title)
	if err != nil {
		return nil, err
	}

	body, err := p.generateBody(ctx, bodyRole, directive, sourceCtx, title)
	if err != nil {
		return nil, err
	}

	baseSlug := editorial.Slugify(title)

	// Image processing is best effort and independent of slug ownership, so
	// the two run concurrently.
	var (
		image *domain.ImageRef
		slug  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		image = p.images.Process(gctx, item.ImageURL, baseSlug)
		return nil
	})
	g.Go(func() error {
		var slugErr error
		slug, slugErr = p.resolveSlug(gctx, baseSlug)
		return slugErr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	record := &domain.ContentRecord{
		Slug:          slug,
		Title:         title,
		BodyHTML:      body,
		Categories:    p.categories(item, req.CategoryHint),
		Status:        domain.ContentDraft,
		IsAIGenerated: true,
		SourceItemID:  item.ID,
		FixtureID:     fixtureID,
		Image:         image,
		SEOSummary:    editorial.SEOSummary(body),
	}
	contentID, err := p.content.Insert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("persist content: %w", err)
	}

	return &RunResult{ContentID: contentID, Slug: slug}, nil
}

// assembleContext builds the generation source material for either variant.
// Fixture data is fetched exactly once; title and body prompts both derive
// from the same snapshot.
func (p *Pipeline) assembleContext(ctx context.Context, item *domain.SourceItem) (sourceCtx, fixtureID string, err error) {
	switch item.Kind {
	case domain.KindFixture:
		fixture, err := p.fixtures.Fixture(ctx, item.ExternalID)
		if err != nil {
			return "", "", fmt.Errorf("fetch fixture %s: %w", item.ExternalID, err)
		}
		text, err := p.assembler.FixtureContext(fixture)
		if err != nil {
			return "", "", err
		}
		return text, fixture.ID, nil
	default:
		text, err := p.assembler.ArticleContext(ctx, item)
		if err != nil {
			return "", "", err
		}
		return text, "", nil
	}
}

func (p *Pipeline) generateTitle(ctx context.Context, role prompts.Role, directive, sourceCtx, sourceTitle string) (string, error) {
	prompt := prompts.Build(p.template(ctx, role), directive, map[string]string{
		"context": sourceCtx,
	})
	raw, err := p.generator.Generate(ctx, prompt, p.titleTimeout)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}

	title := editorial.CleanTitle(raw)
	if err := editorial.ValidateTitle(title, sourceTitle); err != nil {
		return "", fmt.Errorf("title: %w", err)
	}
	return title, nil
}

func (p *Pipeline) generateBody(ctx context.Context, role prompts.Role, directive, sourceCtx, title string) (string, error) {
	prompt := prompts.Build(p.template(ctx, role), directive, map[string]string{
		"context":  sourceCtx,
		"title":    title,
		"sentinel": editorial.InsufficientContentSentinel,
	})
	raw, err := p.generator.Generate(ctx, prompt, p.bodyTimeout)
	if err != nil {
		return "", fmt.Errorf("generate body: %w", err)
	}

	if editorial.Declined(raw) {
		return "", domain.ErrContentDeclined
	}

	body, err := editorial.CleanBodyHTML(raw)
	if err != nil {
		return "", fmt.Errorf("body: %w", err)
	}
	return body, nil
}

// template prefers the stored override; a lookup failure falls back to the
// embedded default rather than failing the run.
func (p *Pipeline) template(ctx context.Context, role prompts.Role) string {
	stored, err := p.settings.PromptTemplate(ctx, string(role))
	if err != nil {
		p.logger.Warn("template lookup failed, using default", "role", role, "error", err)
		return prompts.Default(role)
	}
	if stored == "" {
		return prompts.Default(role)
	}
	return stored
}

// personaDirective resolves an optional persona; unknown or inactive
// personas are ignored.
func (p *Pipeline) personaDirective(ctx context.Context, personaID string) string {
	if personaID == "" {
		return ""
	}
	persona, err := p.settings.Persona(ctx, personaID)
	if err != nil {
		p.logger.Warn("persona lookup failed, ignoring", "persona", personaID, "error", err)
		return ""
	}
	if persona == nil || !persona.Active {
		p.logger.Info("persona not applied", "persona", personaID)
		return ""
	}
	return persona.Directive
}

// resolveSlug keeps the base slug when free and otherwise appends a short
// time-derived suffix, so concurrent runs over similar titles still produce
// distinct slugs.
func (p *Pipeline) resolveSlug(ctx context.Context, base string) (string, error) {
	exists, err := p.content.SlugExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("check slug %s: %w", base, err)
	}
	if !exists {
		return base, nil
	}
	return base + "-" + strconv.FormatInt(time.Now().UnixMilli(), 36), nil
}

func (p *Pipeline) categories(item *domain.SourceItem, hint string) []string {
	if hint != "" {
		return []string{hint}
	}
	if len(item.Categories) > 0 {
		return item.Categories
	}
	if p.defaultCategory != "" {
		return []string{p.defaultCategory}
	}
	return nil
}
