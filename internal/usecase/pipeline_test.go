package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/editorial"
	"newsroom/internal/logging"
)

type fakeItems struct {
	mu     sync.Mutex
	items  map[string]*domain.SourceItem
	finish []finishCall

	// finishErrFor makes Finish fail for one target status.
	finishErrFor domain.Status
	finishErr    error
}

type finishCall struct {
	id        string
	status    domain.Status
	contentID string
	reason    string
}

func newFakeItems(items ...*domain.SourceItem) *fakeItems {
	f := &fakeItems{items: map[string]*domain.SourceItem{}}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeItems) Get(_ context.Context, id string) (*domain.SourceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	clone := *item
	return &clone, nil
}

func (f *fakeItems) BeginProcessing(_ context.Context, id string) (*domain.SourceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	switch item.Status {
	case domain.StatusFetched, domain.StatusError:
		item.Status = domain.StatusProcessing
		item.ProcessingAt = time.Now()
		clone := *item
		return &clone, nil
	case domain.StatusProcessed:
		clone := *item
		return &clone, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrConflict, id)
	}
}

func (f *fakeItems) Finish(_ context.Context, id string, status domain.Status, contentID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finishErrFor != "" && status == f.finishErrFor {
		return f.finishErr
	}
	item, ok := f.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	item.Status = status
	item.ProcessedContentID = contentID
	item.FailureReason = reason
	item.ProcessingAt = time.Time{}
	f.finish = append(f.finish, finishCall{id: id, status: status, contentID: contentID, reason: reason})
	return nil
}

func (f *fakeItems) StaleProcessing(_ context.Context, olderThan time.Duration, limit int) ([]domain.SourceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []domain.SourceItem
	for _, item := range f.items {
		if item.Status == domain.StatusProcessing && !item.ProcessingAt.IsZero() && item.ProcessingAt.Before(cutoff) {
			out = append(out, *item)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fakeContent struct {
	mu       sync.Mutex
	records  map[string]*domain.ContentRecord
	slugs    map[string]bool
	insertID int
}

func newFakeContent(takenSlugs ...string) *fakeContent {
	f := &fakeContent{records: map[string]*domain.ContentRecord{}, slugs: map[string]bool{}}
	for _, slug := range takenSlugs {
		f.slugs[slug] = true
	}
	return f
}

func (f *fakeContent) Insert(_ context.Context, record *domain.ContentRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertID++
	record.ID = fmt.Sprintf("content-%d", f.insertID)
	f.records[record.ID] = record
	f.slugs[record.Slug] = true
	return record.ID, nil
}

func (f *fakeContent) Get(_ context.Context, id string) (*domain.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id], nil
}

func (f *fakeContent) SlugExists(_ context.Context, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slugs[slug], nil
}

type fakeSettings struct {
	templates map[string]string
	personas  map[string]*domain.Persona
}

func (f *fakeSettings) PromptTemplate(_ context.Context, role string) (string, error) {
	return f.templates[role], nil
}

func (f *fakeSettings) Persona(_ context.Context, id string) (*domain.Persona, error) {
	return f.personas[id], nil
}

// fakeGenerator replies from a queue and records every prompt it saw.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(f.replies) == 0 {
		return "", errors.New("fakeGenerator: no reply queued")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeImages struct {
	ref   *domain.ImageRef
	calls int
	hint  string
}

func (f *fakeImages) Process(_ context.Context, _ string, nameHint string) *domain.ImageRef {
	f.calls++
	f.hint = nameHint
	return f.ref
}

type fakeFixtures struct {
	fixture *domain.Fixture
	err     error
	calls   int
}

func (f *fakeFixtures) Fixture(_ context.Context, _ string) (*domain.Fixture, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fixture, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) NotifyFailure(_ context.Context, itemID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, itemID+": "+reason)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const (
	testTitle = "Late Drama Settles a Tense Merseyside Derby"
	testBody  = "<h2>A night of fine margins</h2><p>The visitors struck in stoppage time to take all three points.</p>"
)

func articleItem(id string) *domain.SourceItem {
	return &domain.SourceItem{
		ID:     id,
		Kind:   domain.KindArticle,
		Title:  "Everton 1-2 Liverpool: match report",
		Body:   strings.Repeat("The match swung back and forth with chances at both ends. ", 10),
		Status: domain.StatusFetched,
	}
}

type pipelineFixture struct {
	pipeline *Pipeline
	items    *fakeItems
	content  *fakeContent
	gen      *fakeGenerator
	images   *fakeImages
	fixtures *fakeFixtures
	notifier *fakeNotifier
	settings *fakeSettings
}

func newPipelineFixture(items *fakeItems) *pipelineFixture {
	f := &pipelineFixture{
		items:    items,
		content:  newFakeContent(),
		gen:      &fakeGenerator{replies: []string{testTitle, testBody}},
		images:   &fakeImages{ref: &domain.ImageRef{URL: "https://cdn.example.org/img.jpg"}},
		fixtures: &fakeFixtures{},
		notifier: &fakeNotifier{},
		settings: &fakeSettings{templates: map[string]string{}, personas: map[string]*domain.Persona{}},
	}
	logger := logging.Nop()
	f.pipeline = NewPipeline(PipelineDeps{
		Items:      f.items,
		Content:    f.content,
		Settings:   f.settings,
		Generator:  f.gen,
		Assembler:  editorial.NewAssembler(nil, 8000, 250, logger),
		Images:     f.images,
		Fixtures:   f.fixtures,
		Notifier:   f.notifier,
		Logger:     logger,
		Generation: config.GenerationConfig{TitleTimeoutSec: 20, BodyTimeoutSec: 120},
		Pipeline:   config.PipelineConfig{DefaultCategory: "news"},
	})
	return f
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	result, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Slug != "late-drama-settles-a-tense-merseyside-derby" {
		t.Errorf("slug = %q", result.Slug)
	}

	record := f.content.records[result.ContentID]
	if record == nil {
		t.Fatal("content record was not persisted")
	}
	if record.Status != domain.ContentDraft {
		t.Errorf("content status = %q, want draft", record.Status)
	}
	if !record.IsAIGenerated {
		t.Error("IsAIGenerated not set")
	}
	if record.Title != testTitle || record.BodyHTML != testBody {
		t.Errorf("record title/body = %q / %q", record.Title, record.BodyHTML)
	}
	if record.SourceItemID != "item-1" {
		t.Errorf("source back-reference = %q", record.SourceItemID)
	}
	if record.Image == nil || record.Image.URL == "" {
		t.Error("image ref missing")
	}
	if record.SEOSummary == "" || strings.Contains(record.SEOSummary, "<") {
		t.Errorf("seo summary = %q", record.SEOSummary)
	}
	if got := record.Categories; len(got) != 1 || got[0] != "news" {
		t.Errorf("categories = %v, want default", got)
	}

	item := f.items.items["item-1"]
	if item.Status != domain.StatusProcessed {
		t.Errorf("item status = %q, want processed", item.Status)
	}
	if item.ProcessedContentID != result.ContentID {
		t.Errorf("back-reference = %q, want %q", item.ProcessedContentID, result.ContentID)
	}
	if !item.ProcessingAt.IsZero() {
		t.Error("processing flag not cleared")
	}
}

func TestRunIsIdempotentForProcessedItems(t *testing.T) {
	t.Parallel()

	item := articleItem("item-1")
	item.Status = domain.StatusProcessed
	item.ProcessedContentID = "content-9"
	f := newPipelineFixture(newFakeItems(item))
	f.content.records["content-9"] = &domain.ContentRecord{ID: "content-9", Slug: "existing-slug"}

	result, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ContentID != "content-9" || result.Slug != "existing-slug" {
		t.Errorf("result = %+v, want existing content", result)
	}
	if f.gen.calls() != 0 {
		t.Errorf("generator was called %d times on a processed item", f.gen.calls())
	}
}

func TestRunConflictsWhileProcessing(t *testing.T) {
	t.Parallel()

	item := articleItem("item-1")
	item.Status = domain.StatusProcessing
	f := newPipelineFixture(newFakeItems(item))

	_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	if f.gen.calls() != 0 {
		t.Error("generator was called despite conflict")
	}
}

func TestRunConcurrentInvocationsSingleWinner(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))

	const runs = 4
	results := make(chan error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// Exactly one invocation claims the flag and generates; the rest either
	// conflict or, arriving after the winner finished, resolve idempotently.
	var ok int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok < 1 {
		t.Error("no invocation succeeded")
	}
	if len(f.content.records) != 1 {
		t.Errorf("content records = %d, want 1", len(f.content.records))
	}
	if f.gen.calls() != 2 {
		t.Errorf("generator calls = %d, want 2 (one winning run)", f.gen.calls())
	}
	if got := f.items.items["item-1"].Status; got != domain.StatusProcessed {
		t.Errorf("item status = %q, want processed", got)
	}
}

func TestRunUnknownItem(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems())
	_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "nope"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRunGenerationFailureEndsInError(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	f.gen.errs = []error{fmt.Errorf("after 3 attempts: %w", domain.ErrGenerationFailed)}

	_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}

	item := f.items.items["item-1"]
	if item.Status != domain.StatusError {
		t.Errorf("item status = %q, want error", item.Status)
	}
	if item.FailureReason == "" {
		t.Error("failure reason not recorded")
	}
	if !item.ProcessingAt.IsZero() {
		t.Error("processing flag not cleared after failure")
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifier calls = %d, want 1", f.notifier.count())
	}
}

func TestRunFailedSuccessFinishStillEndsTerminal(t *testing.T) {
	t.Parallel()

	items := newFakeItems(articleItem("item-1"))
	items.finishErrFor = domain.StatusProcessed
	items.finishErr = errors.New("write concern failed")
	f := newPipelineFixture(items)

	_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if err == nil {
		t.Fatal("Run succeeded despite the final status write failing")
	}

	item := items.items["item-1"]
	if item.Status == domain.StatusProcessing {
		t.Fatalf("item left in processing after Run returned")
	}
	if item.Status != domain.StatusError {
		t.Errorf("item status = %q, want error", item.Status)
	}
	if item.FailureReason == "" {
		t.Error("failure reason not recorded")
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifier calls = %d, want 1", f.notifier.count())
	}
}

func TestRunThinSourceSkipsWithoutAlert(t *testing.T) {
	t.Parallel()

	item := &domain.SourceItem{ID: "item-1", Kind: domain.KindArticle, Title: "short", Status: domain.StatusFetched}
	f := newPipelineFixture(newFakeItems(item))

	_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if !errors.Is(err, domain.ErrInsufficientContext) {
		t.Fatalf("error = %v, want ErrInsufficientContext", err)
	}
	if got := f.items.items["item-1"].Status; got != domain.StatusSkipped {
		t.Errorf("item status = %q, want skipped", got)
	}
	if f.notifier.count() != 0 {
		t.Error("skip must not alert operators")
	}
	if f.gen.calls() != 0 {
		t.Error("generator was called for thin source material")
	}
}

func TestRunModelDeclineSkips(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	f.gen.replies = []string{testTitle, editorial.InsufficientContentSentinel}

	_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if !errors.Is(err, domain.ErrContentDeclined) {
		t.Fatalf("error = %v, want ErrContentDeclined", err)
	}
	if got := f.items.items["item-1"].Status; got != domain.StatusSkipped {
		t.Errorf("item status = %q, want skipped", got)
	}
	if f.notifier.count() != 0 {
		t.Error("decline must not alert operators")
	}
}

func TestRunMalformedBodyEndsInError(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	f.gen.replies = []string{testTitle, "## A markdown heading\n\nplain paragraph without tags"}

	_, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if !errors.Is(err, domain.ErrOutputFormat) {
		t.Fatalf("error = %v, want ErrOutputFormat", err)
	}
	if got := f.items.items["item-1"].Status; got != domain.StatusError {
		t.Errorf("item status = %q, want error", got)
	}
}

func TestRunImageFailureStillPublishes(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	f.images.ref = nil

	result, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	record := f.content.records[result.ContentID]
	if record.Image != nil {
		t.Errorf("image = %+v, want nil", record.Image)
	}
	if got := f.items.items["item-1"].Status; got != domain.StatusProcessed {
		t.Errorf("item status = %q, want processed", got)
	}
}

func TestRunSlugCollisionGetsSuffix(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	base := "late-drama-settles-a-tense-merseyside-derby"
	f.content.slugs[base] = true

	result, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Slug == base || !strings.HasPrefix(result.Slug, base+"-") {
		t.Errorf("slug = %q, want suffixed variant of %q", result.Slug, base)
	}
}

func TestRunCategoryHintWins(t *testing.T) {
	t.Parallel()

	item := articleItem("item-1")
	item.Categories = []string{"ingested"}
	f := newPipelineFixture(newFakeItems(item))

	result, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1", CategoryHint: "transfers"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	record := f.content.records[result.ContentID]
	if len(record.Categories) != 1 || record.Categories[0] != "transfers" {
		t.Errorf("categories = %v, want [transfers]", record.Categories)
	}
}

func TestRunActivePersonaShapesPrompts(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	f.settings.personas["voice-1"] = &domain.Persona{ID: "voice-1", Directive: "Write with dry wit.", Active: true}

	if _, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1", PersonaID: "voice-1"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, prompt := range f.gen.prompts {
		if !strings.HasPrefix(prompt, "Write with dry wit.") {
			t.Errorf("prompt %d does not start with persona directive", i)
		}
	}
}

func TestRunInactivePersonaIgnored(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	f.settings.personas["voice-1"] = &domain.Persona{ID: "voice-1", Directive: "Write with dry wit.", Active: false}

	if _, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1", PersonaID: "voice-1"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, prompt := range f.gen.prompts {
		if strings.Contains(prompt, "dry wit") {
			t.Errorf("prompt %d applied an inactive persona", i)
		}
	}
}

func TestRunFixtureVariant(t *testing.T) {
	t.Parallel()

	item := &domain.SourceItem{ID: "item-1", ExternalID: "fx-42", Kind: domain.KindFixture, Status: domain.StatusFetched}
	f := newPipelineFixture(newFakeItems(item))
	f.fixtures.fixture = &domain.Fixture{
		ID:       "fx-42",
		HomeTeam: "Liverpool",
		AwayTeam: "Everton",
		League:   "Premier League",
	}
	f.gen.replies = []string{
		"Merseyside Derby Preview: Momentum Meets Desperation",
		"<h2>Form lines</h2><p>The hosts arrive unbeaten in five.</p>",
	}

	result, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.fixtures.calls != 1 {
		t.Errorf("fixture fetched %d times, want exactly once", f.fixtures.calls)
	}
	record := f.content.records[result.ContentID]
	if record.FixtureID != "fx-42" {
		t.Errorf("fixture back-reference = %q", record.FixtureID)
	}
	for _, prompt := range f.gen.prompts {
		if !strings.Contains(prompt, "Liverpool vs Everton") {
			t.Error("prompt missing fixture context")
		}
	}
}

func TestRunStoredTemplateOverride(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(newFakeItems(articleItem("item-1")))
	f.settings.templates["article_title"] = "Custom headline instructions.\n\n{{context}}"

	if _, err := f.pipeline.Run(context.Background(), RunRequest{SourceItemID: "item-1"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.gen.prompts) == 0 || !strings.HasPrefix(f.gen.prompts[0], "Custom headline instructions.") {
		t.Error("stored title template override was not used")
	}
}

func TestReconcilerSweepsStaleItems(t *testing.T) {
	t.Parallel()

	stale := articleItem("stale-1")
	stale.Status = domain.StatusProcessing
	stale.ProcessingAt = time.Now().Add(-time.Hour)

	fresh := articleItem("fresh-1")
	fresh.Status = domain.StatusProcessing
	fresh.ProcessingAt = time.Now()

	items := newFakeItems(stale, fresh)
	rec := NewReconciler(items, nil, config.ReconcilerConfig{StaleAfterMin: 30, BatchSize: 50}, logging.Nop())
	rec.Sweep(context.Background())

	if got := items.items["stale-1"].Status; got != domain.StatusError {
		t.Errorf("stale item status = %q, want error", got)
	}
	if items.items["stale-1"].FailureReason != staleReason {
		t.Errorf("reason = %q", items.items["stale-1"].FailureReason)
	}
	if got := items.items["fresh-1"].Status; got != domain.StatusProcessing {
		t.Errorf("fresh item status = %q, want untouched", got)
	}
}
