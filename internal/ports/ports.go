package ports

import (
	"context"
	"time"

	"newsroom/internal/domain"
)

// TextGenerator produces raw model output for a fully built prompt. The
// timeout is per call; retry policy lives inside the implementation.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// SourceItemRepository owns SourceItem persistence and the single-flight
// processing flag.
type SourceItemRepository interface {
	Get(ctx context.Context, id string) (*domain.SourceItem, error)
	// BeginProcessing atomically flips the item into processing and returns
	// the claimed item. It fails with domain.ErrConflict when the flag is
	// already held or the item is permanently skipped, and with
	// domain.ErrNotFound when the item does not exist.
	BeginProcessing(ctx context.Context, id string) (*domain.SourceItem, error)
	// Finish writes the terminal status, optional content back-reference,
	// and failure reason.
	Finish(ctx context.Context, id string, status domain.Status, contentID, reason string) error
	// StaleProcessing lists items stuck in processing longer than the
	// supplied age, for scheduled reconciliation.
	StaleProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]domain.SourceItem, error)
}

// ContentRepository persists publishable records and answers slug ownership.
type ContentRepository interface {
	Insert(ctx context.Context, record *domain.ContentRecord) (string, error)
	Get(ctx context.Context, id string) (*domain.ContentRecord, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// SettingsRepository resolves stored prompt-template overrides and persona
// directives at call time.
type SettingsRepository interface {
	// PromptTemplate returns the stored override for a prompt role, or ""
	// when the embedded default should be used.
	PromptTemplate(ctx context.Context, role string) (string, error)
	// Persona returns nil without error when the persona is unknown.
	Persona(ctx context.Context, id string) (*domain.Persona, error)
}

// PageFetcher extracts the main article text from a linked page. It is a
// best-effort fallback content source.
type PageFetcher interface {
	ExtractMainText(ctx context.Context, pageURL string) (string, error)
}

// ImageProcessor downloads, transcodes, and uploads a source image. It never
// propagates failures; a nil result means the content ships without an image.
type ImageProcessor interface {
	Process(ctx context.Context, imageURL, nameHint string) *domain.ImageRef
}

// ObjectStore uploads immutable assets and returns their public URL. Keys
// are create-once; existing objects are never rewritten.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// FixtureProvider looks up match data for the prediction variant.
type FixtureProvider interface {
	Fixture(ctx context.Context, id string) (*domain.Fixture, error)
}

// Notifier alerts operators about error terminal states.
type Notifier interface {
	NotifyFailure(ctx context.Context, itemID, reason string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
