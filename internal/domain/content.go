package domain

import "time"

// ContentStatus is the publication state of a produced record. The pipeline
// only ever writes drafts; promotion to published happens elsewhere.
type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentPublished ContentStatus = "published"
)

// ImageRef points at a processed asset in object storage.
type ImageRef struct {
	URL   string `bson:"url"`
	Title string `bson:"title,omitempty"`
}

// ContentRecord is the persisted, publishable output of a pipeline run.
type ContentRecord struct {
	ID            string        `bson:"_id,omitempty"`
	Slug          string        `bson:"slug"`
	Title         string        `bson:"title"`
	BodyHTML      string        `bson:"body_html"`
	Categories    []string      `bson:"categories,omitempty"`
	Status        ContentStatus `bson:"status"`
	IsAIGenerated bool          `bson:"is_ai_generated"`
	SourceItemID  string        `bson:"source_item_id,omitempty"`
	FixtureID     string        `bson:"fixture_id,omitempty"`
	Image         *ImageRef     `bson:"image,omitempty"`
	SEOSummary    string        `bson:"seo_summary,omitempty"`
	CreatedAt     time.Time     `bson:"created_at"`
}

// Persona is an optional tone/voice directive merged into generation
// prompts. Inactive personas are ignored at call time.
type Persona struct {
	ID        string `bson:"_id,omitempty"`
	Name      string `bson:"name"`
	Directive string `bson:"directive"`
	Active    bool   `bson:"active"`
}
