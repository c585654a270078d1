package domain

import "time"

// SourceKind distinguishes the two pipeline variants.
type SourceKind string

const (
	KindArticle SourceKind = "article"
	KindFixture SourceKind = "fixture"
)

// SourceItem is an externally ingested article or fixture reference waiting
// to be rewritten into original content.
type SourceItem struct {
	ID                 string     `bson:"_id,omitempty"`
	ExternalID         string     `bson:"external_id"`
	Kind               SourceKind `bson:"kind"`
	Link               string     `bson:"link,omitempty"`
	Title              string     `bson:"title,omitempty"`
	Description        string     `bson:"description,omitempty"`
	Body               string     `bson:"body,omitempty"`
	ImageURL           string     `bson:"image_url,omitempty"`
	Categories         []string   `bson:"categories,omitempty"`
	Status             Status     `bson:"status"`
	ProcessedContentID string     `bson:"processed_content_id,omitempty"`
	FailureReason      string     `bson:"failure_reason,omitempty"`
	ProcessingAt       time.Time  `bson:"processing_at,omitempty"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

// Fixture is the sports-data view of an upcoming match; only the fields the
// prediction variant needs are modeled, the provider's raw shape stays at
// the boundary.
type Fixture struct {
	ID        string
	HomeTeam  string
	AwayTeam  string
	League    string
	Venue     string
	KickoffAt time.Time
	HomeForm  string
	AwayForm  string
}
