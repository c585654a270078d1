// Package storage persists source items and content records in MongoDB.
// The source-item repository also owns the persisted single-flight flag:
// the fetched->processing flip is a conditional update, so concurrent runs
// on the same item resolve to exactly one winner.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

const (
	sourceItemsCollection = "source_items"
	contentCollection     = "content_records"
	personasCollection    = "personas"
	templatesCollection   = "prompt_templates"

	opTimeout = 5 * time.Second
)

// Store owns the client and hands out per-collection repositories.
type Store struct {
	client *mongo.Client

	Items    *SourceItemRepo
	Content  *ContentRepo
	Settings *SettingsRepo
}

// New connects, pings, and ensures indexes.
func New(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	store := &Store{
		client:  client,
		Items:   &SourceItemRepo{coll: db.Collection(sourceItemsCollection)},
		Content: &ContentRepo{coll: db.Collection(contentCollection)},
		Settings: &SettingsRepo{
			personas:  db.Collection(personasCollection),
			templates: db.Collection(templatesCollection),
		},
	}
	if err := store.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return store, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.Content.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("slug index: %w", err)
	}

	_, err = s.Items.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "processing_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("status index: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// SourceItemRepo implements ports.SourceItemRepository on the source_items
// collection.
type SourceItemRepo struct {
	coll *mongo.Collection
}

var _ ports.SourceItemRepository = (*SourceItemRepo)(nil)

// Get loads a source item by id.
func (r *SourceItemRepo) Get(ctx context.Context, id string) (*domain.SourceItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var item domain.SourceItem
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load source item %s: %w", id, err)
	}
	return &item, nil
}

// BeginProcessing atomically claims the item. The status filter makes the
// flip race-free: only one caller can move an item into processing.
func (r *SourceItemRepo) BeginProcessing(ctx context.Context, id string) (*domain.SourceItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": bson.A{domain.StatusFetched, domain.StatusError}},
	}
	update := bson.M{"$set": bson.M{
		"status":        domain.StatusProcessing,
		"processing_at": now,
		"updated_at":    now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var item domain.SourceItem
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&item)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("claim source item %s: %w", id, err)
	}

	// The conditional update found nothing; inspect the item to report why.
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	switch current.Status {
	case domain.StatusProcessed:
		return current, nil
	case domain.StatusProcessing:
		return nil, fmt.Errorf("%w: %s is already being processed", domain.ErrConflict, id)
	case domain.StatusSkipped:
		return nil, fmt.Errorf("%w: %s was permanently skipped", domain.ErrConflict, id)
	default:
		return nil, fmt.Errorf("claim source item %s: unexpected status %s", id, current.Status)
	}
}

// Finish writes the terminal status and back-reference.
func (r *SourceItemRepo) Finish(ctx context.Context, id string, status domain.Status, contentID, reason string) error {
	// Finish only ever closes a claimed run.
	if _, err := domain.Transition(domain.StatusProcessing, status); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	set := bson.M{
		"status":         status,
		"failure_reason": reason,
		"updated_at":     time.Now().UTC(),
	}
	if contentID != "" {
		set["processed_content_id"] = contentID
	}
	update := bson.M{
		"$set":   set,
		"$unset": bson.M{"processing_at": ""},
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("finish source item %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return nil
}

// StaleProcessing lists items whose processing flag is older than the
// supplied age.
func (r *SourceItemRepo) StaleProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]domain.SourceItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-olderThan)
	filter := bson.M{
		"status":        domain.StatusProcessing,
		"processing_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find stale items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []domain.SourceItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode stale items: %w", err)
	}
	return items, nil
}

// ContentRepo implements ports.ContentRepository on the content_records
// collection.
type ContentRepo struct {
	coll *mongo.Collection
}

var _ ports.ContentRepository = (*ContentRepo)(nil)

// Insert persists a new content record. Slug collisions surface here as a
// duplicate-key error from the unique index.
func (r *ContentRepo) Insert(ctx context.Context, record *domain.ContentRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		return "", fmt.Errorf("insert content record: %w", err)
	}
	return record.ID, nil
}

// Get loads a content record by id, returning nil when it does not exist.
func (r *ContentRepo) Get(ctx context.Context, id string) (*domain.ContentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var record domain.ContentRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load content record %s: %w", id, err)
	}
	return &record, nil
}

// SlugExists reports slug ownership.
func (r *ContentRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	count, err := r.coll.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count slug %s: %w", slug, err)
	}
	return count > 0, nil
}

// SettingsRepo implements ports.SettingsRepository over the personas and
// prompt_templates collections.
type SettingsRepo struct {
	personas  *mongo.Collection
	templates *mongo.Collection
}

var _ ports.SettingsRepository = (*SettingsRepo)(nil)

// PromptTemplate returns the stored override for a role, or "" when the
// embedded default applies.
func (r *SettingsRepo) PromptTemplate(ctx context.Context, role string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc struct {
		Template string `bson:"template"`
	}
	err := r.templates.FindOne(ctx, bson.M{"_id": role}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", role, err)
	}
	return doc.Template, nil
}

// Persona returns nil without error for unknown personas.
func (r *SettingsRepo) Persona(ctx context.Context, id string) (*domain.Persona, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var persona domain.Persona
	err := r.personas.FindOne(ctx, bson.M{"_id": id}).Decode(&persona)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load persona %s: %w", id, err)
	}
	return &persona, nil
}
