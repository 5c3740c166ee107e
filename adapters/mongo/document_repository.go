package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
)

const documentsCollection = "documents"

type DocumentRepository struct {
	collection *mongo.Collection
}

// Ensure DocumentRepository implements the DocumentRepository interface
var _ repositories.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new MongoDB document repository
func NewDocumentRepository(db *mongo.Database) *DocumentRepository {
	return &DocumentRepository{
		collection: db.Collection(documentsCollection),
	}
}

// EnsureIndexes creates the indexes used by List and DeleteOlderThan
func (r *DocumentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
		{Keys: bson.D{{Key: "updated_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create document indexes: %w", err)
	}
	return nil
}

// Create implements repositories.DocumentRepository
func (r *DocumentRepository) Create(ctx context.Context, doc *entities.Document) error {
	if doc == nil {
		return errors.New("document cannot be nil")
	}

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	if err := doc.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID implements repositories.DocumentRepository
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entities.Document, error) {
	if id == "" {
		return nil, errors.New("document ID cannot be empty")
	}

	var doc entities.Document
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}

	return &doc, nil
}

// Update implements repositories.DocumentRepository
func (r *DocumentRepository) Update(ctx context.Context, doc *entities.Document) error {
	if doc == nil {
		return errors.New("document cannot be nil")
	}

	if err := doc.Validate(); err != nil {
		return err
	}

	doc.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"status":      doc.Status,
			"extraction":  doc.Extraction,
			"speech_text": doc.SpeechText,
			"script":      doc.Script,
			"voice_id":    doc.VoiceID,
			"audio_bytes": doc.AudioBytes,
			"error":       doc.Error,
			"updated_at":  doc.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": doc.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if result.MatchedCount == 0 {
		return repositories.ErrDocumentNotFound
	}

	return nil
}

// Delete implements repositories.DocumentRepository
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("document ID cannot be empty")
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if result.DeletedCount == 0 {
		return repositories.ErrDocumentNotFound
	}

	return nil
}

// List implements repositories.DocumentRepository
func (r *DocumentRepository) List(ctx context.Context, limit int) ([]*entities.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make([]*entities.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	return docs, nil
}

// DeleteOlderThan implements repositories.DocumentRepository
func (r *DocumentRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"updated_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old documents: %w", err)
	}

	return int(result.DeletedCount), nil
}
