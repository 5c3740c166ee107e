package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/mathvoice/domain/entities"
)

// ErrDocumentNotFound is returned when no document has the requested ID
var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepository defines data access methods for documents
type DocumentRepository interface {
	Create(ctx context.Context, doc *entities.Document) error
	GetByID(ctx context.Context, id string) (*entities.Document, error)
	Update(ctx context.Context, doc *entities.Document) error
	Delete(ctx context.Context, id string) error
	// List returns the most recently uploaded documents first
	List(ctx context.Context, limit int) ([]*entities.Document, error)
	// DeleteOlderThan removes documents last updated before cutoff and
	// returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
