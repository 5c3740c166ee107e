package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
)

// MemoryDocumentRepository is an in-memory implementation of DocumentRepository.
// Documents are copied on the way in and out so callers never share state
// with the store.
type MemoryDocumentRepository struct {
	mu        sync.RWMutex
	documents map[string]*entities.Document // id -> document mapping
}

// Ensure MemoryDocumentRepository implements the DocumentRepository interface
var _ repositories.DocumentRepository = (*MemoryDocumentRepository)(nil)

// NewMemoryDocumentRepository creates a new in-memory document repository
func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{
		documents: make(map[string]*entities.Document),
	}
}

// Create implements DocumentRepository interface
func (m *MemoryDocumentRepository) Create(ctx context.Context, doc *entities.Document) error {
	if doc == nil {
		return errors.New("document cannot be nil")
	}

	// Generate ID if not provided
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	if err := doc.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.documents[doc.ID]; exists {
		return errors.New("document with this ID already exists")
	}

	now := time.Now()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now

	m.documents[doc.ID] = copyDocument(doc)
	return nil
}

// GetByID implements DocumentRepository interface
func (m *MemoryDocumentRepository) GetByID(ctx context.Context, id string) (*entities.Document, error) {
	if id == "" {
		return nil, errors.New("document ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.documents[id]
	if !exists {
		return nil, repositories.ErrDocumentNotFound
	}

	return copyDocument(doc), nil
}

// Update implements DocumentRepository interface
func (m *MemoryDocumentRepository) Update(ctx context.Context, doc *entities.Document) error {
	if doc == nil {
		return errors.New("document cannot be nil")
	}

	if err := doc.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.documents[doc.ID]
	if !exists {
		return repositories.ErrDocumentNotFound
	}

	doc.UploadedAt = existing.UploadedAt // Preserve original upload time
	doc.UpdatedAt = time.Now()

	m.documents[doc.ID] = copyDocument(doc)
	return nil
}

// Delete implements DocumentRepository interface
func (m *MemoryDocumentRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("document ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.documents[id]; !exists {
		return repositories.ErrDocumentNotFound
	}

	delete(m.documents, id)
	return nil
}

// List implements DocumentRepository interface
func (m *MemoryDocumentRepository) List(ctx context.Context, limit int) ([]*entities.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		result = append(result, copyDocument(doc))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// DeleteOlderThan implements DocumentRepository interface
func (m *MemoryDocumentRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, doc := range m.documents {
		if doc.IsOlderThan(cutoff) {
			delete(m.documents, id)
			removed++
		}
	}

	return removed, nil
}

// copyDocument returns a copy that shares no pointers with doc
func copyDocument(doc *entities.Document) *entities.Document {
	docCopy := *doc
	if doc.Extraction != nil {
		extraction := *doc.Extraction
		docCopy.Extraction = &extraction
	}
	return &docCopy
}
