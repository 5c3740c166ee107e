package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
)

func TestMemoryDocumentRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocumentRepository()

	doc := entities.NewDocument("worksheet.png", "image/png")
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	if err := repo.Create(ctx, doc); err == nil {
		t.Error("Expected error when creating a duplicate document")
	}

	retrieved, err := repo.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Filename != "worksheet.png" {
		t.Errorf("Expected filename worksheet.png, got %s", retrieved.Filename)
	}

	retrieved.MarkExtracted(&entities.Extraction{Text: "Solve", Latex: "x^2"})
	if err := repo.Update(ctx, retrieved); err != nil {
		t.Fatalf("Failed to update document: %v", err)
	}

	updated, err := repo.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Failed to get updated document: %v", err)
	}
	if updated.Status != entities.DocumentStatusExtracted {
		t.Errorf("Expected status extracted, got %s", updated.Status)
	}
	if !updated.UploadedAt.Equal(doc.UploadedAt) {
		t.Error("Update should preserve the upload time")
	}

	if err := repo.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}

	_, err = repo.GetByID(ctx, doc.ID)
	if !errors.Is(err, repositories.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, doc.ID); !errors.Is(err, repositories.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound on second delete, got %v", err)
	}
}

func TestMemoryDocumentRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocumentRepository()

	doc := entities.NewDocument("a.png", "image/png")
	doc.MarkExtracted(&entities.Extraction{Latex: "x^2"})
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	doc.Extraction.Latex = "mutated"

	first, _ := repo.GetByID(ctx, doc.ID)
	if first.Extraction.Latex != "x^2" {
		t.Errorf("Store should not share extraction with caller, got %q", first.Extraction.Latex)
	}

	first.Filename = "changed.png"
	second, _ := repo.GetByID(ctx, doc.ID)
	if second.Filename != "a.png" {
		t.Errorf("Store should return copies, got filename %q", second.Filename)
	}
}

func TestMemoryDocumentRepository_UpdateMissing(t *testing.T) {
	repo := NewMemoryDocumentRepository()

	err := repo.Update(context.Background(), entities.NewDocument("a.png", "image/png"))
	if !errors.Is(err, repositories.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestMemoryDocumentRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocumentRepository()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"first.png", "second.png", "third.png"} {
		doc := entities.NewDocument(name, "image/png")
		doc.UploadedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, doc); err != nil {
			t.Fatalf("Failed to create document: %v", err)
		}
	}

	docs, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].Filename != "third.png" || docs[1].Filename != "second.png" {
		t.Errorf("Expected newest first, got %s, %s", docs[0].Filename, docs[1].Filename)
	}

	all, _ := repo.List(ctx, 0)
	if len(all) != 3 {
		t.Errorf("Expected all 3 documents without limit, got %d", len(all))
	}
}

func TestMemoryDocumentRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocumentRepository()

	stale := entities.NewDocument("stale.png", "image/png")
	fresh := entities.NewDocument("fresh.png", "image/png")
	for _, doc := range []*entities.Document{stale, fresh} {
		if err := repo.Create(ctx, doc); err != nil {
			t.Fatalf("Failed to create document: %v", err)
		}
	}
	repo.documents[stale.ID].UpdatedAt = time.Now().Add(-48 * time.Hour)

	removed, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete old documents: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed document, got %d", removed)
	}

	if _, err := repo.GetByID(ctx, fresh.ID); err != nil {
		t.Errorf("Fresh document should survive, got %v", err)
	}
	if _, err := repo.GetByID(ctx, stale.ID); !errors.Is(err, repositories.ErrDocumentNotFound) {
		t.Errorf("Stale document should be gone, got %v", err)
	}
}
