package repositories

import (
	"context"

	"github.com/satriahrh/mathvoice/domain/entities"
)

// OCR abstracts STEM-aware optical character recognition services
type OCR interface {
	// Extract reads text and LaTeX out of an encoded image
	Extract(ctx context.Context, image []byte, contentType string) (*entities.Extraction, error)
}
