//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
)

// TesseractOCR runs a local Tesseract engine. It only reads plain text, so
// the returned extraction never carries LaTeX. Build with -tags tesseract.
type TesseractOCR struct {
	languages     []string
	clientFactory func() *gosseract.Client
	logger        *zap.Logger
}

var _ repositories.OCR = (*TesseractOCR)(nil)

// NewTesseractOCR creates a Tesseract-backed OCR service
func NewTesseractOCR(languages []string, logger *zap.Logger) *TesseractOCR {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractOCR{
		languages:     languages,
		clientFactory: gosseract.NewClient,
		logger:        logger,
	}
}

// Extract implements repositories.OCR
func (t *TesseractOCR) Extract(ctx context.Context, image []byte, contentType string) (*entities.Extraction, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image cannot be empty")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract text: %w", err)
	}

	t.logger.Info("Tesseract extraction completed",
		zap.Int("textLength", len(text)),
		zap.Strings("languages", t.languages))

	return &entities.Extraction{
		Text: norm.NFC.String(strings.TrimSpace(text)),
	}, nil
}

// NewTesseract returns a Tesseract OCR service
func NewTesseract(languages []string, logger *zap.Logger) (repositories.OCR, error) {
	return NewTesseractOCR(languages, logger), nil
}
