package ocr

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
)

// DemoContent is what DemoOCR "reads" from every image
var DemoContent = entities.Extraction{
	Text:       "This is a sample math problem: x squared plus 2x plus 1 equals zero. The solution is x equals negative 1.",
	Latex:      `x^2 + 2x + 1 = 0 \Rightarrow x = -1`,
	Confidence: 1,
}

// DemoOCR is an OCR stand-in for running without Mathpix credentials
type DemoOCR struct {
	logger *zap.Logger
}

var _ repositories.OCR = (*DemoOCR)(nil)

// NewDemoOCR creates a new demo OCR service
func NewDemoOCR(logger *zap.Logger) *DemoOCR {
	return &DemoOCR{logger: logger}
}

// Extract implements repositories.OCR
func (d *DemoOCR) Extract(ctx context.Context, image []byte, contentType string) (*entities.Extraction, error) {
	d.logger.Info("Demo OCR returning sample content",
		zap.Int("imageSize", len(image)),
		zap.String("contentType", contentType))

	extraction := DemoContent
	return &extraction, nil
}
