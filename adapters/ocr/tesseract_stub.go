//go:build !tesseract

package ocr

import (
	"errors"

	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/repositories"
)

// ErrTesseractUnavailable is returned when the binary was built without the
// tesseract tag
var ErrTesseractUnavailable = errors.New("tesseract support not compiled in; rebuild with -tags tesseract")

// NewTesseract reports that local OCR is unavailable in this build
func NewTesseract(languages []string, logger *zap.Logger) (repositories.OCR, error) {
	return nil, ErrTesseractUnavailable
}
