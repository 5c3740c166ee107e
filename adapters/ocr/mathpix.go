package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
)

const (
	defaultMathpixBaseURL = "https://api.mathpix.com/v3"
	defaultMathpixTimeout = 30 * time.Second
)

// MathpixConfig holds configuration for the MathpixOCR adapter
// Required fields:
// - AppID, AppKey: Mathpix API credentials
// Optional fields with defaults:
// - APIBaseURL: default "https://api.mathpix.com/v3"
// - Timeout: default 30s
type MathpixConfig struct {
	AppID      string
	AppKey     string
	APIBaseURL string
	Timeout    time.Duration
}

// MathpixOCR implements the OCR interface using the Mathpix v3/text API
type MathpixOCR struct {
	appID      string
	appKey     string
	apiBaseURL string
	client     *http.Client
	logger     *zap.Logger
}

// Ensure MathpixOCR implements the OCR interface
var _ repositories.OCR = (*MathpixOCR)(nil)

// mathpixRequest is the v3/text request body
type mathpixRequest struct {
	Src           string   `json:"src"`
	Formats       []string `json:"formats"`
	IncludeLatex  bool     `json:"include_latex"`
	IncludeMathML bool     `json:"include_mathml"`
}

// mathpixResponse holds the v3/text fields we use
type mathpixResponse struct {
	Text        string  `json:"text"`
	LatexStyled string  `json:"latex_styled"`
	MathML      string  `json:"mathml"`
	Confidence  float64 `json:"confidence"`
	Error       string  `json:"error"`
}

// ValidateMathpixConfig validates the MathpixConfig
func ValidateMathpixConfig(config MathpixConfig) error {
	if config.AppID == "" {
		return fmt.Errorf("mathpix app id is required")
	}
	if config.AppKey == "" {
		return fmt.Errorf("mathpix app key is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewMathpixOCR creates a new Mathpix OCR instance
func NewMathpixOCR(config MathpixConfig, logger *zap.Logger) (*MathpixOCR, error) {
	if err := ValidateMathpixConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultMathpixBaseURL
		logger.Info("Using default Mathpix API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultMathpixTimeout
	}

	return &MathpixOCR{
		appID:      config.AppID,
		appKey:     config.AppKey,
		apiBaseURL: apiBaseURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// NewMathpixConfigFromEnv creates a new MathpixConfig from environment variables
func NewMathpixConfigFromEnv() MathpixConfig {
	config := MathpixConfig{
		AppID:      os.Getenv("MATHPIX_APP_ID"),
		AppKey:     os.Getenv("MATHPIX_APP_KEY"),
		APIBaseURL: os.Getenv("MATHPIX_API_BASE_URL"),
	}

	if timeoutStr := os.Getenv("MATHPIX_TIMEOUT_SECONDS"); timeoutStr != "" {
		if seconds, err := strconv.Atoi(timeoutStr); err == nil && seconds > 0 {
			config.Timeout = time.Duration(seconds) * time.Second
		}
	}

	return config
}

// Extract sends the image to Mathpix and returns the text and styled LaTeX
func (m *MathpixOCR) Extract(ctx context.Context, image []byte, contentType string) (*entities.Extraction, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image cannot be empty")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	request := mathpixRequest{
		Src:           fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image)),
		Formats:       []string{"text", "latex_styled", "mathml"},
		IncludeLatex:  true,
		IncludeMathML: true,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := m.apiBaseURL + "/text"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	m.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	m.logger.Debug("Sending image to Mathpix",
		zap.String("url", url),
		zap.String("contentType", contentType),
		zap.Int("imageSize", len(image)))

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		m.logger.Error("Mathpix API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, fmt.Errorf("mathpix API error %d: %s", resp.StatusCode, string(errorBody))
	}

	var result mathpixResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Error != "" {
		return nil, fmt.Errorf("mathpix could not read image: %s", result.Error)
	}

	extraction := &entities.Extraction{
		Text:       norm.NFC.String(result.Text),
		Latex:      norm.NFC.String(result.LatexStyled),
		MathML:     result.MathML,
		Confidence: result.Confidence,
	}

	m.logger.Info("Mathpix extraction completed",
		zap.Int("textLength", len(extraction.Text)),
		zap.Int("latexLength", len(extraction.Latex)),
		zap.Float64("confidence", extraction.Confidence))

	return extraction, nil
}

// Ping checks that the configured credentials are accepted
func (m *MathpixOCR) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiBaseURL+"/usage", nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	m.setHeaders(httpReq)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mathpix API returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *MathpixOCR) setHeaders(req *http.Request) {
	req.Header.Set("app_id", m.appID)
	req.Header.Set("app_key", m.appKey)
}
