package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.4
	defaultTopP            = 0.95
	defaultTopK            = 40
	defaultMaxTokens       = 1024
	defaultTimeoutSeconds  = 60
	defaultAttempts        = 3
	defaultRetryDelaySecs  = 1
	maxContentPreviewBytes = 50
)

// GeminiConfig holds configuration for the Gemini script writer
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: default "gemini-2.0-flash"
// - Temperature, TopP: between 0 and 1 (defaults 0.4, 0.95)
// - TopK: default 40
// - MaxOutputTokens: default 1024
// - TimeoutSeconds: per-script deadline covering all attempts (default 60)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGeminiConfigFromEnv creates a new GeminiConfig from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}

	if tempStr := os.Getenv("GEMINI_TEMPERATURE"); tempStr != "" {
		if temp, err := strconv.ParseFloat(tempStr, 32); err == nil && temp >= 0 && temp <= 1 {
			config.Temperature = float32(temp)
		}
	}

	if tokensStr := os.Getenv("GEMINI_MAX_OUTPUT_TOKENS"); tokensStr != "" {
		if tokens, err := strconv.Atoi(tokensStr); err == nil && tokens > 0 {
			config.MaxOutputTokens = tokens
		}
	}

	if timeoutStr := os.Getenv("GEMINI_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	return config
}

// NewGeminiScriptWriter creates a Gemini client and wraps it in a script writer
func NewGeminiScriptWriter(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiScriptWriter, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiScriptWriter(client.Models, config, logger), nil
}
