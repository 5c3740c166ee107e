package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/internal/auth"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// OCR providers
const (
	OCRMathpix   = "mathpix"
	OCRTesseract = "tesseract"
	OCRDemo      = "demo"
)

const (
	defaultPort              = "8080"
	defaultJobTimeout        = 2 * time.Minute
	defaultRetention         = 24 * time.Hour
	defaultRetentionInterval = 30 * time.Minute
	defaultShutdownTimeout   = 10 * time.Second
)

// Config holds the server settings read from the environment.
//
// DemoMode swaps every external collaborator for a built-in fake, so a demo
// server needs no credentials at all. Auth credentials are required only
// when AuthEnabled is set.
type Config struct {
	Port               string
	DemoMode           bool
	Storage            string
	OCRProvider        string
	TesseractLanguages []string
	VoicePresetsFile   string
	ScriptsEnabled     bool
	JobTimeout         time.Duration
	Retention          time.Duration
	RetentionInterval  time.Duration
	ShutdownTimeout    time.Duration
	AuthEnabled        bool
	Auth               auth.Config
}

// Load reads .env files (a missing file is skipped) and then the process
// environment. Variables already set in the environment win over .env.
func Load(logger *zap.Logger, files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		logger.Info("Loaded environment file", zap.String("file", file))
	}

	config, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// FromEnv builds a Config from environment variables, applying defaults
func FromEnv() (*Config, error) {
	config := &Config{
		Port:             getenv("PORT", defaultPort),
		Storage:          strings.ToLower(getenv("STORAGE", StorageMemory)),
		OCRProvider:      strings.ToLower(getenv("OCR_PROVIDER", OCRMathpix)),
		VoicePresetsFile: os.Getenv("VOICE_PRESETS_FILE"),
		ScriptsEnabled:   os.Getenv("GEMINI_API_KEY") != "",
		ShutdownTimeout:  defaultShutdownTimeout,
		TesseractLanguages: strings.FieldsFunc(getenv("TESSERACT_LANGUAGES", "eng"), func(r rune) bool {
			return r == ',' || r == ' '
		}),
		Auth: auth.Config{
			Secret:       os.Getenv("JWT_SECRET"),
			ClientID:     os.Getenv("API_CLIENT_ID"),
			ClientSecret: os.Getenv("API_CLIENT_SECRET"),
		},
	}

	var err error
	if config.DemoMode, err = getBool("DEMO_MODE", false); err != nil {
		return nil, err
	}
	if config.AuthEnabled, err = getBool("AUTH_ENABLED", false); err != nil {
		return nil, err
	}
	if config.JobTimeout, err = getDuration("JOB_TIMEOUT", defaultJobTimeout); err != nil {
		return nil, err
	}
	if config.Retention, err = getDuration("DOCUMENT_RETENTION", defaultRetention); err != nil {
		return nil, err
	}
	if config.RetentionInterval, err = getDuration("RETENTION_INTERVAL", defaultRetentionInterval); err != nil {
		return nil, err
	}
	if config.Auth.TokenTTL, err = getDuration("JWT_TTL", auth.DefaultTokenTTL); err != nil {
		return nil, err
	}

	if config.DemoMode {
		config.OCRProvider = OCRDemo
	}
	return config, nil
}

// Validate validates the Config
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}

	switch c.Storage {
	case StorageMemory, StorageMongo:
	default:
		return fmt.Errorf("STORAGE must be %s or %s, got %q", StorageMemory, StorageMongo, c.Storage)
	}

	switch c.OCRProvider {
	case OCRMathpix, OCRTesseract, OCRDemo:
	default:
		return fmt.Errorf("OCR_PROVIDER must be %s, %s or %s, got %q", OCRMathpix, OCRTesseract, OCRDemo, c.OCRProvider)
	}

	if c.JobTimeout <= 0 || c.Retention <= 0 || c.RetentionInterval <= 0 {
		return errors.New("JOB_TIMEOUT, DOCUMENT_RETENTION and RETENTION_INTERVAL must be positive")
	}

	if c.AuthEnabled {
		if err := c.Auth.Validate(); err != nil {
			return fmt.Errorf("AUTH_ENABLED requires JWT_SECRET, API_CLIENT_ID and API_CLIENT_SECRET: %w", err)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

// getDuration accepts Go durations ("90s", "24h") or plain seconds
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}
