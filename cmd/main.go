package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/adapters"
	"github.com/satriahrh/mathvoice/adapters/llm"
	"github.com/satriahrh/mathvoice/adapters/mongo"
	"github.com/satriahrh/mathvoice/adapters/ocr"
	"github.com/satriahrh/mathvoice/adapters/tts"
	"github.com/satriahrh/mathvoice/domain/repositories"
	"github.com/satriahrh/mathvoice/internal/api"
	"github.com/satriahrh/mathvoice/internal/auth"
	"github.com/satriahrh/mathvoice/internal/config"
	"github.com/satriahrh/mathvoice/internal/jobs"
	"github.com/satriahrh/mathvoice/internal/jobs/narration"
	"github.com/satriahrh/mathvoice/internal/websocket"
	"github.com/satriahrh/mathvoice/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize adapters
	documents, closeDocuments := newDocumentRepository(ctx, cfg, logger)
	defer closeDocuments()

	ocrService := newOCR(ctx, cfg, logger)
	textToSpeech := newTextToSpeech(cfg, logger)
	scripts := newScriptWriter(ctx, cfg, logger)

	voices := tts.NewVoiceCatalog()
	if cfg.VoicePresetsFile != "" {
		if voices, err = tts.LoadVoiceCatalog(cfg.VoicePresetsFile, logger); err != nil {
			logger.Fatal("Failed to load voice presets", zap.Error(err))
		}
	}

	// Initialize usecase services
	narrationService := usecase.NewNarrationService(ocrService, textToSpeech, scripts, documents, voices, logger)

	jobManager := jobs.NewManager(logger)
	jobManager.RegisterDefinition(narration.NewDefinition(narrationService, cfg.JobTimeout, logger))

	// Initialize WebSocket hub, relaying job progress to connected clients
	hub := websocket.NewHub(narrationService, logger)
	go hub.Run(ctx)
	go hub.ForwardJobEvents(ctx, jobManager.Events())

	sweeper := websocket.NewRetentionSweeper(documents, jobManager, websocket.RetentionConfig{
		Retention: cfg.Retention,
		Interval:  cfg.RetentionInterval,
	}, logger)
	sweeper.Start()
	defer sweeper.Stop()

	var authenticator *auth.Authenticator
	if cfg.AuthEnabled {
		if authenticator, err = auth.NewAuthenticator(cfg.Auth); err != nil {
			logger.Fatal("Failed to initialize authentication", zap.Error(err))
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("12M"))

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Narration:     narrationService,
		Jobs:          jobManager,
		Hub:           hub,
		Authenticator: authenticator,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.Bool("demoMode", cfg.DemoMode),
		zap.String("storage", cfg.Storage),
		zap.String("ocrProvider", cfg.OCRProvider),
		zap.Bool("authEnabled", cfg.AuthEnabled),
		zap.Bool("scriptsEnabled", scripts != nil))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newDocumentRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.DocumentRepository, func()) {
	if cfg.Storage != config.StorageMongo {
		logger.Info("Using in-memory document storage")
		return adapters.NewMemoryDocumentRepository(), func() {}
	}

	client, err := mongo.NewClient(ctx, mongo.NewConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	repo := mongo.NewDocumentRepository(client.Database)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create document indexes", zap.Error(err))
	}

	return repo, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}
}

func newOCR(ctx context.Context, cfg *config.Config, logger *zap.Logger) repositories.OCR {
	switch cfg.OCRProvider {
	case config.OCRDemo:
		return ocr.NewDemoOCR(logger)

	case config.OCRTesseract:
		service, err := ocr.NewTesseract(cfg.TesseractLanguages, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Tesseract OCR", zap.Error(err))
		}
		return service

	default:
		service, err := ocr.NewMathpixOCR(ocr.NewMathpixConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize Mathpix OCR", zap.Error(err))
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := service.Ping(pingCtx); err != nil {
			logger.Warn("Mathpix is not reachable yet", zap.Error(err))
		}
		return service
	}
}

func newTextToSpeech(cfg *config.Config, logger *zap.Logger) repositories.TextToSpeech {
	if cfg.DemoMode {
		return tts.NewDemoTTS(logger)
	}

	service, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize ElevenLabs TTS", zap.Error(err))
	}
	return service
}

// newScriptWriter returns nil when no script writer is configured
func newScriptWriter(ctx context.Context, cfg *config.Config, logger *zap.Logger) repositories.ScriptWriter {
	if cfg.DemoMode {
		return llm.NewMockScriptWriter()
	}
	if !cfg.ScriptsEnabled {
		logger.Info("GEMINI_API_KEY not set, explain requests use the literal reading")
		return nil
	}

	writer, err := llm.NewGeminiScriptWriter(ctx, llm.NewGeminiConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini script writer", zap.Error(err))
	}
	return writer
}
