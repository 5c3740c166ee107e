package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/adapters"
	"github.com/satriahrh/mathvoice/adapters/llm"
	"github.com/satriahrh/mathvoice/adapters/ocr"
	"github.com/satriahrh/mathvoice/adapters/tts"
	"github.com/satriahrh/mathvoice/domain/repositories"
	"github.com/satriahrh/mathvoice/usecase"
)

func main() {
	latex := flag.String("latex", "", "LaTeX to read aloud")
	text := flag.String("text", "", "plain text to read before the LaTeX")
	image := flag.String("image", "", "image or PDF to run through OCR")
	sample := flag.String("sample", "", "speak a built-in sample problem (quadratic, calculus, trigonometry, statistics)")
	voice := flag.String("voice", tts.DefaultPreset, "voice preset name or voice ID")
	explain := flag.Bool("explain", false, "narrate a short lesson instead of a literal reading (needs GEMINI_API_KEY)")
	out := flag.String("out", "", "write audio to this file; without it only the speech text is printed")
	demo := flag.Bool("demo", false, "use the built-in demo OCR and TTS")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	service := newService(ctx, *demo, *image != "", *out != "", *explain, logger)

	if *sample != "" {
		narrated := service.Sample(*sample)
		*latex = narrated.Latex
		fmt.Printf("sample %s: %s\n", narrated.Kind, narrated.Latex)
	}

	var speech string
	var audio []byte
	switch {
	case *image != "":
		data, err := os.ReadFile(*image)
		if err != nil {
			logger.Fatal("Failed to read image", zap.Error(err))
		}
		doc, narratedAudio, err := service.NarrateImage(ctx, usecase.Upload{
			Filename:    filepath.Base(*image),
			ContentType: http.DetectContentType(data),
			Data:        data,
			Voice:       *voice,
			Explain:     *explain,
		})
		if err != nil {
			logger.Fatal("Failed to narrate image", zap.Error(err))
		}
		speech, audio = doc.SpokenText(), narratedAudio

	case *out != "":
		var stream <-chan repositories.AudioChunk
		speech, stream, err = service.Speak(ctx, *text, *latex, *voice)
		if err != nil {
			logger.Fatal("Failed to speak", zap.Error(err))
		}
		if audio, err = usecase.CollectAudio(ctx, stream); err != nil {
			logger.Fatal("Failed to receive audio", zap.Error(err))
		}

	default:
		speech = service.ComposeSpeech(*text, *latex)
		if speech == "" {
			flag.Usage()
			os.Exit(2)
		}
	}

	fmt.Println(speech)

	if *out != "" {
		if err := os.WriteFile(*out, audio, 0o644); err != nil {
			logger.Fatal("Failed to write audio", zap.Error(err))
		}
		logger.Info("Audio saved",
			zap.String("file", *out),
			zap.Int("bytes", len(audio)),
			zap.String("contentType", service.AudioContentType()))
	}
}

// newService wires only the collaborators the requested mode needs
func newService(ctx context.Context, demo, needsOCR, needsTTS, explain bool, logger *zap.Logger) *usecase.NarrationService {
	var (
		ocrService   repositories.OCR
		textToSpeech repositories.TextToSpeech
		scripts      repositories.ScriptWriter
	)

	if demo {
		ocrService = ocr.NewDemoOCR(logger)
		textToSpeech = tts.NewDemoTTS(logger)
		scripts = llm.NewMockScriptWriter()
	} else {
		if needsOCR {
			mathpix, err := ocr.NewMathpixOCR(ocr.NewMathpixConfigFromEnv(), logger)
			if err != nil {
				logger.Fatal("Failed to create Mathpix OCR", zap.Error(err))
			}
			ocrService = mathpix
		}
		if needsTTS || needsOCR {
			elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
			if err != nil {
				logger.Fatal("Failed to create TTS service", zap.Error(err))
			}
			textToSpeech = elevenLabs
		}
		if explain && os.Getenv("GEMINI_API_KEY") != "" {
			writer, err := llm.NewGeminiScriptWriter(ctx, llm.NewGeminiConfigFromEnv(), logger)
			if err != nil {
				logger.Fatal("Failed to create script writer", zap.Error(err))
			}
			scripts = writer
		}
	}

	voices := tts.NewVoiceCatalog()
	if path := os.Getenv("VOICE_PRESETS_FILE"); path != "" {
		loaded, err := tts.LoadVoiceCatalog(path, logger)
		if err != nil {
			logger.Fatal("Failed to load voice presets", zap.Error(err))
		}
		voices = loaded
	}

	return usecase.NewNarrationService(ocrService, textToSpeech, scripts, adapters.NewMemoryDocumentRepository(), voices, logger)
}
