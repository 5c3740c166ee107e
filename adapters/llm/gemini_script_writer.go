package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/mathvoice/domain/repositories"
)

// scriptPrompt is sent as the system instruction for every script
const scriptPrompt = `You are a patient STEM tutor. The user message is text and LaTeX read from a page of homework or lecture notes.
Summarize it and prepare it as a script, no longer than two minutes when read aloud, to teach a student.
Write plain spoken English only: no markdown, no LaTeX, no bullet points. Say mathematical notation the way a teacher would read it aloud.`

var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// contentGenerator is the part of the genai client the writer uses.
// *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiScriptWriter implements ScriptWriter using Google's Gemini API
type GeminiScriptWriter struct {
	generator       contentGenerator
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeout         time.Duration
	attempts        int
	retryDelay      time.Duration
}

// Ensure GeminiScriptWriter implements the ScriptWriter interface
var _ repositories.ScriptWriter = (*GeminiScriptWriter)(nil)

func newGeminiScriptWriter(generator contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiScriptWriter {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}

	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
	}

	topK := config.TopK
	if topK == 0 {
		topK = float32(defaultTopK)
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiScriptWriter{
		generator:       generator,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		topK:            topK,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
		attempts:        defaultAttempts,
		retryDelay:      defaultRetryDelaySecs * time.Second,
	}
}

// WriteScript asks Gemini for a short spoken lesson about content. Failed
// calls are retried with a linearly growing delay.
func (w *GeminiScriptWriter) WriteScript(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", repositories.ErrEmptyContent
	}

	contents := []*genai.Content{genai.NewContentFromText(content, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(scriptPrompt, genai.RoleUser),
		SafetySettings:    safetySettings,
		Temperature:       genai.Ptr(w.temperature),
		TopP:              genai.Ptr(w.topP),
		TopK:              genai.Ptr(w.topK),
		MaxOutputTokens:   int32(w.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < w.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * w.retryDelay):
			case <-ctx.Done():
				return "", fmt.Errorf("failed to generate script: %w", ctx.Err())
			}
		}

		script, err := w.generate(ctx, contents, config)
		if err == nil {
			w.logger.Info("Generated narration script",
				zap.String("contentPreview", preview(content)),
				zap.String("scriptPreview", preview(script)),
				zap.Int("attempt", attempt+1))
			return script, nil
		}

		lastErr = err
		w.logger.Warn("Failed to generate script, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	w.logger.Error("Giving up on narration script", zap.Int("attempts", w.attempts), zap.Error(lastErr))
	return "", fmt.Errorf("failed to generate script after %d attempts: %w", w.attempts, lastErr)
}

func (w *GeminiScriptWriter) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	response, err := w.generator.GenerateContent(ctx, w.model, contents, config)
	if err != nil {
		return "", err
	}

	if response == nil || len(response.Candidates) == 0 ||
		response.Candidates[0].Content == nil || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	script := strings.TrimSpace(text.String())
	if script == "" {
		return "", fmt.Errorf("empty response")
	}
	return script, nil
}

func preview(s string) string {
	return s[:min(maxContentPreviewBytes, len(s))]
}
