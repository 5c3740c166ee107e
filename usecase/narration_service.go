package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/domain/repositories"
	"github.com/satriahrh/mathvoice/internal/speechtext"
)

// MaxUploadBytes is the largest image or PDF accepted for narration
const MaxUploadBytes = 10 << 20

const defaultAudioContentType = "audio/mpeg"

var (
	ErrEmptyUpload            = errors.New("upload is empty")
	ErrUploadTooLarge         = errors.New("upload exceeds 10 MiB")
	ErrUnsupportedContentType = errors.New("only images and PDF documents are supported")
	// ErrNothingToNarrate is returned when the input yields no speakable text
	ErrNothingToNarrate = errors.New("nothing to narrate")
)

// Upload is one file submitted for narration
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	// Voice is a preset name or a raw provider voice ID
	Voice string
	// Explain asks the script writer for a short lesson instead of a
	// literal reading
	Explain bool
}

// Validate checks size and type. An empty ContentType is sniffed from Data.
func (u *Upload) Validate() error {
	if len(u.Data) == 0 {
		return ErrEmptyUpload
	}
	if len(u.Data) > MaxUploadBytes {
		return ErrUploadTooLarge
	}

	if u.ContentType == "" || u.ContentType == "application/octet-stream" {
		u.ContentType = http.DetectContentType(u.Data)
	}
	mediaType, _, _ := strings.Cut(u.ContentType, ";")
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	if !strings.HasPrefix(mediaType, "image/") && mediaType != "application/pdf" {
		return fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}
	u.ContentType = mediaType

	if u.Filename == "" {
		u.Filename = "upload"
	}
	return nil
}

// SampleNarration is a sample problem together with its rule-based reading
type SampleNarration struct {
	speechtext.SampleProblem
	SpeechText string `json:"speech_text"`
}

// NarrationService turns text, LaTeX and images into speech
type NarrationService struct {
	ocr       repositories.OCR
	tts       repositories.TextToSpeech
	scripts   repositories.ScriptWriter
	documents repositories.DocumentRepository
	voices    repositories.VoiceResolver
	logger    *zap.Logger
}

// NewNarrationService creates a new narration service. scripts may be nil,
// in which case Explain requests fall back to the literal reading.
func NewNarrationService(
	ocr repositories.OCR,
	tts repositories.TextToSpeech,
	scripts repositories.ScriptWriter,
	documents repositories.DocumentRepository,
	voices repositories.VoiceResolver,
	logger *zap.Logger,
) *NarrationService {
	return &NarrationService{
		ocr:       ocr,
		tts:       tts,
		scripts:   scripts,
		documents: documents,
		voices:    voices,
		logger:    logger,
	}
}

// ComposeSpeech renders plain text and LaTeX as one speakable string
func (s *NarrationService) ComposeSpeech(text, latex string) string {
	return speechtext.GenerateSpeechText(text, latex)
}

// Speak composes speech text and starts synthesizing it
func (s *NarrationService) Speak(ctx context.Context, text, latex, voice string) (string, <-chan repositories.AudioChunk, error) {
	speech := s.ComposeSpeech(text, latex)
	if speech == "" {
		return "", nil, ErrNothingToNarrate
	}

	audio, err := s.tts.ConvertTextToSpeech(ctx, speech, repositories.SynthesisOptions{
		VoiceID: s.voices.Resolve(voice),
	})
	if err != nil {
		return "", nil, fmt.Errorf("text-to-speech failed: %w", err)
	}
	return speech, audio, nil
}

// NarrateImage runs the whole pipeline for one upload and returns the
// stored document with the complete audio. A failure after the document is
// created marks it failed.
func (s *NarrationService) NarrateImage(ctx context.Context, upload Upload) (*entities.Document, []byte, error) {
	doc, err := s.CreateDocument(ctx, &upload)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Extract(ctx, doc, upload.Data); err != nil {
		return doc, nil, s.Fail(ctx, doc, err)
	}
	if err := s.Compose(ctx, doc, upload.Explain); err != nil {
		return doc, nil, s.Fail(ctx, doc, err)
	}
	audio, err := s.Synthesize(ctx, doc, upload.Voice)
	if err != nil {
		return doc, nil, s.Fail(ctx, doc, err)
	}

	return doc, audio, nil
}

// CreateDocument validates the upload and stores a pending document for it
func (s *NarrationService) CreateDocument(ctx context.Context, upload *Upload) (*entities.Document, error) {
	if err := upload.Validate(); err != nil {
		return nil, err
	}

	doc := entities.NewDocument(upload.Filename, upload.ContentType)
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.logger.Info("Document created",
		zap.String("documentID", doc.ID),
		zap.String("filename", doc.Filename),
		zap.String("contentType", doc.ContentType),
		zap.Int("size", len(upload.Data)))
	return doc, nil
}

// Extract runs OCR over the image and stores the result on doc
func (s *NarrationService) Extract(ctx context.Context, doc *entities.Document, data []byte) error {
	extraction, err := s.ocr.Extract(ctx, data, doc.ContentType)
	if err != nil {
		return fmt.Errorf("ocr failed: %w", err)
	}
	if extraction.IsEmpty() {
		return fmt.Errorf("ocr found no text: %w", ErrNothingToNarrate)
	}

	doc.MarkExtracted(extraction)
	if err := s.documents.Update(ctx, doc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	s.logger.Info("Document extracted",
		zap.String("documentID", doc.ID),
		zap.Int("textLength", len(extraction.Text)),
		zap.Int("latexLength", len(extraction.Latex)))
	return nil
}

// Compose converts the extraction into speech text. With explain set the
// script writer is asked for a lesson; if it fails the literal reading is
// used instead.
func (s *NarrationService) Compose(ctx context.Context, doc *entities.Document, explain bool) error {
	if doc.Extraction == nil {
		return fmt.Errorf("document %s has no extraction: %w", doc.ID, ErrNothingToNarrate)
	}

	doc.SpeechText = s.ComposeSpeech(doc.Extraction.Text, doc.Extraction.Latex)
	doc.Script = ""

	if explain && s.scripts != nil {
		script, err := s.scripts.WriteScript(ctx, doc.Extraction.Content())
		if err != nil {
			s.logger.Warn("Script writer failed, using literal reading",
				zap.String("documentID", doc.ID),
				zap.Error(err))
		} else {
			doc.Script = script
		}
	}

	if doc.SpokenText() == "" {
		return ErrNothingToNarrate
	}

	if err := s.documents.Update(ctx, doc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

// Synthesize speaks the document's composed text and returns the audio
func (s *NarrationService) Synthesize(ctx context.Context, doc *entities.Document, voice string) ([]byte, error) {
	text := doc.SpokenText()
	if text == "" {
		return nil, ErrNothingToNarrate
	}

	voiceID := s.voices.Resolve(voice)
	stream, err := s.tts.ConvertTextToSpeech(ctx, text, repositories.SynthesisOptions{VoiceID: voiceID})
	if err != nil {
		return nil, fmt.Errorf("text-to-speech failed: %w", err)
	}

	audio, err := CollectAudio(ctx, stream)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("text-to-speech returned no audio")
	}

	doc.MarkNarrated(doc.SpeechText, voiceID, len(audio))
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	s.logger.Info("Document narrated",
		zap.String("documentID", doc.ID),
		zap.String("voiceID", voiceID),
		zap.Int("audioBytes", len(audio)))
	return audio, nil
}

// Fail marks doc failed and returns cause
func (s *NarrationService) Fail(ctx context.Context, doc *entities.Document, cause error) error {
	s.logger.Error("Narration failed", zap.String("documentID", doc.ID), zap.Error(cause))

	doc.MarkFailed(cause)
	// The request context may already be done; the failure should still be recorded.
	if err := s.documents.Update(context.WithoutCancel(ctx), doc); err != nil {
		s.logger.Error("Failed to record document failure", zap.String("documentID", doc.ID), zap.Error(err))
	}
	return cause
}

// GetDocument returns a stored document
func (s *NarrationService) GetDocument(ctx context.Context, id string) (*entities.Document, error) {
	return s.documents.GetByID(ctx, id)
}

// ListDocuments returns the most recent documents
func (s *NarrationService) ListDocuments(ctx context.Context, limit int) ([]*entities.Document, error) {
	return s.documents.List(ctx, limit)
}

// DeleteDocument removes a stored document
func (s *NarrationService) DeleteDocument(ctx context.Context, id string) error {
	return s.documents.Delete(ctx, id)
}

// Sample returns a sample problem with its rule-based reading
func (s *NarrationService) Sample(kind string) SampleNarration {
	sample := speechtext.LookupSample(kind)
	return SampleNarration{
		SampleProblem: sample,
		SpeechText:    speechtext.ConvertLatexToSpeech(sample.Latex),
	}
}

// Samples returns every built-in sample problem with its rule-based reading
func (s *NarrationService) Samples() []SampleNarration {
	samples := speechtext.Samples()
	out := make([]SampleNarration, 0, len(samples))
	for _, sample := range samples {
		out = append(out, SampleNarration{
			SampleProblem: sample,
			SpeechText:    speechtext.ConvertLatexToSpeech(sample.Latex),
		})
	}
	return out
}

// Voices returns the configured voice presets
func (s *NarrationService) Voices() []entities.VoicePreset {
	return s.voices.Presets()
}

// AudioContentType reports the MIME type of the synthesized audio
func (s *NarrationService) AudioContentType() string {
	if typed, ok := s.tts.(interface{ ContentType() string }); ok {
		return typed.ContentType()
	}
	return defaultAudioContentType
}

// CollectAudio drains an audio stream into one buffer. It fails when the
// stream reports an error or ctx is done.
func CollectAudio(ctx context.Context, stream <-chan repositories.AudioChunk) ([]byte, error) {
	var audio []byte
	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				return audio, nil
			}
			if chunk.Err != nil {
				return nil, fmt.Errorf("failed to collect audio: %w", chunk.Err)
			}
			audio = append(audio, chunk.Data...)
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to collect audio: %w", ctx.Err())
		}
	}
}
