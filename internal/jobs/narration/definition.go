package narration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/entities"
	"github.com/satriahrh/mathvoice/internal/jobs"
	"github.com/satriahrh/mathvoice/usecase"
)

// DefinitionID is the job definition name used with jobs.Manager.Start
const DefinitionID = "image_narration"

// Data keys for narration jobs
const (
	DataKeyUpload     = "upload"
	DataKeyDocument   = "document"
	DataKeyDocumentID = "document_id"
	DataKeyAudio      = "audio"
)

var errMissingData = errors.New("missing job data")

// Service is the part of the narration use case the steps drive
type Service interface {
	CreateDocument(ctx context.Context, upload *usecase.Upload) (*entities.Document, error)
	Extract(ctx context.Context, doc *entities.Document, data []byte) error
	Compose(ctx context.Context, doc *entities.Document, explain bool) error
	Synthesize(ctx context.Context, doc *entities.Document, voice string) ([]byte, error)
	DeleteDocument(ctx context.Context, id string) error
}

var _ Service = (*usecase.NarrationService)(nil)

// Definition turns an uploaded image into narrated audio in the background.
// A failed job leaves no document behind.
type Definition struct {
	service Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewDefinition creates the image narration job definition
func NewDefinition(service Service, timeout time.Duration, logger *zap.Logger) *Definition {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Definition{
		service: service,
		timeout: timeout,
		logger:  logger,
	}
}

func (d *Definition) ID() string {
	return DefinitionID
}

func (d *Definition) Timeout() time.Duration {
	return d.timeout
}

func (d *Definition) Steps() []jobs.Step {
	return []jobs.Step{
		&extractStep{service: d.service, logger: d.logger},
		&composeStep{service: d.service, logger: d.logger},
		&synthesizeStep{service: d.service, logger: d.logger},
	}
}

// NewData builds the initial job data for an upload
func NewData(upload usecase.Upload) jobs.Data {
	return jobs.Data{DataKeyUpload: upload}
}

// Audio returns the synthesized audio of a completed job
func Audio(job *jobs.Job) ([]byte, bool) {
	audio, ok := job.Data[DataKeyAudio].([]byte)
	return audio, ok
}

// DocumentID returns the document a job created, if any
func DocumentID(job *jobs.Job) string {
	id, _ := job.Data[DataKeyDocumentID].(string)
	return id
}

func uploadFrom(data jobs.Data) (usecase.Upload, error) {
	upload, ok := data[DataKeyUpload].(usecase.Upload)
	if !ok {
		return usecase.Upload{}, fmt.Errorf("%w: %s", errMissingData, DataKeyUpload)
	}
	return upload, nil
}

func documentFrom(data jobs.Data) (*entities.Document, error) {
	doc, ok := data[DataKeyDocument].(*entities.Document)
	if !ok || doc == nil {
		return nil, fmt.Errorf("%w: %s", errMissingData, DataKeyDocument)
	}
	return doc, nil
}

// extractStep stores the document and runs OCR over the upload
type extractStep struct {
	service Service
	logger  *zap.Logger
}

func (s *extractStep) ID() jobs.StepID {
	return "extract"
}

func (s *extractStep) Execute(ctx context.Context, data jobs.Data) jobs.StepResult {
	upload, err := uploadFrom(data)
	if err != nil {
		return jobs.Failed(err)
	}

	doc, err := s.service.CreateDocument(ctx, &upload)
	if err != nil {
		return jobs.Failed(err)
	}

	if err := s.service.Extract(ctx, doc, upload.Data); err != nil {
		if delErr := s.service.DeleteDocument(context.WithoutCancel(ctx), doc.ID); delErr != nil {
			s.logger.Error("Failed to remove document after extraction error",
				zap.String("documentID", doc.ID),
				zap.Error(delErr))
		}
		return jobs.Failed(err)
	}

	data[DataKeyDocument] = doc
	data[DataKeyDocumentID] = doc.ID
	// The image is no longer needed once text has been read from it.
	upload.Data = nil
	data[DataKeyUpload] = upload

	return jobs.Succeeded(map[string]interface{}{
		"document_id":  doc.ID,
		"text_length":  len(doc.Extraction.Text),
		"latex_length": len(doc.Extraction.Latex),
	})
}

func (s *extractStep) Compensate(ctx context.Context, data jobs.Data) error {
	id, _ := data[DataKeyDocumentID].(string)
	if id == "" {
		return nil
	}

	s.logger.Info("Removing document of failed job", zap.String("documentID", id))
	if err := s.service.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	delete(data, DataKeyDocument)
	delete(data, DataKeyDocumentID)
	return nil
}

// composeStep renders the extraction as speech text or a lesson script
type composeStep struct {
	service Service
	logger  *zap.Logger
}

func (s *composeStep) ID() jobs.StepID {
	return "compose"
}

func (s *composeStep) Execute(ctx context.Context, data jobs.Data) jobs.StepResult {
	upload, err := uploadFrom(data)
	if err != nil {
		return jobs.Failed(err)
	}
	doc, err := documentFrom(data)
	if err != nil {
		return jobs.Failed(err)
	}

	if err := s.service.Compose(ctx, doc, upload.Explain); err != nil {
		return jobs.Failed(err)
	}

	return jobs.Succeeded(map[string]interface{}{
		"speech_text": doc.SpeechText,
		"scripted":    doc.Script != "",
	})
}

// Compose only changes fields of the document extractStep removes.
func (s *composeStep) Compensate(ctx context.Context, data jobs.Data) error {
	return nil
}

// synthesizeStep produces the audio
type synthesizeStep struct {
	service Service
	logger  *zap.Logger
}

func (s *synthesizeStep) ID() jobs.StepID {
	return "synthesize"
}

func (s *synthesizeStep) Execute(ctx context.Context, data jobs.Data) jobs.StepResult {
	upload, err := uploadFrom(data)
	if err != nil {
		return jobs.Failed(err)
	}
	doc, err := documentFrom(data)
	if err != nil {
		return jobs.Failed(err)
	}

	audio, err := s.service.Synthesize(ctx, doc, upload.Voice)
	if err != nil {
		return jobs.Failed(err)
	}

	data[DataKeyAudio] = audio
	return jobs.Succeeded(map[string]interface{}{
		"voice_id":    doc.VoiceID,
		"audio_bytes": len(audio),
	})
}

func (s *synthesizeStep) Compensate(ctx context.Context, data jobs.Data) error {
	delete(data, DataKeyAudio)
	return nil
}
