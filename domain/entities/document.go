package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents how far a document got through narration
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusExtracted DocumentStatus = "extracted"
	DocumentStatusNarrated  DocumentStatus = "narrated"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// Document represents one uploaded image and everything derived from it
type Document struct {
	ID          string         `json:"id" bson:"_id"`
	Filename    string         `json:"filename" bson:"filename"`
	ContentType string         `json:"content_type" bson:"content_type"`
	UploadedAt  time.Time      `json:"uploaded_at" bson:"uploaded_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
	Status      DocumentStatus `json:"status" bson:"status"`
	Extraction  *Extraction    `json:"extraction,omitempty" bson:"extraction,omitempty"`
	SpeechText  string         `json:"speech_text,omitempty" bson:"speech_text,omitempty"`
	Script      string         `json:"script,omitempty" bson:"script,omitempty"`
	VoiceID     string         `json:"voice_id,omitempty" bson:"voice_id,omitempty"`
	AudioBytes  int            `json:"audio_bytes" bson:"audio_bytes"`
	Error       string         `json:"error,omitempty" bson:"error,omitempty"`
}

// NewDocument creates a pending document for an upload
func NewDocument(filename, contentType string) *Document {
	now := time.Now()
	return &Document{
		ID:          uuid.New().String(),
		Filename:    filename,
		ContentType: contentType,
		UploadedAt:  now,
		UpdatedAt:   now,
		Status:      DocumentStatusPending,
	}
}

// MarkExtracted stores the OCR result
func (d *Document) MarkExtracted(extraction *Extraction) {
	d.Extraction = extraction
	d.Status = DocumentStatusExtracted
	d.touch()
}

// MarkNarrated stores the text that was spoken and the size of the audio
func (d *Document) MarkNarrated(speechText, voiceID string, audioBytes int) {
	d.SpeechText = speechText
	d.VoiceID = voiceID
	d.AudioBytes = audioBytes
	d.Status = DocumentStatusNarrated
	d.touch()
}

// MarkFailed records why processing stopped
func (d *Document) MarkFailed(err error) {
	d.Status = DocumentStatusFailed
	if err != nil {
		d.Error = err.Error()
	}
	d.touch()
}

// SpokenText returns the Gemini script when there is one, otherwise the
// rule-based speech text.
func (d *Document) SpokenText() string {
	if d.Script != "" {
		return d.Script
	}
	return d.SpeechText
}

// IsOlderThan reports whether the document was last touched before cutoff
func (d *Document) IsOlderThan(cutoff time.Time) bool {
	return d.UpdatedAt.Before(cutoff)
}

func (d *Document) touch() {
	d.UpdatedAt = time.Now()
}

// Validate validates the document data
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("id is required")
	}
	if d.Filename == "" {
		return errors.New("filename is required")
	}

	switch d.Status {
	case DocumentStatusPending, DocumentStatusExtracted, DocumentStatusNarrated, DocumentStatusFailed:
	default:
		return errors.New("invalid document status")
	}

	return nil
}
