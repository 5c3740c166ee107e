package entities

import (
	"errors"
	"strings"
)

// Extraction is what the OCR collaborator pulls out of an image
type Extraction struct {
	Text       string  `json:"text" bson:"text"`
	Latex      string  `json:"latex" bson:"latex"`
	MathML     string  `json:"mathml,omitempty" bson:"mathml,omitempty"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// IsEmpty reports whether nothing readable was extracted
func (e *Extraction) IsEmpty() bool {
	return e == nil || (strings.TrimSpace(e.Text) == "" && strings.TrimSpace(e.Latex) == "")
}

// Content returns text and LaTeX as one block, used as prompt input
func (e *Extraction) Content() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text + "\n" + e.Latex)
}

// VoicePreset maps a friendly name to a TTS voice
type VoicePreset struct {
	Name    string `json:"name" yaml:"name"`
	VoiceID string `json:"voice_id" yaml:"voice_id"`
	Label   string `json:"label" yaml:"label"`
}

func (v *VoicePreset) Validate() error {
	if v.Name == "" {
		return errors.New("voice preset name is required")
	}
	if v.VoiceID == "" {
		return errors.New("voice preset voice_id is required")
	}
	return nil
}
