package repositories

import (
	"context"

	"github.com/satriahrh/mathvoice/domain/entities"
)

// SynthesisOptions tunes a single text-to-speech request
type SynthesisOptions struct {
	// VoiceID overrides the provider's configured voice when set
	VoiceID string `json:"voice_id,omitempty"`
}

// AudioChunk is one piece of a synthesized audio stream. A chunk carrying
// Err is the last one sent; the audio before it is incomplete.
type AudioChunk struct {
	Data []byte
	Err  error
}

// TextToSpeech abstracts speech synthesis providers
type TextToSpeech interface {
	// ConvertTextToSpeech streams encoded audio. The channel is closed when
	// the audio ends, fails or ctx is done.
	ConvertTextToSpeech(ctx context.Context, text string, opts SynthesisOptions) (<-chan AudioChunk, error)
}

// VoiceResolver maps friendly voice names to provider voice IDs
type VoiceResolver interface {
	// Resolve returns the voice ID for name; unknown names are returned as-is
	Resolve(name string) string
	Presets() []entities.VoicePreset
}
