package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/repositories"
)

// DemoAudio is the payload DemoTTS streams for every request
var DemoAudio = []byte("demo audio")

// DemoTTS is a text-to-speech stand-in for running without Eleven Labs
// credentials. It splits DemoAudio into chunkSize pieces.
type DemoTTS struct {
	chunkSize int
	logger    *zap.Logger
}

var _ repositories.TextToSpeech = (*DemoTTS)(nil)

// NewDemoTTS creates a new demo text-to-speech service
func NewDemoTTS(logger *zap.Logger) *DemoTTS {
	return &DemoTTS{
		chunkSize: 4,
		logger:    logger,
	}
}

// ConvertTextToSpeech implements repositories.TextToSpeech
func (d *DemoTTS) ConvertTextToSpeech(ctx context.Context, text string, opts repositories.SynthesisOptions) (<-chan repositories.AudioChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	d.logger.Info("Demo TTS synthesizing",
		zap.Int("textLength", len(text)),
		zap.String("voiceID", opts.VoiceID))

	audioChan := make(chan repositories.AudioChunk)
	go func() {
		defer close(audioChan)
		for start := 0; start < len(DemoAudio); start += d.chunkSize {
			end := min(start+d.chunkSize, len(DemoAudio))
			chunk := make([]byte, end-start)
			copy(chunk, DemoAudio[start:end])

			select {
			case audioChan <- repositories.AudioChunk{Data: chunk}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioChan, nil
}

// ContentType returns the MIME type reported for demo audio
func (d *DemoTTS) ContentType() string {
	return "audio/mpeg"
}
