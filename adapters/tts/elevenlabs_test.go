package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mathvoice/domain/repositories"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	t.Setenv("ELEVEN_LABS_API_KEY", "")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabsTTS(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	t.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")

	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}

	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}

	if tts.ContentType() != "audio/mpeg" {
		t.Errorf("Expected content type 'audio/mpeg', got '%s'", tts.ContentType())
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"valid", ElevenLabsConfig{APIKey: "k"}, false},
		{"missing key", ElevenLabsConfig{}, true},
		{"stability too high", ElevenLabsConfig{APIKey: "k", Stability: 1.5}, true},
		{"negative clarity", ElevenLabsConfig{APIKey: "k", Clarity: -0.1}, true},
		{"negative chunk size", ElevenLabsConfig{APIKey: "k", ChunkSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateElevenLabsConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestElevenLabsTTS_SetVoiceSettings(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	tts.SetVoiceSettings(0.8, 0.9)

	if tts.stability != 0.8 {
		t.Errorf("Expected stability 0.8, got %f", tts.stability)
	}

	if tts.clarity != 0.9 {
		t.Errorf("Expected clarity 0.9, got %f", tts.clarity)
	}

	tts.SetOutputFormat("pcm_24000")
	if tts.ContentType() != "audio/pcm" {
		t.Errorf("Expected content type 'audio/pcm', got '%s'", tts.ContentType())
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_EmptyText(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx := context.Background()
	_, err = tts.ConvertTextToSpeech(ctx, "", repositories.SynthesisOptions{})
	if err == nil {
		t.Error("Expected error for empty text")
	}

	_, err = tts.ConvertTextToSpeech(ctx, "   ", repositories.SynthesisOptions{})
	if err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_Stream(t *testing.T) {
	audio := []byte("0123456789abcdef")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/override-voice/stream" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "test-api-key" {
			t.Errorf("Missing API key header")
		}

		var req ElevenLabsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Text != "x squared" {
			t.Errorf("Expected text 'x squared', got '%s'", req.Text)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		ChunkSize:  5,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx := context.Background()
	audioChan, err := tts.ConvertTextToSpeech(ctx, "x squared", repositories.SynthesisOptions{VoiceID: "override-voice"})
	if err != nil {
		t.Fatalf("Failed to convert text to speech: %v", err)
	}

	got, err := collect(ctx, audioChan)
	if err != nil {
		t.Fatalf("Failed to collect audio: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("Expected audio %q, got %q", audio, got)
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	_, err = tts.ConvertTextToSpeech(context.Background(), "hello", repositories.SynthesisOptions{})
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
}

func TestElevenLabsTTS_GetAvailableVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"abc","name":"Rachel","category":"premade"}]}`))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	voices, err := tts.GetAvailableVoices(context.Background())
	if err != nil {
		t.Fatalf("Failed to get voices: %v", err)
	}
	if len(voices) != 1 || voices[0].VoiceID != "abc" || voices[0].Name != "Rachel" {
		t.Errorf("Unexpected voices: %+v", voices)
	}
}

// Integration test - only runs if ELEVEN_LABS_API_KEY is set with real API key
func TestElevenLabsTTS_ConvertTextToSpeech_Integration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" || apiKey == "test-api-key" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY environment variable with real API key")
	}

	logger := zap.NewNop()

	tts, err := NewElevenLabsTTS(NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text := "The integral from zero to infinity of e to the negative x, dx."
	audioChan, err := tts.ConvertTextToSpeech(ctx, text, repositories.SynthesisOptions{})
	if err != nil {
		t.Fatalf("Failed to convert text to speech: %v", err)
	}

	totalBytes := 0
	chunkCount := 0

	for chunk := range audioChan {
		if chunk.Err != nil {
			t.Fatalf("Audio stream failed: %v", chunk.Err)
		}
		if len(chunk.Data) == 0 {
			t.Error("Received empty audio chunk")
		}
		totalBytes += len(chunk.Data)
		chunkCount++
	}

	if totalBytes == 0 {
		t.Error("No audio data received")
	}

	t.Logf("Integration test completed: received %d chunks, %d total bytes", chunkCount, totalBytes)
}

func TestElevenLabsTTS_ConvertTextToSpeech_TruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial audio"))
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Failed to hijack connection: %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		ChunkSize:  4,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	audioChan, err := tts.ConvertTextToSpeech(ctx, "x squared", repositories.SynthesisOptions{})
	if err != nil {
		t.Fatalf("Failed to convert text to speech: %v", err)
	}

	got, err := collect(ctx, audioChan)
	if err == nil {
		t.Fatalf("Expected error for truncated audio, got %d bytes", len(got))
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected unexpected EOF, got %v", err)
	}
	if string(got) != "partial audio" {
		t.Errorf("Expected the audio received before the failure, got %q", got)
	}

	if _, ok := <-audioChan; ok {
		t.Error("Expected the stream to close after the error")
	}
}
