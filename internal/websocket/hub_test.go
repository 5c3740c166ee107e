package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/repositories"
	"github.com/satriahrh/mathvoice/internal/jobs"
	"github.com/satriahrh/mathvoice/usecase"
)

// stubSpeaker streams fixed chunks, then streamErr when set
type stubSpeaker struct {
	chunks    []string
	err       error
	streamErr error
}

func (s *stubSpeaker) Speak(ctx context.Context, text, latex, voice string) (string, <-chan repositories.AudioChunk, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	out := make(chan repositories.AudioChunk, len(s.chunks)+1)
	for _, chunk := range s.chunks {
		out <- repositories.AudioChunk{Data: []byte(chunk)}
	}
	if s.streamErr != nil {
		out <- repositories.AudioChunk{Err: s.streamErr}
	}
	close(out)
	return strings.TrimSpace(text + " " + latex + " in " + voice), out, nil
}

func (s *stubSpeaker) AudioContentType() string {
	return "audio/mpeg"
}

func setupTestServer(t *testing.T, speaker Speaker) (*Hub, string) {
	t.Helper()
	logger := zap.NewNop()
	hub := NewHub(speaker, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("Expected text message, got type %d", messageType)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Invalid JSON %q: %v", payload, err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(&stubSpeaker{}, zap.NewNop())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialized")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", hub.ClientCount())
	}
}

func TestHub_SpeakRoundTrip(t *testing.T) {
	_, url := setupTestServer(t, &stubSpeaker{chunks: []string{"ab", "cde"}})
	conn := dial(t, url)

	request := `{"type":"speak","request_id":"r1","text":"Solve","latex":"x^2","voice":"technical"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(request)); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeSpeechText) {
		t.Fatalf("Expected speech_text, got %v", msg["type"])
	}
	if msg["speech_text"] != "Solve x^2 in technical" {
		t.Errorf("Unexpected speech text %v", msg["speech_text"])
	}
	if msg["request_id"] != "r1" {
		t.Errorf("Expected request_id r1, got %v", msg["request_id"])
	}
	if msg["content_type"] != "audio/mpeg" {
		t.Errorf("Unexpected content type %v", msg["content_type"])
	}

	var audio []byte
	for i := 0; i < 2; i++ {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read audio: %v", err)
		}
		if messageType != websocket.BinaryMessage {
			t.Fatalf("Expected binary audio, got type %d", messageType)
		}
		audio = append(audio, payload...)
	}
	if string(audio) != "abcde" {
		t.Errorf("Expected audio abcde, got %q", audio)
	}

	end := readJSON(t, conn)
	if end["type"] != string(MessageTypeSpeakingEnd) {
		t.Fatalf("Expected speaking_end, got %v", end["type"])
	}
	if end["chunks"] != float64(2) || end["bytes"] != float64(5) {
		t.Errorf("Unexpected totals %v / %v", end["chunks"], end["bytes"])
	}
}

func TestHub_SpeakStreamFailure(t *testing.T) {
	_, url := setupTestServer(t, &stubSpeaker{
		chunks:    []string{"ab"},
		streamErr: errors.New("failed to read audio stream: unexpected EOF"),
	})
	conn := dial(t, url)

	request := `{"type":"speak","request_id":"r2","latex":"x^2"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(request)); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if msg := readJSON(t, conn); msg["type"] != string(MessageTypeSpeechText) {
		t.Fatalf("Expected speech_text, got %v", msg["type"])
	}

	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read audio: %v", err)
	}
	if messageType != websocket.BinaryMessage || string(payload) != "ab" {
		t.Fatalf("Expected binary chunk ab, got type %d %q", messageType, payload)
	}

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeError) {
		t.Fatalf("Expected error instead of speaking_end, got %v", msg["type"])
	}
	if msg["error_code"] != ErrorCodeSpeechFailed {
		t.Errorf("Expected code %s, got %v", ErrorCodeSpeechFailed, msg["error_code"])
	}
	if msg["request_id"] != "r2" {
		t.Errorf("Expected request_id r2, got %v", msg["request_id"])
	}
	if details, _ := msg["details"].(string); !strings.Contains(details, "unexpected EOF") {
		t.Errorf("Expected details to carry the stream error, got %v", msg["details"])
	}
}

func TestHub_PingPong(t *testing.T) {
	_, url := setupTestServer(t, &stubSpeaker{})
	conn := dial(t, url)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","data":"hello"}`)); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypePong) || msg["data"] != "hello" {
		t.Errorf("Unexpected pong %v", msg)
	}
}

func TestHub_ErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		speaker  *stubSpeaker
		message  string
		binary   bool
		wantCode string
	}{
		{
			name:     "malformed json",
			speaker:  &stubSpeaker{},
			message:  `{"type":`,
			wantCode: ErrorCodeInvalidMessage,
		},
		{
			name:     "unknown type",
			speaker:  &stubSpeaker{},
			message:  `{"type":"listen"}`,
			wantCode: ErrorCodeInvalidMessage,
		},
		{
			name:     "binary frame",
			speaker:  &stubSpeaker{},
			message:  "raw",
			binary:   true,
			wantCode: ErrorCodeInvalidMessage,
		},
		{
			name:     "nothing to narrate",
			speaker:  &stubSpeaker{err: fmt.Errorf("wrapped: %w", usecase.ErrNothingToNarrate)},
			message:  `{"type":"speak","latex":"\\quad"}`,
			wantCode: ErrorCodeNothingToSay,
		},
		{
			name:     "synthesis failure",
			speaker:  &stubSpeaker{err: errors.New("tts offline")},
			message:  `{"type":"speak","text":"hello"}`,
			wantCode: ErrorCodeSpeechFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, url := setupTestServer(t, tt.speaker)
			conn := dial(t, url)

			messageType := websocket.TextMessage
			if tt.binary {
				messageType = websocket.BinaryMessage
			}
			if err := conn.WriteMessage(messageType, []byte(tt.message)); err != nil {
				t.Fatalf("Failed to write: %v", err)
			}

			msg := readJSON(t, conn)
			if msg["type"] != string(MessageTypeError) {
				t.Fatalf("Expected error message, got %v", msg)
			}
			if msg["error_code"] != tt.wantCode {
				t.Errorf("Expected code %s, got %v", tt.wantCode, msg["error_code"])
			}
		})
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub, url := setupTestServer(t, &stubSpeaker{})

	first := dial(t, url)
	dial(t, url)
	waitForClients(t, hub, 2)

	first.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	first.Close()
	waitForClients(t, hub, 1)
}

func TestHub_ForwardJobEvents(t *testing.T) {
	hub, url := setupTestServer(t, &stubSpeaker{})
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	events := make(chan jobs.Event, 1)
	events <- jobs.Event{
		JobID:     "job-1",
		StepID:    "extract",
		Type:      jobs.EventStepCompleted,
		Timestamp: time.Now(),
	}
	close(events)
	hub.ForwardJobEvents(context.Background(), events)

	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeJobEvent) {
		t.Fatalf("Expected job_event, got %v", msg)
	}
	if msg["job_id"] != "job-1" || msg["step_id"] != "extract" || msg["event"] != jobs.EventStepCompleted {
		t.Errorf("Unexpected job event %v", msg)
	}
}
