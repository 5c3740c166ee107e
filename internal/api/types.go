package api

import (
	"time"

	"github.com/satriahrh/mathvoice/internal/jobs"
)

// TokenRequest represents the request payload for client authentication
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TokenResponse represents the response payload for client authentication
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// ConvertRequest carries a LaTeX string to read aloud
type ConvertRequest struct {
	Latex string `json:"latex"`
}

// SpeechTextRequest carries plain text and LaTeX to combine
type SpeechTextRequest struct {
	Text  string `json:"text"`
	Latex string `json:"latex"`
}

// SpeechTextResponse holds the spoken rendering
type SpeechTextResponse struct {
	SpeechText string `json:"speech_text"`
}

// SynthesizeRequest asks for audio of text and LaTeX
type SynthesizeRequest struct {
	Text  string `json:"text"`
	Latex string `json:"latex"`
	Voice string `json:"voice"`
}

// JobAcceptedResponse is returned when a narration job starts
type JobAcceptedResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

// JobResponse is a job snapshot plus what its data exposes
type JobResponse struct {
	*jobs.Job
	DocumentID string `json:"document_id,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
