package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeSpeak       MessageType = "speak"
	MessageTypeSpeechText  MessageType = "speech_text"
	MessageTypeSpeakingEnd MessageType = "speaking_end"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeError       MessageType = "error"
	MessageTypeJobEvent    MessageType = "job_event"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeNothingToSay   = "nothing_to_narrate"
	ErrorCodeSpeechFailed   = "speech_failed"
)

// maxSpeakLength bounds text plus latex of one speak request
const maxSpeakLength = 20000

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// SpeakMessage asks the server to narrate text and LaTeX
type SpeakMessage struct {
	BaseMessage
	Text  string `json:"text"`
	Latex string `json:"latex"`
	// Voice is a preset name or a raw voice ID
	Voice string `json:"voice,omitempty"`
}

// SpeechTextMessage precedes the binary audio of a speak request
type SpeechTextMessage struct {
	BaseMessage
	SpeechText  string `json:"speech_text"`
	ContentType string `json:"content_type"`
}

// SpeakingEndMessage follows the last audio chunk
type SpeakingEndMessage struct {
	BaseMessage
	Chunks int `json:"chunks"`
	Bytes  int `json:"bytes"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// JobEventMessage relays a background job event to every client
type JobEventMessage struct {
	BaseMessage
	JobID  string      `json:"job_id"`
	StepID string      `json:"step_id,omitempty"`
	Event  string      `json:"event"`
	Data   interface{} `json:"data,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message and returns the typed value
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSpeak:
		var msg SpeakMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid speak message: %w", err)
		}
		if err := v.validateSpeak(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateSpeak validates speak message fields
func (v *MessageValidator) validateSpeak(msg *SpeakMessage) error {
	if strings.TrimSpace(msg.Text) == "" && strings.TrimSpace(msg.Latex) == "" {
		return fmt.Errorf("text or latex is required")
	}
	if len(msg.Text)+len(msg.Latex) > maxSpeakLength {
		return fmt.Errorf("text and latex must not exceed %d bytes", maxSpeakLength)
	}
	return nil
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(requestID, code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: now(),
			RequestID: requestID,
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: now(),
		},
		Data: data,
	}
}

// CreateSpeechTextMessage announces the speech text of a speak request
func CreateSpeechTextMessage(requestID, speechText, contentType string) *SpeechTextMessage {
	return &SpeechTextMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpeechText,
			Timestamp: now(),
			RequestID: requestID,
		},
		SpeechText:  speechText,
		ContentType: contentType,
	}
}

// CreateSpeakingEndMessage closes a speak request
func CreateSpeakingEndMessage(requestID string, chunks, bytes int) *SpeakingEndMessage {
	return &SpeakingEndMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpeakingEnd,
			Timestamp: now(),
			RequestID: requestID,
		},
		Chunks: chunks,
		Bytes:  bytes,
	}
}
