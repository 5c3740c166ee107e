package repositories

import (
	"context"
	"errors"
)

// ErrEmptyContent is returned when there is nothing to write a script about
var ErrEmptyContent = errors.New("content is required")

// ScriptWriter abstracts an LLM that turns extracted content into a short
// spoken lesson
type ScriptWriter interface {
	// WriteScript returns narration text for the given content
	WriteScript(ctx context.Context, content string) (string, error)
}
