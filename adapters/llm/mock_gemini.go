package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/mathvoice/domain/repositories"
)

// MockScriptWriter is a deterministic ScriptWriter for demo mode and tests
type MockScriptWriter struct{}

var _ repositories.ScriptWriter = (*MockScriptWriter)(nil)

// NewMockScriptWriter creates a new mock script writer
func NewMockScriptWriter() *MockScriptWriter {
	return &MockScriptWriter{}
}

// WriteScript implements repositories.ScriptWriter
func (m *MockScriptWriter) WriteScript(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", repositories.ErrEmptyContent
	}
	return fmt.Sprintf("Let's walk through this problem together. %s That's the key idea to remember.", content), nil
}
