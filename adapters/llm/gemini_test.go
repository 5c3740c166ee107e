package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/satriahrh/mathvoice/domain/repositories"
)

type fakeGenerator struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	models    []string
	configs   []*genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.models = append(f.models, model)
	f.configs = append(f.configs, config)

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, errors.New("no more responses")
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content}},
	}
}

func newTestWriter(t *testing.T, gen *fakeGenerator) *GeminiScriptWriter {
	t.Helper()
	w := newGeminiScriptWriter(gen, GeminiConfig{APIKey: "test"}, zaptest.NewLogger(t))
	w.retryDelay = 0
	return w
}

func TestValidateGeminiConfig(t *testing.T) {
	assert.NoError(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k"}))
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{}))
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k", Temperature: 2}))
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k", TopP: -0.5}))
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k", TopK: -1}))
	assert.Error(t, ValidateGeminiConfig(GeminiConfig{APIKey: "k", TimeoutSeconds: -1}))
}

func TestNewGeminiConfigFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GEMINI_MODEL", "gemini-test")
	t.Setenv("GEMINI_TEMPERATURE", "not-a-number")
	t.Setenv("GEMINI_TIMEOUT_SECONDS", "10")

	config := NewGeminiConfigFromEnv()
	assert.Equal(t, "env-key", config.APIKey)
	assert.Equal(t, "gemini-test", config.Model)
	assert.Zero(t, config.Temperature)
	assert.Equal(t, 10, config.TimeoutSeconds)
}

func TestGeminiScriptWriter_WriteScript(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("Today we solve ", "a quadratic. "),
	}}
	w := newTestWriter(t, gen)

	script, err := w.WriteScript(context.Background(), "x^2 + 2x + 1 = 0")
	require.NoError(t, err)
	assert.Equal(t, "Today we solve a quadratic.", script)

	require.Equal(t, 1, gen.calls)
	assert.Equal(t, defaultModel, gen.models[0])
	require.NotNil(t, gen.configs[0].SystemInstruction)
	assert.Contains(t, gen.configs[0].SystemInstruction.Parts[0].Text, "two minutes")
}

func TestGeminiScriptWriter_Retries(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{errors.New("503"), nil, nil},
		responses: []*genai.GenerateContentResponse{nil, textResponse(""), textResponse("Second time lucky.")},
	}
	w := newTestWriter(t, gen)

	script, err := w.WriteScript(context.Background(), "content")
	require.NoError(t, err)
	assert.Equal(t, "Second time lucky.", script)
	assert.Equal(t, 3, gen.calls)
}

func TestGeminiScriptWriter_GivesUp(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	w := newTestWriter(t, gen)

	_, err := w.WriteScript(context.Background(), "content")
	require.Error(t, err)
	assert.ErrorContains(t, err, "after 3 attempts: c")
	assert.Equal(t, defaultAttempts, gen.calls)
}

func TestGeminiScriptWriter_EmptyContent(t *testing.T) {
	gen := &fakeGenerator{}
	w := newTestWriter(t, gen)

	_, err := w.WriteScript(context.Background(), "   ")
	assert.ErrorIs(t, err, repositories.ErrEmptyContent)
	assert.Zero(t, gen.calls)
}

func TestMockScriptWriter(t *testing.T) {
	m := NewMockScriptWriter()

	script, err := m.WriteScript(context.Background(), "x squared")
	require.NoError(t, err)
	assert.Contains(t, script, "x squared")

	_, err = m.WriteScript(context.Background(), "")
	assert.ErrorIs(t, err, repositories.ErrEmptyContent)
}
