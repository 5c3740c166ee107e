package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestMathpix(t *testing.T, handler http.HandlerFunc) *MathpixOCR {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ocr, err := NewMathpixOCR(MathpixConfig{
		AppID:      "test-app",
		AppKey:     "test-key",
		APIBaseURL: server.URL,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return ocr
}

func TestValidateMathpixConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  MathpixConfig
		wantErr bool
	}{
		{"valid", MathpixConfig{AppID: "a", AppKey: "k"}, false},
		{"missing app id", MathpixConfig{AppKey: "k"}, true},
		{"missing app key", MathpixConfig{AppID: "a"}, true},
		{"negative timeout", MathpixConfig{AppID: "a", AppKey: "k", Timeout: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMathpixConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewMathpixConfigFromEnv(t *testing.T) {
	t.Setenv("MATHPIX_APP_ID", "env-app")
	t.Setenv("MATHPIX_APP_KEY", "env-key")
	t.Setenv("MATHPIX_TIMEOUT_SECONDS", "5")

	config := NewMathpixConfigFromEnv()
	assert.Equal(t, "env-app", config.AppID)
	assert.Equal(t, "env-key", config.AppKey)
	assert.Equal(t, "5s", config.Timeout.String())

	ocr, err := NewMathpixOCR(config, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, defaultMathpixBaseURL, ocr.apiBaseURL)
}

func TestMathpixOCR_Extract(t *testing.T) {
	ocr := newTestMathpix(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/text", r.URL.Path)
		assert.Equal(t, "test-app", r.Header.Get("app_id"))
		assert.Equal(t, "test-key", r.Header.Get("app_key"))

		var req mathpixRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "data:image/png;base64,aW1n", req.Src)
		assert.Equal(t, []string{"text", "latex_styled", "mathml"}, req.Formats)
		assert.True(t, req.IncludeLatex)

		w.Header().Set("Content-Type", "application/json")
		// "e" followed by a combining acute accent normalizes to one rune.
		_, _ = w.Write([]byte(`{"text":"Cafe\u0301 x^2","latex_styled":"x^2","confidence":0.97}`))
	})

	extraction, err := ocr.Extract(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9 x^2", extraction.Text)
	assert.Equal(t, "x^2", extraction.Latex)
	assert.InDelta(t, 0.97, extraction.Confidence, 1e-9)
}

func TestMathpixOCR_Extract_DefaultContentType(t *testing.T) {
	ocr := newTestMathpix(t, func(w http.ResponseWriter, r *http.Request) {
		var req mathpixRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Src, "data:image/jpeg;base64,")
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	})

	_, err := ocr.Extract(context.Background(), []byte("img"), "")
	assert.NoError(t, err)
}

func TestMathpixOCR_Extract_Errors(t *testing.T) {
	t.Run("empty image", func(t *testing.T) {
		ocr := newTestMathpix(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := ocr.Extract(context.Background(), nil, "image/png")
		assert.Error(t, err)
	})

	t.Run("non-200", func(t *testing.T) {
		ocr := newTestMathpix(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
		})
		_, err := ocr.Extract(context.Background(), []byte("img"), "image/png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
		assert.Contains(t, err.Error(), "invalid credentials")
	})

	t.Run("error field", func(t *testing.T) {
		ocr := newTestMathpix(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Content not found"}`))
		})
		_, err := ocr.Extract(context.Background(), []byte("img"), "image/png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Content not found")
	})

	t.Run("malformed body", func(t *testing.T) {
		ocr := newTestMathpix(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		})
		_, err := ocr.Extract(context.Background(), []byte("img"), "image/png")
		assert.Error(t, err)
	})
}

func TestMathpixOCR_Ping(t *testing.T) {
	status := http.StatusOK
	ocr := newTestMathpix(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/usage", r.URL.Path)
		assert.Equal(t, "test-app", r.Header.Get("app_id"))
		w.WriteHeader(status)
	})

	assert.NoError(t, ocr.Ping(context.Background()))

	status = http.StatusForbidden
	assert.Error(t, ocr.Ping(context.Background()))
}

func TestDemoOCR_Extract(t *testing.T) {
	demo := NewDemoOCR(zaptest.NewLogger(t))

	extraction, err := demo.Extract(context.Background(), []byte("anything"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, DemoContent.Latex, extraction.Latex)
	assert.False(t, extraction.IsEmpty())

	// Callers may mutate the result without touching the shared content.
	extraction.Text = "changed"
	again, err := demo.Extract(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, DemoContent.Text, again.Text)
}
