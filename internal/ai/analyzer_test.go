package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gopan-drive/internal/logger"
)

func init() {
	logger.Replace(zap.NewNop())
}

func TestFallback(t *testing.T) {
	assert.Equal(t, FallbackText, Fallback{}.Analyze(context.Background(), Metadata{}, nil))
	assert.Equal(t, "nope", Fallback{Text: "nope"}.Analyze(context.Background(), Metadata{}, nil))
	assert.IsType(t, Fallback{}, New(GeminiConfig{}))
	assert.IsType(t, &GeminiClient{}, New(GeminiConfig{APIKey: "k"}))
}

func TestGeminiSuccess(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"A beach at sunset."}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{APIKey: "key", Model: "test-model", Endpoint: srv.URL})
	text := c.Analyze(context.Background(), Metadata{Name: "beach.png", MimeType: "image/png"}, []byte{1, 2, 3})
	assert.Equal(t, "A beach at sunset.", text)

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Contains(t, got.Contents[0].Parts[0].Text, "beach.png")
	assert.Equal(t, "image/png", got.Contents[0].Parts[1].InlineData.MimeType)
}

func TestGeminiFailuresFallBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusBadRequest, `{"error":{"code":400,"message":"bad key"}}`, FallbackText},
		{"server error", http.StatusInternalServerError, `oops`, FallbackText},
		{"not json", http.StatusOK, `<html>`, FallbackText},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, EmptyText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewGeminiClient(GeminiConfig{APIKey: "key", Endpoint: srv.URL})
			assert.Equal(t, tt.want, c.Analyze(context.Background(), Metadata{Name: "a.pdf"}, nil))
		})
	}
}

func TestGeminiUnreachable(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{APIKey: "key", Endpoint: "http://127.0.0.1:1", Timeout: time.Second})
	assert.Equal(t, FallbackText, c.Analyze(context.Background(), Metadata{Name: "a"}, nil))
}

func TestGeminiRateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{APIKey: "key", Endpoint: srv.URL, RatePerMinute: 1})
	assert.Equal(t, "ok", c.Analyze(context.Background(), Metadata{}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Equal(t, FallbackText, c.Analyze(ctx, Metadata{}, nil))
}
