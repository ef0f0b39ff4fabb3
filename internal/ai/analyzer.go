// Package ai describes files with a generative model. Analysis never touches
// the file tree and never fails: any problem yields a fallback message.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gopan-drive/internal/logger"
)

const (
	// FallbackText is returned whenever the backend cannot answer.
	FallbackText = "Sorry, the AI service is unavailable right now. Please try again later."
	// EmptyText is returned when the backend answers with nothing.
	EmptyText = "The AI has no answer for this file yet."

	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-2.5-flash"

	maxInlineBytes = 4 << 20
)

// Metadata is what an analyzer may know about a file.
type Metadata struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size"`
}

// Analyzer describes a file. Implementations return text, never an error.
type Analyzer interface {
	Analyze(ctx context.Context, meta Metadata, content []byte) string
}

// Fallback answers every request with a fixed text. It is used when no API
// key is configured.
type Fallback struct {
	Text string
}

func (f Fallback) Analyze(context.Context, Metadata, []byte) string {
	if f.Text == "" {
		return FallbackText
	}
	return f.Text
}

// GeminiConfig configures GeminiClient.
type GeminiConfig struct {
	APIKey        string
	Model         string
	Endpoint      string
	Timeout       time.Duration
	RatePerMinute int
}

// GeminiClient calls the generateContent endpoint of the Gemini API.
type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
		burst = cfg.RatePerMinute
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// New picks the Gemini client when an API key is set and Fallback otherwise.
func New(cfg GeminiConfig) Analyzer {
	if cfg.APIKey == "" {
		return Fallback{}
	}
	return NewGeminiClient(cfg)
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Prompt builds the analysis prompt for a file.
func Prompt(meta Metadata) string {
	return fmt.Sprintf("Describe the content of the file %q in detail. "+
		"If it is an image, describe what it shows; if it is a document, guess its main topic from the name.", meta.Name)
}

// Analyze asks the model about a file. Image content up to 4 MiB is sent
// inline.
func (g *GeminiClient) Analyze(ctx context.Context, meta Metadata, data []byte) string {
	text, err := g.generate(ctx, meta, data)
	if err != nil {
		logger.Warn("ai analysis failed", zap.String("file", meta.Name), zap.Error(err))
		return FallbackText
	}
	if strings.TrimSpace(text) == "" {
		return EmptyText
	}
	return text
}

func (g *GeminiClient) generate(ctx context.Context, meta Metadata, data []byte) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	parts := []part{{Text: Prompt(meta)}}
	if len(data) > 0 && len(data) <= maxInlineBytes && strings.HasPrefix(meta.MimeType, "image/") {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: meta.MimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(g.cfg.Endpoint, "/"), g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("API error (status %d)", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != nil {
		return "", errors.New(out.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("API error (status %d)", resp.StatusCode)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
