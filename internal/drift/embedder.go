package drift

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/retry"
)

// Embedder converts text into a float32 embedding vector.
type Embedder interface {
	// Embed returns the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the output vector length.
	Dimensions() int
}

// HTTPEmbedder calls an OpenAI-compatible embedding endpoint.
// Supports: OpenAI /v1/embeddings, Ollama /api/embeddings, any compatible API.
type HTTPEmbedder struct {
	endpoint   string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	retryCfg   retry.Config
}

// HTTPEmbedderConfig holds configuration for HTTPEmbedder.
type HTTPEmbedderConfig struct {
	// Endpoint is the full URL, e.g. "https://api.openai.com/v1/embeddings"
	// or "http://localhost:11434/api/embeddings" for Ollama.
	Endpoint string

	// APIKey is the Bearer token. May be empty for local models.
	APIKey string

	// Model name, e.g. "text-embedding-3-small" or "nomic-embed-text".
	Model string

	// Dimensions is the expected output size. 0 = auto-detect from first call.
	Dimensions int

	// Timeout for each HTTP request. Default: 30s.
	Timeout time.Duration

	// Retry overrides the backoff policy. Zero value = retry.DefaultConfig.
	Retry retry.Config
}

// NewHTTPEmbedder creates an HTTPEmbedder from the given config.
func NewHTTPEmbedder(cfg HTTPEmbedderConfig) *HTTPEmbedder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &HTTPEmbedder{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
		retryCfg:   cfg.Retry,
	}
}

// Dimensions returns the configured output vector size.
func (e *HTTPEmbedder) Dimensions() int { return e.dimensions }

// embeddingRequest is the JSON body sent to the endpoint. Compatible with
// OpenAI and Ollama (Ollama uses "prompt" not "input" — both fields are sent).
type embeddingRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`  // OpenAI
	Prompt string `json:"prompt"` // Ollama
}

// embeddingResponse parses both response shapes: OpenAI nests the vector
// under data[], Ollama returns it at top level.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Embedding []float32 `json:"embedding"`
}

// Embed calls the HTTP endpoint and returns the embedding vector. Network
// failures and 5xx responses are retried with backoff; 4xx are not.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model:  e.model,
		Input:  text,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal: %w", err)
	}

	var vec []float32
	err = retry.Do(ctx, e.retryCfg, func(ctx context.Context) error {
		vec, err = e.embedOnce(ctx, body)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Auto-detect dimensions on first call.
	if e.dimensions == 0 {
		e.dimensions = len(vec)
	}
	return vec, nil
}

func (e *HTTPEmbedder) embedOnce(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, ctxerrors.MarkTransient(fmt.Errorf("embedder: http: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("embedder: http %d: %s", resp.StatusCode, string(raw))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, ctxerrors.MarkTransient(err)
		}
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedder: decode: %w", err)
	}

	switch {
	case len(parsed.Data) > 0:
		return parsed.Data[0].Embedding, nil
	case len(parsed.Embedding) > 0:
		return parsed.Embedding, nil
	default:
		return nil, fmt.Errorf("embedder: no embedding in response")
	}
}
