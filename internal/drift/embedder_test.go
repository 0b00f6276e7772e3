package drift_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckide/contextd/internal/drift"
	"github.com/deckide/contextd/internal/retry"
)

func TestHTTPEmbedder_OpenAIShape(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])
		assert.Equal(t, "hello", req["input"])

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	e := drift.NewHTTPEmbedder(drift.HTTPEmbedderConfig{
		Endpoint: srv.URL,
		APIKey:   "sk-test",
		Model:    "text-embedding-3-small",
	})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, 3, e.Dimensions(), "dimensions auto-detected from first call")
}

func TestHTTPEmbedder_OllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "no auth header without an API key")
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float32{1, 0},
		})
	}))
	defer srv.Close()

	e := drift.NewHTTPEmbedder(drift.HTTPEmbedderConfig{
		Endpoint: srv.URL,
		Model:    "nomic-embed-text",
	})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}

func TestHTTPEmbedder_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1}})
	}))
	defer srv.Close()

	e := drift.NewHTTPEmbedder(drift.HTTPEmbedderConfig{
		Endpoint: srv.URL,
		Retry:    retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 3, calls)
}

func TestHTTPEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := drift.NewHTTPEmbedder(drift.HTTPEmbedderConfig{
		Endpoint: srv.URL,
		Retry:    retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestHTTPEmbedder_ErrorResponses(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		e := drift.NewHTTPEmbedder(drift.HTTPEmbedderConfig{Endpoint: srv.URL})
		_, err := e.Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("empty response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		e := drift.NewHTTPEmbedder(drift.HTTPEmbedderConfig{Endpoint: srv.URL})
		_, err := e.Embed(context.Background(), "hello")
		assert.Error(t, err)
	})
}
