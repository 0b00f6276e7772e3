package drift

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/deckide/contextd/internal/session"
)

// EmbeddingDetector scores drift as cosine distance between the session's
// initial embedding and an embedding of the recent message window. It is the
// injectable alternative to the keyword strategy and requires a configured
// Embedder; the keyword method works standalone.
type EmbeddingDetector struct {
	embedder   Embedder
	WindowSize int
	Threshold  float64
}

// NewEmbeddingDetector creates a detector backed by the given embedder.
func NewEmbeddingDetector(embedder Embedder) *EmbeddingDetector {
	return &EmbeddingDetector{
		embedder:   embedder,
		WindowSize: DefaultWindowSize,
		Threshold:  DefaultThreshold,
	}
}

// Method returns "embedding".
func (d *EmbeddingDetector) Method() string { return "embedding" }

// Baseline computes and caches the initial topic embedding on the session.
// Called once at session creation when this strategy is active.
func (d *EmbeddingDetector) Baseline(ctx context.Context, s *session.Session) error {
	if d.embedder == nil {
		return fmt.Errorf("drift: no embedder configured")
	}
	vec, err := d.embedder.Embed(ctx, s.Metadata.InitialPrompt)
	if err != nil {
		return fmt.Errorf("drift: baseline embed: %w", err)
	}
	s.Topic.InitialEmbedding = vec
	return nil
}

// Detect embeds the recent message window and compares it against the
// baseline. Sessions without a baseline embedding or without recent messages
// have not drifted.
func (d *EmbeddingDetector) Detect(ctx context.Context, s *session.Session) (Result, error) {
	if d.embedder == nil {
		return Result{}, fmt.Errorf("drift: no embedder configured")
	}

	window := d.WindowSize
	if window <= 0 {
		window = DefaultWindowSize
	}
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	recent := s.RecentMessages(window)
	if len(recent) == 0 || len(s.Topic.InitialEmbedding) == 0 {
		return Result{Score: 0, Method: d.Method(), NeedsDeepAnalysis: false}, nil
	}

	vec, err := d.embedder.Embed(ctx, strings.Join(recent, "\n"))
	if err != nil {
		return Result{}, fmt.Errorf("drift: embed window: %w", err)
	}

	// Cosine similarity is in [-1, 1]; negative similarity is total drift.
	sim := cosineSimilarity(s.Topic.InitialEmbedding, vec)
	score := 1 - sim
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return Result{
		Score:             score,
		Method:            d.Method(),
		NeedsDeepAnalysis: score > threshold,
	}, nil
}

// cosineSimilarity returns the cosine similarity ∈ [-1, 1] between two
// vectors. Returns 0 if either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		normA += fa * fa
		normB += fb * fb
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
