package drift_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckide/contextd/internal/drift"
	"github.com/deckide/contextd/internal/session"
)

func addMessages(s *session.Session, contents ...string) {
	for _, c := range contents {
		s.AppendEvent(session.EventMessage, map[string]any{"role": "user", "content": c})
		s.Metrics.MessageCount++
	}
}

func TestKeywordDetector_NoMessagesNoDrift(t *testing.T) {
	d := drift.NewKeywordDetector()
	s := session.New("s1", "refactor authentication module")

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, "keyword", got.Method)
	assert.False(t, got.NeedsDeepAnalysis)
}

func TestKeywordDetector_SameTopicScoresZero(t *testing.T) {
	d := drift.NewKeywordDetector()
	s := session.New("s1", "refactor authentication module")
	addMessages(s, "refactor the authentication module")

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Score)
	assert.False(t, got.NeedsDeepAnalysis)
}

func TestKeywordDetector_DisjointTopicScoresOne(t *testing.T) {
	d := drift.NewKeywordDetector()
	s := session.New("s1", "refactor authentication module")
	addMessages(s,
		"update the marketing website banner",
		"change hero image colors",
	)

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Score)
	assert.True(t, got.NeedsDeepAnalysis)
}

func TestKeywordDetector_PartialOverlap(t *testing.T) {
	d := drift.NewKeywordDetector()
	s := session.New("s1", "refactor authentication module")
	// baseline = {refactor, authentication, module}; current shares one of
	// four union members beyond it.
	addMessages(s, "authentication tokens expire early")

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.Greater(t, got.Score, 0.0)
	assert.Less(t, got.Score, 1.0)
}

func TestKeywordDetector_WindowLimitsSignature(t *testing.T) {
	d := drift.NewKeywordDetector()
	d.WindowSize = 2
	s := session.New("s1", "refactor authentication module")
	addMessages(s,
		"authentication module refactor underway", // outside window
		"marketing website banner",
		"hero image colors",
	)

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Score)
}

func TestKeywordDetector_ThresholdBoundaryIsExclusive(t *testing.T) {
	d := drift.NewKeywordDetector()
	d.Threshold = 1.0
	s := session.New("s1", "refactor authentication module")
	addMessages(s, "marketing website banner")

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Score)
	assert.False(t, got.NeedsDeepAnalysis, "score must exceed, not equal, the threshold")
}

// stubEmbedder returns canned vectors keyed by input text.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (e *stubEmbedder) Dimensions() int { return 3 }

func TestEmbeddingDetector_Baseline(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"refactor authentication module": {0, 1, 0},
	}}
	d := drift.NewEmbeddingDetector(emb)
	s := session.New("s1", "refactor authentication module")

	require.NoError(t, d.Baseline(context.Background(), s))
	assert.Equal(t, []float32{0, 1, 0}, s.Topic.InitialEmbedding)
}

func TestEmbeddingDetector_NoBaselineNoDrift(t *testing.T) {
	emb := &stubEmbedder{}
	d := drift.NewEmbeddingDetector(emb)
	s := session.New("s1", "refactor authentication module")
	addMessages(s, "anything at all")

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, "embedding", got.Method)
	assert.Zero(t, emb.calls, "no embedding call without a baseline")
}

func TestEmbeddingDetector_OrthogonalVectorsDrift(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"marketing website banner": {1, 0, 0},
	}}
	d := drift.NewEmbeddingDetector(emb)
	s := session.New("s1", "refactor authentication module")
	s.Topic.InitialEmbedding = []float32{0, 1, 0}
	addMessages(s, "marketing website banner")

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
	assert.True(t, got.NeedsDeepAnalysis)
}

func TestEmbeddingDetector_IdenticalVectorsNoDrift(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"refactor authentication module again": {0, 1, 0},
	}}
	d := drift.NewEmbeddingDetector(emb)
	s := session.New("s1", "refactor authentication module")
	s.Topic.InitialEmbedding = []float32{0, 1, 0}
	addMessages(s, "refactor authentication module again")

	got, err := d.Detect(context.Background(), s)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got.Score, 1e-9)
	assert.False(t, got.NeedsDeepAnalysis)
}

func TestEmbeddingDetector_EmbedderFailure(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("connection refused")}
	d := drift.NewEmbeddingDetector(emb)
	s := session.New("s1", "refactor authentication module")
	s.Topic.InitialEmbedding = []float32{0, 1, 0}
	addMessages(s, "anything")

	_, err := d.Detect(context.Background(), s)
	assert.Error(t, err)
}

func TestEmbeddingDetector_NilEmbedder(t *testing.T) {
	d := drift.NewEmbeddingDetector(nil)
	s := session.New("s1", "refactor authentication module")

	assert.Error(t, d.Baseline(context.Background(), s))
	_, err := d.Detect(context.Background(), s)
	assert.Error(t, err)
}
