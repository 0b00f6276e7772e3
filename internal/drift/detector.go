// Package drift measures how far the current conversation topic has moved
// from the topic fingerprint captured at session creation.
package drift

import (
	"context"

	"github.com/deckide/contextd/internal/session"
)

// DefaultWindowSize is how many recent messages form the current signature.
const DefaultWindowSize = 5

// DefaultThreshold is the drift score above which a deep analysis is flagged.
const DefaultThreshold = 0.7

// Result of one drift detection run.
type Result struct {
	Score             float64 `json:"score"`
	Method            string  `json:"method"`
	NeedsDeepAnalysis bool    `json:"needs_deep_analysis"`
}

// Detector is a swappable drift detection strategy. Implementations are pure
// with respect to the session: the caller writes the score back and persists.
type Detector interface {
	// Detect computes the drift score for the session's recent activity.
	Detect(ctx context.Context, s *session.Session) (Result, error)

	// Method names the strategy ("keyword", "embedding", …).
	Method() string
}

// KeywordDetector is the default, fully local strategy: drift is one minus
// the Jaccard similarity between the baseline keyword signature and the
// keywords of the last WindowSize messages.
type KeywordDetector struct {
	WindowSize int
	Threshold  float64
}

// NewKeywordDetector creates a detector with default window and threshold.
func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{
		WindowSize: DefaultWindowSize,
		Threshold:  DefaultThreshold,
	}
}

// Method returns "keyword".
func (d *KeywordDetector) Method() string { return "keyword" }

// Detect computes the keyword-based drift score. A session with no recent
// messages has not drifted. Identical signatures score 0; disjoint ones
// score 1.
func (d *KeywordDetector) Detect(_ context.Context, s *session.Session) (Result, error) {
	window := d.WindowSize
	if window <= 0 {
		window = DefaultWindowSize
	}
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	baseline := session.KeywordSet(s.Topic.Keywords)
	for _, k := range session.ExtractKeywords(s.Metadata.InitialPrompt) {
		baseline[k] = struct{}{}
	}

	recent := s.RecentMessages(window)
	current := make(map[string]struct{})
	for _, msg := range recent {
		for _, k := range session.ExtractKeywords(msg) {
			current[k] = struct{}{}
		}
	}

	score := 0.0
	if len(recent) > 0 {
		score = 1 - jaccard(baseline, current)
	}

	return Result{
		Score:             score,
		Method:            d.Method(),
		NeedsDeepAnalysis: score > threshold,
	}, nil
}

// jaccard returns |a ∩ b| / |a ∪ b|, treating two empty sets as identical.
func jaccard(a, b map[string]struct{}) float64 {
	union := len(a)
	intersection := 0
	for k := range b {
		if _, ok := a[k]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}
