// Package health computes a composite session health score from weighted
// penalty factors. The analyzer is pure: given the same session state and
// clock it always produces the same analysis.
package health

import (
	"time"

	"github.com/deckide/contextd/internal/session"
)

// Level classifies a raw score into display bands.
type Level string

const (
	LevelGood     Level = "good"     // score ≥ 0.80
	LevelFair     Level = "fair"     // 0.50 ≤ score < 0.80
	LevelWarning  Level = "warning"  // 0.30 ≤ score < 0.50
	LevelCritical Level = "critical" // score < 0.30
)

// Factors is the per-signal penalty breakdown, each in [0, 1].
type Factors struct {
	Drift    float64 `json:"drift"`
	Errors   float64 `json:"errors"`
	Length   float64 `json:"length"`
	Activity float64 `json:"activity"`
}

// Analysis is the result of one analyzer run.
type Analysis struct {
	Score           float64  `json:"score"`
	Level           Level    `json:"level"`
	Factors         Factors  `json:"factors"`
	Recommendations []string `json:"recommendations"`
}

// Weights are the per-factor multipliers in the penalty sum. They must total
// at most 1 so the composite score stays in [0, 1] without clamping doing all
// the work.
type Weights struct {
	Drift    float64
	Errors   float64
	Length   float64
	Activity float64
}

// DefaultWeights reproduce the documented threshold behavior: a quiet,
// drift-free session with a handful of messages scores well above 0.80.
func DefaultWeights() Weights {
	return Weights{Drift: 0.30, Errors: 0.25, Length: 0.25, Activity: 0.20}
}

const (
	// DefaultTokenDivisor normalizes total tokens into the length factor.
	DefaultTokenDivisor = 10000

	// DefaultFreshnessWindow is the idle gap tolerated before the activity
	// factor starts penalizing.
	DefaultFreshnessWindow = 10 * time.Minute
)

// Analyzer computes health analyses. The zero value is not usable; construct
// with New.
type Analyzer struct {
	weights         Weights
	tokenDivisor    int
	freshnessWindow time.Duration
	now             func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWeights overrides the factor weights.
func WithWeights(w Weights) Option {
	return func(a *Analyzer) { a.weights = w }
}

// WithTokenDivisor overrides the length normalization divisor.
func WithTokenDivisor(d int) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.tokenDivisor = d
		}
	}
}

// WithFreshnessWindow overrides the idle tolerance window.
func WithFreshnessWindow(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.freshnessWindow = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New creates an Analyzer with default tuning.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		weights:         DefaultWeights(),
		tokenDivisor:    DefaultTokenDivisor,
		freshnessWindow: DefaultFreshnessWindow,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze computes the composite health score for a session.
//
// Score = clamp(1 − Σ weight·factor, 0, 1), where:
//   - drift: the session's last drift score, taken as-is
//   - errors: errorCount / max(messageCount, 1), clamped
//   - length: totalTokens / tokenDivisor, clamped
//   - activity: idle-gap decay — zero penalty while the gap since the last
//     event is inside the freshness window, then rising linearly to full
//     penalty at twice the window
func (a *Analyzer) Analyze(s *session.Session) Analysis {
	f := Factors{
		Drift:    clamp01(s.Metrics.DriftScore),
		Errors:   a.errorFactor(s),
		Length:   a.lengthFactor(s),
		Activity: a.activityFactor(s),
	}

	penalty := a.weights.Drift*f.Drift +
		a.weights.Errors*f.Errors +
		a.weights.Length*f.Length +
		a.weights.Activity*f.Activity

	score := clamp01(1 - penalty)

	return Analysis{
		Score:           score,
		Level:           levelFor(score),
		Factors:         f,
		Recommendations: recommendations(f),
	}
}

func (a *Analyzer) errorFactor(s *session.Session) float64 {
	messages := s.Metrics.MessageCount
	if messages < 1 {
		messages = 1
	}
	return clamp01(float64(s.Metrics.ErrorCount) / float64(messages))
}

func (a *Analyzer) lengthFactor(s *session.Session) float64 {
	return clamp01(float64(s.Metrics.TotalTokens) / float64(a.tokenDivisor))
}

func (a *Analyzer) activityFactor(s *session.Session) float64 {
	gap := a.now().Sub(s.LastEventAt())
	if gap <= a.freshnessWindow {
		return 0
	}
	return clamp01(float64(gap)/float64(a.freshnessWindow) - 1)
}

func levelFor(score float64) Level {
	switch {
	case score < 0.30:
		return LevelCritical
	case score < 0.50:
		return LevelWarning
	case score >= 0.80:
		return LevelGood
	default:
		return LevelFair
	}
}

// recommendations derives advisory strings from factors in poor ranges.
// Deterministic given the factor values.
func recommendations(f Factors) []string {
	var out []string
	if f.Drift > 0.7 {
		out = append(out, "topic drift is high — consider starting a new session")
	}
	if f.Errors > 0.3 {
		out = append(out, "error rate is elevated — verify recent changes")
	}
	if f.Length > 0.8 {
		out = append(out, "session history is getting long — run compaction")
	}
	if f.Activity > 0.5 {
		out = append(out, "session has been idle — confirm it is still needed")
	}
	if len(out) == 0 {
		out = append(out, "session is healthy")
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
