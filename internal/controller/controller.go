// Package controller orchestrates the context-manager components behind one
// façade: session lifecycle, event tracking, health/drift analysis,
// compaction, snapshotting and the background auto-monitor.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deckide/contextd/internal/compact"
	"github.com/deckide/contextd/internal/drift"
	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/health"
	"github.com/deckide/contextd/internal/metrics"
	"github.com/deckide/contextd/internal/monitor"
	"github.com/deckide/contextd/internal/session"
	"github.com/deckide/contextd/internal/snapshot"
	"github.com/deckide/contextd/internal/store"
	"github.com/deckide/contextd/internal/trim"
)

// Options tune the controller's policies. Zero numeric fields fall back to
// the defaults below; construct with DefaultOptions to get SaveImmediately.
type Options struct {
	// AutoCompactThreshold is the event count above which the auto-monitor
	// compacts. Default 100.
	AutoCompactThreshold int

	// HealthCheckInterval is the auto-monitor tick period. Default 60s.
	HealthCheckInterval time.Duration

	// DriftThreshold flags NeedsDeepAnalysis when exceeded. Default 0.7.
	DriftThreshold float64

	// KeepRecentEvents is the compaction suffix size. Default 20.
	KeepRecentEvents int

	// CompactThreshold is the minimum event count for compaction. Default 100.
	CompactThreshold int

	// TrimThreshold is the per-payload character cap for trimming. Default 2000.
	TrimThreshold int

	// SaveImmediately persists after every tracked event. DefaultOptions
	// enables it; disabling defers persistence to explicit Status/Compact/
	// snapshot calls.
	SaveImmediately bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		AutoCompactThreshold: 100,
		HealthCheckInterval:  60 * time.Second,
		DriftThreshold:       drift.DefaultThreshold,
		KeepRecentEvents:     compact.DefaultKeepRecentEvents,
		CompactThreshold:     compact.DefaultThreshold,
		TrimThreshold:        trim.DefaultThreshold,
		SaveImmediately:      true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AutoCompactThreshold <= 0 {
		o.AutoCompactThreshold = d.AutoCompactThreshold
	}
	if o.HealthCheckInterval <= 0 {
		o.HealthCheckInterval = d.HealthCheckInterval
	}
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = d.DriftThreshold
	}
	if o.KeepRecentEvents <= 0 {
		o.KeepRecentEvents = d.KeepRecentEvents
	}
	if o.CompactThreshold <= 0 {
		o.CompactThreshold = d.CompactThreshold
	}
	if o.TrimThreshold <= 0 {
		o.TrimThreshold = d.TrimThreshold
	}
	return o
}

// Status is the composite state returned by Status().
type Status struct {
	SessionID     string          `json:"session_id"`
	Phase         string          `json:"phase"`
	Health        health.Analysis `json:"health"`
	Drift         drift.Result    `json:"drift"`
	EventCount    int             `json:"event_count"`
	Metrics       session.Metrics `json:"metrics"`
	SnapshotCount int             `json:"snapshot_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Controller is the single entry point callers use. All mutations of the
// active session run under one mutex, so store writes for a session are
// serialized and no partial update is ever observable.
type Controller struct {
	store     store.SessionStore
	monitor   *monitor.Monitor
	analyzer  *health.Analyzer
	detector  drift.Detector
	snapshots *snapshot.Manager
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	opts      Options

	mu             sync.Mutex
	driftThreshold float64

	// auto-monitor state, see automonitor.go
	loopMu   sync.Mutex
	running  bool
	stopCh   chan struct{}
	inFlight bool
}

// New wires the controller from its components. Pass nil metrics to disable
// instrumentation.
func New(
	st store.SessionStore,
	mon *monitor.Monitor,
	analyzer *health.Analyzer,
	detector drift.Detector,
	snapshots *snapshot.Manager,
	m *metrics.Metrics,
	opts Options,
	logger zerolog.Logger,
) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		store:          st,
		monitor:        mon,
		analyzer:       analyzer,
		detector:       detector,
		snapshots:      snapshots,
		metrics:        m,
		logger:         logger.With().Str("component", "controller").Logger(),
		opts:           opts,
		driftThreshold: opts.DriftThreshold,
	}
}

// CreateSession starts tracking a new session and makes it current.
// An empty id gets a generated one; the initial prompt is required since it
// seeds the topic fingerprint.
func (c *Controller) CreateSession(ctx context.Context, id, initialPrompt string) (*session.Session, error) {
	if initialPrompt == "" {
		return nil, ctxerrors.NewValidationError("initial_prompt", "must not be empty")
	}
	if id == "" {
		id = uuid.NewString()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.monitor.Current(); cur != nil && cur.ID == id {
		return nil, ctxerrors.ErrDuplicateSession
	}
	existing, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ctxerrors.ErrDuplicateSession
	}

	s := session.New(id, initialPrompt)

	// The embedding strategy caches its baseline at creation; failure to do
	// so is non-fatal because the keyword method still works.
	if ed, ok := c.detector.(*drift.EmbeddingDetector); ok {
		if err := ed.Baseline(ctx, s); err != nil {
			c.logger.Warn().Err(err).Str("session_id", id).Msg("baseline embedding failed")
		}
	}

	if err := c.store.Create(ctx, s); err != nil {
		return nil, err
	}
	c.monitor.SetCurrent(s)

	if c.metrics != nil {
		c.metrics.SessionsActive.Set(1)
	}
	c.logger.Info().Str("session_id", id).Msg("session created")
	return s, nil
}

// EndSession logically closes the active session. The record is retained
// with phase "ended"; the current-session pointer is cleared.
func (c *Controller) EndSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}

	s.Metadata.Phase = session.PhaseEnded
	if err := c.store.Save(ctx, s); err != nil {
		return err
	}
	c.monitor.Clear()

	if c.metrics != nil {
		c.metrics.SessionsActive.Set(0)
	}
	c.logger.Info().Str("session_id", s.ID).Msg("session ended")
	return nil
}

// DeleteSession removes a session record. If it is the active session the
// current pointer is cleared first, so the monitor never dangles.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.monitor.Current(); cur != nil && cur.ID == id {
		c.monitor.Clear()
		if c.metrics != nil {
			c.metrics.SessionsActive.Set(0)
		}
	}
	return c.store.Delete(ctx, id)
}

// Session returns the session with the given id.
func (c *Controller) Session(ctx context.Context, id string) (*session.Session, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ctxerrors.ErrSessionNotFound
	}
	return s, nil
}

// Sessions lists all tracked sessions.
func (c *Controller) Sessions(ctx context.Context) ([]*session.Session, error) {
	return c.store.List(ctx)
}

// TrackMessage records a conversation message on the active session.
func (c *Controller) TrackMessage(ctx context.Context, role, content string) error {
	if content == "" {
		return ctxerrors.NewValidationError("content", "must not be empty")
	}
	if role == "" {
		role = "user"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}
	if err := c.monitor.RecordMessage(role, content); err != nil {
		return err
	}
	c.inferPhase(s, content)

	if c.metrics != nil {
		c.metrics.RecordEvent(string(session.EventMessage))
	}
	return c.persist(ctx, s)
}

// TrackTool records a tool invocation on the active session.
func (c *Controller) TrackTool(ctx context.Context, name, args, result string) error {
	if name == "" {
		return ctxerrors.NewValidationError("name", "must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}
	if err := c.monitor.RecordTool(name, args, result); err != nil {
		return err
	}

	if c.metrics != nil {
		c.metrics.RecordEvent(string(session.EventTool))
	}
	return c.persist(ctx, s)
}

// TrackError records an error on the active session. Recoverable errors also
// count as retries.
func (c *Controller) TrackError(ctx context.Context, message string, recoverable bool) error {
	if message == "" {
		return ctxerrors.NewValidationError("message", "must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}
	if err := c.monitor.RecordError(message, recoverable); err != nil {
		return err
	}
	c.inferPhase(s, message)

	if c.metrics != nil {
		c.metrics.RecordEvent(string(session.EventError))
	}
	return c.persist(ctx, s)
}

// HealthScore returns the cached composite score without recomputing.
func (c *Controller) HealthScore() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return 0, err
	}
	return s.Metadata.HealthScore, nil
}

// Status recomputes health and drift for the active session, persists the
// updated scores and returns the composite state.
func (c *Controller) Status(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return nil, err
	}

	dr, err := c.detectDrift(ctx, s)
	if err != nil {
		return nil, err
	}

	analysis := c.analyzer.Analyze(s)
	s.Metadata.HealthScore = analysis.Score

	if err := c.store.Save(ctx, s); err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.HealthScore.Set(analysis.Score)
		c.metrics.DriftScore.Set(dr.Score)
	}

	return &Status{
		SessionID:     s.ID,
		Phase:         s.Metadata.Phase,
		Health:        analysis,
		Drift:         dr,
		EventCount:    len(s.Events),
		Metrics:       s.Metrics,
		SnapshotCount: len(s.Snapshots),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}, nil
}

// DetectDrift runs the drift strategy on the active session, writes the
// score back and persists.
func (c *Controller) DetectDrift(ctx context.Context) (drift.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return drift.Result{}, err
	}
	dr, err := c.detectDrift(ctx, s)
	if err != nil {
		return drift.Result{}, err
	}
	if err := c.store.Save(ctx, s); err != nil {
		return drift.Result{}, err
	}
	return dr, nil
}

// detectDrift runs the detector and writes the score into the session.
// Callers hold c.mu and persist.
func (c *Controller) detectDrift(ctx context.Context, s *session.Session) (drift.Result, error) {
	dr, err := c.detector.Detect(ctx, s)
	if err != nil {
		return drift.Result{}, err
	}
	// The controller owns the threshold so SetDriftThreshold takes effect
	// regardless of strategy.
	dr.NeedsDeepAnalysis = dr.Score > c.driftThreshold
	s.Metrics.DriftScore = dr.Score
	return dr, nil
}

// DriftThreshold returns the current deep-analysis threshold.
func (c *Controller) DriftThreshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driftThreshold
}

// SetDriftThreshold updates the deep-analysis threshold.
func (c *Controller) SetDriftThreshold(v float64) error {
	if v <= 0 || v > 1 {
		return ctxerrors.NewValidationError("drift_threshold", "must be in (0, 1]")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driftThreshold = v
	return nil
}

// Compact condenses the active session's event history. Zero option fields
// fall back to the controller's configured defaults.
func (c *Controller) Compact(ctx context.Context, opts compact.Options) (compact.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return compact.Result{}, err
	}
	return c.compactLocked(ctx, s, opts)
}

func (c *Controller) compactLocked(ctx context.Context, s *session.Session, opts compact.Options) (compact.Result, error) {
	if opts.KeepRecentEvents <= 0 {
		opts.KeepRecentEvents = c.opts.KeepRecentEvents
	}
	if opts.Threshold <= 0 {
		opts.Threshold = c.opts.CompactThreshold
	}

	res := compact.Compact(ctx, s, opts)
	if res.CompactedEvents == 0 {
		return res, nil
	}

	if err := c.store.Save(ctx, s); err != nil {
		return compact.Result{}, err
	}
	if c.metrics != nil {
		c.metrics.RecordCompaction(res.CompactedEvents)
	}
	c.logger.Info().
		Str("session_id", s.ID).
		Int("compacted", res.CompactedEvents).
		Int("remaining", res.RemainingEvents).
		Int("space_saved", res.SpaceSaved).
		Msg("session compacted")
	return res, nil
}

// CreateSnapshot captures the active session's state.
func (c *Controller) CreateSnapshot(ctx context.Context, description string) (session.SnapshotRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return session.SnapshotRef{}, err
	}
	return c.snapshotLocked(ctx, s, description, "manual")
}

func (c *Controller) snapshotLocked(ctx context.Context, s *session.Session, description, trigger string) (session.SnapshotRef, error) {
	ref, err := c.snapshots.Create(ctx, s, description)
	if err != nil {
		return session.SnapshotRef{}, err
	}
	if err := c.store.Save(ctx, s); err != nil {
		return session.SnapshotRef{}, err
	}
	if c.metrics != nil {
		c.metrics.RecordSnapshot(trigger)
	}
	return ref, nil
}

// Snapshots returns the active session's snapshot references.
func (c *Controller) Snapshots() ([]session.SnapshotRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return nil, err
	}
	return append([]session.SnapshotRef(nil), s.Snapshots...), nil
}

// LatestSnapshot returns the most recent snapshot reference.
func (c *Controller) LatestSnapshot() (session.SnapshotRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return session.SnapshotRef{}, err
	}
	ref := c.snapshots.Latest(s)
	if ref == nil {
		return session.SnapshotRef{}, ctxerrors.ErrSnapshotNotFound
	}
	return *ref, nil
}

// HealthiestSnapshot returns the snapshot with the highest captured health
// score, ties broken by recency.
func (c *Controller) HealthiestSnapshot() (session.SnapshotRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return session.SnapshotRef{}, err
	}
	ref := c.snapshots.Healthiest(s)
	if ref == nil {
		return session.SnapshotRef{}, ctxerrors.ErrSnapshotNotFound
	}
	return *ref, nil
}

// RestoreSnapshot replaces the active session's state with a prior capture.
// On any failure the current state is left unchanged.
func (c *Controller) RestoreSnapshot(ctx context.Context, commitHash string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return nil, err
	}

	restored, err := c.snapshots.Restore(ctx, s, commitHash)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, restored); err != nil {
		return nil, err
	}
	c.monitor.SetCurrent(restored)

	c.logger.Info().
		Str("session_id", restored.ID).
		Str("commit_hash", commitHash).
		Msg("session restored from snapshot")
	return restored, nil
}

// Trim truncates oversized tool and error payloads on the active session.
func (c *Controller) Trim(ctx context.Context, opts trim.Options) (trim.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return trim.Result{}, err
	}

	if opts.Threshold <= 0 {
		opts.Threshold = c.opts.TrimThreshold
	}
	res := trim.Trim(s, opts)
	if res.TrimmedEvents == 0 {
		return res, nil
	}
	if err := c.store.Save(ctx, s); err != nil {
		return trim.Result{}, err
	}
	return res, nil
}

// active returns the current session or the appropriate guard error.
// Callers hold c.mu.
func (c *Controller) active() (*session.Session, error) {
	s := c.monitor.Current()
	if s == nil {
		return nil, ctxerrors.ErrNoActiveSession
	}
	if s.Ended() {
		return nil, ctxerrors.ErrSessionEnded
	}
	return s, nil
}

// persist saves the session when the immediate-save policy is on.
func (c *Controller) persist(ctx context.Context, s *session.Session) error {
	if !c.opts.SaveImmediately {
		return nil
	}
	return c.store.Save(ctx, s)
}
