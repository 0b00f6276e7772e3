// Package snapshot captures point-in-time copies of a session and restores
// them later. The manager mints commit hashes and maintains the session's
// snapshot list; the payload itself lives in a ContentStore keyed by hash.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/session"
)

// ContentStore is the external collaborator holding snapshot payloads,
// addressed by commit hash.
type ContentStore interface {
	// Capture stores the payload under the given hash.
	Capture(ctx context.Context, commitHash string, payload []byte) error

	// Restore returns the payload stored under the hash.
	Restore(ctx context.Context, commitHash string) ([]byte, error)
}

// Manager mints snapshot references and drives capture/restore through the
// content store.
type Manager struct {
	content ContentStore
	logger  zerolog.Logger
}

// NewManager creates a snapshot manager over the given content store.
func NewManager(content ContentStore, logger zerolog.Logger) *Manager {
	return &Manager{
		content: content,
		logger:  logger.With().Str("component", "snapshot").Logger(),
	}
}

// Create captures the session's current state, appends the reference to
// s.Snapshots and records a snapshot event. The commit hash is derived from
// the payload plus a random salt, so identical states still get distinct,
// collision-resistant handles.
func (m *Manager) Create(ctx context.Context, s *session.Session, description string) (session.SnapshotRef, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return session.SnapshotRef{}, fmt.Errorf("failed to serialize session: %w", err)
	}

	hash := commitHash(payload)
	if err := m.content.Capture(ctx, hash, payload); err != nil {
		return session.SnapshotRef{}, ctxerrors.NewStorageError("snapshot capture", err)
	}

	ref := session.SnapshotRef{
		CommitHash:  hash,
		Timestamp:   time.Now().UTC(),
		HealthScore: s.Metadata.HealthScore,
		Description: description,
	}
	s.Snapshots = append(s.Snapshots, ref)
	s.AppendEvent(session.EventSnapshot, map[string]any{
		"commit_hash": hash,
		"description": description,
	})

	m.logger.Info().
		Str("session_id", s.ID).
		Str("commit_hash", hash).
		Float64("health_score", ref.HealthScore).
		Msg("snapshot created")
	return ref, nil
}

// Latest returns the snapshot with the greatest timestamp, or nil.
func (m *Manager) Latest(s *session.Session) *session.SnapshotRef {
	var best *session.SnapshotRef
	for i := range s.Snapshots {
		ref := &s.Snapshots[i]
		if best == nil || ref.Timestamp.After(best.Timestamp) {
			best = ref
		}
	}
	return best
}

// Healthiest returns the snapshot with the highest health score, breaking
// ties by most recent timestamp. Nil when the session has no snapshots.
func (m *Manager) Healthiest(s *session.Session) *session.SnapshotRef {
	var best *session.SnapshotRef
	for i := range s.Snapshots {
		ref := &s.Snapshots[i]
		switch {
		case best == nil:
			best = ref
		case ref.HealthScore > best.HealthScore:
			best = ref
		case ref.HealthScore == best.HealthScore && ref.Timestamp.After(best.Timestamp):
			best = ref
		}
	}
	return best
}

// Restore loads the captured payload for the given commit hash and returns
// the decoded session with a refreshed UpdatedAt. The input session is never
// mutated: on any failure the caller's state is unchanged.
func (m *Manager) Restore(ctx context.Context, s *session.Session, commitHash string) (*session.Session, error) {
	if s.Snapshot(commitHash) == nil {
		return nil, ctxerrors.ErrSnapshotNotFound
	}

	payload, err := m.content.Restore(ctx, commitHash)
	if err != nil {
		return nil, &ctxerrors.RestoreError{CommitHash: commitHash, Err: err}
	}

	var restored session.Session
	if err := json.Unmarshal(payload, &restored); err != nil {
		return nil, &ctxerrors.RestoreError{CommitHash: commitHash, Err: fmt.Errorf("corrupt payload: %w", err)}
	}
	restored.UpdatedAt = time.Now().UTC()

	m.logger.Info().
		Str("session_id", restored.ID).
		Str("commit_hash", commitHash).
		Msg("snapshot restored")
	return &restored, nil
}

// commitHash derives a 40-hex-char handle from the payload and a uuid salt.
func commitHash(payload []byte) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(uuid.NewString()))
	return hex.EncodeToString(h.Sum(nil))[:40]
}
