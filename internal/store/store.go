// Package store persists Session records. Two implementations are provided:
// a SQLite-backed store for durable deployments and an in-memory store for
// tests and ephemeral use.
package store

import (
	"context"

	"github.com/deckide/contextd/internal/session"
)

// SessionStore is the capability interface the controller depends on.
// Get returns (nil, nil) when the session does not exist; translating that
// into a not-found error is the caller's concern.
type SessionStore interface {
	// Create inserts a new session, failing with ErrDuplicateSession if the
	// id is already present.
	Create(ctx context.Context, s *session.Session) error

	// Get returns the session with the given id, or nil if absent.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Save upserts the full record and refreshes UpdatedAt. Writes are atomic
	// from the caller's perspective: a concurrent Get never observes a
	// partially written record.
	Save(ctx context.Context, s *session.Session) error

	// Delete removes the record. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns all sessions in unspecified order.
	List(ctx context.Context) ([]*session.Session, error)

	// Close releases underlying resources.
	Close() error
}
