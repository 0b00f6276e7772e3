package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/session"
)

// SQLiteStore persists sessions in a SQLite database. The full record is
// serialized as JSON in a single column; a few fields are duplicated into
// indexed columns so List can sort without decoding every record.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewSQLite opens (or creates) the SQLite database and runs migrations.
func NewSQLite(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.logger.Info().Str("path", dbPath).Msg("session store initialized")
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Create inserts a new session record.
func (s *SQLiteStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return ctxerrors.NewStorageError("create", err)
	}

	query := `
	INSERT INTO sessions (id, phase, health_score, created_at, updated_at, data)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		sess.ID, sess.Metadata.Phase, sess.Metadata.HealthScore,
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(), string(data),
	)
	if err != nil {
		var count int
		if qErr := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sessions WHERE id = ?`, sess.ID).Scan(&count); qErr == nil && count > 0 {
			return ctxerrors.ErrDuplicateSession
		}
		return ctxerrors.NewStorageError("create", err)
	}
	return nil
}

// Get returns the session with the given id, or nil if absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ctxerrors.NewStorageError("get", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, ctxerrors.NewStorageError("get", fmt.Errorf("corrupt record %s: %w", id, err))
	}
	return &sess, nil
}

// Save upserts the full record. The single INSERT OR REPLACE keeps the write
// atomic: readers see either the previous record or the new one.
func (s *SQLiteStore) Save(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(sess)
	if err != nil {
		return ctxerrors.NewStorageError("save", err)
	}

	query := `
	INSERT OR REPLACE INTO sessions (id, phase, health_score, created_at, updated_at, data)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		sess.ID, sess.Metadata.Phase, sess.Metadata.HealthScore,
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(), string(data),
	)
	if err != nil {
		return ctxerrors.NewStorageError("save", err)
	}
	return nil
}

// Delete removes the record. Absent ids are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return ctxerrors.NewStorageError("delete", err)
	}
	return nil
}

// List returns all sessions, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, ctxerrors.NewStorageError("list", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, ctxerrors.NewStorageError("list", err)
		}
		var sess session.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			s.logger.Warn().Err(err).Msg("skipping corrupt session record")
			continue
		}
		out = append(out, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, ctxerrors.NewStorageError("list", err)
	}
	return out, nil
}
