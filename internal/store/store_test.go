package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/session"
	"github.com/deckide/contextd/internal/store"
)

func newTestSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	s, err := store.NewSQLite(dbPath, zerolog.New(os.Stderr))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Both implementations must satisfy the same contract.
func stores(t *testing.T) map[string]store.SessionStore {
	return map[string]store.SessionStore{
		"sqlite": newTestSQLite(t),
		"memory": store.NewMemory(),
	}
}

func TestStore_CRUD(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			s := session.New("s1", "refactor the parser")
			s.AppendEvent(session.EventMessage, map[string]any{"role": "user", "content": "hello"})
			require.NoError(t, st.Create(ctx, s))

			got, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "s1", got.ID)
			assert.Equal(t, "refactor the parser", got.Metadata.InitialPrompt)
			require.Len(t, got.Events, 1)
			assert.Equal(t, session.EventMessage, got.Events[0].Type)

			got.Metrics.MessageCount = 7
			require.NoError(t, st.Save(ctx, got))

			updated, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, 7, updated.Metrics.MessageCount)
			assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

			all, err := st.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, st.Delete(ctx, "s1"))
			gone, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Nil(t, gone)
		})
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, st.Create(ctx, session.New("s1", "first")))
			err := st.Create(ctx, session.New("s1", "second"))
			assert.ErrorIs(t, err, ctxerrors.ErrDuplicateSession)
		})
	}
}

func TestStore_GetAbsentIsNil(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := st.Get(context.Background(), "nope")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_DeleteAbsentIsNoop(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, st.Delete(context.Background(), "nope"))
		})
	}
}

func TestMemoryStore_HandsOutCopies(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	s := session.New("s1", "build a cache")
	s.AppendEvent(session.EventMessage, map[string]any{"role": "user", "content": "original"})
	require.NoError(t, st.Create(ctx, s))

	got, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	got.Events[0].Data["content"] = "mutated"

	again, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Events[0].Data["content"])
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	logger := zerolog.New(os.Stderr)

	st, err := store.NewSQLite(dbPath, logger)
	require.NoError(t, err)

	s := session.New("s1", "long lived work")
	s.Snapshots = append(s.Snapshots, session.SnapshotRef{CommitHash: "abc123"})
	require.NoError(t, st.Create(ctx, s))
	require.NoError(t, st.Close())

	reopened, err := store.NewSQLite(dbPath, logger)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Snapshots, 1)
	assert.Equal(t, "abc123", got.Snapshots[0].CommitHash)
}
