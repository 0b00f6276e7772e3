package snapshot_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/session"
	"github.com/deckide/contextd/internal/snapshot"
)

func newTestManager() *snapshot.Manager {
	return snapshot.NewManager(snapshot.NewMemoryContentStore(), zerolog.New(os.Stderr))
}

func TestCreate_AppendsRefAndEvent(t *testing.T) {
	m := newTestManager()
	s := session.New("s1", "migrate the schema")
	s.Metadata.HealthScore = 0.92

	ref, err := m.Create(context.Background(), s, "before migration")
	require.NoError(t, err)

	assert.Len(t, ref.CommitHash, 40)
	assert.Equal(t, 0.92, ref.HealthScore)
	assert.Equal(t, "before migration", ref.Description)

	require.Len(t, s.Snapshots, 1)
	assert.Equal(t, ref.CommitHash, s.Snapshots[0].CommitHash)

	require.Len(t, s.Events, 1)
	assert.Equal(t, session.EventSnapshot, s.Events[0].Type)
	assert.Equal(t, ref.CommitHash, s.Events[0].Data["commit_hash"])
}

func TestCreate_IdenticalStatesGetDistinctHashes(t *testing.T) {
	m := newTestManager()
	a := session.New("s1", "migrate the schema")
	b := session.New("s1", "migrate the schema")
	b.CreatedAt = a.CreatedAt
	b.UpdatedAt = a.UpdatedAt

	refA, err := m.Create(context.Background(), a, "")
	require.NoError(t, err)
	refB, err := m.Create(context.Background(), b, "")
	require.NoError(t, err)

	assert.NotEqual(t, refA.CommitHash, refB.CommitHash)
}

func TestRestore_RoundTrip(t *testing.T) {
	m := newTestManager()
	s := session.New("s1", "migrate the schema")
	s.AppendEvent(session.EventMessage, map[string]any{"role": "user", "content": "step one"})
	s.Metrics.MessageCount = 1

	ref, err := m.Create(context.Background(), s, "checkpoint")
	require.NoError(t, err)

	// Mutate after the snapshot; restore must return the captured state.
	s.AppendEvent(session.EventMessage, map[string]any{"role": "user", "content": "step two"})
	s.Metrics.MessageCount = 2

	restored, err := m.Restore(context.Background(), s, ref.CommitHash)
	require.NoError(t, err)

	assert.Equal(t, "s1", restored.ID)
	assert.Equal(t, 1, restored.Metrics.MessageCount)
	require.Len(t, restored.Events, 1)
	assert.Equal(t, "step one", restored.Events[0].Data["content"])

	// The live session is untouched by the restore itself.
	assert.Equal(t, 2, s.Metrics.MessageCount)
}

func TestRestore_UnknownHash(t *testing.T) {
	m := newTestManager()
	s := session.New("s1", "migrate the schema")

	_, err := m.Restore(context.Background(), s, "deadbeef")
	assert.ErrorIs(t, err, ctxerrors.ErrSnapshotNotFound)
}

func TestRestore_MissingPayloadIsRestoreError(t *testing.T) {
	m := newTestManager()
	s := session.New("s1", "migrate the schema")
	// Ref exists on the session but the content store never saw it.
	s.Snapshots = append(s.Snapshots, session.SnapshotRef{CommitHash: "deadbeef"})

	_, err := m.Restore(context.Background(), s, "deadbeef")
	var restoreErr *ctxerrors.RestoreError
	require.ErrorAs(t, err, &restoreErr)
	assert.Equal(t, "deadbeef", restoreErr.CommitHash)
}

func TestLatestAndHealthiest(t *testing.T) {
	m := newTestManager()
	s := session.New("s1", "migrate the schema")

	assert.Nil(t, m.Latest(s))
	assert.Nil(t, m.Healthiest(s))

	base := time.Now().UTC()
	s.Snapshots = []session.SnapshotRef{
		{CommitHash: "aaa", Timestamp: base, HealthScore: 0.9},
		{CommitHash: "bbb", Timestamp: base.Add(time.Minute), HealthScore: 0.5},
		{CommitHash: "ccc", Timestamp: base.Add(2 * time.Minute), HealthScore: 0.9},
	}

	assert.Equal(t, "ccc", m.Latest(s).CommitHash)
	// Tie on health score goes to the most recent.
	assert.Equal(t, "ccc", m.Healthiest(s).CommitHash)

	s.Snapshots[1].HealthScore = 0.95
	assert.Equal(t, "bbb", m.Healthiest(s).CommitHash)
}

func TestFileContentStore_RoundTrip(t *testing.T) {
	store, err := snapshot.NewFileContentStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Capture(ctx, "abc123", []byte(`{"id":"s1"}`)))

	payload, err := store.Restore(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"s1"}`, string(payload))

	_, err = store.Restore(ctx, "unknown")
	assert.Error(t, err)
}
