package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileContentStore is a content-addressed snapshot payload store: one file
// per commit hash under a base directory. Writes go through a temp file and
// rename so a concurrent restore never sees a partial payload.
type FileContentStore struct {
	dir string
}

// NewFileContentStore creates the base directory if needed.
func NewFileContentStore(dir string) (*FileContentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &FileContentStore{dir: dir}, nil
}

// Capture stores the payload under the hash.
func (f *FileContentStore) Capture(_ context.Context, commitHash string, payload []byte) error {
	final := f.path(commitHash)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit snapshot payload: %w", err)
	}
	return nil
}

// Restore returns the payload stored under the hash.
func (f *FileContentStore) Restore(_ context.Context, commitHash string) ([]byte, error) {
	payload, err := os.ReadFile(f.path(commitHash))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot payload: %w", err)
	}
	return payload, nil
}

func (f *FileContentStore) path(commitHash string) string {
	return filepath.Join(f.dir, commitHash+".json")
}

// MemoryContentStore keeps payloads in a map. Test double for the external
// content-addressed store.
type MemoryContentStore struct {
	payloads map[string][]byte
}

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{payloads: make(map[string][]byte)}
}

// Capture stores the payload under the hash.
func (m *MemoryContentStore) Capture(_ context.Context, commitHash string, payload []byte) error {
	m.payloads[commitHash] = append([]byte(nil), payload...)
	return nil
}

// Restore returns the payload stored under the hash.
func (m *MemoryContentStore) Restore(_ context.Context, commitHash string) ([]byte, error) {
	payload, ok := m.payloads[commitHash]
	if !ok {
		return nil, fmt.Errorf("no payload for %s", commitHash)
	}
	return payload, nil
}
