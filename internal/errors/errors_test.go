package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	ctxerrors "github.com/deckide/contextd/internal/errors"
)

func TestValidationError(t *testing.T) {
	err := ctxerrors.NewValidationError("content", "must not be empty")
	assert.Contains(t, err.Error(), "content")
	assert.Contains(t, err.Error(), "must not be empty")

	var vErr *ctxerrors.ValidationError
	assert.ErrorAs(t, error(err), &vErr)
}

func TestStorageError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := ctxerrors.NewStorageError("save", cause)

	assert.Contains(t, err.Error(), "save")
	assert.ErrorIs(t, error(err), cause)
}

func TestRestoreError_Unwrap(t *testing.T) {
	cause := stderrors.New("corrupt payload")
	err := &ctxerrors.RestoreError{CommitHash: "abc123", Err: cause}

	assert.Contains(t, err.Error(), "abc123")
	assert.ErrorIs(t, error(err), cause)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, ctxerrors.IsNotFound(ctxerrors.ErrSessionNotFound))
	assert.True(t, ctxerrors.IsNotFound(ctxerrors.ErrSnapshotNotFound))
	assert.False(t, ctxerrors.IsNotFound(ctxerrors.ErrDuplicateSession))
	assert.False(t, ctxerrors.IsNotFound(nil))
}
