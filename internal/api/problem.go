package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	ctxerrors "github.com/deckide/contextd/internal/errors"
)

// Problem is the RFC 7807-style error body returned by every handler.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func problemResponse(c *fiber.Ctx, status int, typ, title, detail string) error {
	return c.Status(status).JSON(Problem{
		Type:   typ,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// errorResponse maps controller errors onto HTTP problem responses.
func errorResponse(c *fiber.Ctx, err error) error {
	var validationErr *ctxerrors.ValidationError
	var restoreErr *ctxerrors.RestoreError

	switch {
	case errors.Is(err, ctxerrors.ErrSessionNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"session_not_found", "Not Found", err.Error())
	case errors.Is(err, ctxerrors.ErrSnapshotNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"snapshot_not_found", "Not Found", err.Error())
	case errors.Is(err, ctxerrors.ErrDuplicateSession):
		return problemResponse(c, fiber.StatusConflict,
			"duplicate_session", "Conflict", err.Error())
	case errors.Is(err, ctxerrors.ErrNoActiveSession):
		return problemResponse(c, fiber.StatusConflict,
			"no_active_session", "Conflict", err.Error())
	case errors.Is(err, ctxerrors.ErrSessionEnded):
		return problemResponse(c, fiber.StatusConflict,
			"session_ended", "Conflict", err.Error())
	case errors.As(err, &validationErr):
		return problemResponse(c, fiber.StatusBadRequest,
			"validation_failed", "Bad Request", validationErr.Error())
	case errors.As(err, &restoreErr):
		return problemResponse(c, fiber.StatusUnprocessableEntity,
			"restore_failed", "Unprocessable Entity", restoreErr.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", err.Error())
	}
}
