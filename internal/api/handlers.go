package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/deckide/contextd/internal/compact"
	"github.com/deckide/contextd/internal/controller"
	"github.com/deckide/contextd/internal/trim"
)

// Handlers adapt HTTP requests onto the controller. They hold no policy of
// their own.
type Handlers struct {
	ctrl   *controller.Controller
	logger zerolog.Logger
}

// NewHandlers creates a Handlers instance.
func NewHandlers(ctrl *controller.Controller, logger zerolog.Logger) *Handlers {
	return &Handlers{
		ctrl:   ctrl,
		logger: logger.With().Str("component", "handlers").Logger(),
	}
}

// CreateSessionRequest is the body of POST /api/v1/session.
type CreateSessionRequest struct {
	ID            string `json:"id"`
	InitialPrompt string `json:"initial_prompt"`
}

// CreateSession handles POST /api/v1/session.
func (h *Handlers) CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	s, err := h.ctrl.CreateSession(c.Context(), req.ID, req.InitialPrompt)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

// EndSession handles DELETE /api/v1/session.
func (h *Handlers) EndSession(c *fiber.Ctx) error {
	if err := h.ctrl.EndSession(c.Context()); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"ended": true})
}

// ListSessions handles GET /api/v1/sessions.
func (h *Handlers) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.ctrl.Sessions(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions, "count": len(sessions)})
}

// Status handles GET /api/v1/status.
func (h *Handlers) Status(c *fiber.Ctx) error {
	status, err := h.ctrl.Status(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(status)
}

// TrackMessageRequest is the body of POST /api/v1/track/message.
type TrackMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrackMessage handles POST /api/v1/track/message.
func (h *Handlers) TrackMessage(c *fiber.Ctx) error {
	var req TrackMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	if err := h.ctrl.TrackMessage(c.Context(), req.Role, req.Content); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"tracked": true})
}

// TrackToolRequest is the body of POST /api/v1/track/tool.
type TrackToolRequest struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result"`
}

// TrackTool handles POST /api/v1/track/tool.
func (h *Handlers) TrackTool(c *fiber.Ctx) error {
	var req TrackToolRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	if err := h.ctrl.TrackTool(c.Context(), req.Name, req.Args, req.Result); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"tracked": true})
}

// TrackErrorRequest is the body of POST /api/v1/track/error.
type TrackErrorRequest struct {
	Error       string `json:"error"`
	Recoverable bool   `json:"recoverable"`
}

// TrackError handles POST /api/v1/track/error.
func (h *Handlers) TrackError(c *fiber.Ctx) error {
	var req TrackErrorRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	if err := h.ctrl.TrackError(c.Context(), req.Error, req.Recoverable); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"tracked": true})
}

// CompactRequest is the body of POST /api/v1/compact.
type CompactRequest struct {
	KeepRecentEvents int `json:"keep_recent_events"`
	CompactThreshold int `json:"compact_threshold"`
}

// Compact handles POST /api/v1/compact.
func (h *Handlers) Compact(c *fiber.Ctx) error {
	var req CompactRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
		}
	}

	res, err := h.ctrl.Compact(c.Context(), compact.Options{
		KeepRecentEvents: req.KeepRecentEvents,
		Threshold:        req.CompactThreshold,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(res)
}

// SnapshotRequest is the body of POST /api/v1/snapshot.
type SnapshotRequest struct {
	Description string `json:"description"`
}

// CreateSnapshot handles POST /api/v1/snapshot.
func (h *Handlers) CreateSnapshot(c *fiber.Ctx) error {
	var req SnapshotRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
		}
	}

	ref, err := h.ctrl.CreateSnapshot(c.Context(), req.Description)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

// ListSnapshots handles GET /api/v1/snapshots.
func (h *Handlers) ListSnapshots(c *fiber.Ctx) error {
	refs, err := h.ctrl.Snapshots()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"snapshots": refs, "count": len(refs)})
}

// LatestSnapshot handles GET /api/v1/snapshots/latest.
func (h *Handlers) LatestSnapshot(c *fiber.Ctx) error {
	ref, err := h.ctrl.LatestSnapshot()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ref)
}

// HealthiestSnapshot handles GET /api/v1/snapshots/healthiest.
func (h *Handlers) HealthiestSnapshot(c *fiber.Ctx) error {
	ref, err := h.ctrl.HealthiestSnapshot()
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ref)
}

// RestoreSnapshot handles POST /api/v1/snapshots/:commitHash/restore.
func (h *Handlers) RestoreSnapshot(c *fiber.Ctx) error {
	restored, err := h.ctrl.RestoreSnapshot(c.Context(), c.Params("commitHash"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(restored)
}

// Drift handles GET /api/v1/drift.
func (h *Handlers) Drift(c *fiber.Ctx) error {
	res, err := h.ctrl.DetectDrift(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(res)
}

// DriftThreshold handles GET /api/v1/drift/threshold.
func (h *Handlers) DriftThreshold(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"threshold": h.ctrl.DriftThreshold()})
}

// DriftThresholdRequest is the body of PUT /api/v1/drift/threshold.
type DriftThresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

// SetDriftThreshold handles PUT /api/v1/drift/threshold.
func (h *Handlers) SetDriftThreshold(c *fiber.Ctx) error {
	var req DriftThresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	if err := h.ctrl.SetDriftThreshold(req.Threshold); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"threshold": req.Threshold})
}

// TrimRequest is the body of POST /api/v1/trim.
type TrimRequest struct {
	Threshold int `json:"threshold"`
}

// Trim handles POST /api/v1/trim.
func (h *Handlers) Trim(c *fiber.Ctx) error {
	var req TrimRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
		}
	}

	res, err := h.ctrl.Trim(c.Context(), trim.Options{Threshold: req.Threshold})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(res)
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
