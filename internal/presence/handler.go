package presence

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/pkg/response"
)

// PermissionsRequest is the body for PATCH /sessions/:id/participants/:userId/permissions.
type PermissionsRequest struct {
	CanUnmute      bool `json:"can_unmute"`
	CanShareScreen bool `json:"can_share_screen"`
	IsModerator    bool `json:"is_moderator"`
}

// Handler handles participant HTTP endpoints.
type Handler struct {
	tracker *Tracker
}

// NewHandler creates a presence handler.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// List handles GET /sessions/:id/participants.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.tracker.List(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, gin.H{"participants": list})
}

// Ban handles POST /sessions/:id/participants/:userId/ban (instructor).
func (h *Handler) Ban(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.tracker.Ban(c.Request.Context(), sessionID, actorID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": sessionID, "user_id": userID, "banned": true})
}

// SetPermissions handles PATCH /sessions/:id/participants/:userId/permissions (instructor).
func (h *Handler) SetPermissions(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req PermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.tracker.SetPermissions(c.Request.Context(), sessionID, actorID, userID,
		req.CanUnmute, req.CanShareScreen, req.IsModerator); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": sessionID, "user_id": userID})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotInstructor):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrParticipantGone):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrSessionNotLive), errors.Is(err, ErrNotJoined):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "presence operation failed")
	}
}
