package chat

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/response"
)

// SendRequest is the body for POST /sessions/:id/messages.
type SendRequest struct {
	Content   string     `json:"content" binding:"required"`
	Type      string     `json:"type"`
	ReplyToID *uuid.UUID `json:"reply_to_id"`
}

// EditRequest is the body for PATCH /sessions/:id/messages/:messageId.
type EditRequest struct {
	Content string `json:"content" binding:"required"`
}

// Handler handles chat HTTP endpoints. The same service backs the
// websocket chat path.
type Handler struct {
	service *Service
}

// NewHandler creates a chat handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Send handles POST /sessions/:id/messages.
func (h *Handler) Send(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.service.Send(c.Request.Context(), sessionID, userID,
		req.Content, models.MessageType(req.Type), req.ReplyToID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, m)
}

// History handles GET /sessions/:id/messages.
func (h *Handler) History(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var before *uuid.UUID
	if raw := c.Query("before"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid before cursor")
			return
		}
		before = &id
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	list, err := h.service.History(c.Request.Context(), sessionID, limit, before)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"messages": list})
}

// Pinned handles GET /sessions/:id/messages/pinned.
func (h *Handler) Pinned(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.service.Pinned(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"messages": list})
}

// Pin handles POST /sessions/:id/messages/:messageId/pin.
func (h *Handler) Pin(c *gin.Context) {
	h.setPinned(c, true)
}

// Unpin handles POST /sessions/:id/messages/:messageId/unpin.
func (h *Handler) Unpin(c *gin.Context) {
	h.setPinned(c, false)
}

func (h *Handler) setPinned(c *gin.Context, pinned bool) {
	sessionID, messageID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	m, err := h.service.Pin(c.Request.Context(), sessionID, actorID, messageID, pinned)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, m)
}

// Edit handles PATCH /sessions/:id/messages/:messageId.
func (h *Handler) Edit(c *gin.Context) {
	sessionID, messageID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.service.Edit(c.Request.Context(), sessionID, actorID, messageID, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, m)
}

// Delete handles DELETE /sessions/:id/messages/:messageId.
func (h *Handler) Delete(c *gin.Context) {
	sessionID, messageID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.service.Delete(c.Request.Context(), sessionID, actorID, messageID); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// Like handles POST /sessions/:id/messages/:messageId/like.
func (h *Handler) Like(c *gin.Context) {
	sessionID, messageID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	likes, err := h.service.Like(c.Request.Context(), sessionID, actorID, messageID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"message_id": messageID, "likes": likes})
}

func (h *Handler) pathIDs(c *gin.Context) (sessionID, messageID uuid.UUID, ok bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, uuid.Nil, false
	}
	messageID, err = uuid.Parse(c.Param("messageId"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return uuid.Nil, uuid.Nil, false
	}
	return sessionID, messageID, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrTooLong):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotAuthor), errors.Is(err, ErrNotModerator):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrChatDisabled), errors.Is(err, ErrSessionNotLive),
		errors.Is(err, ErrNotJoined), errors.Is(err, ErrDeleted):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "chat operation failed")
	}
}
