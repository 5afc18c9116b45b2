package questions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/response"
)

// AskRequest is the body for POST /sessions/:id/questions.
type AskRequest struct {
	Text      string `json:"text" binding:"required"`
	Anonymous bool   `json:"anonymous"`
}

// AnswerRequest is the body for POST /sessions/:id/questions/:questionId/answer.
type AnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// Handler handles Q&A HTTP endpoints. The websocket path drives the same
// service.
type Handler struct {
	service *Service
}

// NewHandler creates a Q&A handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Ask handles POST /sessions/:id/questions.
func (h *Handler) Ask(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.service.Ask(c.Request.Context(), sessionID, userID, req.Text, req.Anonymous)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, q)
}

// List handles GET /sessions/:id/questions?status=pending.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	status := models.QuestionStatus(c.Query("status"))
	switch status {
	case "", models.QuestionStatusPending, models.QuestionStatusAnswered, models.QuestionStatusDismissed:
	default:
		response.BadRequest(c, "invalid status filter")
		return
	}
	list, err := h.service.List(c.Request.Context(), sessionID, status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"questions": list})
}

// Answer handles POST /sessions/:id/questions/:questionId/answer (instructor).
func (h *Handler) Answer(c *gin.Context) {
	sessionID, questionID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.service.Answer(c.Request.Context(), sessionID, actorID, questionID, req.Answer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, q)
}

// Dismiss handles POST /sessions/:id/questions/:questionId/dismiss (instructor).
func (h *Handler) Dismiss(c *gin.Context) {
	sessionID, questionID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	q, err := h.service.Dismiss(c.Request.Context(), sessionID, actorID, questionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, q)
}

// Upvote handles POST /sessions/:id/questions/:questionId/upvote.
func (h *Handler) Upvote(c *gin.Context) {
	sessionID, questionID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	upvotes, err := h.service.Upvote(c.Request.Context(), sessionID, userID, questionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"question_id": questionID, "upvotes": upvotes})
}

func (h *Handler) pathIDs(c *gin.Context) (sessionID, questionID uuid.UUID, ok bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, uuid.Nil, false
	}
	questionID, err = uuid.Parse(c.Param("questionId"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return uuid.Nil, uuid.Nil, false
	}
	return sessionID, questionID, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrEmptyQuestion), errors.Is(err, ErrTooLong), errors.Is(err, ErrEmptyAnswer):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotInstructor):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrQADisabled), errors.Is(err, ErrSessionNotLive),
		errors.Is(err, ErrNotJoined), errors.Is(err, ErrFinalized):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "q&a operation failed")
	}
}
