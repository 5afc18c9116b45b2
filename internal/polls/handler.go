package polls

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/response"
)

// CreateRequest is the body for POST /sessions/:id/polls.
type CreateRequest struct {
	Question             string   `json:"question" binding:"required"`
	Options              []string `json:"options" binding:"required"`
	AllowMultipleAnswers bool     `json:"allow_multiple_answers"`
	Anonymous            bool     `json:"anonymous"`
	DurationSeconds      *int     `json:"duration_seconds"`
}

// VoteRequest is the body for POST /sessions/:id/polls/:pollId/vote.
type VoteRequest struct {
	OptionIDs []uuid.UUID `json:"option_ids" binding:"required"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	service  *Service
	sessions SessionGetter
}

// NewHandler creates a polls handler.
func NewHandler(service *Service, sessions SessionGetter) *Handler {
	return &Handler{service: service, sessions: sessions}
}

// Create handles POST /sessions/:id/polls (instructor).
func (h *Handler) Create(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.service.Create(c.Request.Context(), sessionID, actorID, CreateParams{
		Question:             req.Question,
		Options:              req.Options,
		AllowMultipleAnswers: req.AllowMultipleAnswers,
		Anonymous:            req.Anonymous,
		DurationSeconds:      req.DurationSeconds,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, p)
}

// List handles GET /sessions/:id/polls. Drafts stay hidden from everyone but
// the instructor.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	list, err := h.service.List(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to load session")
		return
	}
	if sess.InstructorID != userID {
		visible := list[:0]
		for _, p := range list {
			if p.Status != models.PollStatusDraft {
				visible = append(visible, p)
			}
		}
		list = visible
	}
	response.OK(c, gin.H{"polls": list})
}

// Start handles POST /sessions/:id/polls/:pollId/start (instructor).
func (h *Handler) Start(c *gin.Context) {
	sessionID, pollID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := h.service.Start(c.Request.Context(), sessionID, actorID, pollID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, p)
}

// Close handles POST /sessions/:id/polls/:pollId/close (instructor).
func (h *Handler) Close(c *gin.Context) {
	sessionID, pollID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := h.service.Close(c.Request.Context(), sessionID, actorID, pollID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, p)
}

// Vote handles POST /sessions/:id/polls/:pollId/vote.
func (h *Handler) Vote(c *gin.Context) {
	sessionID, pollID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.service.Vote(c.Request.Context(), sessionID, userID, pollID, req.OptionIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, result)
}

// Results handles GET /sessions/:id/polls/:pollId/results.
func (h *Handler) Results(c *gin.Context) {
	sessionID, pollID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	results, err := h.service.Results(c.Request.Context(), sessionID, pollID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"poll_id": pollID, "results": results})
}

func (h *Handler) pathIDs(c *gin.Context) (sessionID, pollID uuid.UUID, ok bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, uuid.Nil, false
	}
	pollID, err = uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return uuid.Nil, uuid.Nil, false
	}
	return sessionID, pollID, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrEmptyQuestion), errors.Is(err, ErrEmptyOption),
		errors.Is(err, ErrTooFewOptions), errors.Is(err, ErrNoSelection),
		errors.Is(err, ErrSingleChoice), errors.Is(err, ErrUnknownOption),
		errors.Is(err, ErrDuplicateOption):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotInstructor):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrPollsDisabled), errors.Is(err, ErrSessionNotLive),
		errors.Is(err, ErrNotJoined), errors.Is(err, ErrNotDraft),
		errors.Is(err, ErrNotActive), errors.Is(err, ErrPollClosed):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "poll operation failed")
	}
}
