package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/response"
)

// CreateRequest is the body for POST /sessions.
type CreateRequest struct {
	CourseID           uuid.UUID `json:"course_id" binding:"required"`
	Title              string    `json:"title" binding:"required"`
	Description        string    `json:"description"`
	ScheduledStart     time.Time `json:"scheduled_start" binding:"required"`
	ScheduledEnd       time.Time `json:"scheduled_end" binding:"required"`
	Capacity           *int      `json:"capacity"`
	ChatEnabled        *bool     `json:"chat_enabled"`
	QAEnabled          *bool     `json:"qa_enabled"`
	PollsEnabled       *bool     `json:"polls_enabled"`
	RecordingEnabled   bool      `json:"recording_enabled"`
	RequiresEnrollment *bool     `json:"requires_enrollment"`
	IsPublic           bool      `json:"is_public"`
	Password           string    `json:"password"`
}

// Handler handles session HTTP endpoints.
type Handler struct {
	lifecycle *Lifecycle
	repo      *Repository
}

// NewHandler creates a sessions handler.
func NewHandler(lifecycle *Lifecycle, repo *Repository) *Handler {
	return &Handler{lifecycle: lifecycle, repo: repo}
}

// Create handles POST /sessions (instructor role).
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	defTrue := func(v *bool) bool { return v == nil || *v }
	s, err := h.lifecycle.Create(c.Request.Context(), CreateParams{
		CourseID:           req.CourseID,
		InstructorID:       userID,
		Title:              req.Title,
		Description:        req.Description,
		ScheduledStart:     req.ScheduledStart,
		ScheduledEnd:       req.ScheduledEnd,
		Capacity:           req.Capacity,
		ChatEnabled:        defTrue(req.ChatEnabled),
		QAEnabled:          defTrue(req.QAEnabled),
		PollsEnabled:       defTrue(req.PollsEnabled),
		RecordingEnabled:   req.RecordingEnabled,
		RequiresEnrollment: defTrue(req.RequiresEnrollment),
		IsPublic:           req.IsPublic,
		Password:           req.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, s)
}

// List handles GET /sessions.
func (h *Handler) List(c *gin.Context) {
	var courseID *uuid.UUID
	if v := c.Query("course_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid course_id")
			return
		}
		courseID = &id
	}
	list, err := h.repo.List(c.Request.Context(), courseID, models.SessionStatus(c.Query("status")))
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// GetByID handles GET /sessions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	// Stream credentials are only disclosed to the owning instructor.
	if actor, ok := c.Get(middleware.ContextUserID); !ok || actor.(uuid.UUID) != s.InstructorID {
		s.StreamKey = ""
	}
	response.OK(c, s)
}

// Start handles POST /sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	h.transition(c, h.lifecycle.Start)
}

// End handles POST /sessions/:id/end.
func (h *Handler) End(c *gin.Context) {
	h.transition(c, h.lifecycle.End)
}

// Cancel handles POST /sessions/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.lifecycle.Cancel)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, sessionID, actorID uuid.UUID) (*models.Session, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	s, err := fn(c.Request.Context(), id, actorID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, s)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidSchedule), errors.Is(err, ErrScheduleInPast):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrScheduleOverlap), errors.Is(err, ErrNotScheduled),
		errors.Is(err, ErrNotLive), errors.Is(err, ErrAlreadyFinalized):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotInstructor), errors.Is(err, ErrNotCourseOwner):
		response.Forbidden(c, err.Error())
	default:
		response.Internal(c, "session operation failed")
	}
}
