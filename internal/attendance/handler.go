package attendance

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/pkg/response"
)

// VerifyRequest is the body for POST /sessions/:id/attendance/:recordId/verify.
type VerifyRequest struct {
	MarkedPresent bool `json:"marked_present"`
}

// Handler handles attendance HTTP endpoints.
type Handler struct {
	repo     *Repository
	sessions SessionGetter
}

// NewHandler creates an attendance handler.
func NewHandler(repo *Repository, sessions SessionGetter) *Handler {
	return &Handler{repo: repo, sessions: sessions}
}

// List handles GET /sessions/:id/attendance (instructor).
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.requireInstructor(c, sessionID, actorID); err != nil {
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list attendance")
		return
	}
	response.OK(c, gin.H{"attendance": list})
}

// Mine handles GET /sessions/:id/attendance/me.
func (h *Handler) Mine(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	rec, err := h.repo.Get(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, rec)
}

// Verify handles POST /sessions/:id/attendance/:recordId/verify (instructor).
// Verification freezes the record; later processor passes leave it alone.
func (h *Handler) Verify(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	recordID, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		response.BadRequest(c, "invalid record id")
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.requireInstructor(c, sessionID, actorID); err != nil {
		return
	}

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rec, err := h.repo.GetByID(c.Request.Context(), recordID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if rec.SessionID != sessionID {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	at := time.Now()
	ok, err := h.repo.Verify(c.Request.Context(), recordID, actorID, at, req.MarkedPresent)
	if err != nil {
		response.Internal(c, "failed to verify attendance")
		return
	}
	if !ok {
		response.Conflict(c, ErrVerified.Error())
		return
	}
	rec.MarkedPresent = req.MarkedPresent
	rec.VerifiedBy = &actorID
	rec.VerifiedAt = &at
	response.OK(c, rec)
}

// requireInstructor writes the error response itself; a non-nil return just
// signals the caller to stop.
func (h *Handler) requireInstructor(c *gin.Context, sessionID, actorID uuid.UUID) error {
	sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return err
	}
	if sess.InstructorID != actorID {
		response.Forbidden(c, ErrNotInstructor.Error())
		return ErrNotInstructor
	}
	return nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrVerified):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "attendance operation failed")
	}
}
