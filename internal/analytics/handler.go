package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/pkg/response"
)

// Handler handles GET /sessions/:id/analytics.
type Handler struct {
	aggregator *Aggregator
	sessions   SessionGetter
}

// NewHandler creates an analytics handler.
func NewHandler(aggregator *Aggregator, sessions SessionGetter) *Handler {
	return &Handler{aggregator: aggregator, sessions: sessions}
}

// Summary handles GET /sessions/:id/analytics (instructor).
func (h *Handler) Summary(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if sess.InstructorID != userID {
		response.Forbidden(c, "only the owning instructor may view analytics")
		return
	}

	summary, err := h.aggregator.Summarize(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to compute analytics")
		return
	}
	response.OK(c, summary)
}
