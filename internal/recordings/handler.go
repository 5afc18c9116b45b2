package recordings

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/enrollment"
	"github.com/coursehive/live-backend/internal/middleware"
	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/queue"
	"github.com/coursehive/live-backend/pkg/response"
	"github.com/coursehive/live-backend/pkg/storage"
)

// SessionGetter loads sessions for access checks.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// RegisterRequest is the body for POST /sessions/:id/recordings.
type RegisterRequest struct {
	Title           string `json:"title"`
	OriginalURL     string `json:"original_url" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
	FileSize        int64  `json:"file_size"`
}

// TrackViewRequest is the body for POST /recordings/:recordingId/view.
type TrackViewRequest struct {
	WatchSeconds int `json:"watch_seconds"`
	LastPosition int `json:"last_position"`
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	repo        *Repository
	service     *Service
	sessions    SessionGetter
	enrollments enrollment.Checker
	s3          *storage.S3
	queue       *queue.Queue
	logger      *zap.Logger
}

// NewHandler creates a recordings handler. s3 may be nil when storage is not
// configured; download URLs are then unavailable.
func NewHandler(repo *Repository, service *Service, sessions SessionGetter, enrollments enrollment.Checker, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repo:        repo,
		service:     service,
		sessions:    sessions,
		enrollments: enrollments,
		s3:          s3,
		queue:       q,
		logger:      logger,
	}
}

// Register handles POST /sessions/:id/recordings (instructor). The row is
// created pending and a processing job is queued for the worker.
func (h *Handler) Register(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	actorID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if sess.InstructorID != actorID {
		response.Forbidden(c, ErrNotInstructor.Error())
		return
	}
	if !sess.RecordingEnabled {
		response.Conflict(c, ErrRecordingDisabled.Error())
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	title := req.Title
	if title == "" {
		title = sess.Title
	}
	rec := &models.Recording{
		SessionID:       sessionID,
		Title:           title,
		OriginalURL:     req.OriginalURL,
		DurationSeconds: req.DurationSeconds,
		FileSize:        req.FileSize,
	}
	if err := h.repo.Create(c.Request.Context(), rec); err != nil {
		h.logger.Error("create recording failed", zap.Error(err))
		response.Internal(c, "failed to register recording")
		return
	}

	if err := h.queue.EnqueueRecordingProcess(c.Request.Context(), queue.RecordingProcessPayload{
		RecordingID: rec.ID,
		SessionID:   sessionID,
		OriginalURL: rec.OriginalURL,
	}); err != nil {
		h.logger.Error("enqueue recording job failed", zap.Error(err),
			zap.String("recording_id", rec.ID.String()))
		response.Internal(c, "failed to queue recording for processing")
		return
	}
	response.Created(c, rec)
}

// List handles GET /sessions/:id/recordings.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.authorize(c.Request.Context(), sessionID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, gin.H{"recordings": list})
}

// DownloadURL handles GET /recordings/:recordingId/download-url. Returns a
// time-limited pre-signed URL for a ready recording.
func (h *Handler) DownloadURL(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("recordingId"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	rec, err := h.repo.GetByID(c.Request.Context(), recordingID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.authorize(c.Request.Context(), rec.SessionID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	if rec.ProcessingStatus != models.RecordingStatusReady || rec.S3Key == "" {
		response.Conflict(c, ErrNotReady.Error())
		return
	}
	if h.s3 == nil {
		response.Internal(c, "storage not configured")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.RecordingsBucket(), rec.S3Key, expire)
	if err != nil {
		h.logger.Error("presign download failed", zap.Error(err),
			zap.String("recording_id", recordingID.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}

// TrackView handles POST /recordings/:recordingId/view.
func (h *Handler) TrackView(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("recordingId"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req TrackViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.service.TrackView(c.Request.Context(), recordingID, userID, req.WatchSeconds, req.LastPosition)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, view)
}

// Views handles GET /recordings/:recordingId/views (instructor).
func (h *Handler) Views(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("recordingId"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	rec, err := h.repo.GetByID(c.Request.Context(), recordingID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sess, err := h.sessions.GetByID(c.Request.Context(), rec.SessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if sess.InstructorID != userID {
		response.Forbidden(c, ErrNotInstructor.Error())
		return
	}
	views, err := h.repo.ListViews(c.Request.Context(), recordingID)
	if err != nil {
		response.Internal(c, "failed to list views")
		return
	}
	response.OK(c, gin.H{"recording_id": recordingID, "views": views})
}

// authorize allows the instructor and enrolled students through.
func (h *Handler) authorize(ctx context.Context, sessionID, userID uuid.UUID) error {
	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.InstructorID == userID || sess.IsPublic {
		return nil
	}
	enrolled, err := h.enrollments.IsEnrolled(ctx, sess.CourseID, userID)
	if err != nil {
		return err
	}
	if !enrolled {
		return ErrNotAuthorized
	}
	return nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNegativeProgress):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrNotInstructor):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrRecordingDisabled):
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "recording operation failed")
	}
}
