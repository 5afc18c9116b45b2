package recordings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/queue"
	"github.com/coursehive/live-backend/pkg/response"
)

// RecordingReadyPayload is the body the media provider posts when a
// session's raw recording file becomes available.
type RecordingReadyPayload struct {
	SessionID       string `json:"session_id"`
	RecordingID     string `json:"recording_id"`
	FileURL         string `json:"file_url" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
	FileSize        int64  `json:"file_size"`
}

// WebhookHandler ingests provider callbacks and hands the file to the worker
// pipeline.
type WebhookHandler struct {
	repo     *Repository
	sessions SessionGetter
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(repo *Repository, sessions SessionGetter, q *queue.Queue, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{repo: repo, sessions: sessions, queue: q, logger: logger}
}

// RecordingReady handles POST /webhooks/recording-ready. With a recording_id
// it re-queues that row; otherwise a new row is created under session_id.
func (h *WebhookHandler) RecordingReady(c *gin.Context) {
	var body RecordingReadyPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var rec *models.Recording
	if body.RecordingID != "" {
		id, err := uuid.Parse(body.RecordingID)
		if err != nil {
			response.BadRequest(c, "invalid recording_id")
			return
		}
		rec, err = h.repo.GetByID(c.Request.Context(), id)
		if err != nil {
			response.NotFound(c, "recording not found")
			return
		}
	} else {
		if body.SessionID == "" {
			response.BadRequest(c, "session_id or recording_id required")
			return
		}
		sessionID, err := uuid.Parse(body.SessionID)
		if err != nil {
			response.BadRequest(c, "invalid session_id")
			return
		}
		sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
		if err != nil {
			response.NotFound(c, "session not found")
			return
		}
		rec = &models.Recording{
			SessionID:       sessionID,
			Title:           sess.Title,
			OriginalURL:     body.FileURL,
			DurationSeconds: body.DurationSeconds,
			FileSize:        body.FileSize,
		}
		if err := h.repo.Create(c.Request.Context(), rec); err != nil {
			h.logger.Error("create recording from webhook failed", zap.Error(err))
			response.Internal(c, "failed to create recording")
			return
		}
	}

	if err := h.queue.EnqueueRecordingProcess(c.Request.Context(), queue.RecordingProcessPayload{
		RecordingID: rec.ID,
		SessionID:   rec.SessionID,
		OriginalURL: body.FileURL,
	}); err != nil {
		h.logger.Error("enqueue recording job failed", zap.Error(err),
			zap.String("recording_id", rec.ID.String()))
		response.Internal(c, "failed to queue recording for processing")
		return
	}

	h.logger.Info("recording-ready webhook accepted",
		zap.String("recording_id", rec.ID.String()),
		zap.String("session_id", rec.SessionID.String()))
	response.OK(c, gin.H{"recording_id": rec.ID, "status": models.RecordingStatusPending})
}
