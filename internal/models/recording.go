package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording processing lifecycle.
const (
	RecordingStatusPending    = "pending"
	RecordingStatusProcessing = "processing"
	RecordingStatusReady      = "ready"
	RecordingStatusFailed     = "failed"
)

// Recording is a post-session recording (provider -> S3).
type Recording struct {
	ID               uuid.UUID `json:"id"`
	SessionID        uuid.UUID `json:"session_id"`
	Title            string    `json:"title"`
	OriginalURL      string    `json:"original_url,omitempty"`
	S3URL            string    `json:"s3_url,omitempty"`
	S3Key            string    `json:"s3_key,omitempty"`
	DurationSeconds  int       `json:"duration_seconds"`
	FileSize         int64     `json:"file_size"`
	ProcessingStatus string    `json:"processing_status"`
	ViewsCount       int       `json:"views_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RecordingView tracks one user's watch progress on a recording.
// WatchSeconds only grows; Completed never reverts once set.
type RecordingView struct {
	ID           uuid.UUID `json:"id"`
	RecordingID  uuid.UUID `json:"recording_id"`
	UserID       uuid.UUID `json:"user_id"`
	WatchSeconds int       `json:"watch_seconds"`
	LastPosition int       `json:"last_position"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
