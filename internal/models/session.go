package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the live session lifecycle state.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Session is a scheduled live class within a course.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	CourseID       uuid.UUID  `json:"course_id"`
	InstructorID   uuid.UUID  `json:"instructor_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	Status         SessionStatus `json:"status"`

	// nil capacity means unlimited.
	Capacity *int `json:"capacity,omitempty"`

	ChatEnabled      bool `json:"chat_enabled"`
	QAEnabled        bool `json:"qa_enabled"`
	PollsEnabled     bool `json:"polls_enabled"`
	RecordingEnabled bool `json:"recording_enabled"`

	RequiresEnrollment bool   `json:"requires_enrollment"`
	IsPublic           bool   `json:"is_public"`
	PasswordHash       string `json:"-"` // empty = not password protected

	StreamKey string `json:"stream_key,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PasswordProtected reports whether joining requires a password.
func (s *Session) PasswordProtected() bool { return s.PasswordHash != "" }

// ScheduledDurationSeconds returns the planned session length in seconds.
func (s *Session) ScheduledDurationSeconds() int64 {
	d := s.ScheduledEnd.Sub(s.ScheduledStart)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}
