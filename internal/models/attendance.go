package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceRecord is the derived per-participant attendance for one session.
// Produced only by the attendance processor; immutable once verified by a human.
type AttendanceRecord struct {
	ID                   uuid.UUID  `json:"id"`
	SessionID            uuid.UUID  `json:"session_id"`
	ParticipantID        uuid.UUID  `json:"participant_id"`
	UserID               uuid.UUID  `json:"user_id"`
	AttendancePercentage float64    `json:"attendance_percentage"`
	MarkedPresent        bool       `json:"marked_present"`
	VerifiedBy           *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Verified reports whether a human reviewer has frozen this record.
func (a *AttendanceRecord) Verified() bool { return a.VerifiedAt != nil }
