package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantStatus represents a participant's state within one session.
type ParticipantStatus string

const (
	ParticipantStatusRegistered ParticipantStatus = "registered"
	ParticipantStatusJoined     ParticipantStatus = "joined"
	ParticipantStatusLeft       ParticipantStatus = "left"
	// ParticipantStatusBanned is terminal for the (session, user) pair.
	ParticipantStatusBanned ParticipantStatus = "banned"
)

// Participant is the (session, user) presence row. Unique per pair;
// status cycles joined<->left across reconnects.
type Participant struct {
	ID        uuid.UUID         `json:"id"`
	SessionID uuid.UUID         `json:"session_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    ParticipantStatus `json:"status"`
	JoinedAt  *time.Time        `json:"joined_at,omitempty"`
	LeftAt    *time.Time        `json:"left_at,omitempty"`

	// DurationSeconds accumulates closed joined->left intervals. Never decreases.
	DurationSeconds int64 `json:"duration_seconds"`

	ChatMessagesCount int `json:"chat_messages_count"`
	QuestionsAsked    int `json:"questions_asked"`
	PollsAnswered     int `json:"polls_answered"`

	CanUnmute      bool `json:"can_unmute"`
	CanShareScreen bool `json:"can_share_screen"`
	IsModerator    bool `json:"is_moderator"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
