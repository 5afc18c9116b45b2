package models

import (
	"time"

	"github.com/google/uuid"
)

// PollStatus represents poll state. Transitions are strictly forward-only:
// draft -> active -> closed.
type PollStatus string

const (
	PollStatusDraft  PollStatus = "draft"
	PollStatusActive PollStatus = "active"
	PollStatusClosed PollStatus = "closed"
)

// Poll is a multiple-choice poll in a live session.
type Poll struct {
	ID                   uuid.UUID  `json:"id"`
	SessionID            uuid.UUID  `json:"session_id"`
	CreatedBy            uuid.UUID  `json:"created_by"`
	Question             string     `json:"question"`
	Status               PollStatus `json:"status"`
	AllowMultipleAnswers bool       `json:"allow_multiple_answers"`
	Anonymous            bool       `json:"anonymous"`
	DurationSeconds      *int       `json:"duration_seconds,omitempty"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	EndsAt               *time.Time `json:"ends_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`

	Options []PollOption `json:"options,omitempty"`
}

// Open reports whether the poll accepts votes at the given instant.
func (p *Poll) Open(now time.Time) bool {
	if p.Status != PollStatusActive {
		return false
	}
	return p.EndsAt == nil || now.Before(*p.EndsAt)
}

// PollOption is an ordered choice under a poll.
type PollOption struct {
	ID         uuid.UUID `json:"id"`
	PollID     uuid.UUID `json:"poll_id"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	VotesCount int       `json:"votes_count"`
}

// PollVote is one recorded ballot. At most one row per (poll, user) unless
// the poll allows multiple answers, then at most one per (poll, option, user).
type PollVote struct {
	ID        uuid.UUID `json:"id"`
	PollID    uuid.UUID `json:"poll_id"`
	OptionID  uuid.UUID `json:"option_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PollOptionResult is one option's share in poll results.
type PollOptionResult struct {
	OptionID   uuid.UUID `json:"option_id"`
	Text       string    `json:"text"`
	VotesCount int       `json:"votes_count"`
	Percent    float64   `json:"percent"`
}
