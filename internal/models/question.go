package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStatus represents Q&A question state. Answered and dismissed are terminal.
type QuestionStatus string

const (
	QuestionStatusPending   QuestionStatus = "pending"
	QuestionStatusAnswered  QuestionStatus = "answered"
	QuestionStatusDismissed QuestionStatus = "dismissed"
)

// Question is an audience question in a live session.
type Question struct {
	ID         uuid.UUID      `json:"id"`
	SessionID  uuid.UUID      `json:"session_id"`
	UserID     uuid.UUID      `json:"user_id"`
	Text       string         `json:"text"`
	Status     QuestionStatus `json:"status"`
	Upvotes    int            `json:"upvotes"`
	Anonymous  bool           `json:"anonymous"`
	Answer     *string        `json:"answer,omitempty"`
	AnsweredBy *uuid.UUID     `json:"answered_by,omitempty"`
	AnsweredAt *time.Time     `json:"answered_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
