package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType discriminates chat message variants.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeEmoji  MessageType = "emoji"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// ChatMessage is an append-only room message. Moderation (pin/edit/delete)
// flips flags and leaves a tombstone; history is never hard-deleted.
type ChatMessage struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"` // nil for system messages
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	ReplyToID *uuid.UUID  `json:"reply_to_id,omitempty"`
	Pinned    bool        `json:"pinned"`
	Deleted   bool        `json:"deleted"`
	Edited    bool        `json:"edited"`
	Likes     int         `json:"likes"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
