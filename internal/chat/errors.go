package chat

import "errors"

var (
	ErrNotFound       = errors.New("message not found")
	ErrChatDisabled   = errors.New("chat is disabled for this session")
	ErrSessionNotLive = errors.New("session is not live")
	ErrNotJoined      = errors.New("user is not a joined participant")
	ErrEmptyMessage   = errors.New("message content is empty")
	ErrTooLong        = errors.New("message content exceeds maximum length")
	ErrNotAuthor      = errors.New("only the author may edit this message")
	ErrNotModerator   = errors.New("moderator or instructor role required")
	ErrDeleted        = errors.New("message has been deleted")
)
