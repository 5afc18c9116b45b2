package questions

import "errors"

var (
	ErrNotFound       = errors.New("question not found")
	ErrQADisabled     = errors.New("q&a is disabled for this session")
	ErrSessionNotLive = errors.New("session is not live")
	ErrNotJoined      = errors.New("user is not a joined participant")
	ErrEmptyQuestion  = errors.New("question text is empty")
	ErrTooLong        = errors.New("question text exceeds maximum length")
	ErrNotInstructor  = errors.New("only the owning instructor may perform this action")
	ErrEmptyAnswer    = errors.New("answer text is empty")
	ErrFinalized      = errors.New("question is already answered or dismissed")
)
