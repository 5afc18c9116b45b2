package presence

import "errors"

// Domain sentinel errors mapped to HTTP/WS rejections.
var (
	ErrSessionNotLive  = errors.New("session is not live")
	ErrNotEnrolled     = errors.New("user is not enrolled in this course")
	ErrBanned          = errors.New("user is banned from this session")
	ErrCapacityFull    = errors.New("session capacity exceeded")
	ErrWrongPassword   = errors.New("invalid session password")
	ErrNotJoined       = errors.New("participant is not currently joined")
	ErrNotInstructor   = errors.New("only the owning instructor may perform this action")
	ErrParticipantGone = errors.New("participant not found")
)
