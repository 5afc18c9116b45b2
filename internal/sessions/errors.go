package sessions

import "errors"

// Domain sentinel errors mapped to HTTP codes in handlers.
var (
	ErrNotFound         = errors.New("session not found")
	ErrInvalidSchedule  = errors.New("scheduled end must be after scheduled start")
	ErrScheduleInPast   = errors.New("scheduled start is in the past")
	ErrScheduleOverlap  = errors.New("instructor has an overlapping session")
	ErrNotCourseOwner   = errors.New("user is not the instructor of this course")
	ErrNotInstructor    = errors.New("only the owning instructor may perform this action")
	ErrNotScheduled     = errors.New("session is not in scheduled state")
	ErrNotLive          = errors.New("session is not live")
	ErrAlreadyFinalized = errors.New("session is already ended or cancelled")
)
