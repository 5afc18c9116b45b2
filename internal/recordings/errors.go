package recordings

import "errors"

var (
	ErrNotFound          = errors.New("recording not found")
	ErrNotReady          = errors.New("recording is not ready")
	ErrNotInstructor     = errors.New("only the owning instructor may perform this action")
	ErrNotAuthorized     = errors.New("not authorized for this recording")
	ErrRecordingDisabled = errors.New("recording is disabled for this session")
	ErrNegativeProgress  = errors.New("watch progress cannot be negative")
)
