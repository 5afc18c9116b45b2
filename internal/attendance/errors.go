package attendance

import "errors"

var (
	ErrNotFound      = errors.New("attendance record not found")
	ErrVerified      = errors.New("attendance record is verified and frozen")
	ErrNotInstructor = errors.New("only the owning instructor may perform this action")
)
