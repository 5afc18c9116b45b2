package polls

import "errors"

var (
	ErrNotFound        = errors.New("poll not found")
	ErrPollsDisabled   = errors.New("polls are disabled for this session")
	ErrSessionNotLive  = errors.New("session is not live")
	ErrNotJoined       = errors.New("user is not a joined participant")
	ErrNotInstructor   = errors.New("only the owning instructor may perform this action")
	ErrTooFewOptions   = errors.New("poll needs at least two options")
	ErrEmptyQuestion   = errors.New("poll question is empty")
	ErrEmptyOption     = errors.New("poll option text is empty")
	ErrNotDraft        = errors.New("poll is not in draft")
	ErrNotActive       = errors.New("poll is not active")
	ErrPollClosed      = errors.New("poll is closed")
	ErrNoSelection     = errors.New("vote carries no options")
	ErrSingleChoice    = errors.New("poll accepts a single option")
	ErrUnknownOption   = errors.New("option does not belong to this poll")
	ErrDuplicateOption = errors.New("vote selects the same option twice")
)
