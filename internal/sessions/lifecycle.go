package sessions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/utils"
)

// Store is the persistence surface the lifecycle needs.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	HasInstructorOverlap(ctx context.Context, instructorID uuid.UUID, start, end time.Time) (bool, error)
	MarkLive(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkEnded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// CourseOwnership answers whether a user owns a course.
type CourseOwnership interface {
	IsInstructor(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
}

// Presence closes open presence intervals when a session ends.
type Presence interface {
	ForceLeaveAll(ctx context.Context, sessionID uuid.UUID, at time.Time) (int, error)
}

// AttendanceRunner runs the end-of-session attendance pass.
type AttendanceRunner interface {
	ProcessSession(ctx context.Context, sessionID uuid.UUID) error
}

// Rooms broadcasts to and closes the process-local room for a session.
type Rooms interface {
	Broadcast(sessionID uuid.UUID, event string, payload interface{})
	CloseRoom(sessionID uuid.UUID)
}

// CreateParams are the inputs for scheduling a session.
type CreateParams struct {
	CourseID           uuid.UUID
	InstructorID       uuid.UUID
	Title              string
	Description        string
	ScheduledStart     time.Time
	ScheduledEnd       time.Time
	Capacity           *int
	ChatEnabled        bool
	QAEnabled          bool
	PollsEnabled       bool
	RecordingEnabled   bool
	RequiresEnrollment bool
	IsPublic           bool
	Password           string
}

// Lifecycle governs the session state machine:
// scheduled -> live -> ended, with scheduled|live -> cancelled.
type Lifecycle struct {
	store      Store
	courses    CourseOwnership
	presence   Presence
	attendance AttendanceRunner
	rooms      Rooms
	logger     *zap.Logger
	now        func() time.Time
}

// NewLifecycle creates the session lifecycle service.
func NewLifecycle(store Store, courses CourseOwnership, presence Presence, attendance AttendanceRunner, rooms Rooms, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		store:      store,
		courses:    courses,
		presence:   presence,
		attendance: attendance,
		rooms:      rooms,
		logger:     logger,
		now:        time.Now,
	}
}

// Create schedules a session. Rejects inverted or past windows and windows
// overlapping another scheduled/live session of the same instructor.
func (l *Lifecycle) Create(ctx context.Context, p CreateParams) (*models.Session, error) {
	if !p.ScheduledStart.Before(p.ScheduledEnd) {
		return nil, ErrInvalidSchedule
	}
	if p.ScheduledStart.Before(l.now()) {
		return nil, ErrScheduleInPast
	}
	owns, err := l.courses.IsInstructor(ctx, p.CourseID, p.InstructorID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, ErrNotCourseOwner
	}
	overlap, err := l.store.HasInstructorOverlap(ctx, p.InstructorID, p.ScheduledStart, p.ScheduledEnd)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrScheduleOverlap
	}

	var passwordHash string
	if p.Password != "" {
		passwordHash, err = utils.HashPassword(p.Password)
		if err != nil {
			return nil, err
		}
	}

	s := &models.Session{
		CourseID:           p.CourseID,
		InstructorID:       p.InstructorID,
		Title:              p.Title,
		Description:        p.Description,
		ScheduledStart:     p.ScheduledStart,
		ScheduledEnd:       p.ScheduledEnd,
		Status:             models.SessionStatusScheduled,
		Capacity:           p.Capacity,
		ChatEnabled:        p.ChatEnabled,
		QAEnabled:          p.QAEnabled,
		PollsEnabled:       p.PollsEnabled,
		RecordingEnabled:   p.RecordingEnabled,
		RequiresEnrollment: p.RequiresEnrollment,
		IsPublic:           p.IsPublic,
		PasswordHash:       passwordHash,
		StreamKey:          newStreamKey(),
		ChannelID:          uuid.New().String(),
	}
	if err := l.store.Create(ctx, s); err != nil {
		return nil, err
	}
	l.logger.Info("session scheduled",
		zap.String("session_id", s.ID.String()),
		zap.Time("start", s.ScheduledStart))
	return s, nil
}

// Start transitions a scheduled session to live. Only the owning instructor may call.
func (l *Lifecycle) Start(ctx context.Context, sessionID, actorID uuid.UUID) (*models.Session, error) {
	s, err := l.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.InstructorID != actorID {
		return nil, ErrNotInstructor
	}
	at := l.now()
	ok, err := l.store.MarkLive(ctx, sessionID, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotScheduled
	}
	s.Status = models.SessionStatusLive
	s.ActualStart = &at
	l.rooms.Broadcast(sessionID, "session_started", map[string]interface{}{
		"session_id": sessionID, "actual_start": at,
	})
	l.logger.Info("session started", zap.String("session_id", sessionID.String()))
	return s, nil
}

// End transitions a live session to ended: it closes every open presence
// interval, runs the attendance pass synchronously, then disconnects the room
// after the final broadcast has been queued.
func (l *Lifecycle) End(ctx context.Context, sessionID, actorID uuid.UUID) (*models.Session, error) {
	s, err := l.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.InstructorID != actorID {
		return nil, ErrNotInstructor
	}
	at := l.now()
	ok, err := l.store.MarkEnded(ctx, sessionID, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotLive
	}
	s.Status = models.SessionStatusEnded
	s.ActualEnd = &at

	left, err := l.presence.ForceLeaveAll(ctx, sessionID, at)
	if err != nil {
		l.logger.Error("force leave failed", zap.String("session_id", sessionID.String()), zap.Error(err))
	}

	if err := l.attendance.ProcessSession(ctx, sessionID); err != nil {
		// Attendance failures are surfaced but do not undo the ended transition.
		l.logger.Error("attendance pass incomplete", zap.String("session_id", sessionID.String()), zap.Error(err))
	}

	l.rooms.Broadcast(sessionID, "session_ended", map[string]interface{}{
		"session_id": sessionID, "actual_end": at,
	})
	l.rooms.CloseRoom(sessionID)

	l.logger.Info("session ended",
		zap.String("session_id", sessionID.String()),
		zap.Int("participants_closed", left))
	return s, nil
}

// Cancel transitions a scheduled or live session to cancelled. No further joins
// are permitted afterward.
func (l *Lifecycle) Cancel(ctx context.Context, sessionID, actorID uuid.UUID) (*models.Session, error) {
	s, err := l.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.InstructorID != actorID {
		return nil, ErrNotInstructor
	}
	ok, err := l.store.MarkCancelled(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyFinalized
	}
	s.Status = models.SessionStatusCancelled
	l.rooms.Broadcast(sessionID, "session_cancelled", map[string]interface{}{"session_id": sessionID})
	l.rooms.CloseRoom(sessionID)
	l.logger.Info("session cancelled", zap.String("session_id", sessionID.String()))
	return s, nil
}

// newStreamKey issues an opaque streaming credential.
func newStreamKey() string {
	return "sk_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
