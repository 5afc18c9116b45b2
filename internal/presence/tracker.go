package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/enrollment"
	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/utils"
)

// SessionGetter reads session state for join gating.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// ParticipantStore is the persistence surface the tracker needs.
type ParticipantStore interface {
	Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
	Create(ctx context.Context, p *models.Participant) error
	MarkJoined(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkLeft(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkBanned(ctx context.Context, id uuid.UUID, at time.Time) error
	CloseAllJoined(ctx context.Context, sessionID uuid.UUID, at time.Time) (int, error)
	CountJoined(ctx context.Context, sessionID uuid.UUID) (int, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	UpdatePermissions(ctx context.Context, id uuid.UUID, canUnmute, canShareScreen, isModerator bool) error
}

// Broadcaster fans presence events out to the room.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, event string, payload interface{})
}

// Disconnector drops a user's live connections (on ban).
type Disconnector interface {
	DisconnectUser(sessionID, userID uuid.UUID)
}

// Tracker enforces join/leave/ban semantics and duration accrual. The durable
// participant table is the source of truth; room membership caches reconcile
// from it.
type Tracker struct {
	sessions     SessionGetter
	participants ParticipantStore
	enrollments  enrollment.Checker
	rooms        Broadcaster
	disconnect   Disconnector
	logger       *zap.Logger
	now          func() time.Time
}

// NewTracker creates a presence tracker.
func NewTracker(sessions SessionGetter, participants ParticipantStore, enrollments enrollment.Checker, rooms Broadcaster, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		sessions:     sessions,
		participants: participants,
		enrollments:  enrollments,
		rooms:        rooms,
		logger:       logger,
		now:          time.Now,
	}
}

// SetDisconnector wires the connection registry used to drop banned users.
func (t *Tracker) SetDisconnector(d Disconnector) { t.disconnect = d }

// Join registers the user as a joined participant. Idempotent: a repeat join
// while already joined refreshes presence without a second broadcast. Returns
// the participant row and whether the join was fresh.
func (t *Tracker) Join(ctx context.Context, sessionID, userID uuid.UUID, password string) (*models.Participant, bool, error) {
	s, err := t.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if s.Status != models.SessionStatusLive {
		return nil, false, ErrSessionNotLive
	}

	p, err := t.participants.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, false, err
	}
	if p != nil && p.Status == models.ParticipantStatusBanned {
		return nil, false, ErrBanned
	}
	if p != nil && p.Status == models.ParticipantStatusJoined {
		// Reconnect while still marked joined: presence refresh only.
		return p, false, nil
	}

	isInstructor := userID == s.InstructorID
	if !isInstructor {
		if s.PasswordProtected() && !utils.CheckPassword(password, s.PasswordHash) {
			return nil, false, ErrWrongPassword
		}
		if s.RequiresEnrollment {
			enrolled, err := t.enrollments.IsEnrolled(ctx, s.CourseID, userID)
			if err != nil {
				return nil, false, err
			}
			if !enrolled {
				return nil, false, ErrNotEnrolled
			}
		}
		if s.Capacity != nil {
			joined, err := t.participants.CountJoined(ctx, sessionID)
			if err != nil {
				return nil, false, err
			}
			if joined >= *s.Capacity {
				return nil, false, ErrCapacityFull
			}
		}
	}

	at := t.now()
	if p == nil {
		p = &models.Participant{
			SessionID: sessionID,
			UserID:    userID,
			Status:    models.ParticipantStatusJoined,
			JoinedAt:  &at,
		}
		if isInstructor {
			p.CanUnmute = true
			p.CanShareScreen = true
			p.IsModerator = true
		}
		if err := t.participants.Create(ctx, p); err != nil {
			return nil, false, err
		}
		switch p.Status {
		case models.ParticipantStatusBanned:
			return nil, false, ErrBanned
		case models.ParticipantStatusJoined:
			// Insert won, or a concurrent join beat us to the row.
		default:
			// Create lost the race to a row that has since left; retake it.
			fresh, err := t.participants.MarkJoined(ctx, p.ID, at)
			if err != nil {
				return nil, false, err
			}
			if !fresh {
				return p, false, nil
			}
			p.Status = models.ParticipantStatusJoined
			p.JoinedAt = &at
			p.LeftAt = nil
		}
		if isInstructor {
			if err := t.participants.UpdatePermissions(ctx, p.ID, true, true, true); err != nil {
				return nil, false, err
			}
		}
	} else {
		fresh, err := t.participants.MarkJoined(ctx, p.ID, at)
		if err != nil {
			return nil, false, err
		}
		if !fresh {
			return p, false, nil
		}
		p.Status = models.ParticipantStatusJoined
		p.JoinedAt = &at
		p.LeftAt = nil
	}

	t.rooms.Broadcast(sessionID, "user_joined", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
		"joined_at":  at,
	})
	t.logger.Debug("participant joined",
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", userID.String()))
	return p, true, nil
}

// Leave closes the participant's open interval and accrues duration. A repeat
// leave past the first is rejected.
func (t *Tracker) Leave(ctx context.Context, sessionID, userID uuid.UUID) error {
	p, err := t.participants.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrParticipantGone
	}
	at := t.now()
	ok, err := t.participants.MarkLeft(ctx, p.ID, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotJoined
	}
	t.rooms.Broadcast(sessionID, "user_left", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
		"left_at":    at,
	})
	return nil
}

// Ban marks the user banned for this session (terminal) and drops their
// connections. Only the owning instructor may ban.
func (t *Tracker) Ban(ctx context.Context, sessionID, actorID, userID uuid.UUID) error {
	s, err := t.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.InstructorID != actorID {
		return ErrNotInstructor
	}
	p, err := t.participants.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	at := t.now()
	if p == nil {
		p = &models.Participant{
			SessionID: sessionID,
			UserID:    userID,
			Status:    models.ParticipantStatusBanned,
		}
		if err := t.participants.Create(ctx, p); err != nil {
			return err
		}
	}
	if err := t.participants.MarkBanned(ctx, p.ID, at); err != nil {
		return err
	}
	t.rooms.Broadcast(sessionID, "user_banned", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	})
	if t.disconnect != nil {
		t.disconnect.DisconnectUser(sessionID, userID)
	}
	t.logger.Info("participant banned",
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// SetPermissions updates moderation flags; instructor only.
func (t *Tracker) SetPermissions(ctx context.Context, sessionID, actorID, userID uuid.UUID, canUnmute, canShareScreen, isModerator bool) error {
	s, err := t.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.InstructorID != actorID {
		return ErrNotInstructor
	}
	p, err := t.participants.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrParticipantGone
	}
	return t.participants.UpdatePermissions(ctx, p.ID, canUnmute, canShareScreen, isModerator)
}

// IsJoined reports whether the user is a currently joined participant.
func (t *Tracker) IsJoined(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	p, err := t.participants.Get(ctx, sessionID, userID)
	if err != nil {
		return false, err
	}
	return p != nil && p.Status == models.ParticipantStatusJoined, nil
}

// Participant returns the participant row for the pair, or nil.
func (t *Tracker) Participant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	return t.participants.Get(ctx, sessionID, userID)
}

// ForceLeaveAll closes every open interval at the given instant. Used by the
// session end transition.
func (t *Tracker) ForceLeaveAll(ctx context.Context, sessionID uuid.UUID, at time.Time) (int, error) {
	return t.participants.CloseAllJoined(ctx, sessionID, at)
}

// List returns every participant of the session.
func (t *Tracker) List(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	return t.participants.ListBySession(ctx, sessionID)
}
