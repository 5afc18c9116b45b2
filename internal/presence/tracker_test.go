package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/utils"
)

type fakeSessions struct {
	byID map[uuid.UUID]*models.Session
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return s, nil
}

type fakeParticipants struct {
	byID map[uuid.UUID]*models.Participant
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{byID: make(map[uuid.UUID]*models.Participant)}
}

func (f *fakeParticipants) Get(_ context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	for _, p := range f.byID {
		if p.SessionID == sessionID && p.UserID == userID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeParticipants) Create(_ context.Context, p *models.Participant) error {
	p.ID = uuid.New()
	f.byID[p.ID] = p
	return nil
}

func (f *fakeParticipants) MarkJoined(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	p := f.byID[id]
	if p.Status == models.ParticipantStatusJoined || p.Status == models.ParticipantStatusBanned {
		return false, nil
	}
	p.Status = models.ParticipantStatusJoined
	joined := at
	p.JoinedAt = &joined
	p.LeftAt = nil
	return true, nil
}

func (f *fakeParticipants) MarkLeft(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	p := f.byID[id]
	if p.Status != models.ParticipantStatusJoined {
		return false, nil
	}
	p.Status = models.ParticipantStatusLeft
	left := at
	p.LeftAt = &left
	if p.JoinedAt != nil {
		p.DurationSeconds += int64(at.Sub(*p.JoinedAt).Seconds())
	}
	return true, nil
}

func (f *fakeParticipants) MarkBanned(_ context.Context, id uuid.UUID, at time.Time) error {
	p := f.byID[id]
	if p.Status == models.ParticipantStatusJoined && p.JoinedAt != nil {
		p.DurationSeconds += int64(at.Sub(*p.JoinedAt).Seconds())
	}
	p.Status = models.ParticipantStatusBanned
	return nil
}

func (f *fakeParticipants) CloseAllJoined(_ context.Context, sessionID uuid.UUID, at time.Time) (int, error) {
	n := 0
	for _, p := range f.byID {
		if p.SessionID == sessionID && p.Status == models.ParticipantStatusJoined {
			_, _ = f.MarkLeft(context.Background(), p.ID, at)
			n++
		}
	}
	return n, nil
}

func (f *fakeParticipants) CountJoined(_ context.Context, sessionID uuid.UUID) (int, error) {
	n := 0
	for _, p := range f.byID {
		if p.SessionID == sessionID && p.Status == models.ParticipantStatusJoined {
			n++
		}
	}
	return n, nil
}

func (f *fakeParticipants) ListBySession(_ context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range f.byID {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeParticipants) UpdatePermissions(_ context.Context, id uuid.UUID, canUnmute, canShareScreen, isModerator bool) error {
	p := f.byID[id]
	p.CanUnmute = canUnmute
	p.CanShareScreen = canShareScreen
	p.IsModerator = isModerator
	return nil
}

type fakeEnrollments struct {
	enrolled map[uuid.UUID]bool // keyed by user
}

func (f *fakeEnrollments) IsEnrolled(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return f.enrolled[userID], nil
}

func (f *fakeEnrollments) IsInstructor(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

type broadcastRecorder struct {
	events   []string
	payloads []interface{}
}

func (b *broadcastRecorder) Broadcast(_ uuid.UUID, event string, payload interface{}) {
	b.events = append(b.events, event)
	b.payloads = append(b.payloads, payload)
}

type disconnectRecorder struct {
	dropped []uuid.UUID
}

func (d *disconnectRecorder) DisconnectUser(_, userID uuid.UUID) {
	d.dropped = append(d.dropped, userID)
}

type trackerFixture struct {
	tracker    *Tracker
	sessions   *fakeSessions
	store      *fakeParticipants
	enrolled   *fakeEnrollments
	rooms      *broadcastRecorder
	disconnect *disconnectRecorder
	session    *models.Session
}

func newTrackerFixture(t *testing.T, mutate func(*models.Session)) *trackerFixture {
	t.Helper()
	s := &models.Session{
		ID:           uuid.New(),
		CourseID:     uuid.New(),
		InstructorID: uuid.New(),
		Status:       models.SessionStatusLive,
		IsPublic:     true,
	}
	if mutate != nil {
		mutate(s)
	}
	fx := &trackerFixture{
		sessions:   &fakeSessions{byID: map[uuid.UUID]*models.Session{s.ID: s}},
		store:      newFakeParticipants(),
		enrolled:   &fakeEnrollments{enrolled: make(map[uuid.UUID]bool)},
		rooms:      &broadcastRecorder{},
		disconnect: &disconnectRecorder{},
		session:    s,
	}
	fx.tracker = NewTracker(fx.sessions, fx.store, fx.enrolled, fx.rooms, nil)
	fx.tracker.SetDisconnector(fx.disconnect)
	return fx
}

func TestJoinRejectsWhenSessionNotLive(t *testing.T) {
	fx := newTrackerFixture(t, func(s *models.Session) { s.Status = models.SessionStatusScheduled })
	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, uuid.New(), "")
	assert.ErrorIs(t, err, ErrSessionNotLive)
}

func TestJoinRejectsBannedUser(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	userID := uuid.New()
	require.NoError(t, fx.tracker.Ban(context.Background(), fx.session.ID, fx.session.InstructorID, userID))

	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	assert.ErrorIs(t, err, ErrBanned)
}

func TestJoinChecksPassword(t *testing.T) {
	hash, err := utils.HashPassword("open-sesame")
	require.NoError(t, err)
	fx := newTrackerFixture(t, func(s *models.Session) { s.PasswordHash = hash })

	_, _, err = fx.tracker.Join(context.Background(), fx.session.ID, uuid.New(), "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, fresh, err := fx.tracker.Join(context.Background(), fx.session.ID, uuid.New(), "open-sesame")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestJoinChecksEnrollment(t *testing.T) {
	fx := newTrackerFixture(t, func(s *models.Session) {
		s.RequiresEnrollment = true
		s.IsPublic = false
	})
	outsider := uuid.New()
	student := uuid.New()
	fx.enrolled.enrolled[student] = true

	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, outsider, "")
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, _, err = fx.tracker.Join(context.Background(), fx.session.ID, student, "")
	assert.NoError(t, err)
}

func TestJoinEnrollmentGateIgnoresVisibility(t *testing.T) {
	// is_public controls discoverability, not eligibility. A public session
	// that requires enrollment still turns outsiders away.
	fx := newTrackerFixture(t, func(s *models.Session) {
		s.RequiresEnrollment = true
		s.IsPublic = true
	})

	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, uuid.New(), "")
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestJoinEnforcesCapacity(t *testing.T) {
	capacity := 1
	fx := newTrackerFixture(t, func(s *models.Session) { s.Capacity = &capacity })

	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, uuid.New(), "")
	require.NoError(t, err)

	_, _, err = fx.tracker.Join(context.Background(), fx.session.ID, uuid.New(), "")
	assert.ErrorIs(t, err, ErrCapacityFull)

	// The instructor is never capacity gated.
	_, _, err = fx.tracker.Join(context.Background(), fx.session.ID, fx.session.InstructorID, "")
	assert.NoError(t, err)
}

func TestJoinIsIdempotentWhileJoined(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	userID := uuid.New()

	_, fresh, err := fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, []string{"user_joined"}, fx.rooms.events)

	_, fresh, err = fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, []string{"user_joined"}, fx.rooms.events, "repeat join must not rebroadcast")
}

func TestInstructorJoinGrantsModeration(t *testing.T) {
	fx := newTrackerFixture(t, nil)

	p, _, err := fx.tracker.Join(context.Background(), fx.session.ID, fx.session.InstructorID, "")
	require.NoError(t, err)
	assert.True(t, p.CanUnmute)
	assert.True(t, p.CanShareScreen)
	assert.True(t, p.IsModerator)
}

func TestLeaveAccruesDuration(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	userID := uuid.New()
	base := time.Now()

	fx.tracker.now = func() time.Time { return base }
	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	require.NoError(t, err)

	fx.tracker.now = func() time.Time { return base.Add(10 * time.Minute) }
	require.NoError(t, fx.tracker.Leave(context.Background(), fx.session.ID, userID))

	p, err := fx.tracker.Participant(context.Background(), fx.session.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), p.DurationSeconds)
	assert.Equal(t, models.ParticipantStatusLeft, p.Status)

	// A second interval adds on top.
	fx.tracker.now = func() time.Time { return base.Add(20 * time.Minute) }
	_, _, err = fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	require.NoError(t, err)
	fx.tracker.now = func() time.Time { return base.Add(25 * time.Minute) }
	require.NoError(t, fx.tracker.Leave(context.Background(), fx.session.ID, userID))

	p, _ = fx.tracker.Participant(context.Background(), fx.session.ID, userID)
	assert.Equal(t, int64(900), p.DurationSeconds)
}

func TestLeaveRejectsRepeats(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	userID := uuid.New()

	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	require.NoError(t, err)
	require.NoError(t, fx.tracker.Leave(context.Background(), fx.session.ID, userID))

	assert.ErrorIs(t, fx.tracker.Leave(context.Background(), fx.session.ID, userID), ErrNotJoined)
}

func TestLeaveUnknownParticipant(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	err := fx.tracker.Leave(context.Background(), fx.session.ID, uuid.New())
	assert.ErrorIs(t, err, ErrParticipantGone)
}

func TestBanRequiresInstructor(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	err := fx.tracker.Ban(context.Background(), fx.session.ID, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotInstructor)
}

func TestBanDropsConnectionsAndIsTerminal(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	userID := uuid.New()
	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	require.NoError(t, err)

	require.NoError(t, fx.tracker.Ban(context.Background(), fx.session.ID, fx.session.InstructorID, userID))
	assert.Equal(t, []uuid.UUID{userID}, fx.disconnect.dropped)
	assert.Contains(t, fx.rooms.events, "user_banned")

	_, _, err = fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	assert.ErrorIs(t, err, ErrBanned)
}

func TestBanUserWhoNeverJoined(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	userID := uuid.New()

	require.NoError(t, fx.tracker.Ban(context.Background(), fx.session.ID, fx.session.InstructorID, userID))

	p, err := fx.tracker.Participant(context.Background(), fx.session.ID, userID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, models.ParticipantStatusBanned, p.Status)
}

func TestSetPermissions(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	userID := uuid.New()
	_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, userID, "")
	require.NoError(t, err)

	err = fx.tracker.SetPermissions(context.Background(), fx.session.ID, uuid.New(), userID, true, true, false)
	assert.ErrorIs(t, err, ErrNotInstructor)

	err = fx.tracker.SetPermissions(context.Background(), fx.session.ID, fx.session.InstructorID, userID, true, false, true)
	require.NoError(t, err)
	p, _ := fx.tracker.Participant(context.Background(), fx.session.ID, userID)
	assert.True(t, p.CanUnmute)
	assert.False(t, p.CanShareScreen)
	assert.True(t, p.IsModerator)
}

func TestForceLeaveAllClosesOpenIntervals(t *testing.T) {
	fx := newTrackerFixture(t, nil)
	base := time.Now()
	fx.tracker.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		_, _, err := fx.tracker.Join(context.Background(), fx.session.ID, uuid.New(), "")
		require.NoError(t, err)
	}

	n, err := fx.tracker.ForceLeaveAll(context.Background(), fx.session.ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := fx.tracker.List(context.Background(), fx.session.ID)
	require.NoError(t, err)
	for _, p := range list {
		assert.Equal(t, models.ParticipantStatusLeft, p.Status)
		assert.Equal(t, int64(3600), p.DurationSeconds)
	}
}
