package sessions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/pkg/utils"
)

type fakeStore struct {
	byID    map[uuid.UUID]*models.Session
	overlap bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[uuid.UUID]*models.Session)}
}

func (f *fakeStore) Create(_ context.Context, s *models.Session) error {
	s.ID = uuid.New()
	f.byID[s.ID] = s
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) HasInstructorOverlap(_ context.Context, _ uuid.UUID, _, _ time.Time) (bool, error) {
	return f.overlap, nil
}

func (f *fakeStore) MarkLive(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s := f.byID[id]
	if s.Status != models.SessionStatusScheduled {
		return false, nil
	}
	s.Status = models.SessionStatusLive
	s.ActualStart = &at
	return true, nil
}

func (f *fakeStore) MarkEnded(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s := f.byID[id]
	if s.Status != models.SessionStatusLive {
		return false, nil
	}
	s.Status = models.SessionStatusEnded
	s.ActualEnd = &at
	return true, nil
}

func (f *fakeStore) MarkCancelled(_ context.Context, id uuid.UUID) (bool, error) {
	s := f.byID[id]
	if s.Status != models.SessionStatusScheduled && s.Status != models.SessionStatusLive {
		return false, nil
	}
	s.Status = models.SessionStatusCancelled
	return true, nil
}

type fakeCourses struct {
	owner uuid.UUID
}

func (f *fakeCourses) IsInstructor(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return userID == f.owner, nil
}

// endRecorder records the ordering of the end-of-session side effects.
type endRecorder struct {
	calls         []string
	attendanceErr error
}

func (r *endRecorder) ForceLeaveAll(_ context.Context, _ uuid.UUID, _ time.Time) (int, error) {
	r.calls = append(r.calls, "force_leave")
	return 2, nil
}

func (r *endRecorder) ProcessSession(_ context.Context, _ uuid.UUID) error {
	r.calls = append(r.calls, "attendance")
	return r.attendanceErr
}

func (r *endRecorder) Broadcast(_ uuid.UUID, event string, _ interface{}) {
	r.calls = append(r.calls, "broadcast:"+event)
}

func (r *endRecorder) CloseRoom(_ uuid.UUID) {
	r.calls = append(r.calls, "close_room")
}

type lifecycleFixture struct {
	lifecycle  *Lifecycle
	store      *fakeStore
	recorder   *endRecorder
	instructor uuid.UUID
	courseID   uuid.UUID
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	fx := &lifecycleFixture{
		store:      newFakeStore(),
		recorder:   &endRecorder{},
		instructor: uuid.New(),
		courseID:   uuid.New(),
	}
	fx.lifecycle = NewLifecycle(fx.store, &fakeCourses{owner: fx.instructor}, fx.recorder, fx.recorder, fx.recorder, nil)
	return fx
}

func (fx *lifecycleFixture) params() CreateParams {
	return CreateParams{
		CourseID:       fx.courseID,
		InstructorID:   fx.instructor,
		Title:          "Week 3: Goroutines",
		ScheduledStart: time.Now().Add(time.Hour),
		ScheduledEnd:   time.Now().Add(2 * time.Hour),
		ChatEnabled:    true,
	}
}

func (fx *lifecycleFixture) schedule(t *testing.T) *models.Session {
	t.Helper()
	s, err := fx.lifecycle.Create(context.Background(), fx.params())
	require.NoError(t, err)
	return s
}

func TestCreateValidatesWindow(t *testing.T) {
	fx := newLifecycleFixture(t)

	p := fx.params()
	p.ScheduledEnd = p.ScheduledStart
	_, err := fx.lifecycle.Create(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	p = fx.params()
	p.ScheduledStart = time.Now().Add(-time.Hour)
	_, err = fx.lifecycle.Create(context.Background(), p)
	assert.ErrorIs(t, err, ErrScheduleInPast)
}

func TestCreateRequiresCourseOwnership(t *testing.T) {
	fx := newLifecycleFixture(t)
	p := fx.params()
	p.InstructorID = uuid.New()
	_, err := fx.lifecycle.Create(context.Background(), p)
	assert.ErrorIs(t, err, ErrNotCourseOwner)
}

func TestCreateRejectsOverlap(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.overlap = true
	_, err := fx.lifecycle.Create(context.Background(), fx.params())
	assert.ErrorIs(t, err, ErrScheduleOverlap)
}

func TestCreateIssuesCredentials(t *testing.T) {
	fx := newLifecycleFixture(t)
	p := fx.params()
	p.Password = "hunter2"

	s, err := fx.lifecycle.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, s.Status)
	assert.True(t, strings.HasPrefix(s.StreamKey, "sk_"))
	assert.NotEmpty(t, s.ChannelID)
	assert.NotEqual(t, "hunter2", s.PasswordHash)
	assert.True(t, utils.CheckPassword("hunter2", s.PasswordHash))
}

func TestStartTransition(t *testing.T) {
	fx := newLifecycleFixture(t)
	s := fx.schedule(t)

	_, err := fx.lifecycle.Start(context.Background(), s.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotInstructor)

	started, err := fx.lifecycle.Start(context.Background(), s.ID, fx.instructor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusLive, started.Status)
	require.NotNil(t, started.ActualStart)
	assert.Contains(t, fx.recorder.calls, "broadcast:session_started")

	// Starting twice loses the compare-and-set.
	_, err = fx.lifecycle.Start(context.Background(), s.ID, fx.instructor)
	assert.ErrorIs(t, err, ErrNotScheduled)
}

func TestEndRunsSideEffectsInOrder(t *testing.T) {
	fx := newLifecycleFixture(t)
	s := fx.schedule(t)
	_, err := fx.lifecycle.Start(context.Background(), s.ID, fx.instructor)
	require.NoError(t, err)
	fx.recorder.calls = nil

	ended, err := fx.lifecycle.End(context.Background(), s.ID, fx.instructor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, ended.Status)
	require.NotNil(t, ended.ActualEnd)

	// Presence closes first, attendance runs on the closed intervals, and the
	// room only drops after clients have the session_ended frame queued.
	assert.Equal(t, []string{"force_leave", "attendance", "broadcast:session_ended", "close_room"}, fx.recorder.calls)
}

func TestEndRequiresLive(t *testing.T) {
	fx := newLifecycleFixture(t)
	s := fx.schedule(t)
	_, err := fx.lifecycle.End(context.Background(), s.ID, fx.instructor)
	assert.ErrorIs(t, err, ErrNotLive)
}

func TestEndSurvivesAttendanceFailure(t *testing.T) {
	fx := newLifecycleFixture(t)
	s := fx.schedule(t)
	_, err := fx.lifecycle.Start(context.Background(), s.ID, fx.instructor)
	require.NoError(t, err)
	fx.recorder.attendanceErr = errors.New("records table unavailable")

	ended, err := fx.lifecycle.End(context.Background(), s.ID, fx.instructor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, ended.Status)
	assert.Contains(t, fx.recorder.calls, "close_room")
}

func TestCancelTransitions(t *testing.T) {
	fx := newLifecycleFixture(t)

	scheduled := fx.schedule(t)
	cancelled, err := fx.lifecycle.Cancel(context.Background(), scheduled.ID, fx.instructor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, cancelled.Status)

	// A live session can still be cancelled.
	fx2 := newLifecycleFixture(t)
	live := fx2.schedule(t)
	_, err = fx2.lifecycle.Start(context.Background(), live.ID, fx2.instructor)
	require.NoError(t, err)
	_, err = fx2.lifecycle.Cancel(context.Background(), live.ID, fx2.instructor)
	require.NoError(t, err)

	// An ended or cancelled session cannot.
	_, err = fx.lifecycle.Cancel(context.Background(), scheduled.ID, fx.instructor)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}
