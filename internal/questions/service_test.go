package questions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehive/live-backend/internal/models"
)

type fakeSessions struct {
	session *models.Session
}

func (f *fakeSessions) GetByID(_ context.Context, _ uuid.UUID) (*models.Session, error) {
	return f.session, nil
}

type fakeQuestions struct {
	byID map[uuid.UUID]*models.Question
}

func newFakeQuestions() *fakeQuestions {
	return &fakeQuestions{byID: make(map[uuid.UUID]*models.Question)}
}

func (f *fakeQuestions) Create(_ context.Context, q *models.Question) error {
	q.ID = uuid.New()
	q.Status = models.QuestionStatusPending
	f.byID[q.ID] = q
	return nil
}

func (f *fakeQuestions) GetByID(_ context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return q, nil
}

func (f *fakeQuestions) ListBySession(_ context.Context, sessionID uuid.UUID, status models.QuestionStatus) ([]models.Question, error) {
	var out []models.Question
	for _, q := range f.byID {
		if q.SessionID == sessionID && (status == "" || q.Status == status) {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) MarkAnswered(_ context.Context, id, answeredBy uuid.UUID, answer string, at time.Time) (bool, error) {
	q := f.byID[id]
	if q.Status != models.QuestionStatusPending {
		return false, nil
	}
	q.Status = models.QuestionStatusAnswered
	q.Answer = &answer
	q.AnsweredBy = &answeredBy
	answeredAt := at
	q.AnsweredAt = &answeredAt
	return true, nil
}

func (f *fakeQuestions) MarkDismissed(_ context.Context, id uuid.UUID) (bool, error) {
	q := f.byID[id]
	if q.Status != models.QuestionStatusPending {
		return false, nil
	}
	q.Status = models.QuestionStatusDismissed
	return true, nil
}

func (f *fakeQuestions) IncrementUpvotes(_ context.Context, id uuid.UUID) (int, error) {
	q := f.byID[id]
	q.Upvotes++
	return q.Upvotes, nil
}

type fakeParticipants struct {
	byUser map[uuid.UUID]*models.Participant
}

func (f *fakeParticipants) Participant(_ context.Context, _, userID uuid.UUID) (*models.Participant, error) {
	return f.byUser[userID], nil
}

type counterRecorder struct {
	increments int
}

func (c *counterRecorder) IncrementQuestionsAsked(_ context.Context, _, _ uuid.UUID) error {
	c.increments++
	return nil
}

type broadcastRecorder struct {
	events   []string
	payloads []interface{}
}

func (b *broadcastRecorder) Broadcast(_ uuid.UUID, event string, payload interface{}) {
	b.events = append(b.events, event)
	b.payloads = append(b.payloads, payload)
}

type qaFixture struct {
	service  *Service
	session  *models.Session
	store    *fakeQuestions
	people   *fakeParticipants
	counters *counterRecorder
	rooms    *broadcastRecorder
	asker    uuid.UUID
}

func newQAFixture(t *testing.T) *qaFixture {
	t.Helper()
	fx := &qaFixture{
		session: &models.Session{
			ID:           uuid.New(),
			InstructorID: uuid.New(),
			Status:       models.SessionStatusLive,
			QAEnabled:    true,
		},
		store:    newFakeQuestions(),
		people:   &fakeParticipants{byUser: make(map[uuid.UUID]*models.Participant)},
		counters: &counterRecorder{},
		rooms:    &broadcastRecorder{},
		asker:    uuid.New(),
	}
	fx.people.byUser[fx.asker] = &models.Participant{
		ID:        uuid.New(),
		SessionID: fx.session.ID,
		UserID:    fx.asker,
		Status:    models.ParticipantStatusJoined,
	}
	fx.service = NewService(&fakeSessions{session: fx.session}, fx.store, fx.people, fx.counters, fx.rooms, nil)
	return fx
}

func (fx *qaFixture) ask(t *testing.T, text string, anonymous bool) *models.Question {
	t.Helper()
	q, err := fx.service.Ask(context.Background(), fx.session.ID, fx.asker, text, anonymous)
	require.NoError(t, err)
	return q
}

func TestAskGating(t *testing.T) {
	fx := newQAFixture(t)

	_, err := fx.service.Ask(context.Background(), fx.session.ID, fx.asker, "  ", false)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = fx.service.Ask(context.Background(), fx.session.ID, fx.asker, strings.Repeat("?", MaxQuestionLength+1), false)
	assert.ErrorIs(t, err, ErrTooLong)

	_, err = fx.service.Ask(context.Background(), fx.session.ID, uuid.New(), "who are you", false)
	assert.ErrorIs(t, err, ErrNotJoined)

	fx.session.QAEnabled = false
	_, err = fx.service.Ask(context.Background(), fx.session.ID, fx.asker, "why disabled", false)
	assert.ErrorIs(t, err, ErrQADisabled)

	fx.session.Status = models.SessionStatusEnded
	_, err = fx.service.Ask(context.Background(), fx.session.ID, fx.asker, "too late", false)
	assert.ErrorIs(t, err, ErrSessionNotLive)
}

func TestAskBroadcastsAndCounts(t *testing.T) {
	fx := newQAFixture(t)
	q := fx.ask(t, "what does defer evaluate eagerly?", false)

	assert.Equal(t, models.QuestionStatusPending, q.Status)
	assert.Equal(t, 1, fx.counters.increments)
	assert.Equal(t, []string{"question_asked"}, fx.rooms.events)

	payload, ok := fx.rooms.payloads[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, fx.asker, payload["user_id"])
}

func TestAnonymousQuestionHidesAuthor(t *testing.T) {
	fx := newQAFixture(t)
	q := fx.ask(t, "is my code bad?", true)

	// The row keeps the author for moderation; the broadcast omits it.
	assert.Equal(t, fx.asker, q.UserID)
	payload, ok := fx.rooms.payloads[0].(map[string]interface{})
	require.True(t, ok)
	_, present := payload["user_id"]
	assert.False(t, present)
}

func TestAnswerIsTerminal(t *testing.T) {
	fx := newQAFixture(t)
	q := fx.ask(t, "what is nil?", false)

	_, err := fx.service.Answer(context.Background(), fx.session.ID, fx.asker, q.ID, "the zero value")
	assert.ErrorIs(t, err, ErrNotInstructor)

	_, err = fx.service.Answer(context.Background(), fx.session.ID, fx.session.InstructorID, q.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	answered, err := fx.service.Answer(context.Background(), fx.session.ID, fx.session.InstructorID, q.ID, "the zero value of pointers and friends")
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusAnswered, answered.Status)
	require.NotNil(t, answered.Answer)
	require.NotNil(t, answered.AnsweredBy)
	assert.Equal(t, fx.session.InstructorID, *answered.AnsweredBy)

	_, err = fx.service.Answer(context.Background(), fx.session.ID, fx.session.InstructorID, q.ID, "again")
	assert.ErrorIs(t, err, ErrFinalized)
	_, err = fx.service.Dismiss(context.Background(), fx.session.ID, fx.session.InstructorID, q.ID)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestDismissIsTerminal(t *testing.T) {
	fx := newQAFixture(t)
	q := fx.ask(t, "off topic?", false)

	dismissed, err := fx.service.Dismiss(context.Background(), fx.session.ID, fx.session.InstructorID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusDismissed, dismissed.Status)

	_, err = fx.service.Answer(context.Background(), fx.session.ID, fx.session.InstructorID, q.ID, "too late")
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestUpvoteCountsEveryCall(t *testing.T) {
	fx := newQAFixture(t)
	q := fx.ask(t, "can you show that again?", false)

	_, err := fx.service.Upvote(context.Background(), fx.session.ID, uuid.New(), q.ID)
	assert.ErrorIs(t, err, ErrNotJoined)

	n, err := fx.service.Upvote(context.Background(), fx.session.ID, fx.asker, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Repeat upvotes by the same user keep counting.
	n, err = fx.service.Upvote(context.Background(), fx.session.ID, fx.asker, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, fx.rooms.events, "question_upvoted")
}

func TestQuestionCrossSessionRejected(t *testing.T) {
	fx := newQAFixture(t)
	q := fx.ask(t, "hello?", false)

	_, err := fx.service.Upvote(context.Background(), uuid.New(), fx.asker, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
