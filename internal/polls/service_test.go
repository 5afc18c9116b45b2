package polls

import (
	"context"
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

// fakePolls mirrors the vote-replacement contract of the SQL repository:
// a new ballot removes the user's previous one and all counts follow.
type fakePolls struct {
	byID    map[uuid.UUID]*models.Poll
	ballots map[uuid.UUID]map[uuid.UUID][]uuid.UUID // poll -> user -> options
}

func newFakePolls() *fakePolls {
	return &fakePolls{
		byID:    make(map[uuid.UUID]*models.Poll),
		ballots: make(map[uuid.UUID]map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakePolls) CreateWithOptions(_ context.Context, p *models.Poll, options []string) error {
	p.ID = uuid.New()
	p.Status = models.PollStatusDraft
	for i, text := range options {
		p.Options = append(p.Options, models.PollOption{
			ID:       uuid.New(),
			PollID:   p.ID,
			Position: i,
			Text:     text,
		})
	}
	f.byID[p.ID] = p
	f.ballots[p.ID] = make(map[uuid.UUID][]uuid.UUID)
	return nil
}

func (f *fakePolls) GetByID(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (f *fakePolls) ListBySession(_ context.Context, sessionID uuid.UUID) ([]models.Poll, error) {
	var out []models.Poll
	for _, p := range f.byID {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePolls) MarkActive(_ context.Context, id uuid.UUID, startedAt time.Time, endsAt *time.Time) (bool, error) {
	p := f.byID[id]
	if p.Status != models.PollStatusDraft {
		return false, nil
	}
	p.Status = models.PollStatusActive
	started := startedAt
	p.StartedAt = &started
	p.EndsAt = endsAt
	return true, nil
}

func (f *fakePolls) MarkClosed(_ context.Context, id uuid.UUID) (bool, error) {
	p := f.byID[id]
	if p.Status != models.PollStatusActive {
		return false, nil
	}
	p.Status = models.PollStatusClosed
	return true, nil
}

func (f *fakePolls) ReplaceVotes(_ context.Context, pollID, userID uuid.UUID, optionIDs []uuid.UUID) (bool, error) {
	p := f.byID[pollID]
	prior := f.ballots[pollID][userID]
	for _, old := range prior {
		for i := range p.Options {
			if p.Options[i].ID == old {
				p.Options[i].VotesCount--
			}
		}
	}
	for _, chosen := range optionIDs {
		for i := range p.Options {
			if p.Options[i].ID == chosen {
				p.Options[i].VotesCount++
			}
		}
	}
	f.ballots[pollID][userID] = optionIDs
	return len(prior) == 0, nil
}

func (f *fakePolls) CountVoters(_ context.Context, pollID uuid.UUID) (int, error) {
	return len(f.ballots[pollID]), nil
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

func (c *counterRecorder) IncrementPollsAnswered(_ context.Context, _, _ uuid.UUID) error {
	c.increments++
	return nil
}

type broadcastRecorder struct {
	events []string
}

func (b *broadcastRecorder) Broadcast(_ uuid.UUID, event string, _ interface{}) {
	b.events = append(b.events, event)
}

type pollFixture struct {
	service  *Service
	session  *models.Session
	store    *fakePolls
	people   *fakeParticipants
	counters *counterRecorder
	rooms    *broadcastRecorder
	voter    uuid.UUID
}

func newPollFixture(t *testing.T) *pollFixture {
	t.Helper()
	fx := &pollFixture{
		session: &models.Session{
			ID:           uuid.New(),
			InstructorID: uuid.New(),
			Status:       models.SessionStatusLive,
			PollsEnabled: true,
		},
		store:    newFakePolls(),
		people:   &fakeParticipants{byUser: make(map[uuid.UUID]*models.Participant)},
		counters: &counterRecorder{},
		rooms:    &broadcastRecorder{},
		voter:    uuid.New(),
	}
	fx.people.byUser[fx.voter] = &models.Participant{
		ID:        uuid.New(),
		SessionID: fx.session.ID,
		UserID:    fx.voter,
		Status:    models.ParticipantStatusJoined,
	}
	fx.service = NewService(&fakeSessions{session: fx.session}, fx.store, fx.people, fx.counters, fx.rooms, nil)
	return fx
}

func (fx *pollFixture) draft(t *testing.T, multi bool, options ...string) *models.Poll {
	t.Helper()
	p, err := fx.service.Create(context.Background(), fx.session.ID, fx.session.InstructorID, CreateParams{
		Question:             "which approach?",
		Options:              options,
		AllowMultipleAnswers: multi,
	})
	require.NoError(t, err)
	return p
}

func (fx *pollFixture) active(t *testing.T, multi bool, options ...string) *models.Poll {
	t.Helper()
	p := fx.draft(t, multi, options...)
	started, err := fx.service.Start(context.Background(), fx.session.ID, fx.session.InstructorID, p.ID)
	require.NoError(t, err)
	return started
}

func TestCreateValidation(t *testing.T) {
	fx := newPollFixture(t)
	instructor := fx.session.InstructorID

	_, err := fx.service.Create(context.Background(), fx.session.ID, instructor, CreateParams{Question: " ", Options: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = fx.service.Create(context.Background(), fx.session.ID, instructor, CreateParams{Question: "q", Options: []string{"only one"}})
	assert.ErrorIs(t, err, ErrTooFewOptions)

	_, err = fx.service.Create(context.Background(), fx.session.ID, instructor, CreateParams{Question: "q", Options: []string{"a", "  "}})
	assert.ErrorIs(t, err, ErrEmptyOption)

	_, err = fx.service.Create(context.Background(), fx.session.ID, uuid.New(), CreateParams{Question: "q", Options: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrNotInstructor)

	fx.session.PollsEnabled = false
	_, err = fx.service.Create(context.Background(), fx.session.ID, instructor, CreateParams{Question: "q", Options: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrPollsDisabled)
}

func TestStartIsForwardOnly(t *testing.T) {
	fx := newPollFixture(t)
	p := fx.draft(t, false, "yes", "no")

	_, err := fx.service.Start(context.Background(), fx.session.ID, uuid.New(), p.ID)
	assert.ErrorIs(t, err, ErrNotInstructor)

	started, err := fx.service.Start(context.Background(), fx.session.ID, fx.session.InstructorID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusActive, started.Status)
	assert.Contains(t, fx.rooms.events, "poll_started")

	_, err = fx.service.Start(context.Background(), fx.session.ID, fx.session.InstructorID, p.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestStartComputesDeadline(t *testing.T) {
	fx := newPollFixture(t)
	duration := 60
	p, err := fx.service.Create(context.Background(), fx.session.ID, fx.session.InstructorID, CreateParams{
		Question:        "quick check",
		Options:         []string{"got it", "lost"},
		DurationSeconds: &duration,
	})
	require.NoError(t, err)

	base := time.Now()
	fx.service.now = func() time.Time { return base }
	started, err := fx.service.Start(context.Background(), fx.session.ID, fx.session.InstructorID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, started.EndsAt)
	assert.Equal(t, base.Add(time.Minute), *started.EndsAt)

	// Past the deadline the poll refuses ballots even while still active.
	fx.service.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, []uuid.UUID{started.Options[0].ID})
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestVoteValidation(t *testing.T) {
	fx := newPollFixture(t)
	p := fx.active(t, false, "red", "green", "blue")

	_, err := fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, nil)
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, []uuid.UUID{p.Options[0].ID, p.Options[1].ID})
	assert.ErrorIs(t, err, ErrSingleChoice)

	_, err = fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = fx.service.Vote(context.Background(), fx.session.ID, uuid.New(), p.ID, []uuid.UUID{p.Options[0].ID})
	assert.ErrorIs(t, err, ErrNotJoined)

	draft := fx.draft(t, false, "a", "b")
	_, err = fx.service.Vote(context.Background(), fx.session.ID, fx.voter, draft.ID, []uuid.UUID{draft.Options[0].ID})
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestMultiAnswerVoteRejectsDuplicates(t *testing.T) {
	fx := newPollFixture(t)
	p := fx.active(t, true, "mon", "tue", "wed")

	_, err := fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, []uuid.UUID{p.Options[0].ID, p.Options[0].ID})
	assert.ErrorIs(t, err, ErrDuplicateOption)

	res, err := fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, []uuid.UUID{p.Options[0].ID, p.Options[2].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Options[0].VotesCount)
	assert.Equal(t, 0, res.Options[1].VotesCount)
	assert.Equal(t, 1, res.Options[2].VotesCount)
}

func TestRevoteReplacesBallot(t *testing.T) {
	fx := newPollFixture(t)
	p := fx.active(t, false, "tabs", "spaces")

	res, err := fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, []uuid.UUID{p.Options[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Options[0].VotesCount)

	// Changing one's mind moves the vote, never double counts it.
	res, err = fx.service.Vote(context.Background(), fx.session.ID, fx.voter, p.ID, []uuid.UUID{p.Options[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Options[0].VotesCount)
	assert.Equal(t, 1, res.Options[1].VotesCount)

	voters, err := fx.store.CountVoters(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, voters)

	// Engagement counts voting actions, both of them.
	assert.Equal(t, 2, fx.counters.increments)
}

func TestCloseBroadcastsResults(t *testing.T) {
	fx := newPollFixture(t)
	p := fx.active(t, false, "yes", "no")

	closed, err := fx.service.Close(context.Background(), fx.session.ID, fx.session.InstructorID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusClosed, closed.Status)
	assert.Contains(t, fx.rooms.events, "poll_closed")

	_, err = fx.service.Close(context.Background(), fx.session.ID, fx.session.InstructorID, p.ID)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestResultsPercentages(t *testing.T) {
	fx := newPollFixture(t)
	p := fx.active(t, false, "a", "b")

	// No ballots: every option reads zero percent.
	results, err := fx.service.Results(context.Background(), fx.session.ID, p.ID)
	require.NoError(t, err)
	for _, r := range results {
		assert.Zero(t, r.Percent)
	}

	second := uuid.New()
	third := uuid.New()
	for _, u := range []uuid.UUID{second, third} {
		fx.people.byUser[u] = &models.Participant{
			ID: uuid.New(), SessionID: fx.session.ID, UserID: u,
			Status: models.ParticipantStatusJoined,
		}
	}
	for _, u := range []uuid.UUID{fx.voter, second, third} {
		_, err := fx.service.Vote(context.Background(), fx.session.ID, u, p.ID, []uuid.UUID{p.Options[0].ID})
		require.NoError(t, err)
	}
	_, err = fx.service.Vote(context.Background(), fx.session.ID, third, p.ID, []uuid.UUID{p.Options[1].ID})
	require.NoError(t, err)

	results, err = fx.service.Results(context.Background(), fx.session.ID, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 66.66, results[0].Percent, 0.01)
	assert.InDelta(t, 33.33, results[1].Percent, 0.01)
}
