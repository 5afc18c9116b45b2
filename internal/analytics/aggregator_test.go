package analytics

import (
	"context"
	"testing"

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

type fakeStats struct {
	parts ParticipantCounts
	att   AttendanceCounts
	eng   EngagementCounts
}

func (f *fakeStats) ParticipantCounts(_ context.Context, _ uuid.UUID) (*ParticipantCounts, error) {
	out := f.parts
	return &out, nil
}

func (f *fakeStats) AttendanceCounts(_ context.Context, _ uuid.UUID) (*AttendanceCounts, error) {
	out := f.att
	return &out, nil
}

func (f *fakeStats) EngagementCounts(_ context.Context, _ uuid.UUID) (*EngagementCounts, error) {
	out := f.eng
	return &out, nil
}

func TestSummarizeEmptySession(t *testing.T) {
	sess := &models.Session{ID: uuid.New(), Status: models.SessionStatusEnded}
	agg := NewAggregator(&fakeSessions{session: sess}, &fakeStats{})

	s, err := agg.Summarize(context.Background(), sess.ID)
	require.NoError(t, err)

	// Nothing happened: every ratio reads zero, nothing divides by zero.
	assert.Zero(t, s.AvgWatchSeconds)
	assert.Zero(t, s.PresentRatePercent)
	assert.Zero(t, s.ConversionRatePercent)
	assert.Zero(t, s.PollParticipationPercent)
	assert.Zero(t, s.PollVotes)
	assert.Zero(t, s.NoShow)
}

func TestSummarizeComputesRatios(t *testing.T) {
	sess := &models.Session{ID: uuid.New(), Status: models.SessionStatusEnded}
	stats := &fakeStats{
		parts: ParticipantCounts{
			Registered:    100,
			EverJoined:    80,
			CurrentlyLive: 0,
			Banned:        2,
			TotalDuration: 80 * 1800,
		},
		att: AttendanceCounts{Records: 80, MarkedPresent: 60, AvgPercentage: 71.5},
		eng: EngagementCounts{
			Messages:        420,
			Questions:       35,
			AnsweredQs:      20,
			Polls:           3,
			PollVotes:       55,
			PollVoters:      40,
			RecordingViews:  150,
			CompletedViews:  90,
			DistinctViewers: 120,
		},
	}
	agg := NewAggregator(&fakeSessions{session: sess}, stats)

	s, err := agg.Summarize(context.Background(), sess.ID)
	require.NoError(t, err)

	assert.Equal(t, 100, s.Registered)
	assert.Equal(t, 80, s.Attended)
	assert.Equal(t, 20, s.NoShow)
	assert.Equal(t, int64(1800), s.AvgWatchSeconds)
	assert.InDelta(t, 75.0, s.PresentRatePercent, 1e-9)
	assert.InDelta(t, 80.0, s.ConversionRatePercent, 1e-9)
	assert.Equal(t, int64(55), s.PollVotes)
	assert.InDelta(t, 50.0, s.PollParticipationPercent, 1e-9)
	assert.InDelta(t, 71.5, s.AvgAttendancePercent, 1e-9)
	assert.Equal(t, int64(150), s.RecordingViews)
	assert.Equal(t, 90, s.RecordingCompletes)
	assert.Equal(t, 120, s.DistinctRecViewers)
}

func TestSummarizeClampsNoShow(t *testing.T) {
	// Walk-ins can outnumber registrations on public sessions.
	sess := &models.Session{ID: uuid.New(), Status: models.SessionStatusLive}
	stats := &fakeStats{parts: ParticipantCounts{Registered: 5, EverJoined: 9}}
	agg := NewAggregator(&fakeSessions{session: sess}, stats)

	s, err := agg.Summarize(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Zero(t, s.NoShow)
	assert.InDelta(t, 180.0, s.ConversionRatePercent, 1e-9)
}
