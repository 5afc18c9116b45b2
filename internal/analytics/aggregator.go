package analytics

import (
	"context"

	"github.com/google/uuid"

	"github.com/coursehive/live-backend/internal/models"
)

// StatsStore is the aggregate query surface.
type StatsStore interface {
	ParticipantCounts(ctx context.Context, sessionID uuid.UUID) (*ParticipantCounts, error)
	AttendanceCounts(ctx context.Context, sessionID uuid.UUID) (*AttendanceCounts, error)
	EngagementCounts(ctx context.Context, sessionID uuid.UUID) (*EngagementCounts, error)
}

// SessionGetter loads the session being summarized.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Summary is the analytics payload for one session.
type Summary struct {
	SessionID uuid.UUID            `json:"session_id"`
	Status    models.SessionStatus `json:"status"`

	Registered    int `json:"registered"`
	Attended      int `json:"attended"`
	NoShow        int `json:"no_show"`
	CurrentlyLive int `json:"currently_live"`
	Banned        int `json:"banned"`

	AvgWatchSeconds       int64   `json:"avg_watch_seconds"`
	AttendanceRecords     int     `json:"attendance_records"`
	MarkedPresent         int     `json:"marked_present"`
	AvgAttendancePercent  float64 `json:"avg_attendance_percent"`
	PresentRatePercent    float64 `json:"present_rate_percent"`
	ConversionRatePercent float64 `json:"conversion_rate_percent"`

	ChatMessages             int     `json:"chat_messages"`
	Questions                int     `json:"questions"`
	QuestionsAnswered        int     `json:"questions_answered"`
	Polls                    int     `json:"polls"`
	PollVotes                int64   `json:"poll_votes"`
	PollVoters               int     `json:"poll_voters"`
	PollParticipationPercent float64 `json:"poll_participation_percent"`

	RecordingViews      int64 `json:"recording_views"`
	RecordingCompletes  int   `json:"recording_completes"`
	DistinctRecViewers  int   `json:"distinct_recording_viewers"`
}

// Aggregator assembles the per-session summary. Every ratio degrades to zero
// when its denominator is empty.
type Aggregator struct {
	sessions SessionGetter
	store    StatsStore
}

// NewAggregator creates the analytics aggregator.
func NewAggregator(sessions SessionGetter, store StatsStore) *Aggregator {
	return &Aggregator{sessions: sessions, store: store}
}

// Summarize computes the full analytics summary for a session.
func (a *Aggregator) Summarize(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	sess, err := a.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	parts, err := a.store.ParticipantCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	att, err := a.store.AttendanceCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	eng, err := a.store.EngagementCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		SessionID:            sessionID,
		Status:               sess.Status,
		Registered:           parts.Registered,
		Attended:             parts.EverJoined,
		NoShow:               parts.Registered - parts.EverJoined,
		CurrentlyLive:        parts.CurrentlyLive,
		Banned:               parts.Banned,
		AttendanceRecords:    att.Records,
		MarkedPresent:        att.MarkedPresent,
		AvgAttendancePercent: att.AvgPercentage,
		ChatMessages:         eng.Messages,
		Questions:            eng.Questions,
		QuestionsAnswered:    eng.AnsweredQs,
		Polls:                eng.Polls,
		PollVotes:            eng.PollVotes,
		PollVoters:           eng.PollVoters,
		RecordingViews:       eng.RecordingViews,
		RecordingCompletes:   eng.CompletedViews,
		DistinctRecViewers:   eng.DistinctViewers,
	}
	if s.NoShow < 0 {
		s.NoShow = 0
	}
	if parts.EverJoined > 0 {
		s.AvgWatchSeconds = parts.TotalDuration / int64(parts.EverJoined)
		s.PollParticipationPercent = float64(eng.PollVoters) / float64(parts.EverJoined) * 100
	}
	if att.Records > 0 {
		s.PresentRatePercent = float64(att.MarkedPresent) / float64(att.Records) * 100
	}
	if parts.Registered > 0 {
		s.ConversionRatePercent = float64(parts.EverJoined) / float64(parts.Registered) * 100
	}
	return s, nil
}
