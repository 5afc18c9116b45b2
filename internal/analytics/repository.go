package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipantCounts aggregates the participant table for one session.
type ParticipantCounts struct {
	Registered     int
	EverJoined     int
	CurrentlyLive  int
	Banned         int
	TotalDuration  int64
	ChatMessages   int64
	QuestionsAsked int64
	PollsAnswered  int64
}

// AttendanceCounts aggregates derived attendance.
type AttendanceCounts struct {
	Records       int
	MarkedPresent int
	AvgPercentage float64
}

// EngagementCounts aggregates interaction tables.
type EngagementCounts struct {
	Messages        int
	Questions       int
	AnsweredQs      int
	Polls           int
	PollVotes       int64
	PollVoters      int
	RecordingViews  int64
	CompletedViews  int
	DistinctViewers int
}

// Repository runs the aggregate queries behind session analytics.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ParticipantCounts aggregates the session's participant rows.
func (r *Repository) ParticipantCounts(ctx context.Context, sessionID uuid.UUID) (*ParticipantCounts, error) {
	const query = `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE joined_at IS NOT NULL),
			COUNT(*) FILTER (WHERE status = 'joined'),
			COUNT(*) FILTER (WHERE status = 'banned'),
			COALESCE(SUM(duration_seconds), 0),
			COALESCE(SUM(chat_messages_count), 0),
			COALESCE(SUM(questions_asked), 0),
			COALESCE(SUM(polls_answered), 0)
		FROM session_participants WHERE session_id = $1`
	var c ParticipantCounts
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&c.Registered, &c.EverJoined, &c.CurrentlyLive, &c.Banned,
		&c.TotalDuration, &c.ChatMessages, &c.QuestionsAsked, &c.PollsAnswered)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AttendanceCounts aggregates the session's attendance records.
func (r *Repository) AttendanceCounts(ctx context.Context, sessionID uuid.UUID) (*AttendanceCounts, error) {
	const query = `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE marked_present),
			COALESCE(AVG(attendance_percentage), 0)
		FROM attendance_records WHERE session_id = $1`
	var c AttendanceCounts
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(&c.Records, &c.MarkedPresent, &c.AvgPercentage)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// EngagementCounts aggregates chat, Q&A, poll and recording activity.
func (r *Repository) EngagementCounts(ctx context.Context, sessionID uuid.UUID) (*EngagementCounts, error) {
	var c EngagementCounts

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE session_id = $1 AND NOT deleted AND message_type <> 'system'`,
		sessionID).Scan(&c.Messages)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'answered')
		 FROM questions WHERE session_id = $1`, sessionID).Scan(&c.Questions, &c.AnsweredQs)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM polls WHERE session_id = $1 AND status <> 'draft'`, sessionID).
		Scan(&c.Polls)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT pv.user_id)
		 FROM poll_votes pv JOIN polls p ON p.id = pv.poll_id
		 WHERE p.session_id = $1`, sessionID).Scan(&c.PollVotes, &c.PollVoters)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(views_count), 0) FROM recordings WHERE session_id = $1`, sessionID).
		Scan(&c.RecordingViews)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE rv.completed), COUNT(DISTINCT rv.user_id)
		 FROM recording_views rv JOIN recordings r ON r.id = rv.recording_id
		 WHERE r.session_id = $1`, sessionID).Scan(&c.CompletedViews, &c.DistinctViewers)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
