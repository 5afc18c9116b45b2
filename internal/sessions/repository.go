package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehive/live-backend/internal/models"
)

const sessionColumns = `id, course_id, instructor_id, title, description,
	scheduled_start, scheduled_end, actual_start, actual_end, status, capacity,
	chat_enabled, qa_enabled, polls_enabled, recording_enabled,
	requires_enrollment, is_public, password_hash, stream_key, channel_id,
	created_at, updated_at`

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.CourseID, &s.InstructorID, &s.Title, &s.Description,
		&s.ScheduledStart, &s.ScheduledEnd, &s.ActualStart, &s.ActualEnd, &s.Status, &s.Capacity,
		&s.ChatEnabled, &s.QAEnabled, &s.PollsEnabled, &s.RecordingEnabled,
		&s.RequiresEnrollment, &s.IsPublic, &s.PasswordHash, &s.StreamKey, &s.ChannelID,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const query = `INSERT INTO live_sessions
		(id, course_id, instructor_id, title, description, scheduled_start, scheduled_end, status, capacity,
		 chat_enabled, qa_enabled, polls_enabled, recording_enabled,
		 requires_enrollment, is_public, password_hash, stream_key, channel_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, 'scheduled', $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		s.CourseID, s.InstructorID, s.Title, s.Description, s.ScheduledStart, s.ScheduledEnd, s.Capacity,
		s.ChatEnabled, s.QAEnabled, s.PollsEnabled, s.RecordingEnabled,
		s.RequiresEnrollment, s.IsPublic, s.PasswordHash, s.StreamKey, s.ChannelID).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions WHERE id = $1`, id))
}

// List returns sessions filtered by course and/or status.
func (r *Repository) List(ctx context.Context, courseID *uuid.UUID, status models.SessionStatus) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM live_sessions
		WHERE ($1::uuid IS NULL OR course_id = $1)
		AND ($2::text = '' OR status = $2)
		ORDER BY scheduled_start DESC`
	rows, err := r.pool.Query(ctx, query, courseID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// HasInstructorOverlap reports whether the instructor has another scheduled or
// live session whose window overlaps [start, end).
func (r *Repository) HasInstructorOverlap(ctx context.Context, instructorID uuid.UUID, start, end time.Time) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM live_sessions
		WHERE instructor_id = $1 AND status IN ('scheduled', 'live')
		AND scheduled_start < $3 AND scheduled_end > $2)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, instructorID, start, end).Scan(&ok)
	return ok, err
}

// MarkLive transitions scheduled -> live, stamping actual_start. Returns false
// if the session was not in scheduled state.
func (r *Repository) MarkLive(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const query = `UPDATE live_sessions SET status = 'live', actual_start = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkEnded transitions live -> ended, stamping actual_end. Returns false if
// the session was not live.
func (r *Repository) MarkEnded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const query = `UPDATE live_sessions SET status = 'ended', actual_end = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'live'`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled transitions scheduled|live -> cancelled. Returns false if the
// session was already terminal.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `UPDATE live_sessions SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('scheduled', 'live')`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
