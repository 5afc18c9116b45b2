package recordings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehive/live-backend/internal/models"
)

const recordingColumns = `id, session_id, title, original_url, s3_url, s3_key,
	duration_seconds, file_size, processing_status, views_count, created_at, updated_at`

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Title, &rec.OriginalURL, &rec.S3URL, &rec.S3Key,
		&rec.DurationSeconds, &rec.FileSize, &rec.ProcessingStatus, &rec.ViewsCount,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a pending recording.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const query = `INSERT INTO recordings (id, session_id, title, original_url, duration_seconds, file_size)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, processing_status, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, rec.SessionID, rec.Title, rec.OriginalURL,
		rec.DurationSeconds, rec.FileSize).
		Scan(&rec.ID, &rec.ProcessingStatus, &rec.CreatedAt, &rec.UpdatedAt)
}

// GetByID returns one recording.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	rec, err := scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListBySession returns the session's recordings, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Recording, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE session_id = $1 ORDER BY created_at DESC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// UpdateStatus moves the processing state machine.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE recordings SET processing_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

// ClaimForProcessing flips pending -> processing. Returns false when another
// worker already holds the job.
func (r *Repository) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recordings SET processing_status = 'processing', updated_at = NOW()
		 WHERE id = $1 AND processing_status IN ('pending', 'failed')`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkReady records the S3 result and flips the status to ready.
func (r *Repository) MarkReady(ctx context.Context, id uuid.UUID, s3URL, s3Key string, fileSize int64) error {
	const query = `UPDATE recordings
		SET processing_status = 'ready', s3_url = $2, s3_key = $3,
		    file_size = CASE WHEN $4 > 0 THEN $4 ELSE file_size END,
		    updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, s3URL, s3Key, fileSize)
	return err
}

// InsertViewIfAbsent creates the (recording, user) view row. Returns true on
// the first view; a replay leaves the existing row untouched.
func (r *Repository) InsertViewIfAbsent(ctx context.Context, recordingID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO recording_views (id, recording_id, user_id)
		 VALUES (gen_random_uuid(), $1, $2)
		 ON CONFLICT (recording_id, user_id) DO NOTHING`, recordingID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementViews bumps the distinct viewer counter.
func (r *Repository) IncrementViews(ctx context.Context, recordingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE recordings SET views_count = views_count + 1, updated_at = NOW() WHERE id = $1`,
		recordingID)
	return err
}

// UpdateViewProgress advances a view. Watch time only grows and completion
// never reverts; stale or rewinding reports cannot shrink either.
func (r *Repository) UpdateViewProgress(ctx context.Context, recordingID, userID uuid.UUID, watchSeconds, lastPosition int, completed bool) (*models.RecordingView, error) {
	const query = `UPDATE recording_views
		SET watch_seconds = GREATEST(watch_seconds, $3),
		    last_position = $4,
		    completed = completed OR $5,
		    updated_at = NOW()
		WHERE recording_id = $1 AND user_id = $2
		RETURNING id, recording_id, user_id, watch_seconds, last_position, completed, created_at, updated_at`
	var v models.RecordingView
	err := r.pool.QueryRow(ctx, query, recordingID, userID, watchSeconds, lastPosition, completed).
		Scan(&v.ID, &v.RecordingID, &v.UserID, &v.WatchSeconds, &v.LastPosition, &v.Completed,
			&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &v, err
}

// ListViews returns every view row for a recording.
func (r *Repository) ListViews(ctx context.Context, recordingID uuid.UUID) ([]models.RecordingView, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, recording_id, user_id, watch_seconds, last_position, completed, created_at, updated_at
		 FROM recording_views WHERE recording_id = $1 ORDER BY created_at`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RecordingView
	for rows.Next() {
		var v models.RecordingView
		if err := rows.Scan(&v.ID, &v.RecordingID, &v.UserID, &v.WatchSeconds, &v.LastPosition,
			&v.Completed, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
