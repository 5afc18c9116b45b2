package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehive/live-backend/internal/models"
)

const recordColumns = `id, session_id, participant_id, user_id, attendance_percentage,
	marked_present, verified_by, verified_at, created_at, updated_at`

// Repository handles attendance record persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecord(row pgx.Row) (*models.AttendanceRecord, error) {
	var a models.AttendanceRecord
	err := row.Scan(&a.ID, &a.SessionID, &a.ParticipantID, &a.UserID, &a.AttendancePercentage,
		&a.MarkedPresent, &a.VerifiedBy, &a.VerifiedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertUnverified writes a computed record, but never over one a human has
// verified. The WHERE clause on the conflict arm makes verified rows inert.
func (r *Repository) UpsertUnverified(ctx context.Context, rec *models.AttendanceRecord) error {
	const query = `INSERT INTO attendance_records
			(id, session_id, participant_id, user_id, attendance_percentage, marked_present)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		ON CONFLICT (session_id, participant_id) DO UPDATE
			SET attendance_percentage = EXCLUDED.attendance_percentage,
			    marked_present = EXCLUDED.marked_present,
			    updated_at = NOW()
			WHERE attendance_records.verified_at IS NULL`
	_, err := r.pool.Exec(ctx, query,
		rec.SessionID, rec.ParticipantID, rec.UserID, rec.AttendancePercentage, rec.MarkedPresent)
	return err
}

// Get returns the record for (session, user).
func (r *Repository) Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.AttendanceRecord, error) {
	a, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetByID returns one record.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AttendanceRecord, error) {
	a, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListBySession returns every record for the session.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE session_id = $1 ORDER BY created_at`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AttendanceRecord
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Verify freezes a record under a reviewer's name. Returns false when the
// record was already verified.
func (r *Repository) Verify(ctx context.Context, id, verifiedBy uuid.UUID, at time.Time, markedPresent bool) (bool, error) {
	const query = `UPDATE attendance_records
		SET marked_present = $4, verified_by = $2, verified_at = $3, updated_at = NOW()
		WHERE id = $1 AND verified_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, id, verifiedBy, at, markedPresent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
