package questions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehive/live-backend/internal/models"
)

const questionColumns = `id, session_id, user_id, text, status, upvotes, anonymous,
	answer, answered_by, answered_at, created_at`

// Repository handles question persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.SessionID, &q.UserID, &q.Text, &q.Status, &q.Upvotes, &q.Anonymous,
		&q.Answer, &q.AnsweredBy, &q.AnsweredAt, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Create inserts a new pending question.
func (r *Repository) Create(ctx context.Context, q *models.Question) error {
	const query = `INSERT INTO questions (id, session_id, user_id, text, anonymous)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, status, created_at`
	return r.pool.QueryRow(ctx, query, q.SessionID, q.UserID, q.Text, q.Anonymous).
		Scan(&q.ID, &q.Status, &q.CreatedAt)
}

// GetByID returns a question by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// ListBySession returns questions ordered by upvotes, then age. An empty
// status lists everything.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID, status models.QuestionStatus) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE session_id = $1`
	args := []interface{}{sessionID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY upvotes DESC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// MarkAnswered transitions pending -> answered, recording the answer. Returns
// false when the question was already finalized.
func (r *Repository) MarkAnswered(ctx context.Context, id, answeredBy uuid.UUID, answer string, at time.Time) (bool, error) {
	const query = `UPDATE questions
		SET status = 'answered', answer = $2, answered_by = $3, answered_at = $4
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, query, id, answer, answeredBy, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDismissed transitions pending -> dismissed. Returns false when the
// question was already finalized.
func (r *Repository) MarkDismissed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions SET status = 'dismissed' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementUpvotes bumps the counter atomically and returns the new total.
func (r *Repository) IncrementUpvotes(ctx context.Context, id uuid.UUID) (int, error) {
	var upvotes int
	err := r.pool.QueryRow(ctx,
		`UPDATE questions SET upvotes = upvotes + 1 WHERE id = $1 RETURNING upvotes`, id).
		Scan(&upvotes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return upvotes, err
}
