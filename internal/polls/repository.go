package polls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehive/live-backend/internal/models"
)

const pollColumns = `id, session_id, created_by, question, status, allow_multiple_answers,
	anonymous, duration_seconds, started_at, ends_at, created_at`

// Repository handles poll persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var p models.Poll
	err := row.Scan(&p.ID, &p.SessionID, &p.CreatedBy, &p.Question, &p.Status, &p.AllowMultipleAnswers,
		&p.Anonymous, &p.DurationSeconds, &p.StartedAt, &p.EndsAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateWithOptions inserts the poll and its ordered options in one
// transaction.
func (r *Repository) CreateWithOptions(ctx context.Context, p *models.Poll, options []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const pollQuery = `INSERT INTO polls (id, session_id, created_by, question, allow_multiple_answers, anonymous, duration_seconds)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at`
	if err := tx.QueryRow(ctx, pollQuery, p.SessionID, p.CreatedBy, p.Question,
		p.AllowMultipleAnswers, p.Anonymous, p.DurationSeconds).
		Scan(&p.ID, &p.Status, &p.CreatedAt); err != nil {
		return err
	}

	p.Options = make([]models.PollOption, 0, len(options))
	for i, text := range options {
		opt := models.PollOption{PollID: p.ID, Position: i, Text: text}
		if err := tx.QueryRow(ctx,
			`INSERT INTO poll_options (id, poll_id, position, text)
			 VALUES (gen_random_uuid(), $1, $2, $3) RETURNING id`,
			p.ID, i, text).Scan(&opt.ID); err != nil {
			return err
		}
		p.Options = append(p.Options, opt)
	}
	return tx.Commit(ctx)
}

// GetByID returns the poll with its options.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	p, err := scanPoll(r.pool.QueryRow(ctx,
		`SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Options, err = r.listOptions(ctx, p.ID)
	return p, err
}

// ListBySession returns the session's polls with options, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Poll, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+pollColumns+` FROM polls WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Options, err = r.listOptions(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *Repository) listOptions(ctx context.Context, pollID uuid.UUID) ([]models.PollOption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, poll_id, position, text, votes_count FROM poll_options
		 WHERE poll_id = $1 ORDER BY position`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var options []models.PollOption
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Position, &o.Text, &o.VotesCount); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// MarkActive transitions draft -> active, stamping the voting window. Returns
// false when the poll was not in draft.
func (r *Repository) MarkActive(ctx context.Context, id uuid.UUID, startedAt time.Time, endsAt *time.Time) (bool, error) {
	const query = `UPDATE polls SET status = 'active', started_at = $2, ends_at = $3
		WHERE id = $1 AND status = 'draft'`
	tag, err := r.pool.Exec(ctx, query, id, startedAt, endsAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkClosed transitions active -> closed. Returns false when the poll was
// not active.
func (r *Repository) MarkClosed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE polls SET status = 'closed' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReplaceVotes swaps the user's ballot in one transaction: prior rows are
// removed with their counters decremented, then the new selection is written
// with counters incremented. Counts never drift from the vote rows. Returns
// whether the user had no ballot before.
func (r *Repository) ReplaceVotes(ctx context.Context, pollID, userID uuid.UUID, optionIDs []uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`DELETE FROM poll_votes WHERE poll_id = $1 AND user_id = $2 RETURNING option_id`,
		pollID, userID)
	if err != nil {
		return false, err
	}
	var removed []uuid.UUID
	for rows.Next() {
		var optionID uuid.UUID
		if err := rows.Scan(&optionID); err != nil {
			rows.Close()
			return false, err
		}
		removed = append(removed, optionID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	for _, optionID := range removed {
		if _, err := tx.Exec(ctx,
			`UPDATE poll_options SET votes_count = votes_count - 1 WHERE id = $1`, optionID); err != nil {
			return false, err
		}
	}

	for _, optionID := range optionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO poll_votes (id, poll_id, option_id, user_id)
			 VALUES (gen_random_uuid(), $1, $2, $3)`, pollID, optionID, userID); err != nil {
			return false, err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE poll_options SET votes_count = votes_count + 1 WHERE id = $1`, optionID); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return len(removed) == 0, nil
}

// CountVoters returns the number of distinct users with a ballot.
func (r *Repository) CountVoters(ctx context.Context, pollID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM poll_votes WHERE poll_id = $1`, pollID).Scan(&n)
	return n, err
}
