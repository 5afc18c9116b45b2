package presence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehive/live-backend/internal/models"
)

const participantColumns = `id, session_id, user_id, status, joined_at, left_at, duration_seconds,
	chat_messages_count, questions_asked, polls_answered,
	can_unmute, can_share_screen, is_moderator, created_at, updated_at`

// Repository handles participant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.Status, &p.JoinedAt, &p.LeftAt, &p.DurationSeconds,
		&p.ChatMessagesCount, &p.QuestionsAsked, &p.PollsAnswered,
		&p.CanUnmute, &p.CanShareScreen, &p.IsModerator, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns the participant row for (session, user), or nil when absent.
func (r *Repository) Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM session_participants WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// Create inserts a fresh participant row. The unique (session_id, user_id)
// constraint makes concurrent first joins converge on one row.
func (r *Repository) Create(ctx context.Context, p *models.Participant) error {
	const query = `INSERT INTO session_participants (id, session_id, user_id, status, joined_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (session_id, user_id) DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, p.SessionID, p.UserID, p.Status, p.JoinedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race; the caller re-reads the surviving row.
		existing, gerr := r.Get(ctx, p.SessionID, p.UserID)
		if gerr != nil {
			return gerr
		}
		if existing == nil {
			return ErrParticipantGone
		}
		*p = *existing
		return nil
	}
	return err
}

// MarkJoined flips a non-joined participant to joined, stamping joined_at.
// Returns false when the row was already joined (idempotent rejoin).
func (r *Repository) MarkJoined(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const query = `UPDATE session_participants
		SET status = 'joined', joined_at = $2, left_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('registered', 'left')`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLeft closes the open interval, accruing duration atomically. Returns
// false when the participant was not joined (repeat leave).
func (r *Repository) MarkLeft(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const query = `UPDATE session_participants
		SET status = 'left', left_at = $2,
		    duration_seconds = duration_seconds + GREATEST(0, EXTRACT(EPOCH FROM ($2 - joined_at))::BIGINT),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'joined'`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CloseAllJoined force-transitions every joined participant to left at the
// given instant, closing duration accrual. Returns the number closed.
func (r *Repository) CloseAllJoined(ctx context.Context, sessionID uuid.UUID, at time.Time) (int, error) {
	const query = `UPDATE session_participants
		SET status = 'left', left_at = $2,
		    duration_seconds = duration_seconds + GREATEST(0, EXTRACT(EPOCH FROM ($2 - joined_at))::BIGINT),
		    updated_at = NOW()
		WHERE session_id = $1 AND status = 'joined'`
	tag, err := r.pool.Exec(ctx, query, sessionID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// MarkBanned sets the terminal banned status, closing any open interval.
func (r *Repository) MarkBanned(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE session_participants
		SET status = 'banned', left_at = $2,
		    duration_seconds = duration_seconds + CASE WHEN status = 'joined'
		        THEN GREATEST(0, EXTRACT(EPOCH FROM ($2 - joined_at))::BIGINT) ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

// CountJoined returns the number of currently joined participants.
func (r *Repository) CountJoined(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_participants WHERE session_id = $1 AND status = 'joined'`,
		sessionID).Scan(&n)
	return n, err
}

// ListBySession returns every participant row for the session.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM session_participants WHERE session_id = $1 ORDER BY created_at`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// UpdatePermissions sets moderation flags for a participant.
func (r *Repository) UpdatePermissions(ctx context.Context, id uuid.UUID, canUnmute, canShareScreen, isModerator bool) error {
	const query = `UPDATE session_participants
		SET can_unmute = $2, can_share_screen = $3, is_moderator = $4, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, canUnmute, canShareScreen, isModerator)
	return err
}

// IncrementChatMessages bumps the chat counter atomically.
func (r *Repository) IncrementChatMessages(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_participants SET chat_messages_count = chat_messages_count + 1, updated_at = NOW()
		 WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	return err
}

// IncrementQuestionsAsked bumps the question counter atomically.
func (r *Repository) IncrementQuestionsAsked(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_participants SET questions_asked = questions_asked + 1, updated_at = NOW()
		 WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	return err
}

// IncrementPollsAnswered bumps the poll counter atomically.
func (r *Repository) IncrementPollsAnswered(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_participants SET polls_answered = polls_answered + 1, updated_at = NOW()
		 WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	return err
}
