package chat

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehive/live-backend/internal/models"
)

const messageColumns = `id, session_id, user_id, content, message_type, reply_to_id,
	pinned, deleted, edited, likes, created_at, updated_at`

// Repository handles chat message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := row.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Content, &m.Type, &m.ReplyToID,
		&m.Pinned, &m.Deleted, &m.Edited, &m.Likes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create appends a message to the session log.
func (r *Repository) Create(ctx context.Context, m *models.ChatMessage) error {
	const query = `INSERT INTO chat_messages (id, session_id, user_id, content, message_type, reply_to_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, m.SessionID, m.UserID, m.Content, m.Type, m.ReplyToID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns one message.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ListBySession returns messages in chronological order, newest page last.
// A zero limit defaults to 100.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int, before *uuid.UUID) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE session_id = $1`
	args := []interface{}{sessionID}
	if before != nil {
		query += ` AND created_at < (SELECT created_at FROM chat_messages WHERE id = $2)`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse to chronological order for the client.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// ListPinned returns the session's pinned, non-deleted messages.
func (r *Repository) ListPinned(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE session_id = $1 AND pinned AND NOT deleted ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// SetPinned flips the pin flag.
func (r *Repository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_messages SET pinned = $2, updated_at = NOW() WHERE id = $1 AND NOT deleted`,
		id, pinned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateContent rewrites the body of a non-deleted message and marks it edited.
func (r *Repository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_messages SET content = $2, edited = TRUE, updated_at = NOW()
		 WHERE id = $1 AND NOT deleted`, id, content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete tombstones a message. Content is blanked, the row stays.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_messages SET deleted = TRUE, pinned = FALSE, content = '', updated_at = NOW()
		 WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementLikes bumps the like counter atomically and returns the new value.
func (r *Repository) IncrementLikes(ctx context.Context, id uuid.UUID) (int, error) {
	var likes int
	err := r.pool.QueryRow(ctx,
		`UPDATE chat_messages SET likes = likes + 1, updated_at = NOW()
		 WHERE id = $1 AND NOT deleted RETURNING likes`, id).Scan(&likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return likes, err
}
