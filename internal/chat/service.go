package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
)

// MaxMessageLength caps a single chat message body.
const MaxMessageLength = 2000

// SessionGetter reads session state for chat gating.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// MessageStore is the persistence surface the service needs.
type MessageStore interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int, before *uuid.UUID) ([]models.ChatMessage, error)
	ListPinned(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error)
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	IncrementLikes(ctx context.Context, id uuid.UUID) (int, error)
}

// ParticipantReader resolves room membership and moderation flags.
type ParticipantReader interface {
	Participant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
}

// ActivityCounter records per-participant engagement.
type ActivityCounter interface {
	IncrementChatMessages(ctx context.Context, sessionID, userID uuid.UUID) error
}

// Broadcaster fans chat events out to the room.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, event string, payload interface{})
}

// Service enforces chat semantics: only joined participants of a live session
// with chat enabled may post, and moderation leaves tombstones.
type Service struct {
	sessions     SessionGetter
	messages     MessageStore
	participants ParticipantReader
	counters     ActivityCounter
	rooms        Broadcaster
	logger       *zap.Logger
}

// NewService creates a chat service.
func NewService(sessions SessionGetter, messages MessageStore, participants ParticipantReader, counters ActivityCounter, rooms Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:     sessions,
		messages:     messages,
		participants: participants,
		counters:     counters,
		rooms:        rooms,
		logger:       logger,
	}
}

// Send appends a user message and broadcasts it to the room.
func (s *Service) Send(ctx context.Context, sessionID, userID uuid.UUID, content string, msgType models.MessageType, replyTo *uuid.UUID) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > MaxMessageLength {
		return nil, ErrTooLong
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionStatusLive {
		return nil, ErrSessionNotLive
	}
	if !sess.ChatEnabled {
		return nil, ErrChatDisabled
	}
	p, err := s.participants.Participant(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Status != models.ParticipantStatusJoined {
		return nil, ErrNotJoined
	}

	m := &models.ChatMessage{
		SessionID: sessionID,
		UserID:    &userID,
		Content:   content,
		Type:      msgType,
		ReplyToID: replyTo,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := s.counters.IncrementChatMessages(ctx, sessionID, userID); err != nil {
		s.logger.Warn("chat counter increment failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}
	s.rooms.Broadcast(sessionID, "chat_message", m)
	return m, nil
}

// SendSystem appends an engine-generated message. No participant gate; the
// author column stays NULL.
func (s *Service) SendSystem(ctx context.Context, sessionID uuid.UUID, content string) (*models.ChatMessage, error) {
	m := &models.ChatMessage{
		SessionID: sessionID,
		Content:   content,
		Type:      models.MessageTypeSystem,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	s.rooms.Broadcast(sessionID, "chat_message", m)
	return m, nil
}

// History returns a page of the session's messages in chronological order.
func (s *Service) History(ctx context.Context, sessionID uuid.UUID, limit int, before *uuid.UUID) ([]models.ChatMessage, error) {
	return s.messages.ListBySession(ctx, sessionID, limit, before)
}

// Pinned returns the session's pinned messages.
func (s *Service) Pinned(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	return s.messages.ListPinned(ctx, sessionID)
}

// Pin sets or clears a message's pin flag. Instructor or moderator only.
func (s *Service) Pin(ctx context.Context, sessionID, actorID, messageID uuid.UUID, pinned bool) (*models.ChatMessage, error) {
	m, err := s.getInSession(ctx, sessionID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, sessionID, actorID); err != nil {
		return nil, err
	}
	if err := s.messages.SetPinned(ctx, m.ID, pinned); err != nil {
		return nil, err
	}
	m.Pinned = pinned
	event := "message_pinned"
	if !pinned {
		event = "message_unpinned"
	}
	s.rooms.Broadcast(sessionID, event, m)
	return m, nil
}

// Edit rewrites a message body. Author only, and never on a deleted message.
func (s *Service) Edit(ctx context.Context, sessionID, actorID, messageID uuid.UUID, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > MaxMessageLength {
		return nil, ErrTooLong
	}
	m, err := s.getInSession(ctx, sessionID, messageID)
	if err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, ErrDeleted
	}
	if m.UserID == nil || *m.UserID != actorID {
		return nil, ErrNotAuthor
	}
	if err := s.messages.UpdateContent(ctx, m.ID, content); err != nil {
		return nil, err
	}
	m.Content = content
	m.Edited = true
	s.rooms.Broadcast(sessionID, "message_edited", m)
	return m, nil
}

// Delete tombstones a message. The author may delete their own; instructors
// and moderators may delete anyone's.
func (s *Service) Delete(ctx context.Context, sessionID, actorID, messageID uuid.UUID) error {
	m, err := s.getInSession(ctx, sessionID, messageID)
	if err != nil {
		return err
	}
	if m.Deleted {
		return ErrDeleted
	}
	if m.UserID == nil || *m.UserID != actorID {
		if err := s.requireModerator(ctx, sessionID, actorID); err != nil {
			return err
		}
	}
	if err := s.messages.SoftDelete(ctx, m.ID); err != nil {
		return err
	}
	s.rooms.Broadcast(sessionID, "message_deleted", map[string]interface{}{
		"session_id": sessionID,
		"message_id": m.ID,
	})
	return nil
}

// Like bumps the like counter and broadcasts the new total. Same gates as
// Send: live session, chat enabled, joined caller.
func (s *Service) Like(ctx context.Context, sessionID, userID, messageID uuid.UUID) (int, error) {
	m, err := s.getInSession(ctx, sessionID, messageID)
	if err != nil {
		return 0, err
	}
	if m.Deleted {
		return 0, ErrDeleted
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if sess.Status != models.SessionStatusLive {
		return 0, ErrSessionNotLive
	}
	if !sess.ChatEnabled {
		return 0, ErrChatDisabled
	}
	p, err := s.participants.Participant(ctx, sessionID, userID)
	if err != nil {
		return 0, err
	}
	if p == nil || p.Status != models.ParticipantStatusJoined {
		return 0, ErrNotJoined
	}
	likes, err := s.messages.IncrementLikes(ctx, m.ID)
	if err != nil {
		return 0, err
	}
	s.rooms.Broadcast(sessionID, "message_liked", map[string]interface{}{
		"session_id": sessionID,
		"message_id": m.ID,
		"likes":      likes,
	})
	return likes, nil
}

// getInSession loads the message and rejects cross-session access.
func (s *Service) getInSession(ctx context.Context, sessionID, messageID uuid.UUID) (*models.ChatMessage, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.SessionID != sessionID {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *Service) requireModerator(ctx context.Context, sessionID, actorID uuid.UUID) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.InstructorID == actorID {
		return nil
	}
	p, err := s.participants.Participant(ctx, sessionID, actorID)
	if err != nil {
		return err
	}
	if p == nil || !p.IsModerator {
		return ErrNotModerator
	}
	return nil
}
