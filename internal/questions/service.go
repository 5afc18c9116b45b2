package questions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
)

// MaxQuestionLength caps the question body.
const MaxQuestionLength = 1000

// SessionGetter reads session state for Q&A gating.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// QuestionStore is the persistence surface the service needs.
type QuestionStore interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, status models.QuestionStatus) ([]models.Question, error)
	MarkAnswered(ctx context.Context, id, answeredBy uuid.UUID, answer string, at time.Time) (bool, error)
	MarkDismissed(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementUpvotes(ctx context.Context, id uuid.UUID) (int, error)
}

// ParticipantReader resolves room membership.
type ParticipantReader interface {
	Participant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
}

// ActivityCounter records per-participant engagement.
type ActivityCounter interface {
	IncrementQuestionsAsked(ctx context.Context, sessionID, userID uuid.UUID) error
}

// Broadcaster fans Q&A events out to the room.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, event string, payload interface{})
}

// Service enforces Q&A semantics. Answered and dismissed are terminal;
// upvotes are a raw enthusiasm counter with no per-user cap.
type Service struct {
	sessions     SessionGetter
	store        QuestionStore
	participants ParticipantReader
	counters     ActivityCounter
	rooms        Broadcaster
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a Q&A service.
func NewService(sessions SessionGetter, store QuestionStore, participants ParticipantReader, counters ActivityCounter, rooms Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:     sessions,
		store:        store,
		participants: participants,
		counters:     counters,
		rooms:        rooms,
		logger:       logger,
		now:          time.Now,
	}
}

// Ask submits an audience question and broadcasts it.
func (s *Service) Ask(ctx context.Context, sessionID, userID uuid.UUID, text string, anonymous bool) (*models.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}
	if len(text) > MaxQuestionLength {
		return nil, ErrTooLong
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionStatusLive {
		return nil, ErrSessionNotLive
	}
	if !sess.QAEnabled {
		return nil, ErrQADisabled
	}
	p, err := s.participants.Participant(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Status != models.ParticipantStatusJoined {
		return nil, ErrNotJoined
	}

	q := &models.Question{
		SessionID: sessionID,
		UserID:    userID,
		Text:      text,
		Anonymous: anonymous,
	}
	if err := s.store.Create(ctx, q); err != nil {
		return nil, err
	}
	if err := s.counters.IncrementQuestionsAsked(ctx, sessionID, userID); err != nil {
		s.logger.Warn("question counter increment failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}
	s.rooms.Broadcast(sessionID, "question_asked", s.public(q))
	return q, nil
}

// List returns the session's questions, optionally filtered by status.
func (s *Service) List(ctx context.Context, sessionID uuid.UUID, status models.QuestionStatus) ([]models.Question, error) {
	return s.store.ListBySession(ctx, sessionID, status)
}

// Answer records the instructor's answer. Terminal: a second answer or a
// dismiss afterwards is rejected.
func (s *Service) Answer(ctx context.Context, sessionID, actorID, questionID uuid.UUID, answer string) (*models.Question, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyAnswer
	}
	q, err := s.getInSession(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireInstructor(ctx, sessionID, actorID); err != nil {
		return nil, err
	}
	at := s.now()
	ok, err := s.store.MarkAnswered(ctx, q.ID, actorID, answer, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFinalized
	}
	q.Status = models.QuestionStatusAnswered
	q.Answer = &answer
	q.AnsweredBy = &actorID
	q.AnsweredAt = &at
	s.rooms.Broadcast(sessionID, "question_answered", s.public(q))
	return q, nil
}

// Dismiss discards a pending question without answering it.
func (s *Service) Dismiss(ctx context.Context, sessionID, actorID, questionID uuid.UUID) (*models.Question, error) {
	q, err := s.getInSession(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireInstructor(ctx, sessionID, actorID); err != nil {
		return nil, err
	}
	ok, err := s.store.MarkDismissed(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFinalized
	}
	q.Status = models.QuestionStatusDismissed
	s.rooms.Broadcast(sessionID, "question_dismissed", map[string]interface{}{
		"session_id":  sessionID,
		"question_id": q.ID,
	})
	return q, nil
}

// Upvote bumps the question's counter. Every call counts; repeat upvotes by
// the same user are deliberate, the counter measures enthusiasm not heads.
func (s *Service) Upvote(ctx context.Context, sessionID, userID, questionID uuid.UUID) (int, error) {
	q, err := s.getInSession(ctx, sessionID, questionID)
	if err != nil {
		return 0, err
	}
	p, err := s.participants.Participant(ctx, sessionID, userID)
	if err != nil {
		return 0, err
	}
	if p == nil || p.Status != models.ParticipantStatusJoined {
		return 0, ErrNotJoined
	}
	upvotes, err := s.store.IncrementUpvotes(ctx, q.ID)
	if err != nil {
		return 0, err
	}
	s.rooms.Broadcast(sessionID, "question_upvoted", map[string]interface{}{
		"session_id":  sessionID,
		"question_id": q.ID,
		"upvotes":     upvotes,
	})
	return upvotes, nil
}

// public strips the author from anonymous questions before broadcast.
func (s *Service) public(q *models.Question) map[string]interface{} {
	payload := map[string]interface{}{
		"id":         q.ID,
		"session_id": q.SessionID,
		"text":       q.Text,
		"status":     q.Status,
		"upvotes":    q.Upvotes,
		"anonymous":  q.Anonymous,
		"created_at": q.CreatedAt,
	}
	if !q.Anonymous {
		payload["user_id"] = q.UserID
	}
	if q.Answer != nil {
		payload["answer"] = *q.Answer
		payload["answered_by"] = q.AnsweredBy
		payload["answered_at"] = q.AnsweredAt
	}
	return payload
}

func (s *Service) getInSession(ctx context.Context, sessionID, questionID uuid.UUID) (*models.Question, error) {
	q, err := s.store.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.SessionID != sessionID {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *Service) requireInstructor(ctx context.Context, sessionID, actorID uuid.UUID) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.InstructorID != actorID {
		return ErrNotInstructor
	}
	return nil
}
