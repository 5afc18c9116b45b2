package polls

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
)

// SessionGetter reads session state for poll gating.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// PollStore is the persistence surface the service needs.
type PollStore interface {
	CreateWithOptions(ctx context.Context, p *models.Poll, options []string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Poll, error)
	MarkActive(ctx context.Context, id uuid.UUID, startedAt time.Time, endsAt *time.Time) (bool, error)
	MarkClosed(ctx context.Context, id uuid.UUID) (bool, error)
	ReplaceVotes(ctx context.Context, pollID, userID uuid.UUID, optionIDs []uuid.UUID) (bool, error)
	CountVoters(ctx context.Context, pollID uuid.UUID) (int, error)
}

// ParticipantReader resolves room membership.
type ParticipantReader interface {
	Participant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
}

// ActivityCounter records per-participant engagement.
type ActivityCounter interface {
	IncrementPollsAnswered(ctx context.Context, sessionID, userID uuid.UUID) error
}

// Broadcaster fans poll events out to the room.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, event string, payload interface{})
}

// CreateParams carries poll creation input.
type CreateParams struct {
	Question             string
	Options              []string
	AllowMultipleAnswers bool
	Anonymous            bool
	DurationSeconds      *int
}

// VoteResult is what a successful ballot returns.
type VoteResult struct {
	PollID  uuid.UUID           `json:"poll_id"`
	Options []models.PollOption `json:"options"`
}

// Service drives the poll lifecycle: draft -> active -> closed, forward only.
// A re-vote replaces the whole ballot.
type Service struct {
	sessions     SessionGetter
	store        PollStore
	participants ParticipantReader
	counters     ActivityCounter
	rooms        Broadcaster
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a polls service.
func NewService(sessions SessionGetter, store PollStore, participants ParticipantReader, counters ActivityCounter, rooms Broadcaster, logger *zap.Logger) *Service {
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

// Create drafts a poll with at least two options. Instructor only.
func (s *Service) Create(ctx context.Context, sessionID, actorID uuid.UUID, params CreateParams) (*models.Poll, error) {
	params.Question = strings.TrimSpace(params.Question)
	if params.Question == "" {
		return nil, ErrEmptyQuestion
	}
	options := make([]string, 0, len(params.Options))
	for _, opt := range params.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return nil, ErrEmptyOption
		}
		options = append(options, opt)
	}
	if len(options) < 2 {
		return nil, ErrTooFewOptions
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.InstructorID != actorID {
		return nil, ErrNotInstructor
	}
	if !sess.PollsEnabled {
		return nil, ErrPollsDisabled
	}

	p := &models.Poll{
		SessionID:            sessionID,
		CreatedBy:            actorID,
		Question:             params.Question,
		AllowMultipleAnswers: params.AllowMultipleAnswers,
		Anonymous:            params.Anonymous,
		DurationSeconds:      params.DurationSeconds,
	}
	if err := s.store.CreateWithOptions(ctx, p, options); err != nil {
		return nil, err
	}
	return p, nil
}

// Start opens a draft poll for voting and announces it to the room.
func (s *Service) Start(ctx context.Context, sessionID, actorID, pollID uuid.UUID) (*models.Poll, error) {
	p, err := s.getInSession(ctx, sessionID, pollID)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.InstructorID != actorID {
		return nil, ErrNotInstructor
	}
	if sess.Status != models.SessionStatusLive {
		return nil, ErrSessionNotLive
	}

	startedAt := s.now()
	var endsAt *time.Time
	if p.DurationSeconds != nil && *p.DurationSeconds > 0 {
		t := startedAt.Add(time.Duration(*p.DurationSeconds) * time.Second)
		endsAt = &t
	}
	ok, err := s.store.MarkActive(ctx, p.ID, startedAt, endsAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotDraft
	}
	p.Status = models.PollStatusActive
	p.StartedAt = &startedAt
	p.EndsAt = endsAt
	s.rooms.Broadcast(sessionID, "poll_started", p)
	return p, nil
}

// Close ends voting and broadcasts final results.
func (s *Service) Close(ctx context.Context, sessionID, actorID, pollID uuid.UUID) (*models.Poll, error) {
	p, err := s.getInSession(ctx, sessionID, pollID)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.InstructorID != actorID {
		return nil, ErrNotInstructor
	}
	ok, err := s.store.MarkClosed(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotActive
	}
	p.Status = models.PollStatusClosed
	results, err := s.Results(ctx, sessionID, pollID)
	if err != nil {
		return nil, err
	}
	s.rooms.Broadcast(sessionID, "poll_closed", map[string]interface{}{
		"poll_id": p.ID,
		"results": results,
	})
	return p, nil
}

// Vote records the user's ballot, replacing any prior one. Single-choice
// polls take exactly one option; multi-answer polls take a distinct set.
func (s *Service) Vote(ctx context.Context, sessionID, userID, pollID uuid.UUID, optionIDs []uuid.UUID) (*VoteResult, error) {
	if len(optionIDs) == 0 {
		return nil, ErrNoSelection
	}
	p, err := s.getInSession(ctx, sessionID, pollID)
	if err != nil {
		return nil, err
	}
	if !p.Open(s.now()) {
		return nil, ErrPollClosed
	}
	if !p.AllowMultipleAnswers && len(optionIDs) > 1 {
		return nil, ErrSingleChoice
	}
	valid := make(map[uuid.UUID]bool, len(p.Options))
	for _, opt := range p.Options {
		valid[opt.ID] = true
	}
	seen := make(map[uuid.UUID]bool, len(optionIDs))
	for _, id := range optionIDs {
		if !valid[id] {
			return nil, ErrUnknownOption
		}
		if seen[id] {
			return nil, ErrDuplicateOption
		}
		seen[id] = true
	}

	participant, err := s.participants.Participant(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if participant == nil || participant.Status != models.ParticipantStatusJoined {
		return nil, ErrNotJoined
	}

	if _, err := s.store.ReplaceVotes(ctx, pollID, userID, optionIDs); err != nil {
		return nil, err
	}
	// Engagement counts voting actions, re-votes included.
	if err := s.counters.IncrementPollsAnswered(ctx, sessionID, userID); err != nil {
		s.logger.Warn("poll counter increment failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}

	fresh, err := s.store.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	s.rooms.Broadcast(sessionID, "poll_votes", map[string]interface{}{
		"poll_id": pollID,
		"options": fresh.Options,
	})
	return &VoteResult{PollID: pollID, Options: fresh.Options}, nil
}

// Results computes each option's share. An empty poll yields zero percent
// across the board.
func (s *Service) Results(ctx context.Context, sessionID, pollID uuid.UUID) ([]models.PollOptionResult, error) {
	p, err := s.getInSession(ctx, sessionID, pollID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, opt := range p.Options {
		total += opt.VotesCount
	}
	results := make([]models.PollOptionResult, 0, len(p.Options))
	for _, opt := range p.Options {
		r := models.PollOptionResult{
			OptionID:   opt.ID,
			Text:       opt.Text,
			VotesCount: opt.VotesCount,
		}
		if total > 0 {
			r.Percent = float64(opt.VotesCount) / float64(total) * 100
		}
		results = append(results, r)
	}
	return results, nil
}

// List returns the session's polls. Draft polls are instructor-only; the
// handler filters for non-owners.
func (s *Service) List(ctx context.Context, sessionID uuid.UUID) ([]models.Poll, error) {
	return s.store.ListBySession(ctx, sessionID)
}

func (s *Service) getInSession(ctx context.Context, sessionID, pollID uuid.UUID) (*models.Poll, error) {
	p, err := s.store.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.SessionID != sessionID {
		return nil, ErrNotFound
	}
	return p, nil
}
