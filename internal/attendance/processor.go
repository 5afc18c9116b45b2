package attendance

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/internal/presence"
)

// PresentThreshold is the attendance percentage at or above which a
// participant counts as present.
const PresentThreshold = 75.0

// SessionGetter loads the session being processed.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// ParticipantLister enumerates the session's participants.
type ParticipantLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
}

// RecordStore writes computed attendance.
type RecordStore interface {
	UpsertUnverified(ctx context.Context, rec *models.AttendanceRecord) error
}

// Processor derives attendance records from accrued presence. One bad row
// does not stop the pass; failures are collected and returned together.
type Processor struct {
	sessions     SessionGetter
	participants ParticipantLister
	records      RecordStore
	logger       *zap.Logger
}

// NewProcessor creates the attendance processor.
func NewProcessor(sessions SessionGetter, participants ParticipantLister, records RecordStore, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		sessions:     sessions,
		participants: participants,
		records:      records,
		logger:       logger,
	}
}

// ProcessSession computes and persists a record for every participant row.
// A registered no-show gets a zero-rate record rather than none.
func (p *Processor) ProcessSession(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	scheduled := sess.ScheduledDurationSeconds()

	list, err := p.participants.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	var errs error
	processed := 0
	for i := range list {
		part := &list[i]
		rate := presence.AttendanceRate(part.DurationSeconds, scheduled)
		rec := &models.AttendanceRecord{
			SessionID:            sessionID,
			ParticipantID:        part.ID,
			UserID:               part.UserID,
			AttendancePercentage: rate,
			MarkedPresent:        rate >= PresentThreshold,
		}
		if err := p.records.UpsertUnverified(ctx, rec); err != nil {
			p.logger.Error("attendance record write failed",
				zap.String("session_id", sessionID.String()),
				zap.String("participant_id", part.ID.String()),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		processed++
	}

	p.logger.Info("attendance pass complete",
		zap.String("session_id", sessionID.String()),
		zap.Int("processed", processed),
		zap.Int("failed", len(list)-processed))
	return errs
}
