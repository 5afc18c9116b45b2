package recordings

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
)

// CompletionFraction of the recording's duration a viewer must watch before
// the view counts as completed.
const CompletionFraction = 0.9

// ViewStore is the persistence surface the view tracker needs.
type ViewStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	InsertViewIfAbsent(ctx context.Context, recordingID, userID uuid.UUID) (bool, error)
	IncrementViews(ctx context.Context, recordingID uuid.UUID) error
	UpdateViewProgress(ctx context.Context, recordingID, userID uuid.UUID, watchSeconds, lastPosition int, completed bool) (*models.RecordingView, error)
}

// Service tracks watch progress. The views counter counts distinct viewers,
// bumped exactly once on a user's first view.
type Service struct {
	store  ViewStore
	logger *zap.Logger
}

// NewService creates a recordings view service.
func NewService(store ViewStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// TrackView records a progress report for (recording, user). Watch time is
// monotonic, completion latches at the threshold and a recording with unknown
// duration never completes.
func (s *Service) TrackView(ctx context.Context, recordingID, userID uuid.UUID, watchSeconds, lastPosition int) (*models.RecordingView, error) {
	if watchSeconds < 0 || lastPosition < 0 {
		return nil, ErrNegativeProgress
	}
	rec, err := s.store.GetByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.ProcessingStatus != models.RecordingStatusReady {
		return nil, ErrNotReady
	}

	first, err := s.store.InsertViewIfAbsent(ctx, recordingID, userID)
	if err != nil {
		return nil, err
	}
	if first {
		if err := s.store.IncrementViews(ctx, recordingID); err != nil {
			s.logger.Warn("views counter increment failed",
				zap.String("recording_id", recordingID.String()), zap.Error(err))
		}
	}

	completed := false
	if rec.DurationSeconds > 0 {
		completed = float64(watchSeconds) >= CompletionFraction*float64(rec.DurationSeconds)
	}
	return s.store.UpdateViewProgress(ctx, recordingID, userID, watchSeconds, lastPosition, completed)
}
