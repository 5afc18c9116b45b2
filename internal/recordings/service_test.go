package recordings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehive/live-backend/internal/models"
)

type viewKey struct {
	recordingID uuid.UUID
	userID      uuid.UUID
}

type fakeViewStore struct {
	recording  *models.Recording
	views      map[viewKey]*models.RecordingView
	increments int
}

func newFakeViewStore(rec *models.Recording) *fakeViewStore {
	return &fakeViewStore{recording: rec, views: make(map[viewKey]*models.RecordingView)}
}

func (f *fakeViewStore) GetByID(_ context.Context, id uuid.UUID) (*models.Recording, error) {
	if f.recording == nil || f.recording.ID != id {
		return nil, ErrNotFound
	}
	return f.recording, nil
}

func (f *fakeViewStore) InsertViewIfAbsent(_ context.Context, recordingID, userID uuid.UUID) (bool, error) {
	k := viewKey{recordingID, userID}
	if _, ok := f.views[k]; ok {
		return false, nil
	}
	f.views[k] = &models.RecordingView{ID: uuid.New(), RecordingID: recordingID, UserID: userID}
	return true, nil
}

func (f *fakeViewStore) IncrementViews(_ context.Context, _ uuid.UUID) error {
	f.increments++
	f.recording.ViewsCount++
	return nil
}

func (f *fakeViewStore) UpdateViewProgress(_ context.Context, recordingID, userID uuid.UUID, watchSeconds, lastPosition int, completed bool) (*models.RecordingView, error) {
	v := f.views[viewKey{recordingID, userID}]
	if watchSeconds > v.WatchSeconds {
		v.WatchSeconds = watchSeconds
	}
	v.LastPosition = lastPosition
	v.Completed = v.Completed || completed
	out := *v
	return &out, nil
}

func readyRecording(durationSeconds int) *models.Recording {
	return &models.Recording{
		ID:               uuid.New(),
		SessionID:        uuid.New(),
		DurationSeconds:  durationSeconds,
		ProcessingStatus: models.RecordingStatusReady,
	}
}

func TestTrackViewRejectsNegativeProgress(t *testing.T) {
	svc := NewService(newFakeViewStore(readyRecording(600)), nil)
	_, err := svc.TrackView(context.Background(), uuid.New(), uuid.New(), -1, 0)
	assert.ErrorIs(t, err, ErrNegativeProgress)
	_, err = svc.TrackView(context.Background(), uuid.New(), uuid.New(), 0, -1)
	assert.ErrorIs(t, err, ErrNegativeProgress)
}

func TestTrackViewRequiresReadyRecording(t *testing.T) {
	rec := readyRecording(600)
	rec.ProcessingStatus = models.RecordingStatusProcessing
	svc := NewService(newFakeViewStore(rec), nil)

	_, err := svc.TrackView(context.Background(), rec.ID, uuid.New(), 10, 10)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestTrackViewCountsDistinctViewersOnce(t *testing.T) {
	rec := readyRecording(600)
	store := newFakeViewStore(rec)
	svc := NewService(store, nil)
	viewer := uuid.New()

	_, err := svc.TrackView(context.Background(), rec.ID, viewer, 10, 10)
	require.NoError(t, err)
	_, err = svc.TrackView(context.Background(), rec.ID, viewer, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, store.increments, "repeat reports by the same viewer count once")
	assert.Equal(t, 1, rec.ViewsCount)

	_, err = svc.TrackView(context.Background(), rec.ID, uuid.New(), 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, store.increments)
}

func TestTrackViewCompletionLatches(t *testing.T) {
	rec := readyRecording(100)
	store := newFakeViewStore(rec)
	svc := NewService(store, nil)
	viewer := uuid.New()

	v, err := svc.TrackView(context.Background(), rec.ID, viewer, 89, 89)
	require.NoError(t, err)
	assert.False(t, v.Completed)

	v, err = svc.TrackView(context.Background(), rec.ID, viewer, 90, 90)
	require.NoError(t, err)
	assert.True(t, v.Completed, "90 percent watched crosses the threshold")

	// Scrubbing back never un-completes or shrinks watch time.
	v, err = svc.TrackView(context.Background(), rec.ID, viewer, 10, 10)
	require.NoError(t, err)
	assert.True(t, v.Completed)
	assert.Equal(t, 90, v.WatchSeconds)
	assert.Equal(t, 10, v.LastPosition)
}

func TestTrackViewUnknownDurationNeverCompletes(t *testing.T) {
	rec := readyRecording(0)
	svc := NewService(newFakeViewStore(rec), nil)
	viewer := uuid.New()

	v, err := svc.TrackView(context.Background(), rec.ID, viewer, 100000, 0)
	require.NoError(t, err)
	assert.False(t, v.Completed)
}
