package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/coursehive/live-backend/internal/models"
	"github.com/coursehive/live-backend/internal/recordings"
	"github.com/coursehive/live-backend/pkg/queue"
	"github.com/coursehive/live-backend/pkg/storage"
)

// RecordingProcessor drains the recording queue: claim the row, stream the
// provider file into S3, mark it ready. Failures flip the row to failed and
// go back through the retry path.
type RecordingProcessor struct {
	recRepo *recordings.Repository
	s3      *storage.S3
	queue   *queue.Queue
	client  *http.Client
	logger  *zap.Logger
}

// NewRecordingProcessor creates a recording processor.
func NewRecordingProcessor(recRepo *recordings.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *RecordingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingProcessor{
		recRepo: recRepo,
		s3:      s3,
		queue:   q,
		client:  &http.Client{Timeout: 30 * time.Minute},
		logger:  logger,
	}
}

// Process executes one recording job.
func (p *RecordingProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingProcess {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := p.recRepo.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return fmt.Errorf("load recording %s: %w", payload.RecordingID, err)
	}
	if rec.ProcessingStatus == models.RecordingStatusReady {
		p.logger.Info("recording already ready", zap.String("recording_id", rec.ID.String()))
		return nil
	}
	claimed, err := p.recRepo.ClaimForProcessing(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("claim recording: %w", err)
	}
	if !claimed {
		p.logger.Info("recording claimed elsewhere", zap.String("recording_id", rec.ID.String()))
		return nil
	}

	if err := p.transfer(ctx, &payload); err != nil {
		if uerr := p.recRepo.UpdateStatus(ctx, rec.ID, models.RecordingStatusFailed); uerr != nil {
			p.logger.Error("mark failed errored", zap.Error(uerr),
				zap.String("recording_id", rec.ID.String()))
		}
		return err
	}
	return nil
}

// transfer streams the provider file to S3 and records the result.
func (p *RecordingProcessor) transfer(ctx context.Context, payload *queue.RecordingProcessPayload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.OriginalURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := storage.RecordingKey(payload.SessionID.String(), payload.RecordingID.String())

	s3URL, err := p.s3.Upload(ctx, p.s3.RecordingsBucket(), key, contentType, resp.Body, resp.ContentLength)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.recRepo.MarkReady(ctx, payload.RecordingID, s3URL, key, resp.ContentLength); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	p.logger.Info("recording processed",
		zap.String("recording_id", payload.RecordingID.String()),
		zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *RecordingProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("recording worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
