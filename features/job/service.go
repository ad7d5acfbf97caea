package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prospectus/internal/config"
	"prospectus/internal/ingest"
)

var (
	ErrNotRetryable   = errors.New("job cannot be retried")
	ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub, publishTimeout: 5 * time.Second}
}

// Record saves a failure. It satisfies the failure ledger used by the
// ingest and drafting pipelines.
func (s *Service) Record(ctx context.Context, stage, subject string, payload []byte, cause error) error {
	j := &Job{Stage: stage, Subject: subject, Payload: payload}
	if cause != nil {
		j.Error = cause.Error()
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save failed job: %w", err)
	}
	slog.InfoContext(ctx, "recorded failed job", "job_id", j.ID, "stage", stage, "subject", subject)
	return nil
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry re-queues a failed ingest and removes it from the ledger. Drafting
// failures are retried by starting a new run instead.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Stage != ingest.StageIngest || s.pub == nil {
		return fmt.Errorf("%w: stage %q", ErrNotRetryable, job.Stage)
	}
	if _, err := ingest.ParseTask(job.Payload); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRetryable, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestDocument, job.Payload)
	}()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(s.publishTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
