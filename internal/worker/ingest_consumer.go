package worker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"prospectus/internal/extract"
	"prospectus/internal/ingest"
	"prospectus/internal/middleware"
	"prospectus/internal/provider"
)

const indexTimeout = 10 * time.Minute

// IngestConsumer indexes documents queued on the ingest topic.
type IngestConsumer struct {
	indexer     Indexer
	failures    FailureRecorder
	maxAttempts uint16
}

func NewIngestConsumer(i Indexer, f FailureRecorder, maxAttempts uint16) *IngestConsumer {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &IngestConsumer{indexer: i, failures: f, maxAttempts: maxAttempts}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	task, err := ingest.ParseTask(m.Body)
	if err != nil {
		// Poison pill: don't retry
		slog.Error("poison pill: invalid ingest task", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	idx, err := h.indexer.IndexTask(ctx, task)
	if err != nil {
		if transient(err) && m.Attempts < h.maxAttempts {
			slog.WarnContext(ctx, "indexing failed, requeueing", "document", task.OriginalName, "attempt", m.Attempts, "error", err)
			return err
		}
		slog.ErrorContext(ctx, "indexing failed", "document", task.OriginalName, "attempt", m.Attempts, "error", err)
		h.record(ctx, task, m.Body, err)
		return nil
	}

	if idx == nil {
		slog.InfoContext(ctx, "document had no text to index", "document", task.OriginalName)
		return nil
	}
	h.indexer.RefreshManifest(ctx)
	return nil
}

func transient(err error) bool {
	if extract.IsExtractionError(err) || errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return provider.IsRetryable(err)
}

func (h *IngestConsumer) record(ctx context.Context, task ingest.Task, body []byte, cause error) {
	if h.failures == nil {
		return
	}
	if err := h.failures.Record(ctx, ingest.StageIngest, task.Path, body, cause); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "error", err)
	}
}
