package worker

import (
	"context"

	"prospectus/internal/index"
	"prospectus/internal/ingest"
)

type Indexer interface {
	IndexTask(ctx context.Context, t ingest.Task) (*index.DocumentIndex, error)
	RefreshManifest(ctx context.Context)
}

type FailureRecorder interface {
	Record(ctx context.Context, stage, subject string, payload []byte, cause error) error
}
