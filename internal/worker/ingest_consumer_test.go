package worker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"prospectus/internal/extract"
	"prospectus/internal/index"
	"prospectus/internal/ingest"
	"prospectus/internal/middleware"
	"prospectus/internal/provider"
	"prospectus/internal/worker"
)

type MockIndexer struct{ mock.Mock }

func (m *MockIndexer) IndexTask(ctx context.Context, t ingest.Task) (*index.DocumentIndex, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.DocumentIndex), args.Error(1)
}

func (m *MockIndexer) RefreshManifest(ctx context.Context) {
	m.Called(ctx)
}

type MockRecorder struct{ mock.Mock }

func (m *MockRecorder) Record(ctx context.Context, stage, subject string, payload []byte, cause error) error {
	return m.Called(ctx, stage, subject, payload, cause).Error(0)
}

func taskMessage(t *testing.T, attempts uint16) *nsq.Message {
	t.Helper()
	body, err := ingest.Task{DocumentID: "u1_a.pdf", OriginalName: "a.pdf", Path: "/uploads/u1_a.pdf", CorrelationID: "corr-1"}.Marshal()
	assert.NoError(t, err)
	return &nsq.Message{Body: body, Attempts: attempts}
}

func TestIngestConsumer_HandleMessage(t *testing.T) {
	upstream503 := &provider.UpstreamError{Provider: "remote-a", Op: "embed", StatusCode: 503}

	tests := []struct {
		name      string
		msg       func(t *testing.T) *nsq.Message
		setup     func(*MockIndexer, *MockRecorder)
		wantErr   bool
		recorded  bool
		refreshed bool
	}{
		{
			name: "indexed",
			msg:  func(t *testing.T) *nsq.Message { return taskMessage(t, 1) },
			setup: func(i *MockIndexer, r *MockRecorder) {
				i.On("IndexTask", mock.MatchedBy(func(ctx context.Context) bool {
					return middleware.GetCorrelationID(ctx) == "corr-1"
				}), mock.MatchedBy(func(t ingest.Task) bool { return t.Path == "/uploads/u1_a.pdf" })).
					Return(&index.DocumentIndex{DocumentID: "u1_a.pdf"}, nil)
				i.On("RefreshManifest", mock.Anything).Return()
			},
			refreshed: true,
		},
		{
			name: "nothing to index",
			msg:  func(t *testing.T) *nsq.Message { return taskMessage(t, 1) },
			setup: func(i *MockIndexer, r *MockRecorder) {
				i.On("IndexTask", mock.Anything, mock.Anything).Return(nil, nil)
			},
		},
		{
			name: "transient error requeues",
			msg:  func(t *testing.T) *nsq.Message { return taskMessage(t, 1) },
			setup: func(i *MockIndexer, r *MockRecorder) {
				i.On("IndexTask", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("embed a.pdf: %w", upstream503))
			},
			wantErr: true,
		},
		{
			name: "transient error on last attempt is recorded",
			msg:  func(t *testing.T) *nsq.Message { return taskMessage(t, 3) },
			setup: func(i *MockIndexer, r *MockRecorder) {
				i.On("IndexTask", mock.Anything, mock.Anything).Return(nil, upstream503)
				r.On("Record", mock.Anything, ingest.StageIngest, "/uploads/u1_a.pdf", mock.Anything, upstream503).Return(nil)
			},
			recorded: true,
		},
		{
			name: "configuration error is permanent",
			msg:  func(t *testing.T) *nsq.Message { return taskMessage(t, 1) },
			setup: func(i *MockIndexer, r *MockRecorder) {
				i.On("IndexTask", mock.Anything, mock.Anything).Return(nil, &provider.ConfigurationError{Provider: "remote-a", Setting: "OPENAI_API_KEY"})
				r.On("Record", mock.Anything, ingest.StageIngest, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
			recorded: true,
		},
		{
			name: "extraction error is permanent",
			msg:  func(t *testing.T) *nsq.Message { return taskMessage(t, 1) },
			setup: func(i *MockIndexer, r *MockRecorder) {
				i.On("IndexTask", mock.Anything, mock.Anything).Return(nil, &extract.ExtractionError{File: "a.pdf", Format: extract.FormatPDF, Err: errors.New("encrypted")})
				r.On("Record", mock.Anything, ingest.StageIngest, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("ledger down"))
			},
			recorded: true,
		},
		{
			name: "missing file is permanent",
			msg:  func(t *testing.T) *nsq.Message { return taskMessage(t, 1) },
			setup: func(i *MockIndexer, r *MockRecorder) {
				i.On("IndexTask", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("read: %w", os.ErrNotExist))
				r.On("Record", mock.Anything, ingest.StageIngest, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
			recorded: true,
		},
		{
			name:  "poison pill",
			msg:   func(t *testing.T) *nsq.Message { return &nsq.Message{Body: []byte("invalid json")} },
			setup: func(i *MockIndexer, r *MockRecorder) {},
		},
		{
			name:  "empty body",
			msg:   func(t *testing.T) *nsq.Message { return &nsq.Message{} },
			setup: func(i *MockIndexer, r *MockRecorder) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indexer := new(MockIndexer)
			recorder := new(MockRecorder)
			tt.setup(indexer, recorder)

			consumer := worker.NewIngestConsumer(indexer, recorder, 3)
			err := consumer.HandleMessage(tt.msg(t))

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.recorded {
				recorder.AssertNumberOfCalls(t, "Record", 1)
			} else {
				recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			if tt.refreshed {
				indexer.AssertCalled(t, "RefreshManifest", mock.Anything)
			} else {
				indexer.AssertNotCalled(t, "RefreshManifest", mock.Anything)
			}
			indexer.AssertExpectations(t)
		})
	}
}
