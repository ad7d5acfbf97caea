package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospectus/internal/config"
	"prospectus/internal/drafting"
	"prospectus/internal/ingest"
)

type fakePublisher struct {
	sleep     time.Duration
	err       error
	LastTopic string
	LastBody  []byte
}

func (m *fakePublisher) Publish(topic string, body []byte) error {
	m.LastTopic = topic
	m.LastBody = body
	time.Sleep(m.sleep)
	return m.err
}

func saved(t *testing.T, repo Repository, stage string, payload []byte) string {
	t.Helper()
	j := &Job{Stage: stage, Subject: "s", Payload: payload}
	require.NoError(t, repo.Save(context.Background(), j))
	return j.ID
}

var _ drafting.FailureRecorder = (*Service)(nil)
var _ ingest.FailureRecorder = (*Service)(nil)

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	require.NoError(t, svc.Record(ctx, ingest.StageIngest, "/in/a.pdf", []byte(`{"path":"/in/a.pdf"}`), errors.New("bad pdf")))

	jobs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "ingest", jobs[0].Stage)
	assert.Equal(t, "/in/a.pdf", jobs[0].Subject)
	assert.Equal(t, "bad pdf", jobs[0].Error)
	assert.NotEmpty(t, jobs[0].ID)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_Retry(t *testing.T) {
	ctx := context.Background()
	task := []byte(`{"document_id":"a.pdf","original_name":"a.pdf","path":"/in/a.pdf"}`)

	t.Run("publishes ingest task and deletes job", func(t *testing.T) {
		repo := NewMemoryRepo()
		pub := &fakePublisher{}
		id := saved(t, repo, ingest.StageIngest, task)

		require.NoError(t, NewService(repo, pub).Retry(ctx, id))
		assert.Equal(t, config.TopicIngestDocument, pub.LastTopic)
		assert.JSONEq(t, string(task), string(pub.LastBody))

		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown job", func(t *testing.T) {
		err := NewService(NewMemoryRepo(), &fakePublisher{}).Retry(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("draft stage not retryable", func(t *testing.T) {
		repo := NewMemoryRepo()
		id := saved(t, repo, drafting.StageDraft, []byte(`{"section":"A"}`))
		err := NewService(repo, &fakePublisher{}).Retry(ctx, id)
		assert.ErrorIs(t, err, ErrNotRetryable)
	})

	t.Run("no publisher", func(t *testing.T) {
		repo := NewMemoryRepo()
		id := saved(t, repo, ingest.StageIngest, task)
		err := NewService(repo, nil).Retry(ctx, id)
		assert.ErrorIs(t, err, ErrNotRetryable)
	})

	t.Run("publish error keeps job", func(t *testing.T) {
		repo := NewMemoryRepo()
		id := saved(t, repo, ingest.StageIngest, task)
		err := NewService(repo, &fakePublisher{err: errors.New("nsq down")}).Retry(ctx, id)
		assert.EqualError(t, err, "nsq down")

		_, err = repo.Get(ctx, id)
		assert.NoError(t, err)
	})

	t.Run("publish timeout", func(t *testing.T) {
		repo := NewMemoryRepo()
		id := saved(t, repo, ingest.StageIngest, task)
		svc := NewService(repo, &fakePublisher{sleep: 200 * time.Millisecond})
		svc.publishTimeout = 20 * time.Millisecond

		assert.ErrorIs(t, svc.Retry(ctx, id), ErrPublishTimeout)
	})
}

func TestMemoryRepo_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first := saved(t, repo, "ingest", []byte(`{}`))
	second := saved(t, repo, "ingest", []byte(`{}`))

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second, jobs[0].ID)
	assert.Equal(t, first, jobs[1].ID)

	require.NoError(t, repo.Delete(ctx, first))
	n, _ := repo.Count(ctx)
	assert.Equal(t, 1, n)
}
