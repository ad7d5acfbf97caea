package job_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospectus/features/job"
	"prospectus/internal/testutils"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	repo := job.NewPostgresRepo(s.DB)
	ctx := context.Background()

	j1 := &job.Job{Stage: "ingest", Subject: "a.pdf", Payload: json.RawMessage(`{"path": "/uploads/a.pdf"}`), Error: "error 1"}
	require.NoError(t, repo.Save(ctx, j1))
	assert.NotEmpty(t, j1.ID)

	// created_at ordering needs distinct timestamps
	time.Sleep(100 * time.Millisecond)

	j2 := &job.Job{Stage: "draft", Subject: "C", Payload: json.RawMessage(`{"section": "C"}`), Error: "error 2"}
	require.NoError(t, repo.Save(ctx, j2))

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, j2.ID, jobs[0].ID, "Newest job should be first")
	assert.Equal(t, j1.ID, jobs[1].ID)

	got, err := repo.Get(ctx, j1.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path": "/uploads/a.pdf"}`, string(got.Payload))

	require.NoError(t, repo.Delete(ctx, j1.ID))
	_, err = repo.Get(ctx, j1.ID)
	assert.ErrorIs(t, err, job.ErrNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
