package job_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospectus/features/job"
)

func newMockRepo(t *testing.T) (*job.PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return job.NewPostgresRepo(db), mock
}

func TestPostgresRepo_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO failed_jobs (stage, subject, payload, error)`)).
		WithArgs("ingest", "a.pdf", []byte(`{"path":"a.pdf"}`), "boom").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "retries"}).AddRow("job-1", now, 0))

	j := &job.Job{Stage: "ingest", Subject: "a.pdf", Payload: json.RawMessage(`{"path":"a.pdf"}`), Error: "boom"}
	require.NoError(t, repo.Save(context.Background(), j))
	assert.Equal(t, "job-1", j.ID)
	assert.Equal(t, now, j.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "stage", "subject", "payload", "error", "retries", "created_at"}).
		AddRow("2", "draft", "C", []byte(`{"section":"C"}`), "model down", 0, now).
		AddRow("1", "ingest", "a.pdf", []byte(`{"path":"a.pdf"}`), "bad pdf", 1, now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, stage, subject, payload, error, retries, created_at FROM failed_jobs ORDER BY created_at DESC`)).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "draft", jobs[0].Stage)
	assert.JSONEq(t, `{"path":"a.pdf"}`, string(jobs[1].Payload))
	assert.Equal(t, 1, jobs[1].Retries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM failed_jobs WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, job.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_DeleteAndCount(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM failed_jobs WHERE id = $1`)).
		WithArgs("1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM failed_jobs`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	require.NoError(t, repo.Delete(context.Background(), "1"))
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
