package app

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospectus/internal/config"
	"prospectus/internal/testutils"
)

func uploadBody(t *testing.T, name string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func countOf(t *testing.T, h http.Handler, path string) int {
	w := serve(t, h, http.MethodGet, path, nil, "")
	if w.Code != http.StatusOK {
		return -1
	}
	var resp struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		return -1
	}
	return resp.Meta.Count
}

func TestApp_QueuedIngestion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E integration test")
	}

	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	local := fakeLocalService(t)
	cfg := testConfig(t, local.URL)
	cfg.JobStore = config.JobStorePostgres
	cfg.IngestMaxAttempts = 1

	app, err := New(cfg, &Dependencies{DB: s.DB, NSQProducer: s.NSQ})
	require.NoError(t, err)
	defer app.Close()

	consumer, err := nsq.NewConsumer(config.TopicIngestDocument, config.ChannelIngestWorker, nsq.NewConfig())
	require.NoError(t, err)
	consumer.AddHandler(app.IngestConsumer)
	require.NoError(t, consumer.ConnectToNSQD(s.NSQDAddr))
	defer consumer.Stop()

	body, ct := uploadBody(t, "company-introduction.txt", []byte("The company builds ships."))
	w := serve(t, app.Handler, http.MethodPost, "/documents/upload", body, ct)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"queued"`)

	body, ct = uploadBody(t, "broken.pdf", []byte("not a pdf"))
	w = serve(t, app.Handler, http.MethodPost, "/documents/upload", body, ct)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		return countOf(t, app.Handler, "/documents") == 1
	}, 30*time.Second, 200*time.Millisecond, "document should be indexed by the worker")

	require.Eventually(t, func() bool {
		return countOf(t, app.Handler, "/jobs/failed") == 1
	}, 30*time.Second, 200*time.Millisecond, "broken upload should land in the failed-job ledger")

	w = serve(t, app.Handler, http.MethodGet, "/search?q=ships", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "builds ships")
}
