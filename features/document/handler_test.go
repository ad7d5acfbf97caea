package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prospectus/internal/index"
	"prospectus/internal/ingest"
	"prospectus/internal/provider"
	"prospectus/internal/retrieval"
)

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestHandler_Upload(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		files      map[string]string
		setup      func(*MockIngester)
		wantStatus int
		wantCode   string
	}{
		{
			name:  "indexed",
			field: "files",
			files: map[string]string{"a.txt": "alpha", "b.png": "png"},
			setup: func(m *MockIngester) {
				m.On("IngestTask", mock.Anything, mock.Anything).Return(&index.DocumentIndex{Chunks: make([]index.Chunk, 1)}, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "single file field",
			field:      "file",
			files:      map[string]string{"a.md": "alpha"},
			setup:      func(m *MockIngester) { m.On("IngestTask", mock.Anything, mock.Anything).Return(nil, nil).Once() },
			wantStatus: http.StatusCreated,
		},
		{
			name:       "only unsupported",
			field:      "files",
			files:      map[string]string{"b.png": "png"},
			setup:      func(*MockIngester) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "no files",
			field:      "other",
			files:      map[string]string{"a.txt": "x"},
			setup:      func(*MockIngester) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := new(MockIngester)
			tt.setup(ing)
			h := NewHandler(NewService(ing, nil, nil, nil, t.TempDir(), 0), 1)

			body, ct := multipartBody(t, tt.field, tt.files)
			req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()

			h.Upload(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tt.wantCode != "" {
				errObj := resp["error"].(map[string]interface{})
				assert.Equal(t, tt.wantCode, errObj["code"])
				return
			}
			assert.Len(t, resp["data"], len(tt.files))
			ing.AssertExpectations(t)
		})
	}
}

func TestHandler_UploadTooLarge(t *testing.T) {
	h := NewHandler(NewService(new(MockIngester), nil, nil, nil, t.TempDir(), 0), 1)
	body, ct := multipartBody(t, "files", map[string]string{"big.txt": strings.Repeat("x", 2<<20)})
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	h.Upload(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "File too large")
}

func TestHandler_Ingest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockIngester)
		wantStatus int
		wantBody   string
	}{
		{
			name: "success",
			body: `{"files":["/data/a.pdf","/data/b.pdf"]}`,
			setup: func(m *MockIngester) {
				m.On("IngestFiles", mock.Anything, []string{"/data/a.pdf", "/data/b.pdf"}).Return(ingest.Report{
					Documents: 1, Ingested: 7, Failures: []ingest.Failure{{File: "/data/b.pdf", Error: "bad pdf"}},
				})
			},
			wantStatus: http.StatusOK,
			wantBody:   `"ingested":7`,
		},
		{name: "bad json", body: `{`, setup: func(*MockIngester) {}, wantStatus: http.StatusBadRequest, wantBody: "VALIDATION_ERROR"},
		{name: "no files", body: `{"files":[]}`, setup: func(*MockIngester) {}, wantStatus: http.StatusBadRequest, wantBody: "files is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := new(MockIngester)
			tt.setup(ing)
			h := NewHandler(NewService(ing, nil, nil, nil, t.TempDir(), 0), 0)

			w := httptest.NewRecorder()
			h.Ingest(w, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestHandler_List(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		cat := new(MockCatalog)
		cat.On("List", mock.Anything).Return(nil, nil)
		h := NewHandler(NewService(nil, cat, nil, nil, "", 0), 0)

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/documents", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[],"meta":{"count":0}}`, w.Body.String())
	})

	t.Run("error", func(t *testing.T) {
		cat := new(MockCatalog)
		cat.On("List", mock.Anything).Return(nil, errors.New("disk gone"))
		h := NewHandler(NewService(nil, cat, nil, nil, "", 0), 0)

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/documents", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandler_Search(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		setup      func(*MockRetriever)
		wantStatus int
		wantCode   string
	}{
		{
			name: "default k",
			url:  "/search?q=revenue",
			setup: func(m *MockRetriever) {
				m.On("Retrieve", mock.Anything, "revenue", retrieval.DefaultQAK).Return([]retrieval.Result{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "explicit k",
			url:  "/search?q=revenue&k=3",
			setup: func(m *MockRetriever) {
				m.On("Retrieve", mock.Anything, "revenue", 3).Return([]retrieval.Result{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{name: "missing q", url: "/search", setup: func(*MockRetriever) {}, wantStatus: http.StatusBadRequest},
		{name: "bad k", url: "/search?q=x&k=-1", setup: func(*MockRetriever) {}, wantStatus: http.StatusBadRequest},
		{
			name: "upstream error",
			url:  "/search?q=revenue",
			setup: func(m *MockRetriever) {
				m.On("Retrieve", mock.Anything, "revenue", retrieval.DefaultQAK).Return(nil, errors.New("embed failed"))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
		{
			name: "provider not configured",
			url:  "/search?q=revenue",
			setup: func(m *MockRetriever) {
				m.On("Retrieve", mock.Anything, "revenue", retrieval.DefaultQAK).
					Return(nil, &provider.ConfigurationError{Provider: "remote-b", Setting: "GEMINI_API_KEY"})
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CONFIGURATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockRetriever)
			tt.setup(r)
			h := NewHandler(NewService(nil, nil, r, nil, "", 0), 0)

			w := httptest.NewRecorder()
			h.Search(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
			}
			r.AssertExpectations(t)
		})
	}
}
