package weaviate_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "prospectus/internal/adapter/weaviate"
	"prospectus/internal/index"
	"prospectus/internal/vector"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) *weaviate.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	client, err := weaviate.NewClient(weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"})
	require.NoError(t, err)
	return client
}

func sampleIndex() index.DocumentIndex {
	return index.DocumentIndex{
		DocumentID:   "u1_report.pdf",
		DocumentName: "report.pdf",
		Provider:     "remote-a",
		Dimension:    2,
		Chunks: []index.Chunk{
			{ID: "0b6c5a4e-3f1d-4d55-9a51-6a3d7b1c2e01", DocumentID: "u1_report.pdf", DocumentName: "report.pdf", Index: 0, Text: "Revenue grew.", Embedding: []float32{1, 0}},
			{ID: "0b6c5a4e-3f1d-4d55-9a51-6a3d7b1c2e02", DocumentID: "u1_report.pdf", DocumentName: "report.pdf", Index: 1, Label: "Sheet1", Text: "Costs fell.", Embedding: []float32{0, 1}},
		},
	}
}

func TestStore_Upsert(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		sent  map[string]interface{}
	)
	client := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/batch/objects":
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), "u1_report.pdf")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/batch/objects":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			objs := sent["objects"].([]interface{})
			out := make([]map[string]interface{}, len(objs))
			for i, o := range objs {
				out[i] = map[string]interface{}{"id": o.(map[string]interface{})["id"], "result": map[string]interface{}{}}
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(out)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	})

	store := adapter.NewStore(client)
	require.NoError(t, store.Upsert(context.Background(), sampleIndex()))

	assert.Equal(t, []string{"DELETE /v1/batch/objects", "POST /v1/batch/objects"}, calls)
	objs := sent["objects"].([]interface{})
	require.Len(t, objs, 2)
	first := objs[0].(map[string]interface{})
	assert.Equal(t, vector.ClassName, first["class"])
	props := first["properties"].(map[string]interface{})
	assert.Equal(t, "Revenue grew.", props["content"])
	assert.Equal(t, "remote-a", props["provider"])
	assert.Len(t, first["vector"], 2)
}

func TestStore_UpsertItemError(t *testing.T) {
	client := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`[{"id":"0b6c5a4e-3f1d-4d55-9a51-6a3d7b1c2e01","result":{"errors":{"error":[{"message":"vector lengths don't match"}]}}}]`))
	})

	err := adapter.NewStore(client).Upsert(context.Background(), sampleIndex())
	assert.ErrorContains(t, err, "vector lengths don't match")
}

func TestStore_Search(t *testing.T) {
	client := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		query := body["query"].(string)
		assert.Contains(t, query, vector.ClassName)
		assert.Contains(t, query, "nearVector")
		assert.Contains(t, query, "limit: 3")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					vector.ClassName: []interface{}{
						map[string]interface{}{
							"chunkId":      "c1",
							"documentId":   "u1_report.pdf",
							"documentName": "report.pdf",
							"chunkIndex":   4.0,
							"label":        "",
							"content":      "Revenue grew.",
							"_additional":  map[string]interface{}{"distance": 0.25},
						},
					},
				},
			},
		})
	})

	results, err := adapter.NewStore(client).Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, 4, results[0].Chunk.Index)
	assert.Equal(t, "Revenue grew.", results[0].Chunk.Text)
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
}

func TestStore_SearchGraphQLError(t *testing.T) {
	client := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"class not found"}]}`))
	})

	_, err := adapter.NewStore(client).Search(context.Background(), []float32{1}, 1)
	assert.ErrorContains(t, err, "class not found")
}

func TestStore_Count(t *testing.T) {
	client := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, strings.Contains(body["query"].(string), "Aggregate"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					vector.ClassName: []interface{}{
						map[string]interface{}{"meta": map[string]interface{}{"count": 42.0}},
					},
				},
			},
		})
	})

	count, err := adapter.NewStore(client).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestStore_EnsureSchema(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	client := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	})

	require.NoError(t, adapter.NewStore(client).EnsureSchema(context.Background()))
	assert.Equal(t, []string{"GET /v1/schema/" + vector.ClassName, "POST /v1/schema"}, calls)
}
