package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "docingest/internal/adapter/weaviate"
	"docingest/internal/ingest"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func records(n int) []ingest.EmbeddingRecord {
	out := make([]ingest.EmbeddingRecord, n)
	for i := range out {
		out[i] = ingest.EmbeddingRecord{Index: i, Text: "chunk", Vector: []float32{0.1, 0.2}}
	}
	return out
}

func TestStore_StoreBatch(t *testing.T) {
	var requests atomic.Int32
	var seenIDs []string

	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		requests.Add(1)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		objects := body["objects"].([]interface{})
		assert.LessOrEqual(t, len(objects), 2)

		resp := make([]map[string]interface{}, 0, len(objects))
		for _, o := range objects {
			obj := o.(map[string]interface{})
			assert.Equal(t, "DocumentChunk", obj["class"])
			seenIDs = append(seenIDs, obj["id"].(string))
			resp = append(resp, map[string]interface{}{"id": obj["id"]})
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, 2)
	stored, err := store.StoreBatch(context.Background(), "file-1", records(3))
	require.NoError(t, err)
	assert.Equal(t, 3, stored)
	assert.Equal(t, int32(2), requests.Load())

	// Replaying the same batch must produce the same object IDs.
	stored, err = store.StoreBatch(context.Background(), "file-1", records(3))
	require.NoError(t, err)
	assert.Equal(t, 3, stored)
	assert.Equal(t, seenIDs[:3], seenIDs[3:])
}

func TestStore_StoreBatch_ObjectError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		resp := []map[string]interface{}{
			{
				"id": "00000000-0000-0000-0000-000000000001",
				"result": map[string]interface{}{
					"errors": map[string]interface{}{
						"error": []map[string]interface{}{{"message": "vector length mismatch"}},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, 16)
	_, err := store.StoreBatch(context.Background(), "file-1", records(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector length mismatch")
}

func TestStore_DeleteFile(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client, 16)
	assert.NoError(t, store.DeleteFile(context.Background(), "file-1"))
}

func TestStore_Drop(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/schema/DocumentChunk", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	store := adapter.NewStore(client, 16)
	assert.NoError(t, store.Drop(context.Background()))
}

func TestStore_Count(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{"count": 42.0},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, 16)
	count, err := store.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestStore_Search(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"content":    "found content",
							"fileId":     "file-1",
							"chunkIndex": 3.0,
							"_additional": map[string]interface{}{
								"distance": 0.12,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, 16)
	results, err := store.Search(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "found content", results[0].Content)
	assert.Equal(t, "file-1", results[0].FileID)
	assert.Equal(t, 3, results[0].ChunkIndex)
	assert.InDelta(t, 0.12, results[0].Distance, 1e-6)
}

func TestStore_Sample(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{"content": "a", "fileId": "f", "chunkIndex": 0.0},
						map[string]interface{}{"content": "b", "fileId": "f", "chunkIndex": 1.0},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, 16)
	chunks, err := store.Sample(context.Background(), "f", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].Content)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}
