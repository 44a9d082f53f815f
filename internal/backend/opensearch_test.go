package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightjar-systems/logship/internal/backend"
	"github.com/nightjar-systems/logship/pkg/entry"
)

func bulkServer(t *testing.T, requests *atomic.Int64, respond func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			// Cluster info probe issued by the client.
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"version":{"number":"2.11.0","distribution":"opensearch"}}`))
			return
		}
		requests.Add(1)
		respond(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleEntries(n int) []*entry.Entry {
	entries := make([]*entry.Entry, n)
	for i := range entries {
		entries[i] = &entry.Entry{
			Severity:    entry.SeverityInfo,
			LogName:     "api",
			TextPayload: "hello",
		}
	}
	return entries
}

func TestNewOpenSearchWriter_RequiresIndex(t *testing.T) {
	_, err := backend.NewOpenSearchWriter(backend.OpenSearchConfig{URL: "http://localhost:9200"})
	assert.Error(t, err)
}

func TestWrite_EmptyBatchSkipsRequest(t *testing.T) {
	var requests atomic.Int64
	srv := bulkServer(t, &requests, func(w http.ResponseWriter) {
		w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	})

	w, err := backend.NewOpenSearchWriter(backend.OpenSearchConfig{URL: srv.URL, Index: "logship-api"})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), nil))
	assert.Equal(t, int64(0), requests.Load())
}

func TestWrite_BulkSuccess(t *testing.T) {
	var requests atomic.Int64
	srv := bulkServer(t, &requests, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"took":1,"errors":false,"items":[
			{"index":{"_index":"logship-api","_id":"1","status":201}},
			{"index":{"_index":"logship-api","_id":"2","status":201}},
			{"index":{"_index":"logship-api","_id":"3","status":201}}
		]}`))
	})

	w, err := backend.NewOpenSearchWriter(backend.OpenSearchConfig{URL: srv.URL, Index: "logship-api"})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), sampleEntries(3)))
	assert.Equal(t, int64(1), requests.Load(), "a batch is one bulk request")
}

func TestWrite_ItemFailuresSurface(t *testing.T) {
	var requests atomic.Int64
	srv := bulkServer(t, &requests, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"took":1,"errors":true,"items":[
			{"index":{"_index":"logship-api","_id":"1","status":201}},
			{"index":{"_index":"logship-api","_id":"2","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field"}}}
		]}`))
	})

	w, err := backend.NewOpenSearchWriter(backend.OpenSearchConfig{URL: srv.URL, Index: "logship-api"})
	require.NoError(t, err)

	err = w.Write(context.Background(), sampleEntries(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestWrite_BackendUnreachable(t *testing.T) {
	w, err := backend.NewOpenSearchWriter(backend.OpenSearchConfig{
		URL:   "http://127.0.0.1:1",
		Index: "logship-api",
	})
	require.NoError(t, err)

	assert.Error(t, w.Write(context.Background(), sampleEntries(1)))
}

func TestWriterFunc(t *testing.T) {
	var got int
	fn := backend.WriterFunc(func(ctx context.Context, entries []*entry.Entry) error {
		got = len(entries)
		return nil
	})

	require.NoError(t, fn.Write(context.Background(), sampleEntries(2)))
	assert.Equal(t, 2, got)
}
