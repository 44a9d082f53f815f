package enrich_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightjar-systems/logship/internal/enrich"
	"github.com/nightjar-systems/logship/pkg/event"
)

func TestClientAddr(t *testing.T) {
	testCases := []struct {
		name     string
		xff      string
		remote   string
		expected string
	}{
		{name: "no header uses peer", remote: "10.0.0.1:4321", expected: "10.0.0.1:4321"},
		{name: "single forwarded entry", xff: "203.0.113.7", remote: "10.0.0.1:4321", expected: "203.0.113.7"},
		{name: "first of chain wins", xff: "203.0.113.7, 10.1.1.1, 10.2.2.2", remote: "10.0.0.1:4321", expected: "203.0.113.7"},
		{name: "whitespace trimmed", xff: "  203.0.113.7 , 10.1.1.1", remote: "10.0.0.1:4321", expected: "203.0.113.7"},
		{name: "garbage preserved", xff: "not-an-ip", remote: "10.0.0.1:4321", expected: "not-an-ip"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.expected, enrich.ClientAddr(r))
		})
	}
}

func TestComplete(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/events?batch=1", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	r.Header.Set("Content-Length", "128")

	meta := &enrich.RequestMeta{}
	enrich.Complete(meta, r, 512)

	assert.Equal(t, "10.0.0.1:4321", meta.ClientAddr)
	assert.Equal(t, "/api/v1/events?batch=1", meta.Path)
	assert.Equal(t, int64(128), meta.RequestBytes)
	assert.Equal(t, int64(512), meta.ResponseBytes)
}

func TestComplete_Defaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	meta := &enrich.RequestMeta{}
	enrich.Complete(meta, r, 0)

	assert.Equal(t, "/", meta.Path)
	assert.Equal(t, int64(0), meta.RequestBytes)
	assert.Equal(t, int64(0), meta.ResponseBytes)

	// A nil bag is simply ignored.
	enrich.Complete(nil, r, 0)
}

func TestError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "https://example.com/broken?x=1", nil)
	r.Header.Set("User-Agent", "curl/8.0")
	r.Header.Set("Referer", "https://example.com/")
	r.Header.Set("X-Forwarded-For", "203.0.113.7")

	meta := &enrich.RequestMeta{}
	enrich.Error(meta, r, 503)

	assert.Equal(t, "203.0.113.7", meta.ClientAddr)
	assert.Equal(t, "https://example.com/broken?x=1", meta.URL)
	assert.Equal(t, "curl/8.0", meta.UserAgent)
	assert.Equal(t, "https://example.com/", meta.Referrer)
	assert.Equal(t, 503, meta.StatusCode)

	enrich.Error(nil, r, 503)
}

func TestMetaContextRoundTrip(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Nil(t, enrich.MetaFrom(r.Context()))

	meta := &enrich.RequestMeta{ClientAddr: "a"}
	ctx := enrich.WithMeta(r.Context(), meta)
	assert.Same(t, meta, enrich.MetaFrom(ctx))
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *eventRecorder) Consume(ev *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Events() []*event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.Event(nil), r.events...)
}

func TestMiddleware_EmitsResponseEvent(t *testing.T) {
	recorder := &eventRecorder{}
	handler := enrich.Middleware(recorder, "web-1")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))

	r := httptest.NewRequest(http.MethodPost, "/things", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	r.Header.Set("User-Agent", "curl/8.0")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	events := recorder.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, event.KindResponse, ev.Kind)
	assert.Equal(t, http.MethodPost, ev.Method)
	assert.Equal(t, http.StatusCreated, ev.StatusCode)
	assert.Equal(t, "/things", ev.Path)
	assert.Equal(t, "web-1", ev.Instance)
	assert.Equal(t, int64(len("created")), ev.ResponseBytes)
	assert.Equal(t, "10.0.0.1:4321", ev.ClientAddr)
	assert.Equal(t, "curl/8.0", ev.UserAgent)
	require.NotNil(t, ev.ResponseTime)
	assert.GreaterOrEqual(t, *ev.ResponseTime, 0.0)
}

func TestMiddleware_DefaultStatusIs200(t *testing.T) {
	recorder := &eventRecorder{}
	handler := enrich.Middleware(recorder, "web-1")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, http.StatusOK, events[0].StatusCode)
}

func TestMiddleware_ErrorEnrichmentOn5xx(t *testing.T) {
	recorder := &eventRecorder{}
	var captured *enrich.RequestMeta
	handler := enrich.Middleware(recorder, "web-1")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = enrich.MetaFrom(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	r := httptest.NewRequest(http.MethodGet, "/broken", nil)
	r.Header.Set("User-Agent", "curl/8.0")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, captured)
	assert.Equal(t, http.StatusInternalServerError, captured.StatusCode)
	assert.Equal(t, "curl/8.0", captured.UserAgent)
}

func TestMiddleware_NilConsumer(t *testing.T) {
	handler := enrich.Middleware(nil, "web-1")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
