// Package handlers exposes the HTTP ingest surface of the sink.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/nightjar-systems/logship/internal/enrich"
	"github.com/nightjar-systems/logship/internal/metrics"
	"github.com/nightjar-systems/logship/internal/ratelimit"
	"github.com/nightjar-systems/logship/internal/sink"
	"github.com/nightjar-systems/logship/pkg/event"
)

const maxBodyBytes = 8 << 20

// IngestHandler accepts lifecycle events over HTTP and hands them to the sink.
type IngestHandler struct {
	sink    *sink.Sink
	limiter ratelimit.RateLimiter
}

// NewIngestHandler constructs a new handler. A nil limiter disables limiting.
func NewIngestHandler(s *sink.Sink, limiter ratelimit.RateLimiter) *IngestHandler {
	if limiter == nil {
		limiter = ratelimit.NoOpRateLimiter{}
	}
	return &IngestHandler{sink: s, limiter: limiter}
}

// IngestResponse reports how many events were accepted.
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

// Events handles POST /api/v1/events. The body is either a single event
// object or an ordered array; arrays are submitted as one batch. Acceptance
// is synchronous, delivery is not: a 202 means the sink took the events, not
// that the backend stored them.
func (h *IngestHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	client := enrich.ClientAddr(r)
	allowed, err := h.limiter.Allow(r.Context(), client)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rate_limit_error", err.Error())
		return
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	events, batch, err := event.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}

	for _, ev := range events {
		metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}

	if batch {
		h.sink.ConsumeBatch(events)
	} else {
		h.sink.Consume(events[0])
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{Accepted: len(events)})
}

// Health handles GET /healthz with a snapshot of sink counters.
func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.sink.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	type errorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method is not allowed")
}
