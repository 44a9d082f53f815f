package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nightjar-systems/logship/internal/enrich"
	"github.com/nightjar-systems/logship/internal/handlers"
	"github.com/nightjar-systems/logship/internal/middleware"
)

// Options configures optional route middleware.
type Options struct {
	// Auth, when non-nil, guards the ingest route.
	Auth *middleware.BearerAuth

	// AccessLog, when non-nil, receives a response event per request.
	AccessLog enrich.Consumer

	// Instance names this host in emitted response events.
	Instance string
}

// NewRouter wires the ingest routes. Every route runs behind request-id and
// enrichment middleware; /metrics and /healthz stay unauthenticated.
func NewRouter(h *handlers.IngestHandler, opts Options) http.Handler {
	mux := http.NewServeMux()

	var events http.Handler = http.HandlerFunc(h.Events)
	if opts.Auth != nil {
		events = opts.Auth.RequireToken(events)
	}
	mux.Handle("/api/v1/events", events)
	mux.HandleFunc("/healthz", h.Health)
	mux.Handle("/metrics", promhttp.Handler())

	enriched := enrich.Middleware(opts.AccessLog, opts.Instance)(mux)
	return middleware.RequestID(enriched)
}
