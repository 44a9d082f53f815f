package enrich

import (
	"net/http"
	"time"

	"github.com/nightjar-systems/logship/internal/middleware"
	"github.com/nightjar-systems/logship/pkg/event"
)

// Consumer accepts lifecycle events. Satisfied by the sink.
type Consumer interface {
	Consume(ev *event.Event)
}

// Middleware installs a fresh metadata bag for each request, runs completion
// enrichment once the handler returns (plus error enrichment on 5xx), and
// emits a response event into the consumer. It stands in for the host
// framework's completion and error notifications.
func Middleware(consumer Consumer, instance string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := &RequestMeta{}
			r = r.WithContext(WithMeta(r.Context(), meta))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			Complete(meta, r, rec.bytes)
			if rec.status >= http.StatusInternalServerError {
				Error(meta, r, rec.status)
			}

			if consumer == nil {
				return
			}
			latency := float64(time.Since(start)) / float64(time.Millisecond)
			consumer.Consume(&event.Event{
				Kind:          event.KindResponse,
				Timestamp:     event.Time{Time: start},
				RequestID:     middleware.GetRequestID(r.Context()),
				Method:        r.Method,
				StatusCode:    rec.status,
				Path:          meta.Path,
				Instance:      instance,
				RequestBytes:  meta.RequestBytes,
				ResponseBytes: meta.ResponseBytes,
				ResponseTime:  &latency,
				ClientAddr:    meta.ClientAddr,
				UserAgent:     r.Header.Get("User-Agent"),
				Referrer:      r.Header.Get("Referer"),
			})
		})
	}
}

// statusRecorder captures the final status code and body size.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}
