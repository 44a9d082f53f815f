// Package enrich normalizes per-request ambient metadata before events reach
// the formatter.
package enrich

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// RequestMeta is the shared per-request metadata bag written here and read by
// downstream event consumers. All fields are optional; absence of a header
// leaves the documented default in place.
type RequestMeta struct {
	ClientAddr    string
	Path          string
	RequestBytes  int64
	ResponseBytes int64

	// Filled on error notifications.
	URL        string
	UserAgent  string
	Referrer   string
	StatusCode int
}

type metaKey struct{}

// WithMeta attaches the bag to the context.
func WithMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// MetaFrom returns the request's bag, or nil when none was installed.
func MetaFrom(ctx context.Context) *RequestMeta {
	if meta, ok := ctx.Value(metaKey{}).(*RequestMeta); ok {
		return meta
	}
	return nil
}

// ClientAddr resolves the effective client address. The first comma-separated
// entry of X-Forwarded-For is treated as the original client and overrides
// the transport peer address. No IP format validation is performed.
func ClientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// Complete records completion metadata into the bag: resolved client address,
// request path (default "/"), and payload sizes (default 0). It never fails.
func Complete(meta *RequestMeta, r *http.Request, responseBytes int64) {
	if meta == nil {
		return
	}
	meta.ClientAddr = ClientAddr(r)

	meta.Path = r.URL.RequestURI()
	if meta.Path == "" {
		meta.Path = "/"
	}

	if cl := r.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			meta.RequestBytes = n
		}
	}
	meta.ResponseBytes = responseBytes
}

// Error records error metadata into the bag: the same address resolution plus
// the full URL, user agent, referrer, and final status code.
func Error(meta *RequestMeta, r *http.Request, status int) {
	if meta == nil {
		return
	}
	meta.ClientAddr = ClientAddr(r)
	meta.URL = r.URL.String()
	meta.UserAgent = r.Header.Get("User-Agent")
	meta.Referrer = r.Header.Get("Referer")
	meta.StatusCode = status
}
