// Package backend defines the delivery boundary to the remote
// structured-logging store.
package backend

import (
	"context"

	"github.com/nightjar-systems/logship/pkg/entry"
)

// Writer delivers one ordered batch of entries per call. Implementations own
// their transport-level retry policy; the sink never retries.
type Writer interface {
	Write(ctx context.Context, entries []*entry.Entry) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, entries []*entry.Entry) error

// Write calls f.
func (f WriterFunc) Write(ctx context.Context, entries []*entry.Entry) error {
	return f(ctx, entries)
}
