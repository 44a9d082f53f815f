// Package audit keeps a durable trail of delivery attempts for after-the-fact
// debugging. It observes the sink; it is never on the producer's path.
package audit

import (
	"context"
	"time"
)

// Record captures the outcome of one backend write.
type Record struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Stream  string    `json:"stream"`
	Entries int       `json:"entries"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// Repository stores delivery records.
type Repository interface {
	Record(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close()
}
