// Package sink accepts lifecycle events, formats them into normalized
// entries, and delivers them to the backend without ever failing back into
// the producer's path.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nightjar-systems/logship/internal/backend"
	"github.com/nightjar-systems/logship/internal/formatter"
	"github.com/nightjar-systems/logship/internal/metrics"
	"github.com/nightjar-systems/logship/pkg/entry"
	"github.com/nightjar-systems/logship/pkg/event"
)

const (
	defaultQueueSize  = 1024
	fallbackDelimiter = "----------------------------------------"
)

// Options configures a Sink. Name and Backend are required; the resource
// target must resolve through Resource, ProjectID, or the environment.
type Options struct {
	// Name identifies the log stream and is stamped as the operation
	// producer on every entry.
	Name string

	// Resource is the explicit resource target. Takes priority over
	// ProjectID and the environment fallback.
	Resource *entry.Resource

	// ProjectID, when set, is wrapped into a global resource target.
	ProjectID string

	// Backend receives entry batches.
	Backend backend.Writer

	// Fallback receives diagnostic blocks when delivery fails.
	// Defaults to stderr.
	Fallback io.Writer

	// QueueSize bounds the number of pending deliveries. Defaults to 1024.
	QueueSize int

	// OnDelivery, if set, observes every completed write attempt.
	OnDelivery func(entries []*entry.Entry, err error)
}

// Stats is a snapshot of sink counters.
type Stats struct {
	Accepted  uint64 `json:"accepted"`
	Skipped   uint64 `json:"skipped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// Sink is a single-writer ordered consumer of events. Formatting is
// synchronous; delivery runs on one worker goroutine so event N+1 is accepted
// while event N's delivery is in flight, and batches reach the backend in
// submission order.
type Sink struct {
	name       string
	resource   *entry.Resource
	formatter  *formatter.Formatter
	backend    backend.Writer
	fallback   io.Writer
	onDelivery func([]*entry.Entry, error)

	jobs chan []*entry.Entry
	wg   sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}

	accepted  atomic.Uint64
	skipped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// New validates the options, resolves the resource target, and starts the
// delivery worker. Configuration errors are fatal and surfaced immediately.
func New(opts Options) (*Sink, error) {
	if opts.Name == "" {
		return nil, ErrMissingName
	}
	if opts.Backend == nil {
		return nil, ErrMissingBackend
	}
	resource, err := resolveResource(opts)
	if err != nil {
		return nil, err
	}

	fallback := opts.Fallback
	if fallback == nil {
		fallback = os.Stderr
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	s := &Sink{
		name:       opts.Name,
		resource:   resource,
		formatter:  formatter.New(opts.Name, resource),
		backend:    opts.Backend,
		fallback:   fallback,
		onDelivery: opts.OnDelivery,
		jobs:       make(chan []*entry.Entry, queueSize),
		closed:     make(chan struct{}),
	}
	go s.deliverLoop()
	return s, nil
}

// Name returns the configured stream name.
func (s *Sink) Name() string { return s.name }

// Resource returns the resolved resource target, immutable for the sink's
// lifetime.
func (s *Sink) Resource() *entry.Resource { return s.resource }

// Consume accepts one event. The entry is built synchronously and its
// delivery queued; delivery outcomes never propagate to the caller.
func (s *Sink) Consume(ev *event.Event) {
	s.accepted.Add(1)
	e := s.formatter.Format(ev)
	if e == nil {
		s.skipped.Add(1)
		metrics.EntriesSkipped.Inc()
		return
	}
	s.enqueue([]*entry.Entry{e})
}

// ConsumeBatch accepts an ordered event sequence and submits the resulting
// entries as a single backend write, preserving input order. Filtered events
// shrink the batch; the write itself is always submitted, even when empty.
func (s *Sink) ConsumeBatch(events []*event.Event) {
	entries := make([]*entry.Entry, 0, len(events))
	for _, ev := range events {
		s.accepted.Add(1)
		e := s.formatter.Format(ev)
		if e == nil {
			s.skipped.Add(1)
			metrics.EntriesSkipped.Inc()
			continue
		}
		entries = append(entries, e)
	}
	s.enqueue(entries)
}

func (s *Sink) enqueue(entries []*entry.Entry) {
	s.wg.Add(1)
	select {
	case s.jobs <- entries:
	default:
		// The producer must never block on logging. A saturated queue
		// drops the batch but keeps the failure visible.
		s.wg.Done()
		s.failed.Add(uint64(len(entries)))
		s.writeFallback(fmt.Errorf("sink: delivery queue full, dropping %d entries", len(entries)), entries)
	}
}

func (s *Sink) deliverLoop() {
	for entries := range s.jobs {
		s.deliver(entries)
		s.wg.Done()
	}
	close(s.closed)
}

// deliver hands one batch to the backend. Failures are swallowed here by
// design: there is no lower-level channel to escalate to, so the error and
// the offending entries go to the fallback writer instead.
func (s *Sink) deliver(entries []*entry.Entry) {
	start := time.Now()
	err := s.backend.Write(context.Background(), entries)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.failed.Add(uint64(len(entries)))
		s.writeFallback(err, entries)
	} else {
		s.delivered.Add(uint64(len(entries)))
	}
	if s.onDelivery != nil {
		s.onDelivery(entries, err)
	}
}

func (s *Sink) writeFallback(err error, entries []*entry.Entry) {
	fmt.Fprintln(s.fallback, fallbackDelimiter)
	fmt.Fprintln(s.fallback, err.Error())
	for _, e := range entries {
		if data, merr := json.MarshalIndent(e, "", "  "); merr == nil {
			fmt.Fprintln(s.fallback, string(data))
		} else {
			fmt.Fprintf(s.fallback, "%+v\n", e)
		}
	}
	fmt.Fprintln(s.fallback, fallbackDelimiter)
}

// Flush blocks until every queued delivery has completed or failed.
func (s *Sink) Flush() {
	s.wg.Wait()
}

// Close flushes pending deliveries and stops the worker.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.wg.Wait()
		close(s.jobs)
		<-s.closed
	})
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Accepted:  s.accepted.Load(),
		Skipped:   s.skipped.Load(),
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
	}
}
