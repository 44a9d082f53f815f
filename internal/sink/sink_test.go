package sink_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightjar-systems/logship/internal/sink"
	"github.com/nightjar-systems/logship/pkg/entry"
	"github.com/nightjar-systems/logship/pkg/event"
)

// captureWriter records every write and optionally fails them.
type captureWriter struct {
	mu    sync.Mutex
	calls [][]*entry.Entry
	err   error
}

func (w *captureWriter) Write(ctx context.Context, entries []*entry.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, entries)
	return w.err
}

func (w *captureWriter) Calls() [][]*entry.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]*entry.Entry(nil), w.calls...)
}

func newSink(t *testing.T, writer *captureWriter, fallback *bytes.Buffer) *sink.Sink {
	t.Helper()
	opts := sink.Options{
		Name:      "api",
		ProjectID: "test-project",
		Backend:   writer,
	}
	if fallback != nil {
		opts.Fallback = fallback
	}
	s, err := sink.New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func logEvent(msg string) *event.Event {
	return &event.Event{
		Kind:      event.KindServerLog,
		Timestamp: event.Time{Time: time.Now()},
		Tags:      []string{"info"},
		Data:      msg,
	}
}

func healthCheckEvent() *event.Event {
	return &event.Event{
		Kind:       event.KindResponse,
		Timestamp:  event.Time{Time: time.Now()},
		StatusCode: 200,
		UserAgent:  "GoogleHC/1.0",
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	writer := &captureWriter{}

	t.Run("missing name", func(t *testing.T) {
		_, err := sink.New(sink.Options{ProjectID: "p", Backend: writer})
		assert.ErrorIs(t, err, sink.ErrMissingName)
	})

	t.Run("missing backend", func(t *testing.T) {
		_, err := sink.New(sink.Options{Name: "api", ProjectID: "p"})
		assert.ErrorIs(t, err, sink.ErrMissingBackend)
	})

	t.Run("no resource resolution path", func(t *testing.T) {
		t.Setenv(sink.EnvProjectID, "")
		_, err := sink.New(sink.Options{Name: "api", Backend: writer})
		assert.ErrorIs(t, err, sink.ErrNoResource)
	})

	t.Run("explicit resource without type", func(t *testing.T) {
		_, err := sink.New(sink.Options{Name: "api", Backend: writer, Resource: &entry.Resource{}})
		assert.Error(t, err)
	})
}

func TestNew_ResourceResolutionPaths(t *testing.T) {
	writer := &captureWriter{}

	t.Run("explicit resource wins", func(t *testing.T) {
		explicit := &entry.Resource{Type: "container", Labels: map[string]string{"cluster": "a"}}
		s, err := sink.New(sink.Options{Name: "api", Backend: writer, Resource: explicit, ProjectID: "ignored"})
		require.NoError(t, err)
		defer s.Close()
		assert.Same(t, explicit, s.Resource())
	})

	t.Run("project id becomes global resource", func(t *testing.T) {
		s, err := sink.New(sink.Options{Name: "api", Backend: writer, ProjectID: "proj-1"})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, "global", s.Resource().Type)
		assert.Equal(t, "proj-1", s.Resource().Labels["project_id"])
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv(sink.EnvProjectID, "env-proj")
		s, err := sink.New(sink.Options{Name: "api", Backend: writer})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, "env-proj", s.Resource().Labels["project_id"])
	})
}

func TestConsume_DeliversOneEntry(t *testing.T) {
	writer := &captureWriter{}
	s := newSink(t, writer, nil)

	s.Consume(logEvent("hello"))
	s.Flush()

	calls := writer.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, "hello", calls[0][0].TextPayload)
	assert.Equal(t, "api", calls[0][0].Operation.Producer)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Accepted)
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(0), stats.Failed)
}

func TestConsume_HealthCheckProducesNothing(t *testing.T) {
	writer := &captureWriter{}
	fallback := &bytes.Buffer{}
	s := newSink(t, writer, fallback)

	s.Consume(healthCheckEvent())
	s.Flush()

	assert.Empty(t, writer.Calls())
	assert.Empty(t, fallback.String())
	assert.Equal(t, uint64(1), s.Stats().Skipped)
}

func TestConsumeBatch_OneWritePreservingOrder(t *testing.T) {
	writer := &captureWriter{}
	s := newSink(t, writer, nil)

	s.ConsumeBatch([]*event.Event{
		logEvent("first"),
		healthCheckEvent(),
		logEvent("second"),
		logEvent("third"),
	})
	s.Flush()

	calls := writer.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 3)
	assert.Equal(t, "first", calls[0][0].TextPayload)
	assert.Equal(t, "second", calls[0][1].TextPayload)
	assert.Equal(t, "third", calls[0][2].TextPayload)
}

func TestConsumeBatch_EmptyStillWritesOnce(t *testing.T) {
	writer := &captureWriter{}
	s := newSink(t, writer, nil)

	s.ConsumeBatch(nil)
	s.Flush()

	calls := writer.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0])
}

func TestConsume_FailureGoesToFallback(t *testing.T) {
	writer := &captureWriter{err: errors.New("backend unavailable")}
	fallback := &bytes.Buffer{}
	s := newSink(t, writer, fallback)

	s.Consume(logEvent("doomed"))
	s.Flush()

	out := fallback.String()
	assert.Contains(t, out, "backend unavailable")
	assert.Contains(t, out, "doomed")
	assert.Equal(t, 2, strings.Count(out, "----------------------------------------"))
	assert.Equal(t, uint64(1), s.Stats().Failed)
}

func TestConsumeBatch_FailureLogsOnceForWholeBatch(t *testing.T) {
	writer := &captureWriter{err: errors.New("bulk rejected")}
	fallback := &bytes.Buffer{}
	s := newSink(t, writer, fallback)

	s.ConsumeBatch([]*event.Event{logEvent("a"), logEvent("b"), logEvent("c")})
	s.Flush()

	out := fallback.String()
	assert.Equal(t, 1, strings.Count(out, "bulk rejected"))
	assert.Equal(t, 2, strings.Count(out, "----------------------------------------"))
}

func TestConsume_Pipelining(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string

	blocking := &blockingWriter{release: release, record: func(tag string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, tag)
	}}

	s, err := sink.New(sink.Options{Name: "api", ProjectID: "p", Backend: blocking})
	require.NoError(t, err)
	defer s.Close()

	// The first delivery blocks inside the writer; the next events must
	// still be accepted without waiting on it.
	s.Consume(logEvent("one"))
	s.Consume(logEvent("two"))
	s.Consume(logEvent("three"))
	close(release)
	s.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two", "three"}, order)
}

type blockingWriter struct {
	once    sync.Once
	release chan struct{}
	record  func(string)
}

func (w *blockingWriter) Write(ctx context.Context, entries []*entry.Entry) error {
	w.once.Do(func() { <-w.release })
	if len(entries) == 1 {
		w.record(entries[0].TextPayload)
	}
	return nil
}

func TestOnDeliveryHook(t *testing.T) {
	writer := &captureWriter{err: errors.New("nope")}
	var mu sync.Mutex
	var outcomes []error

	s, err := sink.New(sink.Options{
		Name:      "api",
		ProjectID: "p",
		Backend:   writer,
		Fallback:  &bytes.Buffer{},
		OnDelivery: func(entries []*entry.Entry, err error) {
			mu.Lock()
			defer mu.Unlock()
			outcomes = append(outcomes, err)
		},
	})
	require.NoError(t, err)
	defer s.Close()

	s.Consume(logEvent("x"))
	s.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0])
}
