// Package seeder generates realistic lifecycle events for exercising a
// running ingest endpoint.
package seeder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/nightjar-systems/logship/pkg/event"
)

var kinds = []event.Kind{
	event.KindResponse,
	event.KindRequestLog,
	event.KindServerLog,
	event.KindServerError,
	event.KindOpsSnapshot,
}

// GenerateEvent creates one fake event. Events are spread backwards from now
// across timeSpread with jitter, matching index's position in totalCount.
func GenerateEvent(kind event.Kind, index, totalCount int, timeSpread time.Duration) *event.Event {
	eventTime := time.Now()
	if timeSpread > 0 && totalCount > 0 {
		baseInterval := float64(timeSpread) / float64(totalCount)
		offset := time.Duration(float64(index)*baseInterval) +
			time.Duration((rand.Float64()*2-1)*baseInterval*0.4)
		if offset < 0 {
			offset = 0
		}
		if offset > timeSpread {
			offset = timeSpread
		}
		eventTime = eventTime.Add(-(timeSpread - offset))
	}

	ev := &event.Event{
		Kind:      kind,
		Timestamp: event.Time{Time: eventTime},
		RequestID: gofakeit.UUID(),
	}

	switch kind {
	case event.KindResponse:
		fillResponse(ev)
	case event.KindRequestLog, event.KindServerLog:
		fillLog(ev)
	case event.KindServerError:
		fillServerError(ev)
	case event.KindOpsSnapshot:
		fillOpsSnapshot(ev)
	default:
		ev.Data = map[string]any{"note": gofakeit.Sentence(6)}
	}
	return ev
}

// GenerateBatch creates count events of random kinds.
func GenerateBatch(count int, timeSpread time.Duration) []*event.Event {
	events := make([]*event.Event, count)
	for i := range events {
		events[i] = GenerateEvent(kinds[rand.Intn(len(kinds))], i, count, timeSpread)
	}
	return events
}

// Post ships the events to an ingest endpoint as one batch.
func Post(url string, events []*event.Event) error {
	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	resp, err := http.Post(url+"/api/v1/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}

func fillResponse(ev *event.Event) {
	statuses := []int{200, 200, 200, 201, 204, 301, 400, 404, 500, 503}
	latency := float64(rand.Intn(2000)) + rand.Float64()

	ev.Method = strings.ToLower(gofakeit.HTTPMethod())
	ev.StatusCode = statuses[rand.Intn(len(statuses))]
	ev.Path = "/" + gofakeit.Word() + "/" + gofakeit.Word()
	ev.Instance = gofakeit.DomainName()
	ev.RequestBytes = int64(rand.Intn(4096))
	ev.ResponseBytes = int64(rand.Intn(65536))
	ev.ResponseTime = &latency
	ev.ClientAddr = gofakeit.IPv4Address()
	ev.UserAgent = gofakeit.UserAgent()
	ev.Referrer = gofakeit.URL()
	if ev.StatusCode >= 500 {
		ev.Tags = []string{"error"}
	}
}

func fillLog(ev *event.Event) {
	severities := []string{"debug", "info", "notice", "warning", "error"}
	ev.Tags = []string{severities[rand.Intn(len(severities))], gofakeit.Word()}
	ev.Data = map[string]any{
		"message": gofakeit.HackerPhrase(),
		"module":  gofakeit.Word(),
	}
}

func fillServerError(ev *event.Event) {
	message := gofakeit.HackerPhrase()
	ev.Method = strings.ToLower(gofakeit.HTTPMethod())
	ev.URL = gofakeit.URL()
	ev.StatusCode = 500
	ev.ClientAddr = gofakeit.IPv4Address()
	ev.UserAgent = gofakeit.UserAgent()
	ev.Error = &event.ErrorDetail{
		Message: message,
		Stack:   fmt.Sprintf("Error: %s\n    at %s:%d", message, gofakeit.Word()+".go", rand.Intn(400)+1),
	}
}

func fillOpsSnapshot(ev *event.Event) {
	ev.OS = map[string]any{
		"mem":    map[string]any{"total": 16 << 30, "free": rand.Int63n(8 << 30)},
		"uptime": rand.Intn(864000),
	}
	ev.Proc = map[string]any{
		"uptime": rand.Intn(86400),
		"mem":    map[string]any{"rss": rand.Int63n(1 << 30)},
	}
	ev.Load = []float64{rand.Float64() * 4, rand.Float64() * 4, rand.Float64() * 4}
}
