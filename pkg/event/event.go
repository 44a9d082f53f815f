// Package event defines the lifecycle event stream consumed by the sink.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the event variants. Tags outside the known set are
// treated as extension events rather than rejected.
type Kind string

const (
	KindResponse    Kind = "response"
	KindRequestLog  Kind = "request"
	KindServerLog   Kind = "log"
	KindServerError Kind = "error"
	KindOpsSnapshot Kind = "ops"
)

// Known reports whether k is one of the built-in event kinds.
func (k Kind) Known() bool {
	switch k {
	case KindResponse, KindRequestLog, KindServerLog, KindServerError, KindOpsSnapshot:
		return true
	}
	return false
}

// Time wraps time.Time to accept both epoch milliseconds and RFC3339 strings
// on the wire. Producers disagree on the format, so both are supported.
type Time struct {
	time.Time
}

// UnmarshalJSON decodes a JSON number as epoch milliseconds and a JSON string
// as RFC3339.
func (t *Time) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		t.Time = parsed
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	sec := int64(ms / 1000)
	nsec := int64((ms - float64(sec)*1000) * 1e6)
	t.Time = time.Unix(sec, nsec).UTC()
	return nil
}

// MarshalJSON encodes the timestamp as epoch milliseconds.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UnixMilli())
}

// ErrorDetail carries the failure attached to a server-error event.
type ErrorDetail struct {
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Event is the discriminated lifecycle record. The Kind tag determines which
// fields are populated; consumers must not assume optional fields are present.
type Event struct {
	Kind      Kind     `json:"event"`
	Timestamp Time     `json:"timestamp"`
	RequestID string   `json:"id,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	// response fields
	Method        string   `json:"method,omitempty"`
	StatusCode    int      `json:"statusCode,omitempty"`
	Path          string   `json:"path,omitempty"`
	Instance      string   `json:"instance,omitempty"`
	RequestBytes  int64    `json:"requestBytes,omitempty"`
	ResponseBytes int64    `json:"responseBytes,omitempty"`
	ResponseTime  *float64 `json:"responseTime,omitempty"`
	LatencyMs     *float64 `json:"latencyMs,omitempty"`
	ClientAddr    string   `json:"clientAddr,omitempty"`
	UserAgent     string   `json:"userAgent,omitempty"`
	Referrer      string   `json:"referrer,omitempty"`

	// server-error fields (HTTP context comes from the request enricher)
	URL   string       `json:"url,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`

	// ops-snapshot fields
	OS   any `json:"os,omitempty"`
	Proc any `json:"proc,omitempty"`
	Load any `json:"load,omitempty"`

	// request-log, server-log and extension payload
	Data any `json:"data,omitempty"`
}

// LatencyMillis returns the response latency in milliseconds. The field name
// changed between producer versions, so responseTime is preferred and
// latencyMs accepted as a fallback. Absent latency reads as 0.
func (e *Event) LatencyMillis() float64 {
	if e.ResponseTime != nil {
		return *e.ResponseTime
	}
	if e.LatencyMs != nil {
		return *e.LatencyMs
	}
	return 0
}

// Decode parses a payload holding either a single event object or an ordered
// event array. The second result reports whether the payload used the array
// form, which callers submit as a batch.
func Decode(data []byte) ([]*Event, bool, error) {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			var events []*Event
			if err := json.Unmarshal(data, &events); err != nil {
				return nil, false, fmt.Errorf("decode event batch: %w", err)
			}
			return events, true, nil
		default:
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				return nil, false, fmt.Errorf("decode event: %w", err)
			}
			return []*Event{&ev}, false, nil
		}
	}
	return nil, false, fmt.Errorf("empty event payload")
}
