// Package entry defines the normalized log entry schema shipped to the
// structured-logging backend.
package entry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Severity orders log levels from least to most severe.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityNotice
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityAlert
	SeverityEmergency
)

var severityNames = [...]string{
	"DEBUG", "INFO", "NOTICE", "WARNING", "ERROR", "CRITICAL", "ALERT", "EMERGENCY",
}

// String returns the upper-case severity name.
func (s Severity) String() string {
	if s < SeverityDebug || s > SeverityEmergency {
		return "INFO"
	}
	return severityNames[s]
}

// MarshalJSON encodes the severity as its name. Entries carry an explicit
// severity field rather than being routed through per-severity backend calls.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity name, case-insensitively.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseSeverity(name)
	if !ok {
		return fmt.Errorf("unknown severity %q", name)
	}
	*s = parsed
	return nil
}

// ParseSeverity matches name against the eight severity names,
// case-insensitively.
func ParseSeverity(name string) (Severity, bool) {
	upper := strings.ToUpper(name)
	for i, n := range severityNames {
		if n == upper {
			return Severity(i), true
		}
	}
	return SeverityInfo, false
}

// Operation correlates an entry with the producing request and stream.
type Operation struct {
	ID       string `json:"id,omitempty"`
	Producer string `json:"producer"`
}

// Resource identifies the monitored target entries are attributed to. It is
// resolved once at sink construction and shared by every entry.
type Resource struct {
	Type   string            `json:"type"`
	Labels map[string]string `json:"labels,omitempty"`
}

// GlobalResource wraps a project identifier into a global resource target.
func GlobalResource(projectID string) *Resource {
	return &Resource{
		Type:   "global",
		Labels: map[string]string{"project_id": projectID},
	}
}

// Latency is a split seconds/nanoseconds duration, the wire format the
// backend expects for request latency.
type Latency struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// LatencyFromMillis converts a millisecond measurement: whole seconds plus
// the rounded millisecond remainder scaled to nanoseconds.
func LatencyFromMillis(ms float64) Latency {
	return Latency{
		Seconds: int64(math.Floor(ms / 1000)),
		Nanos:   int32(math.Round(math.Mod(ms, 1000)) * 1e6),
	}
}

// HTTPRequest is the structured request sub-record attached to response
// entries.
type HTTPRequest struct {
	RequestMethod string   `json:"requestMethod,omitempty"`
	RequestURL    string   `json:"requestUrl,omitempty"`
	RequestSize   int64    `json:"requestSize,omitempty"`
	ResponseSize  int64    `json:"responseSize,omitempty"`
	Status        int      `json:"status,omitempty"`
	UserAgent     string   `json:"userAgent,omitempty"`
	Referer       string   `json:"referer,omitempty"`
	RemoteIP      string   `json:"remoteIp,omitempty"`
	Latency       *Latency `json:"latency,omitempty"`
}

// Entry is a normalized log entry. Entries are immutable once built; they are
// handed to the backend and never mutated afterward.
type Entry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Severity    Severity        `json:"severity"`
	InsertID    string          `json:"insertId,omitempty"`
	LogName     string          `json:"logName,omitempty"`
	Operation   *Operation      `json:"operation,omitempty"`
	Resource    *Resource       `json:"resource,omitempty"`
	HTTPRequest *HTTPRequest    `json:"httpRequest,omitempty"`
	Labels      map[string]bool `json:"labels,omitempty"`
	TextPayload string          `json:"textPayload,omitempty"`
	JSONPayload any             `json:"jsonPayload,omitempty"`
}
