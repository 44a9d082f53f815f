// Package formatter maps lifecycle events onto normalized log entries.
package formatter

import (
	"fmt"
	"strings"

	"github.com/nightjar-systems/logship/pkg/entry"
	"github.com/nightjar-systems/logship/pkg/event"
)

// healthCheckUAPrefix marks synthetic load-balancer health-check traffic,
// which is filtered out rather than shipped.
const healthCheckUAPrefix = "GoogleHC"

const accessLogTimeLayout = "02/Jan/2006:15:04:05 -0700"

// Formatter builds entries from events. It is a pure transform: formatting
// never fails, and events with no entry to emit (health checks) yield nil.
type Formatter struct {
	service  string
	resource *entry.Resource
}

// New creates a formatter producing entries attributed to the given service
// name and resource target.
func New(service string, resource *entry.Resource) *Formatter {
	return &Formatter{service: service, resource: resource}
}

// Format classifies the event and builds its entry, or returns nil when the
// event is filtered. Unknown kinds take the extension branch.
func (f *Formatter) Format(ev *event.Event) *entry.Entry {
	if ev == nil {
		return nil
	}

	var e *entry.Entry
	switch ev.Kind {
	case event.KindResponse:
		e = f.formatResponse(ev)
	case event.KindRequestLog, event.KindServerLog:
		e = f.formatLog(ev)
	case event.KindServerError:
		e = f.formatServerError(ev)
	case event.KindOpsSnapshot:
		e = f.formatOpsSnapshot(ev)
	default:
		e = f.formatExtension(ev)
	}
	if e == nil {
		return nil
	}

	e.Timestamp = ev.Timestamp.Time
	e.Operation = &entry.Operation{ID: ev.RequestID, Producer: f.service}
	e.Resource = f.resource
	return e
}

func (f *Formatter) formatResponse(ev *event.Event) *entry.Entry {
	if strings.HasPrefix(ev.UserAgent, healthCheckUAPrefix) {
		return nil
	}

	// Ascending threshold checks so the highest crossed level wins.
	severity := entry.SeverityInfo
	if ev.StatusCode >= 400 {
		severity = entry.SeverityWarning
	}
	if ev.StatusCode >= 500 {
		severity = entry.SeverityError
	}

	var labels map[string]bool
	if len(ev.Tags) > 0 {
		labels = make(map[string]bool, len(ev.Tags))
		for _, tag := range ev.Tags {
			labels[tag] = true
		}
	}

	method := strings.ToUpper(ev.Method)
	latency := entry.LatencyFromMillis(ev.LatencyMillis())

	return &entry.Entry{
		Severity: severity,
		Labels:   labels,
		HTTPRequest: &entry.HTTPRequest{
			RequestMethod: method,
			RequestURL:    ev.Path,
			RequestSize:   ev.RequestBytes,
			ResponseSize:  ev.ResponseBytes,
			Status:        ev.StatusCode,
			UserAgent:     ev.UserAgent,
			Referer:       ev.Referrer,
			RemoteIP:      ev.ClientAddr,
			Latency:       &latency,
		},
		TextPayload: fmt.Sprintf("%s - - [%s] \"%s %s\" %d %d",
			ev.ClientAddr,
			ev.Timestamp.Format(accessLogTimeLayout),
			method,
			ev.Path,
			ev.StatusCode,
			ev.ResponseBytes,
		),
	}
}

func (f *Formatter) formatLog(ev *event.Event) *entry.Entry {
	e := &entry.Entry{Severity: severityFromTags(ev.Tags)}
	if s, ok := ev.Data.(string); ok {
		e.TextPayload = s
	} else {
		e.JSONPayload = ev.Data
	}
	return e
}

func (f *Formatter) formatServerError(ev *event.Event) *entry.Entry {
	message := ""
	if ev.Error != nil {
		message = ev.Error.Stack
		if message == "" {
			message = ev.Error.Message
		}
	}

	return &entry.Entry{
		Severity: entry.SeverityError,
		JSONPayload: errorReport{
			Message:        message,
			ServiceContext: serviceContext{Service: f.service},
			Context: &reportContext{
				HTTPRequest: reportHTTPRequest{
					Method:             strings.ToUpper(ev.Method),
					URL:                ev.URL,
					UserAgent:          ev.UserAgent,
					Referrer:           ev.Referrer,
					ResponseStatusCode: ev.StatusCode,
					RemoteIP:           ev.ClientAddr,
				},
			},
		},
	}
}

func (f *Formatter) formatOpsSnapshot(ev *event.Event) *entry.Entry {
	return &entry.Entry{
		Severity: entry.SeverityDebug,
		JSONPayload: opsPayload{
			OS:   ev.OS,
			Proc: ev.Proc,
			Load: ev.Load,
		},
	}
}

func (f *Formatter) formatExtension(ev *event.Event) *entry.Entry {
	return &entry.Entry{
		Severity:    entry.SeverityInfo,
		Labels:      map[string]bool{string(ev.Kind): true},
		JSONPayload: ev.Data,
	}
}

// severityFromTags returns the severity of the first tag matching a severity
// name, scanning in tag order, or INFO when none match.
func severityFromTags(tags []string) entry.Severity {
	for _, tag := range tags {
		if s, ok := entry.ParseSeverity(tag); ok {
			return s
		}
	}
	return entry.SeverityInfo
}

// errorReport is the structured payload for server-error entries.
type errorReport struct {
	Message        string         `json:"message"`
	ServiceContext serviceContext `json:"serviceContext"`
	Context        *reportContext `json:"context,omitempty"`
}

type serviceContext struct {
	Service string `json:"service"`
}

type reportContext struct {
	HTTPRequest reportHTTPRequest `json:"httpRequest"`
}

type reportHTTPRequest struct {
	Method             string `json:"method,omitempty"`
	URL                string `json:"url,omitempty"`
	UserAgent          string `json:"userAgent,omitempty"`
	Referrer           string `json:"referrer,omitempty"`
	ResponseStatusCode int    `json:"responseStatusCode,omitempty"`
	RemoteIP           string `json:"remoteIp,omitempty"`
}

// opsPayload keeps the metric groups of an ops snapshot unmodified.
type opsPayload struct {
	OS   any `json:"os,omitempty"`
	Proc any `json:"proc,omitempty"`
	Load any `json:"load,omitempty"`
}
