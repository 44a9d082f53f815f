package sink

import (
	"errors"
	"fmt"
	"os"

	"github.com/nightjar-systems/logship/pkg/entry"
)

// EnvProjectID is the process-wide fallback project identifier, read once at
// sink construction and never re-read per event.
const EnvProjectID = "LOGSHIP_PROJECT_ID"

var (
	// ErrMissingName is returned when Options.Name is empty.
	ErrMissingName = errors.New("sink: name is required")

	// ErrNoResource is returned when no resource resolution path succeeds.
	ErrNoResource = errors.New("sink: no resource target: set Resource, ProjectID, or " + EnvProjectID)

	// ErrMissingBackend is returned when no backend writer is configured.
	ErrMissingBackend = errors.New("sink: backend writer is required")
)

// resolveResource picks the resource target in priority order: an explicit
// resource, an explicit project id wrapped into a global resource, then the
// environment project id.
func resolveResource(opts Options) (*entry.Resource, error) {
	if opts.Resource != nil {
		if opts.Resource.Type == "" {
			return nil, fmt.Errorf("sink: explicit resource is missing a type")
		}
		return opts.Resource, nil
	}
	if opts.ProjectID != "" {
		return entry.GlobalResource(opts.ProjectID), nil
	}
	if projectID := os.Getenv(EnvProjectID); projectID != "" {
		return entry.GlobalResource(projectID), nil
	}
	return nil, ErrNoResource
}
