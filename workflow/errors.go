package workflow

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a workflow ID is unknown to the registry.
var ErrNotFound = errors.New("workflow not found")

// InProgressError is returned when a result is requested before the
// workflow reached a terminal status. It carries the current status so
// callers can report progress.
type InProgressError struct {
	Status Status
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("workflow still in progress (status: %s)", e.Status)
}

// ValidationError reports a rejected workflow request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
