package publish

import (
	"errors"
	"fmt"

	"github.com/fpang/meta-publisher/internal/platform"
)

var (
	// ErrUnsupported matches any UnsupportedOperationError.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrChildNotReady matches any ChildNotReadyError.
	ErrChildNotReady = errors.New("carousel child not ready")
	// ErrPlatformNotConfigured is returned when a job targets a platform
	// whose adapter was not supplied to the Orchestrator.
	ErrPlatformNotConfigured = errors.New("platform not configured")
)

// UnsupportedOperationError names an unknown resource or operation value.
type UnsupportedOperationError struct {
	Resource  string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("unsupported resource %q", e.Resource)
	}
	return fmt.Sprintf("unsupported operation %q for resource %q", e.Operation, e.Resource)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupported
}

// ChildNotReadyError aborts a carousel when a child container failed or did
// not finish within its poll window. No parent container is created.
type ChildNotReadyError struct {
	Platform platform.Name
	Index    int
	ChildID  string
	Status   platform.Status
	Message  string
	TimedOut bool
}

func (e *ChildNotReadyError) Error() string {
	msg := fmt.Sprintf("%s carousel child %d (%s) not ready: status %s", e.Platform, e.Index, e.ChildID, e.Status)
	if e.TimedOut {
		msg += " after poll timeout"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ChildNotReadyError) Is(target error) bool {
	return target == ErrChildNotReady
}

// JobError attributes a failure to one input item of a batch.
type JobError struct {
	Index     int
	Platform  platform.Name
	Operation Operation
	Err       error
}

func (e *JobError) Error() string {
	switch {
	case e.Platform == "":
		return fmt.Sprintf("job %d: %v", e.Index, e.Err)
	case e.Operation == "":
		return fmt.Sprintf("job %d (%s): %v", e.Index, e.Platform, e.Err)
	}
	return fmt.Sprintf("job %d (%s %s): %v", e.Index, e.Platform, e.Operation, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
