package domain

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	ErrAlreadyStarted = errors.New("runner already started")
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrJobTypeUnknown = errors.New("job type not registered")
)

type JobBuildError struct {
	JobType string
	NodeID  string
	Err     error
}

func (e *JobBuildError) Error() string {
	return fmt.Sprintf("building job %q of type %q: %v", e.NodeID, e.JobType, e.Err)
}

func (e *JobBuildError) Unwrap() error {
	return e.Err
}

func NewJobBuildError(jobType, nodeID string, err error) *JobBuildError {
	return &JobBuildError{
		JobType: jobType,
		NodeID:  nodeID,
		Err:     err,
	}
}

// JobPanicError wraps a panic recovered from job logic so it surfaces as a
// terminal failure instead of tearing down the runner's goroutine.
type JobPanicError struct {
	NodeID     string
	PanicValue interface{}
	StackTrace string
}

func (e *JobPanicError) Error() string {
	return fmt.Sprintf("job %s panicked: %v", e.NodeID, e.PanicValue)
}

func NewJobPanicError(nodeID string, panicValue interface{}) *JobPanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	return &JobPanicError{
		NodeID:     nodeID,
		PanicValue: panicValue,
		StackTrace: string(buf[:n]),
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsJobTypeUnknown(err error) bool {
	return errors.Is(err, ErrJobTypeUnknown)
}
