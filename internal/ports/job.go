package ports

import (
	"context"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// Job is the executable capability resolved for one node's job type. Run is
// invoked on the runner's own goroutine; it is expected to observe context
// cancellation and return promptly. The runner never force-terminates job
// logic.
type Job interface {
	Run(ctx context.Context, jc *JobContext) error
	Cancel() error
	Progress() float64
}

// JobLogger is the per-job log sink handed to job logic. Lines written here
// land in the node's rolling log file.
type JobLogger interface {
	Printf(format string, args ...interface{})
	Path() string
	Close() error
}

// JobContext carries everything a job sees from its runner: the merged input
// props (including the injected log-file path and effective user), the job
// log sink, the artifact version pinned for the job type, and the output
// props the job may populate on success.
type JobContext struct {
	Props   *domain.Props
	Outputs *domain.Props
	Logger  JobLogger
	Version domain.VersionInfo
}

// JobTypeRegistry maps a job type name to its executable capability and to
// the optional default-proxy-user table consulted during effective-identity
// resolution. Read-only from the runner's perspective.
type JobTypeRegistry interface {
	BuildJob(jobType string, props *domain.Props, logger JobLogger) (Job, error)

	// DefaultProxyUser returns the identity a job of the given type runs as
	// by default, when one is registered. When it fires, the resolved
	// identity overrides the flow's submitting identity.
	DefaultProxyUser(jobType string) (string, bool)
}
