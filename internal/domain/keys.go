package domain

// Well-known property keys shared between the runner and job logic.
const (
	// PropJobType names the job type in a node's input props.
	PropJobType = "type"

	// PropUserToProxy holds the resolved effective user a job runs as.
	// The runner writes it before job logic sees the props.
	PropUserToProxy = "user.to.proxy"

	// PropJobLogFile is injected by the runner with the absolute path of the
	// per-job log file.
	PropJobLogFile = "job.log.file"

	// PropJobLogLayout overrides the default timestamp layout of job log
	// lines. The value is a Go time layout string.
	PropJobLogLayout = "job.log.layout"
)

// UnknownActor is recorded as a node's last-modifying actor when a job fails
// and no kill request identified a user.
const UnknownActor = "unknown"
