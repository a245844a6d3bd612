package domain

type Status string

const (
	StatusReady     Status = "ready"
	StatusDisabled  Status = "disabled"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
	StatusSkipped   Status = "skipped"
)

// IsTerminal reports whether a node in this status will never change status
// again. Kill requests against a terminal node are no-ops.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusKilled, StatusSkipped:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
