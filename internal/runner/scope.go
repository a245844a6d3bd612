package runner

// ExecScope is the explicit capability context installed around a job-logic
// invocation: which artifact, at which version, the logic is expected to run
// against. It replaces implicit ambient state with a value that is installed
// and restored around the call.
type ExecScope struct {
	JobType      string
	Version      string
	ArtifactPath string
}

// withExecScope installs scope for the duration of fn and restores the prior
// value on every exit path, panics included.
func (r *JobRunner) withExecScope(scope ExecScope, fn func() error) error {
	r.mu.Lock()
	prev := r.activeScope
	r.activeScope = scope
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.activeScope = prev
		r.mu.Unlock()
	}()

	return fn()
}

// ActiveScope reports the currently installed execution scope; the zero
// value outside a job-logic invocation.
func (r *JobRunner) ActiveScope() ExecScope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeScope
}
