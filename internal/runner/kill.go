package runner

import (
	"time"
)

// Kill requests cancellation of the run on behalf of user. It is safe to
// call from any goroutine at any point in the state machine: before the
// delay wait (the run short-circuits to killed), during the wait (the wait
// wakes immediately), or while the job logic runs (the logic is cancelled
// cooperatively). Kill is idempotent, and a no-op once the node is terminal.
func (r *JobRunner) Kill(user string) {
	r.mu.Lock()
	if r.killRequested || r.node.Status().IsTerminal() {
		r.mu.Unlock()
		return
	}
	r.killRequested = true
	r.killTime = time.Now()

	// Closing under mu makes the signal and the wait share one
	// mutual-exclusion domain: a waiter either sees killRequested before
	// parking or observes the closed channel.
	close(r.cancelWait)

	cancel := r.cancelJob
	job := r.job
	killTime := r.killTime
	r.mu.Unlock()

	r.node.SetModifiedBy(user)
	r.node.SetKillTime(killTime)

	r.logger.Info("kill requested", "user", user)

	if cancel != nil {
		cancel()
	}
	if job != nil {
		if err := job.Cancel(); err != nil {
			r.logger.Error("job cancel hook failed", "error", err.Error())
		}
	}
}

// waitForDelay suspends for the configured delay, observing the kill signal.
// It returns true when a kill was requested before or during the wait.
func (r *JobRunner) waitForDelay() bool {
	r.mu.Lock()
	if r.killRequested {
		r.mu.Unlock()
		return true
	}
	delay := r.delay
	cancelWait := r.cancelWait
	r.mu.Unlock()

	if delay <= 0 {
		return false
	}

	r.logger.Info("delaying job start", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-cancelWait:
		r.logger.Info("delay wait interrupted by kill")
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.killRequested
}
