package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/joblog"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Run drives the node to a terminal status. It is invoked once, on its own
// unit of work, and never returns an error: all three terminal outcomes are
// reported through node state and events only.
func (r *JobRunner) Run(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		r.logger.Error("run invoked twice", "error", domain.ErrAlreadyStarted.Error())
		return
	}
	r.started = true
	r.mu.Unlock()

	r.fire(domain.EventJobStarted)
	defer r.fire(domain.EventJobFinished)

	switch r.node.Status() {
	case domain.StatusDisabled:
		// Never dispatched: no identity resolution, no log, no persistence.
		r.finishFastPath(domain.StatusSkipped)
		r.logger.Info("job is disabled, skipping")
	case domain.StatusKilled:
		// Flow-level pre-kill; idempotent no-op.
		r.finishFastPath(domain.StatusKilled)
		r.logger.Info("job was killed before dispatch, nothing to do")
	default:
		r.doRun(ctx)
	}
}

func (r *JobRunner) finishFastPath(status domain.Status) {
	now := time.Now()
	r.node.SetStartTime(now)
	r.node.SetEndTime(now)
	r.node.SetStatus(status)
}

func (r *JobRunner) doRun(ctx context.Context) {
	r.node.SetStartTime(time.Now())

	if r.node.InputProps() == nil {
		r.node.SetInputProps(domain.NewProps())
	}
	r.node.InputProps().Put(domain.PropJobType, r.node.Type())

	r.resolveEffectiveUser()

	if queueDuration := r.QueueDuration(); queueDuration > 0 {
		r.logger.Debug("job leaving queue", "queue_duration", queueDuration)
	}

	// Queued checkpoint; first of the per-run persistence calls.
	r.writeStatus(ctx)

	if r.waitForDelay() {
		r.finishKilledBeforeRunning(ctx)
		return
	}

	r.executeJob(ctx)
}

// resolveEffectiveUser runs once, before any execution. The flow's
// submitting identity is the default; a registered default proxy user for
// the node's job type overrides it, and that override is reported to the
// proxy coordinator exactly once.
func (r *JobRunner) resolveEffectiveUser() {
	user := ""
	if flow := r.node.Flow(); flow != nil {
		user = flow.SubmitUser()
	}

	if r.registry != nil {
		if defaultUser, ok := r.registry.DefaultProxyUser(r.node.Type()); ok {
			user = defaultUser
			r.logger.Info("default proxy user overrides submit user",
				"job_type", r.node.Type(),
				"effective_user", user,
			)
			if r.proxy != nil {
				if err := r.proxy.RecordEffectiveUser(r.node.ID(), user, r.node.Type()); err != nil {
					r.logger.Error("failed to record effective user",
						"effective_user", user,
						"error", err.Error(),
					)
				}
			}
		}
	}

	r.mu.Lock()
	r.effectiveUser = user
	r.mu.Unlock()

	r.node.InputProps().Put(domain.PropUserToProxy, user)
}

// finishKilledBeforeRunning handles a kill that arrived before the running
// phase: the node goes straight to killed, and the "entered running"
// checkpoint is never written.
func (r *JobRunner) finishKilledBeforeRunning(ctx context.Context) {
	r.node.SetStatus(domain.StatusKilled)
	r.node.SetEndTime(time.Now())
	r.logger.Info("job killed before entering running",
		"modified_by", r.node.ModifiedBy(),
	)
	r.writeStatus(ctx)
}

func (r *JobRunner) executeJob(ctx context.Context) {
	props := r.node.InputProps()

	logPath := filepath.Join(r.workingDir,
		fmt.Sprintf("_job.%s.%s.log", r.executionID(), r.node.ID()))

	logOpts := r.jobLogOpts
	logOpts.Layout = props.GetString(domain.PropJobLogLayout, logOpts.Layout)
	sink := joblog.Open(logPath, logOpts)

	r.mu.Lock()
	r.jobLog = sink
	r.logFilePath = logPath
	r.mu.Unlock()

	// Scoped acquisition: the sink is closed and detached identically on
	// success, failure, kill, and panic. Close errors never override the
	// already-decided terminal status.
	defer func() {
		if err := sink.Close(); err != nil {
			r.logger.Error("failed to close job log sink", "error", err.Error())
		}
		r.mu.Lock()
		r.jobLog = nil
		r.mu.Unlock()
	}()

	props.Put(domain.PropJobLogFile, logPath)

	version := r.resolveVersion()
	sink.Printf("starting job %s of type %s (version %q) as %s",
		r.node.ID(), r.node.Type(), version.Version, r.EffectiveUser())

	r.node.SetStatus(domain.StatusRunning)
	r.fire(domain.EventJobStatusChanged)
	r.writeStatus(ctx)

	if r.registry == nil {
		r.finishTerminal(ctx, sink, domain.ErrJobTypeUnknown, nil)
		return
	}

	job, err := r.registry.BuildJob(r.node.Type(), props, sink)
	if err != nil {
		sink.Printf("failed to construct job logic: %v", err)
		r.finishTerminal(ctx, sink, domain.NewJobBuildError(r.node.Type(), r.node.ID(), err), nil)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.killRequested {
		r.mu.Unlock()
		r.finishTerminal(ctx, sink, nil, nil)
		return
	}
	r.job = job
	r.cancelJob = cancel
	r.mu.Unlock()

	jc := &ports.JobContext{
		Props:   props,
		Outputs: domain.NewProps(),
		Logger:  sink,
		Version: version,
	}

	runErr := r.runJob(runCtx, job, jc)

	r.mu.Lock()
	r.cancelJob = nil
	r.mu.Unlock()

	r.finishTerminal(ctx, sink, runErr, jc.Outputs)
}

// finishTerminal decides between succeeded, failed, and killed, records the
// end timestamp, and writes the final persistence checkpoint.
func (r *JobRunner) finishTerminal(ctx context.Context, sink *joblog.Logger, runErr error, outputs *domain.Props) {
	r.mu.Lock()
	killed := r.killRequested
	killTime := r.killTime
	r.mu.Unlock()

	switch {
	case killed:
		sink.Printf("job %s killed", r.node.ID())
		r.node.SetStatus(domain.StatusKilled)
	case runErr != nil:
		sink.Printf("job %s failed: %v", r.node.ID(), runErr)
		r.node.SetFailureMessage(runErr.Error())
		if r.node.ModifiedBy() == "" {
			r.node.SetModifiedBy(domain.UnknownActor)
		}
		r.node.SetStatus(domain.StatusFailed)
	default:
		sink.Printf("job %s succeeded", r.node.ID())
		r.node.SetOutputProps(outputs)
		r.node.SetStatus(domain.StatusSucceeded)
	}

	r.node.SetEndTime(time.Now())

	logger := r.logger.With("status", r.node.Status())
	if killed && !killTime.IsZero() {
		logger.Info("job finished", "kill_duration", r.node.EndTime().Sub(killTime))
	} else {
		logger.Info("job finished", "duration", r.node.EndTime().Sub(r.node.StartTime()))
	}

	r.writeStatus(ctx)
}

// runJob invokes the job logic inside the execution scope, converting a
// panic into a terminal failure instead of tearing down the goroutine.
func (r *JobRunner) runJob(ctx context.Context, job ports.Job, jc *ports.JobContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			panicErr := domain.NewJobPanicError(r.node.ID(), p)
			r.logger.Error("job logic panicked",
				"panic", fmt.Sprint(p),
				"stack_trace", panicErr.StackTrace,
			)
			err = panicErr
		}
	}()

	scope := ExecScope{
		JobType:      r.node.Type(),
		Version:      jc.Version.Version,
		ArtifactPath: jc.Version.Path,
	}
	return r.withExecScope(scope, func() error {
		return job.Run(ctx, jc)
	})
}

func (r *JobRunner) resolveVersion() domain.VersionInfo {
	flow := r.node.Flow()
	if flow == nil || flow.VersionSet() == nil {
		return domain.VersionInfo{}
	}
	info, ok := flow.VersionSet().Version(r.node.Type())
	if !ok {
		r.logger.Debug("no pinned version for job type", "job_type", r.node.Type())
		return domain.VersionInfo{}
	}
	return info
}
