// Package runner drives a single flow node from dispatch to a terminal
// status: it resolves the effective identity, waits out a cancellable delay,
// executes the node's job logic, and reports the outcome through node state,
// persisted records, and ordered lifecycle events. The runner never raises
// past its own boundary; the flow-level coordinator observes outcome only
// through node status and events.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowforge-io/flowforge/internal/adapters/events"
	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/joblog"
	"github.com/flowforge-io/flowforge/internal/ports"
)

type Options struct {
	// WorkingDir is where per-job log files are written.
	WorkingDir string

	// Recorder persists node status transitions. Optional; transitions are
	// only logged when absent.
	Recorder ports.NodeRecorder

	// Registry resolves the node's job type to executable logic and to the
	// default-proxy-user table.
	Registry ports.JobTypeRegistry

	// Proxy, when set, is told which identity the job executed under
	// whenever a default-proxy override fires.
	Proxy ports.ProxyCoordinator

	// JobLog configures the per-job rolling log sink.
	JobLog joblog.Options

	Logger *slog.Logger
}

// JobRunner owns the lifecycle of exactly one node. It is the node's single
// writer; Kill is the only entry point other goroutines may call.
type JobRunner struct {
	node   *domain.Node
	events *events.Multicaster
	logger *slog.Logger

	recorder   ports.NodeRecorder
	registry   ports.JobTypeRegistry
	proxy      ports.ProxyCoordinator
	workingDir string
	jobLogOpts joblog.Options

	// mu is the single mutual-exclusion domain shared by the kill flag and
	// the delay wait, so a kill issued concurrently with the wait's entry is
	// never missed.
	mu            sync.Mutex
	started       bool
	killRequested bool
	killTime      time.Time
	cancelWait    chan struct{}
	cancelJob     context.CancelFunc
	job           ports.Job
	jobLog        *joblog.Logger
	logFilePath   string
	effectiveUser string
	activeScope   ExecScope

	delay       time.Duration
	timeInQueue time.Time
}

func New(node *domain.Node, opts Options) *JobRunner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "job-runner", "node_id", node.ID())

	jobLogOpts := opts.JobLog
	if jobLogOpts == (joblog.Options{}) {
		jobLogOpts = joblog.DefaultOptions()
	}

	return &JobRunner{
		node:       node,
		events:     events.NewMulticaster(logger),
		logger:     logger,
		recorder:   opts.Recorder,
		registry:   opts.Registry,
		proxy:      opts.Proxy,
		workingDir: opts.WorkingDir,
		jobLogOpts: jobLogOpts,
		cancelWait: make(chan struct{}),
	}
}

// AddListener registers a lifecycle event listener. Listeners must register
// before Run; registration afterwards is undefined.
func (r *JobRunner) AddListener(listener ports.EventListener) {
	r.events.AddListener(listener)
}

// SetDelayStart configures a cancellable wait observed before execution.
func (r *JobRunner) SetDelayStart(delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = delay
}

func (r *JobRunner) DelayStart() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

// SetTimeInQueue records when the flow scheduler queued this node.
func (r *JobRunner) SetTimeInQueue(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeInQueue = t
}

func (r *JobRunner) Node() *domain.Node {
	return r.node
}

func (r *JobRunner) Status() domain.Status {
	return r.node.Status()
}

// Props exposes the node's input props, including the entries the runner
// injected before execution.
func (r *JobRunner) Props() *domain.Props {
	return r.node.InputProps()
}

// Job returns the resolved job-logic instance, intentionally exposed for
// observability. Nil until the running phase constructed it.
func (r *JobRunner) Job() ports.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}

func (r *JobRunner) EffectiveUser() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.effectiveUser
}

// LogFilePath is empty until the running phase opened the job log sink, and
// stays empty on every path that never reached running.
func (r *JobRunner) LogFilePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logFilePath
}

// QueueDuration is the time spent between queueing and the start of the run.
func (r *JobRunner) QueueDuration() time.Duration {
	r.mu.Lock()
	queued := r.timeInQueue
	r.mu.Unlock()

	if queued.IsZero() {
		return 0
	}
	start := r.node.StartTime()
	if start.IsZero() {
		start = time.Now()
	}
	return start.Sub(queued)
}

// IsKilled reports whether a kill request was observed by this runner.
func (r *JobRunner) IsKilled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.killRequested
}

// KillTime is zero unless a kill request was accepted.
func (r *JobRunner) KillTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.killTime
}

// KillDuration is the time between the kill request and the node reaching
// its terminal state.
func (r *JobRunner) KillDuration() time.Duration {
	r.mu.Lock()
	killTime := r.killTime
	r.mu.Unlock()

	if killTime.IsZero() {
		return 0
	}
	end := r.node.EndTime()
	if end.IsZero() {
		return 0
	}
	if end.Before(killTime) {
		return 0
	}
	return end.Sub(killTime)
}

func (r *JobRunner) executionID() string {
	if flow := r.node.Flow(); flow != nil {
		return flow.ExecutionID()
	}
	return ""
}

func (r *JobRunner) fire(eventType domain.EventType) {
	r.events.Fire(domain.NewEvent(eventType, r.node))
}

func (r *JobRunner) writeStatus(ctx context.Context) {
	if r.recorder == nil {
		r.logger.Debug("no recorder configured, skipping status write", "status", r.node.Status())
		return
	}
	if err := r.recorder.RecordNode(ctx, r.node); err != nil {
		r.logger.Error("failed to persist node status",
			"status", r.node.Status(),
			"error", err.Error(),
		)
	}
}
