package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge-io/flowforge/internal/adapters/registry"
	"github.com/flowforge-io/flowforge/internal/adapters/storage"
	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

const submitUser = "testUser"

const versionSetJSON = `{"base":{"version":"7.0.4","path":"path1","state":"ACTIVE"},` +
	`"config":{"version":"9.1.1","path":"path2","state":"ACTIVE"},` +
	`"spark":{"version":"8.0","path":"path3","state":"ACTIVE"}}`

const versionSetMD5 = "43966138aebfdc4438520cc5cd2aefa8"

var errForcedFailure = errors.New("forced failure of test job")

type testJob struct {
	mu        sync.Mutex
	sleep     time.Duration
	fail      bool
	panics    bool
	props     *domain.Props
	version   domain.VersionInfo
	cancelled bool
}

func (j *testJob) Run(ctx context.Context, jc *ports.JobContext) error {
	j.mu.Lock()
	j.props = jc.Props
	j.version = jc.Version
	j.mu.Unlock()

	jc.Logger.Printf("test job running")

	if j.panics {
		panic("test job exploded")
	}
	if j.fail {
		return errForcedFailure
	}
	if j.sleep > 0 {
		select {
		case <-time.After(j.sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	jc.Outputs.Put("result", "ok")
	return nil
}

func (j *testJob) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = true
	return nil
}

func (j *testJob) Progress() float64 {
	return 0
}

func (j *testJob) wasCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

func (j *testJob) seenProps() *domain.Props {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.props
}

func (j *testJob) seenVersion() domain.VersionInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.version
}

type proxyCall struct {
	nodeID  string
	user    string
	jobType string
}

type fakeProxy struct {
	mu    sync.Mutex
	calls []proxyCall
}

func (p *fakeProxy) RecordEffectiveUser(nodeID, user, jobType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, proxyCall{nodeID: nodeID, user: user, jobType: jobType})
	return nil
}

func (p *fakeProxy) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type eventCollector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *eventCollector) HandleEvent(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) types() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]domain.EventType, 0, len(c.events))
	for _, event := range c.events {
		types = append(types, event.Type)
	}
	return types
}

type fixture struct {
	runner    *JobRunner
	node      *domain.Node
	flow      *domain.ExecutableFlow
	job       *testJob
	recorder  *storage.MemoryRecorder
	registry  *registry.Manager
	proxy     *fakeProxy
	collector *eventCollector
}

func newFixture(t *testing.T, name string, job *testJob) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	flow := domain.NewExecutableFlow("1", submitUser)
	versionSet, err := domain.NewVersionSet(versionSetJSON, versionSetMD5, 1)
	require.NoError(t, err)
	flow.SetVersionSet(versionSet)

	node := domain.NewNode(name, "spark")
	props := domain.NewProps()
	props.Put(domain.PropJobType, "spark")
	node.SetInputProps(props)
	flow.AddNode(node)

	reg := registry.NewManager(logger)
	reg.Register("spark", func(jobType string, props *domain.Props, jobLogger ports.JobLogger) (ports.Job, error) {
		return job, nil
	})

	recorder := storage.NewMemoryRecorder()
	proxy := &fakeProxy{}
	collector := &eventCollector{}

	r := New(node, Options{
		WorkingDir: t.TempDir(),
		Recorder:   recorder,
		Registry:   reg,
		Proxy:      proxy,
		Logger:     logger,
	})
	r.AddListener(collector)

	return &fixture{
		runner:    r,
		node:      node,
		flow:      flow,
		job:       job,
		recorder:  recorder,
		registry:  reg,
		proxy:     proxy,
		collector: collector,
	}
}

// runAsync starts the runner on its own goroutine and returns a channel
// closed when Run returns.
func runAsync(f *fixture) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.runner.Run(context.Background())
	}()
	return done
}

func waitForStatus(t *testing.T, node *domain.Node, status domain.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return node.Status() == status
	}, 5*time.Second, time.Millisecond)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(9 * time.Second):
		t.Fatal("runner did not finish in time")
	}
}

func firstLogLine(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.SplitN(string(data), "\n", 2)
	require.NotEmpty(t, lines[0])
	return lines[0]
}

func TestRunnerBasicRun(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{sleep: time.Millisecond})
	f.runner.SetTimeInQueue(time.Now())
	time.Sleep(time.Millisecond)

	f.runner.Run(context.Background())

	assert.Equal(t, domain.StatusSucceeded, f.runner.Status())
	assert.Equal(t, f.node.Status(), f.runner.Status())
	assert.False(t, f.node.StartTime().IsZero())
	assert.False(t, f.node.EndTime().IsZero())
	assert.True(t, !f.node.EndTime().Before(f.node.StartTime()))
	assert.Greater(t, f.runner.QueueDuration(), time.Duration(0))

	outputs := f.node.OutputProps()
	require.NotNil(t, outputs)
	assert.Equal(t, "ok", outputs.GetString("result", ""))

	// Runner-injected props are visible to job logic.
	seen := f.job.seenProps()
	require.NotNil(t, seen)
	logPath, ok := seen.Get(domain.PropJobLogFile)
	require.True(t, ok)
	assert.Equal(t, f.runner.LogFilePath(), logPath)
	assert.Equal(t, submitUser, seen.GetString(domain.PropUserToProxy, ""))

	// Version pinned for the node's job type.
	assert.Equal(t, "8.0", f.job.seenVersion().Version)

	// Default layout prefixes lines with a day-first date stamp.
	firstLine := firstLogLine(t, f.runner.LogFilePath())
	assert.True(t, strings.HasPrefix(firstLine, time.Now().Format("02-01-2006")),
		"unexpected default layout: %q", firstLine)

	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobStatusChanged, domain.EventJobFinished},
		f.collector.types())

	// Execution scope restored after the run.
	assert.Equal(t, ExecScope{}, f.runner.ActiveScope())
	assert.False(t, f.runner.IsKilled())
}

func TestRunnerFailedRun(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{fail: true})

	f.runner.Run(context.Background())

	assert.Equal(t, domain.StatusFailed, f.node.Status())
	assert.Nil(t, f.node.OutputProps())
	assert.Equal(t, errForcedFailure.Error(), f.node.FailureMessage())
	assert.Equal(t, domain.UnknownActor, f.node.ModifiedBy())
	assert.False(t, f.runner.IsKilled())
	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobStatusChanged, domain.EventJobFinished},
		f.collector.types())

	_, err := os.Stat(f.runner.LogFilePath())
	assert.NoError(t, err, "log file should exist for a failed run")
}

func TestRunnerPanickingJob(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{panics: true})

	f.runner.Run(context.Background())

	assert.Equal(t, domain.StatusFailed, f.node.Status())
	assert.Contains(t, f.node.FailureMessage(), "panicked")
	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
	assert.Equal(t, ExecScope{}, f.runner.ActiveScope())
}

func TestRunnerDisabledRun(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	f.node.SetStatus(domain.StatusDisabled)

	f.runner.Run(context.Background())

	assert.Equal(t, domain.StatusSkipped, f.node.Status())
	assert.False(t, f.node.StartTime().IsZero())
	assert.False(t, f.node.EndTime().IsZero())
	assert.Less(t, f.node.EndTime().Sub(f.node.StartTime()), 2*time.Second)

	assert.Nil(t, f.node.OutputProps())
	assert.Empty(t, f.runner.LogFilePath())
	assert.Equal(t, 0, f.recorder.UpdateCount("testJob"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobFinished},
		f.collector.types())
}

func TestRunnerPreKilledRun(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	f.node.SetStatus(domain.StatusKilled)

	f.runner.Run(context.Background())

	assert.Equal(t, domain.StatusKilled, f.node.Status())
	assert.False(t, f.node.StartTime().IsZero())
	assert.False(t, f.node.EndTime().IsZero())
	assert.Less(t, f.node.EndTime().Sub(f.node.StartTime()), 2*time.Second)

	assert.Nil(t, f.node.OutputProps())
	assert.Empty(t, f.runner.LogFilePath())
	assert.False(t, f.runner.IsKilled())
	assert.Equal(t, 0, f.recorder.UpdateCount("testJob"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobFinished},
		f.collector.types())
}

func TestRunnerKillWhileRunning(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{sleep: 10 * time.Second})

	done := runAsync(f)
	waitForStatus(t, f.node, domain.StatusRunning)

	f.runner.Kill("dementor1")
	waitDone(t, done)

	assert.Equal(t, domain.StatusKilled, f.node.Status())
	assert.Equal(t, "dementor1", f.node.ModifiedBy())
	assert.True(t, f.runner.IsKilled())
	assert.True(t, f.job.wasCancelled())
	assert.False(t, f.runner.KillTime().IsZero())
	assert.GreaterOrEqual(t, f.runner.KillDuration(), time.Duration(0))
	assert.Less(t, f.node.EndTime().Sub(f.node.StartTime()), 3*time.Second)

	assert.Nil(t, f.node.OutputProps())
	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobStatusChanged, domain.EventJobFinished},
		f.collector.types())

	_, err := os.Stat(f.runner.LogFilePath())
	assert.NoError(t, err, "log file should exist for a killed run")
}

func TestRunnerKillIsIdempotent(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{sleep: 10 * time.Second})

	done := runAsync(f)
	waitForStatus(t, f.node, domain.StatusRunning)

	f.runner.Kill("first")
	f.runner.Kill("second")
	waitDone(t, done)

	assert.Equal(t, domain.StatusKilled, f.node.Status())
	assert.Equal(t, "first", f.node.ModifiedBy())

	// Terminal: any further kill is a no-op.
	f.runner.Kill("third")
	assert.Equal(t, domain.StatusKilled, f.node.Status())
	assert.Equal(t, "first", f.node.ModifiedBy())
	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
}

func TestRunnerKillAfterSuccessIsNoOp(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})

	f.runner.Run(context.Background())
	require.Equal(t, domain.StatusSucceeded, f.node.Status())

	f.runner.Kill("tooLate")

	assert.Equal(t, domain.StatusSucceeded, f.node.Status())
	assert.Empty(t, f.node.ModifiedBy())
	assert.False(t, f.runner.IsKilled())
	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
}

func TestRunnerDelayedExecution(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	f.runner.SetDelayStart(50 * time.Millisecond)
	before := time.Now()

	f.runner.Run(context.Background())

	assert.Equal(t, domain.StatusSucceeded, f.node.Status())
	assert.False(t, f.runner.IsKilled())
	assert.True(t, !f.node.StartTime().Before(before))
	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobStatusChanged, domain.EventJobFinished},
		f.collector.types())
}

func TestRunnerDelayedExecutionCancelled(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	f.runner.SetDelayStart(10 * time.Second)

	done := runAsync(f)

	// The queued checkpoint is written before the wait begins.
	require.Eventually(t, func() bool {
		return f.recorder.UpdateCount("testJob") == 1
	}, 5*time.Second, time.Millisecond)

	f.runner.Kill("op")
	waitDone(t, done)

	assert.Equal(t, domain.StatusKilled, f.node.Status())
	assert.True(t, f.runner.IsKilled())
	assert.Less(t, f.node.EndTime().Sub(f.node.StartTime()), time.Second)

	// The node never entered running: the running checkpoint was never
	// written, giving exactly 2 persistence calls.
	assert.Equal(t, 2, f.recorder.UpdateCount("testJob"))
	for _, snap := range f.recorder.Snapshots("testJob") {
		assert.NotEqual(t, domain.StatusRunning, snap.Status)
	}

	assert.Nil(t, f.node.OutputProps())
	assert.Empty(t, f.runner.LogFilePath())
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobFinished},
		f.collector.types())
}

func TestRunnerKillBeforeRun(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})

	f.runner.Kill("early")
	f.runner.Run(context.Background())

	assert.Equal(t, domain.StatusKilled, f.node.Status())
	assert.Equal(t, "early", f.node.ModifiedBy())
	assert.Equal(t, 2, f.recorder.UpdateCount("testJob"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobFinished},
		f.collector.types())
}

func TestRunnerEffectiveUserDefaultsToSubmitUser(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})

	f.runner.Run(context.Background())

	assert.Equal(t, submitUser, f.runner.EffectiveUser())
	assert.Equal(t, submitUser, f.runner.Props().GetString(domain.PropUserToProxy, ""))
	assert.Equal(t, 0, f.proxy.callCount())
}

func TestRunnerEffectiveUserOverride(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	f.registry.EnableProxyDefaults("spark")
	f.registry.AddDefaultProxyUser("spark", "defaultTestUser")

	f.runner.Run(context.Background())

	assert.Equal(t, "defaultTestUser", f.runner.EffectiveUser())
	assert.Equal(t, "defaultTestUser", f.runner.Props().GetString(domain.PropUserToProxy, ""))

	require.Equal(t, 1, f.proxy.callCount())
	assert.Equal(t, proxyCall{nodeID: "testJob", user: "defaultTestUser", jobType: "spark"}, f.proxy.calls[0])
}

func TestRunnerProxyDefaultsRequireOptIn(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	// Registered but the job type never opted in.
	f.registry.AddDefaultProxyUser("spark", "defaultTestUser")

	f.runner.Run(context.Background())

	assert.Equal(t, submitUser, f.runner.EffectiveUser())
	assert.Equal(t, 0, f.proxy.callCount())
}

func TestRunnerCustomLogLayout(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	f.node.InputProps().Put(domain.PropJobLogLayout, "TEST 02-01-2006")

	f.runner.Run(context.Background())

	firstLine := firstLogLine(t, f.runner.LogFilePath())
	assert.True(t, strings.HasPrefix(firstLine, "TEST"),
		"unexpected custom layout: %q", firstLine)
}

func TestRunnerUnknownJobType(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})
	node := domain.NewNode("mystery", "unregistered")
	f.flow.AddNode(node)

	r := New(node, Options{
		WorkingDir: t.TempDir(),
		Recorder:   f.recorder,
		Registry:   f.registry,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	collector := &eventCollector{}
	r.AddListener(collector)

	r.Run(context.Background())

	assert.Equal(t, domain.StatusFailed, node.Status())
	assert.Contains(t, node.FailureMessage(), "not registered")
	assert.Equal(t, 3, f.recorder.UpdateCount("mystery"))
	assert.Equal(t,
		[]domain.EventType{domain.EventJobStarted, domain.EventJobStatusChanged, domain.EventJobFinished},
		collector.types())
}

func TestRunnerRunTwiceIsRejected(t *testing.T) {
	f := newFixture(t, "testJob", &testJob{})

	f.runner.Run(context.Background())
	f.runner.Run(context.Background())

	// The second invocation short-circuits: no extra events, no extra
	// persistence calls.
	assert.Equal(t, 3, f.recorder.UpdateCount("testJob"))
	assert.Len(t, f.collector.types(), 3)
}
