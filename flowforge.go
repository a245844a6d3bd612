// Package flowforge provides the execution core of a distributed workflow
// orchestrator: the engine that runs individual jobs of a flow graph, tracks
// their lifecycle, and coordinates cancellation, delayed starts,
// user impersonation, per-job logging, and persisted status updates.
//
// The flow-level scheduler constructs one JobRunner per node and invokes it
// as an independent unit of work:
//
//	flow := flowforge.NewExecutableFlow("exec-1", "alice")
//	node := flowforge.NewNode("analyze", "spark")
//	flow.AddNode(node)
//
//	runner := flowforge.NewJobRunner(node, flowforge.RunnerOptions{
//	    WorkingDir: dir,
//	    Recorder:   recorder,
//	    Registry:   registry,
//	})
//	runner.AddListener(listener)
//	go runner.Run(ctx)
//
//	// from any other goroutine:
//	runner.Kill("ops-user")
package flowforge

import (
	"github.com/flowforge-io/flowforge/internal/adapters/events"
	"github.com/flowforge-io/flowforge/internal/adapters/registry"
	"github.com/flowforge-io/flowforge/internal/adapters/storage"
	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/joblog"
	"github.com/flowforge-io/flowforge/internal/ports"
	"github.com/flowforge-io/flowforge/internal/runner"
	"github.com/flowforge-io/flowforge/internal/stats"
)

// Node is the mutable status/timing record of one job instance within a flow.
type Node = domain.Node

// ExecutableFlow describes one flow run, assembled before dispatch and
// read-only to runners thereafter.
type ExecutableFlow = domain.ExecutableFlow

// VersionSet resolves each job type to a pinned artifact version.
type VersionSet = domain.VersionSet

// VersionInfo describes one resolved artifact version.
type VersionInfo = domain.VersionInfo

// Props is the string key/value configuration consumed by job logic.
type Props = domain.Props

// Status is a node's lifecycle status.
type Status = domain.Status

// Event is an immutable lifecycle notification.
type Event = domain.Event

// EventType discriminates lifecycle notifications.
type EventType = domain.EventType

// NodeSnapshot is a value copy of a node's observable state.
type NodeSnapshot = domain.NodeSnapshot

// JobRunner drives one node through its lifecycle.
type JobRunner = runner.JobRunner

// RunnerOptions configures a JobRunner.
type RunnerOptions = runner.Options

// ExecScope is the capability context installed around job-logic invocations.
type ExecScope = runner.ExecScope

// Job is the executable capability resolved for a node's job type.
type Job = ports.Job

// JobContext carries the props, log sink, outputs, and pinned version a job
// sees from its runner.
type JobContext = ports.JobContext

// JobLogger is the per-job rolling log sink handed to job logic.
type JobLogger = ports.JobLogger

// JobLogOptions configures per-job log files.
type JobLogOptions = joblog.Options

// NodeRecorder durably records node status transitions.
type NodeRecorder = ports.NodeRecorder

// ProxyCoordinator records which identity each job executed under.
type ProxyCoordinator = ports.ProxyCoordinator

// JobTypeRegistry resolves job type names to executable logic.
type JobTypeRegistry = ports.JobTypeRegistry

// EventListener receives lifecycle events synchronously, in order.
type EventListener = ports.EventListener

// EventListenerFunc adapts a plain function to EventListener.
type EventListenerFunc = ports.EventListenerFunc

// Registry is the in-process JobTypeRegistry implementation.
type Registry = registry.Manager

// JobBuilder constructs the executable capability for one node.
type JobBuilder = registry.Builder

// MemoryRecorder is the in-memory NodeRecorder.
type MemoryRecorder = storage.MemoryRecorder

// BadgerRecorder is the badger-backed durable NodeRecorder.
type BadgerRecorder = storage.BadgerRecorder

// EventMulticaster fans lifecycle events out to listeners synchronously.
type EventMulticaster = events.Multicaster

// StatsCollector samples executor health behind an explicit TTL.
type StatsCollector = stats.Collector

// ExecutorInfo is a point-in-time executor health snapshot.
type ExecutorInfo = stats.ExecutorInfo

const (
	StatusReady     = domain.StatusReady
	StatusDisabled  = domain.StatusDisabled
	StatusQueued    = domain.StatusQueued
	StatusRunning   = domain.StatusRunning
	StatusSucceeded = domain.StatusSucceeded
	StatusFailed    = domain.StatusFailed
	StatusKilled    = domain.StatusKilled
	StatusSkipped   = domain.StatusSkipped

	EventJobStarted       = domain.EventJobStarted
	EventJobStatusChanged = domain.EventJobStatusChanged
	EventJobFinished      = domain.EventJobFinished

	PropJobType      = domain.PropJobType
	PropUserToProxy  = domain.PropUserToProxy
	PropJobLogFile   = domain.PropJobLogFile
	PropJobLogLayout = domain.PropJobLogLayout

	UnknownActor = domain.UnknownActor
)

var (
	NewNode           = domain.NewNode
	NewExecutableFlow = domain.NewExecutableFlow
	NewVersionSet     = domain.NewVersionSet
	NewProps          = domain.NewProps
	PropsFromMap      = domain.PropsFromMap

	NewJobRunner = runner.New

	NewRegistry       = registry.NewManager
	NewMemoryRecorder = storage.NewMemoryRecorder
	NewBadgerRecorder = storage.NewBadgerRecorder
	NewMulticaster    = events.NewMulticaster
	NewStatsCollector = stats.NewCollector
)
