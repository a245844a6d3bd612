package domain

import (
	"sync"
	"time"
)

// Node is the mutable status and timing record of one job instance within a
// flow. The owning flow creates it; after dispatch only the node's job
// runner mutates it (single-writer), while the flow-level coordinator reads
// it concurrently.
type Node struct {
	mu sync.RWMutex

	id      string
	jobType string
	status  Status

	startTime time.Time
	endTime   time.Time
	killTime  time.Time

	modifiedBy     string
	failureMessage string

	inputProps  *Props
	outputProps *Props

	// Navigation only; the flow owns the node's lifetime.
	flow *ExecutableFlow
}

func NewNode(id, jobType string) *Node {
	return &Node{
		id:      id,
		jobType: jobType,
		status:  StatusReady,
	}
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Type() string {
	return n.jobType
}

func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Node) SetStatus(status Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
}

func (n *Node) StartTime() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.startTime
}

func (n *Node) SetStartTime(t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.startTime = t
}

func (n *Node) EndTime() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.endTime
}

// SetEndTime records the node's end timestamp, clamping so that start ≤ end
// always holds once both are set.
func (n *Node) SetEndTime(t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.startTime.IsZero() && t.Before(n.startTime) {
		t = n.startTime
	}
	n.endTime = t
}

func (n *Node) KillTime() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.killTime
}

func (n *Node) SetKillTime(t time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.killTime = t
}

func (n *Node) ModifiedBy() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.modifiedBy
}

func (n *Node) SetModifiedBy(actor string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modifiedBy = actor
}

func (n *Node) FailureMessage() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.failureMessage
}

func (n *Node) SetFailureMessage(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failureMessage = msg
}

func (n *Node) InputProps() *Props {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.inputProps
}

func (n *Node) SetInputProps(p *Props) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inputProps = p
}

// OutputProps is non-nil if and only if the node succeeded.
func (n *Node) OutputProps() *Props {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.outputProps
}

func (n *Node) SetOutputProps(p *Props) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outputProps = p
}

func (n *Node) Flow() *ExecutableFlow {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flow
}

func (n *Node) setFlow(flow *ExecutableFlow) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flow = flow
}

// Snapshot captures the node's state as an immutable value, used for event
// payloads and persisted records.
func (n *Node) Snapshot() NodeSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()

	snap := NodeSnapshot{
		ID:             n.id,
		Type:           n.jobType,
		Status:         n.status,
		StartTime:      n.startTime,
		EndTime:        n.endTime,
		KillTime:       n.killTime,
		ModifiedBy:     n.modifiedBy,
		FailureMessage: n.failureMessage,
	}
	if n.flow != nil {
		snap.ExecutionID = n.flow.ExecutionID()
	}
	return snap
}

// NodeSnapshot is a value copy of a node's observable state at one point in
// time. Once taken it is never mutated.
type NodeSnapshot struct {
	ID             string    `json:"id"`
	ExecutionID    string    `json:"execution_id,omitempty"`
	Type           string    `json:"type"`
	Status         Status    `json:"status"`
	StartTime      time.Time `json:"start_time,omitempty"`
	EndTime        time.Time `json:"end_time,omitempty"`
	KillTime       time.Time `json:"kill_time,omitempty"`
	ModifiedBy     string    `json:"modified_by,omitempty"`
	FailureMessage string    `json:"failure_message,omitempty"`
}
