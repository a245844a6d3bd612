package domain

import (
	"time"
)

type EventType string

const (
	EventJobStarted       EventType = "started"
	EventJobStatusChanged EventType = "status-changed"
	EventJobFinished      EventType = "finished"
)

// Event is an immutable lifecycle notification carrying the node's state at
// emission time. For every run, started is the first event and finished the
// last; status-changed is emitted once per non-terminal transition taken in
// between.
type Event struct {
	Type      EventType    `json:"type"`
	Node      NodeSnapshot `json:"node"`
	EmittedAt time.Time    `json:"emitted_at"`
}

func NewEvent(eventType EventType, node *Node) Event {
	return Event{
		Type:      eventType,
		Node:      node.Snapshot(),
		EmittedAt: time.Now(),
	}
}
