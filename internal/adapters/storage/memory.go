package storage

import (
	"context"
	"sync"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// MemoryRecorder keeps every recorded node snapshot in memory and counts
// updates per node. It backs tests and single-process deployments.
type MemoryRecorder struct {
	mu      sync.Mutex
	records map[string][]domain.NodeSnapshot
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		records: make(map[string][]domain.NodeSnapshot),
	}
}

func (r *MemoryRecorder) RecordNode(ctx context.Context, node *domain.Node) error {
	snap := node.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[snap.ID] = append(r.records[snap.ID], snap)
	return nil
}

// UpdateCount reports how many times a node's status was recorded.
func (r *MemoryRecorder) UpdateCount(nodeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records[nodeID])
}

// Snapshots returns the recorded history of one node, oldest first.
func (r *MemoryRecorder) Snapshots(nodeID string) []domain.NodeSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]domain.NodeSnapshot, len(r.records[nodeID]))
	copy(history, r.records[nodeID])
	return history
}
