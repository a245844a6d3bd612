package domain

import (
	"sync"
)

// ExecutableFlow describes one flow run: who submitted it, which artifact
// versions it is pinned to, and the nodes it owns. The scheduler assembles
// it before dispatch; runners treat it as read-only from then on. Nodes
// never outlive their flow.
type ExecutableFlow struct {
	mu sync.RWMutex

	executionID string
	submitUser  string
	versionSet  *VersionSet

	nodes map[string]*Node
	order []string
}

func NewExecutableFlow(executionID, submitUser string) *ExecutableFlow {
	return &ExecutableFlow{
		executionID: executionID,
		submitUser:  submitUser,
		nodes:       make(map[string]*Node),
	}
}

func (f *ExecutableFlow) ExecutionID() string {
	return f.executionID
}

func (f *ExecutableFlow) SubmitUser() string {
	return f.submitUser
}

func (f *ExecutableFlow) VersionSet() *VersionSet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.versionSet
}

func (f *ExecutableFlow) SetVersionSet(vs *VersionSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionSet = vs
}

// AddNode attaches a node to the flow and sets the node's back-reference.
func (f *ExecutableFlow) AddNode(node *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.nodes[node.ID()]; !exists {
		f.order = append(f.order, node.ID())
	}
	f.nodes[node.ID()] = node
	node.setFlow(f)
}

func (f *ExecutableFlow) Node(id string) (*Node, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	node, ok := f.nodes[id]
	return node, ok
}

// Nodes returns the flow's nodes in insertion order.
func (f *ExecutableFlow) Nodes() []*Node {
	f.mu.RLock()
	defer f.mu.RUnlock()

	nodes := make([]*Node, 0, len(f.order))
	for _, id := range f.order {
		nodes = append(nodes, f.nodes[id])
	}
	return nodes
}
