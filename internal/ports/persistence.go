package ports

import (
	"context"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// NodeRecorder durably records node status transitions. The number of calls
// per run is part of the observable contract: 0 for the disabled and
// pre-killed fast paths, 2 when a kill interrupts the delay wait, 3 for any
// run that entered running. Implementations must be safe for concurrent use;
// the runner never holds a lock across a call.
type NodeRecorder interface {
	RecordNode(ctx context.Context, node *domain.Node) error
}

// ProxyCoordinator records, flow-wide, which identity a job actually
// executed under. It is called at most once per run, and only when a
// default-proxy-user override fires during identity resolution.
type ProxyCoordinator interface {
	RecordEffectiveUser(nodeID, user, jobType string) error
}
