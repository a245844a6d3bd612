package events

import (
	"log/slog"
	"sync"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Multicaster fans one runner's lifecycle events out to registered
// listeners. Delivery is synchronous on the firing goroutine and in call
// order, so listeners observe events exactly as the state machine produced
// them.
type Multicaster struct {
	mu        sync.Mutex
	listeners []ports.EventListener
	logger    *slog.Logger
}

func NewMulticaster(logger *slog.Logger) *Multicaster {
	if logger == nil {
		logger = slog.Default()
	}

	return &Multicaster{
		logger: logger.With("component", "event-multicaster"),
	}
}

// AddListener registers a listener. Registration after the runner has
// started is undefined.
func (m *Multicaster) AddListener(listener ports.EventListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Multicaster) Fire(event domain.Event) {
	m.mu.Lock()
	listeners := make([]ports.EventListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, listener := range listeners {
		m.deliver(listener, event)
	}
}

func (m *Multicaster) deliver(listener ports.EventListener, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event listener panicked",
				"event_type", event.Type,
				"node_id", event.Node.ID,
				"panic", r,
			)
		}
	}()

	listener.HandleEvent(event)
}
