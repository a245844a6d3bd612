package ports

import (
	"github.com/flowforge-io/flowforge/internal/domain"
)

// EventListener receives lifecycle events synchronously on the runner's own
// goroutine, in exactly the order the state machine produced them. Listeners
// register before the runner starts; registering afterwards is undefined.
type EventListener interface {
	HandleEvent(event domain.Event)
}

// EventListenerFunc adapts a plain function to the EventListener interface.
type EventListenerFunc func(event domain.Event)

func (f EventListenerFunc) HandleEvent(event domain.Event) {
	f(event)
}
