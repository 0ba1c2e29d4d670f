package memory

import (
	"context"
	"sync"

	"progress-engine/internal/domain"
)

// Notifier collects published events in memory. Used as the default
// fire-and-forget sink and by tests asserting on emitted events.
type Notifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Publish(_ context.Context, event domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (n *Notifier) Events() []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Event, len(n.events))
	copy(out, n.events)
	return out
}
