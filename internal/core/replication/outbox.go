package replication

import (
	"sync"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// DefaultOutboxSize is the number of notifications a session buffers before
// the oldest are dropped.
const DefaultOutboxSize = 256

// outbox is a session's bounded queue of notifications pending delivery to a
// remote consumer. Dropped notifications are not retried: the consumer
// catches up by reading the field.
type outbox struct {
	mu      sync.Mutex
	items   []domain.Notification
	size    int
	dropped uint64
	ready   chan struct{}
}

func newOutbox(size int) *outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &outbox{
		size:  size,
		ready: make(chan struct{}, 1),
	}
}

// push appends n and reports whether an older notification was dropped.
func (o *outbox) push(n domain.Notification) bool {
	o.mu.Lock()
	dropped := false
	if len(o.items) >= o.size {
		o.items = o.items[1:]
		o.dropped++
		dropped = true
	}
	o.items = append(o.items, n)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return dropped
}

func (o *outbox) drain() []domain.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	return items
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

func (o *outbox) droppedCount() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
