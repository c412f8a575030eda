package session

import "sync"

// Bus is the ordered, unbounded queue between worker goroutines and the UI
// loop. Post never blocks; the UI waits on Wake and then takes everything
// available in one Drain, preserving post order.
type Bus struct {
	mu    sync.Mutex
	queue []Update
	wake  chan struct{}
}

func NewBus() *Bus {
	return &Bus{wake: make(chan struct{}, 1)}
}

// Post appends an update and nudges the UI loop if it is waiting.
func (b *Bus) Post(u Update) {
	b.mu.Lock()
	b.queue = append(b.queue, u)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Drain takes every queued update in FIFO order. Returns nil when the queue
// is empty.
func (b *Bus) Drain() []Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queue
	b.queue = nil
	return q
}

// Wake returns the channel the UI loop blocks on between drains. A receive
// means at least one update may be queued; spurious wakes are harmless
// because Drain tolerates an empty queue.
func (b *Bus) Wake() <-chan struct{} {
	return b.wake
}
