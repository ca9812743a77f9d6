package relay

import (
	"context"
	"sync"
)

// Funnel merges writes from many producers into a single ordered stream
// with one consumer. Submit blocks while the queue is full, so client input
// is never dropped.
type Funnel struct {
	items     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewFunnel creates a funnel holding up to capacity pending items.
func NewFunnel(capacity int) *Funnel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Funnel{
		items: make(chan []byte, capacity),
		done:  make(chan struct{}),
	}
}

// Submit enqueues a copy of p. It blocks until there is room, ctx is done, or
// the funnel is closed.
func (f *Funnel) Submit(ctx context.Context, p []byte) error {
	select {
	case <-f.done:
		return ErrFunnelClosed
	default:
	}

	item := make([]byte, len(p))
	copy(item, p)

	select {
	case f.items <- item:
		return nil
	case <-f.done:
		return ErrFunnelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Items is the consumer side of the funnel. Only the serial link reads it.
func (f *Funnel) Items() <-chan []byte {
	return f.items
}

// Done is closed once the funnel stops accepting items.
func (f *Funnel) Done() <-chan struct{} {
	return f.done
}

// Close rejects further submissions and releases blocked producers. The
// items channel itself stays open because producers may still be racing.
func (f *Funnel) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
