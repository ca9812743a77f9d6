package relay

import (
	"context"
	"sync"
)

// DefaultCapacity is the per-subscriber ring size of a Bus and the queue
// size of a Funnel.
const DefaultCapacity = 256

// Bus duplicates every published chunk to all current subscribers. Publish
// never blocks: each subscriber owns a bounded ring, and when the ring is
// full the oldest unread chunk is dropped and counted as missed.
type Bus struct {
	capacity int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates a bus whose subscribers retain at most capacity chunks.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. It sees only chunks published after
// this call returns. Subscribing to a closed bus yields a subscription whose
// first Recv reports ErrBusClosed.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		bus:    b,
		ring:   make([][]byte, b.capacity),
		notify: make(chan struct{}, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish hands p to every subscriber. The bus takes ownership of p; the
// caller must not modify it afterwards.
func (b *Bus) Publish(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.push(p)
	}
}

// Subscribers reports the number of attached subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches all subscribers. They drain what they already hold and then
// receive ErrBusClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.close()
		delete(b.subs, s)
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Subscription is one subscriber's view of a Bus.
type Subscription struct {
	bus    *Bus
	notify chan struct{}

	mu     sync.Mutex
	ring   [][]byte
	head   int
	count  int
	missed uint64
	closed bool
}

func (s *Subscription) push(p []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.count == len(s.ring) {
		s.ring[s.head] = nil
		s.head = (s.head + 1) % len(s.ring)
		s.count--
		s.missed++
	}
	s.ring[(s.head+s.count)%len(s.ring)] = p
	s.count++
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv returns the next chunk. If chunks were dropped since the last call it
// first returns a *LagError carrying the count, then resumes with the oldest
// retained chunk. After the bus closes and the ring is drained it returns
// ErrBusClosed.
func (s *Subscription) Recv(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if s.missed > 0 {
			missed := s.missed
			s.missed = 0
			s.mu.Unlock()
			return nil, &LagError{Missed: missed}
		}
		if s.count > 0 {
			p := s.ring[s.head]
			s.ring[s.head] = nil
			s.head = (s.head + 1) % len(s.ring)
			s.count--
			s.mu.Unlock()
			return p, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrBusClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Unsubscribe detaches the subscription from its bus. Pending and future
// Recv calls return ErrBusClosed once the ring is drained.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s)
	s.close()
}
