// Package pubsub provides the in-process fan-out primitives shared by the sensor
// hub and the derived state stores: an unbounded per-subscriber mailbox, a
// multi-subscriber broker and a latest-value join of two streams.
package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is one subscriber's view of a Broker. Values pushed to it are
// queued without bound and delivered on C in push order.
type Subscription[T any] struct {
	id uuid.UUID
	c  chan T

	mu     sync.Mutex
	queue  []T
	signal chan struct{}
	done   chan struct{}
	closed bool

	onClose func()
	once    sync.Once
}

func newSubscription[T any](onClose func()) *Subscription[T] {
	s := &Subscription[T]{
		id:      uuid.New(),
		c:       make(chan T),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	go s.pump()
	return s
}

// ID identifies the subscription in logs and registries.
func (s *Subscription[T]) ID() uuid.UUID { return s.id }

// C returns the delivery channel. It is closed after Close.
func (s *Subscription[T]) C() <-chan T { return s.c }

// push never blocks. It reports false once the subscription is closed.
func (s *Subscription[T]) push(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription[T]) pump() {
	defer close(s.c)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.c <- v:
		case <-s.done:
			return
		}
	}
}

// Close detaches the subscription and discards anything still queued. It is
// safe to call more than once and from any goroutine.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}
