// Package state holds the single-slot observable stores that back every
// feature's view state.
package state

import (
	"sync"

	"github.com/i474232898/sensor-multitool/internal/pubsub"
)

// Store keeps exactly one current snapshot of T. Subscribers get the current
// snapshot immediately and then every later snapshot, in order, with nothing
// skipped or repeated. T should be a value type; snapshots are never mutated
// after they are published.
type Store[T any] struct {
	mu      sync.Mutex
	current T
	version uint64
	broker  *pubsub.Broker[T]
}

// New creates a store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		current: initial,
		broker:  pubsub.NewBroker[T](),
	}
}

// Value returns the current snapshot.
func (s *Store[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Version counts the updates applied so far.
func (s *Store[T]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Update applies fn to the current snapshot as one atomic read-modify-write
// and broadcasts the result.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.current)
	s.current = next
	s.version++
	s.broker.Publish(next)
	return next
}

// Set replaces the snapshot.
func (s *Store[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Subscribe attaches an observer. The first value received is the snapshot
// current at the time of the call.
func (s *Store[T]) Subscribe() *pubsub.Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broker.SubscribeWith(s.current)
}

// Observers returns the number of attached observers.
func (s *Store[T]) Observers() int {
	return s.broker.Len()
}

// Close detaches every observer. Updates after Close are still applied to the
// snapshot but reach no one.
func (s *Store[T]) Close() {
	s.broker.Close()
}
