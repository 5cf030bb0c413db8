package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

// Broker fans every published value out to all current subscribers. Publish
// never blocks; a value published while nobody is subscribed is dropped.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription[T]
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[uuid.UUID]*Subscription[T])}
}

// Subscribe registers a new subscriber that receives every value published
// from now on. Subscribing to a closed broker returns an already closed
// subscription.
func (b *Broker[T]) Subscribe() *Subscription[T] {
	return b.subscribe(nil)
}

// SubscribeWith is Subscribe with first queued ahead of any later publish.
func (b *Broker[T]) SubscribeWith(first T) *Subscription[T] {
	return b.subscribe(&first)
}

func (b *Broker[T]) subscribe(first *T) *Subscription[T] {
	var sub *Subscription[T]
	sub = newSubscription[T](func() { b.remove(sub.id) })

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Close()
		return sub
	}
	if first != nil {
		sub.push(*first)
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

func (b *Broker[T]) remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish queues v for every subscriber and returns how many received it.
func (b *Broker[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, sub := range b.subs {
		if sub.push(v) {
			n++
		}
	}
	return n
}

// Len returns the number of active subscribers.
func (b *Broker[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription and rejects new ones.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription[T], 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
