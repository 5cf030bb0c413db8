package sensor

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/i474232898/sensor-multitool/internal/metrics"
	"github.com/i474232898/sensor-multitool/internal/pubsub"
)

// Hub is the only component that talks to the Platform. It keeps one
// registration per kind for as long as at least one Listener holds that kind,
// and republishes every delivered sample to all current subscribers of the
// kind.
//
// One Hub is shared by every feature in the process; reference counting keeps
// overlapping Start/Stop calls from double registering or unregistering a
// sensor another feature still uses.
type Hub struct {
	platform Platform
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// Fixed at construction; publish reads it without h.mu.
	streams map[Kind]*pubsub.Broker[Sample]

	mu         sync.Mutex
	refs       map[Kind]int
	unregister map[Kind]func()
	closed     bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub over platform. Nothing is registered until a Listener
// starts.
func NewHub(platform Platform, opts ...HubOption) *Hub {
	h := &Hub{
		platform:   platform,
		logger:     slog.Default(),
		streams:    make(map[Kind]*pubsub.Broker[Sample], len(AllKinds)),
		refs:       make(map[Kind]int),
		unregister: make(map[Kind]func()),
	}
	for _, k := range AllKinds {
		h.streams[k] = pubsub.NewBroker[Sample]()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe returns a new independent stream of k's samples. Only samples
// arriving after the call are delivered. A kind the device lacks yields a
// stream that never produces anything. Close the subscription when done.
func (h *Hub) Subscribe(k Kind) *pubsub.Subscription[Sample] {
	b, ok := h.streams[k]
	if !ok {
		// Unknown kinds get a closed broker's stream: empty, never blocks Close.
		b = pubsub.NewBroker[Sample]()
		b.Close()
	}
	return b.Subscribe()
}

// Subscribers returns the number of subscribers of k.
func (h *Hub) Subscribers(k Kind) int {
	if b, ok := h.streams[k]; ok {
		return b.Len()
	}
	return 0
}

// Refs returns how many listeners currently hold k.
func (h *Hub) Refs(k Kind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs[k]
}

// Registered reports whether k currently has a live platform registration.
func (h *Hub) Registered(k Kind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unregister[k] != nil
}

func (h *Hub) publish(k Kind, s Sample) {
	s.Kind = k
	h.metrics.SampleReceived(k.String())
	if h.streams[k].Publish(s) == 0 {
		h.metrics.SampleDropped(k.String())
	}
}

func (h *Hub) acquire(kinds []Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	for _, k := range kinds {
		h.refs[k]++
		h.metrics.SetRegistrations(k.String(), h.refs[k])

		// Retry on every acquire: the device may have reported the sensor
		// since the last attempt.
		h.register(k)
	}
}

// register starts platform delivery for k if it is not running yet. h.mu
// must be held.
func (h *Hub) register(k Kind) bool {
	if h.unregister[k] != nil {
		return false
	}
	if !h.platform.Available(k) {
		h.logger.Debug("sensor not available; stream stays empty", "kind", k)
		return false
	}
	unregister, err := h.platform.Register(k, DefaultRate(k), func(s Sample) { h.publish(k, s) })
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			h.logger.Debug("sensor not available; stream stays empty", "kind", k)
		} else {
			h.logger.Warn("sensor registration failed", "kind", k, "error", err)
		}
		return false
	}
	h.unregister[k] = unregister
	h.logger.Debug("sensor registered", "kind", k, "rate", DefaultRate(k))
	return true
}

// Rescan registers every held kind that has no platform registration yet and
// returns how many started. Call it after the device reports new sensors.
func (h *Hub) Rescan() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	n := 0
	for k, refs := range h.refs {
		if refs > 0 && h.register(k) {
			n++
		}
	}
	return n
}

func (h *Hub) release(kinds []Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, k := range kinds {
		if h.refs[k] == 0 {
			continue
		}
		h.refs[k]--
		h.metrics.SetRegistrations(k.String(), h.refs[k])
		if h.refs[k] > 0 {
			continue
		}
		delete(h.refs, k)
		if unregister := h.unregister[k]; unregister != nil {
			unregister()
			delete(h.unregister, k)
			h.logger.Debug("sensor unregistered", "kind", k)
		}
	}
}

// Close drops every registration and ends every stream.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for k, unregister := range h.unregister {
		unregister()
		delete(h.unregister, k)
	}
	h.refs = make(map[Kind]int)
	h.mu.Unlock()

	for _, b := range h.streams {
		b.Close()
	}
}

// Listener is one owner's claim on a set of sensor kinds.
type Listener struct {
	hub   *Hub
	kinds []Kind

	mu      sync.Mutex
	started bool
}

// Listener creates an owner handle for kinds. It holds nothing until Start.
func (h *Hub) Listener(kinds ...Kind) *Listener {
	seen := make(map[Kind]bool, len(kinds))
	var uniq []Kind
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	return &Listener{hub: h, kinds: uniq}
}

// Start acquires the platform registrations. Calling it again while started
// does nothing.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	l.hub.acquire(l.kinds)
}

// Stop releases the registrations. Calling it while stopped does nothing, so
// it is safe to defer alongside an explicit Stop.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return
	}
	l.started = false
	l.hub.release(l.kinds)
}
