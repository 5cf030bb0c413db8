package sensor

import (
	"errors"
	"sync"
)

// ErrUnavailable is returned by Platform.Register for a kind the device does
// not have.
var ErrUnavailable = errors.New("sensor not available on this device")

// Platform is the device sensor subsystem. Register starts push delivery of
// one kind to deliver; the returned function stops it. Implementations call
// deliver from a single callback path, in hardware arrival order.
type Platform interface {
	Available(k Kind) bool
	Register(k Kind, rate Rate, deliver func(Sample)) (unregister func(), err error)
}

type registration struct {
	rate    Rate
	deliver func(Sample)
}

// IngestPlatform is a Platform fed by a device agent: the agent declares which
// sensors exist and pushes raw samples, and IngestPlatform calls the
// registered callbacks. All deliveries go through one lock, so callbacks never
// run concurrently and per-kind order is the order Emit was called in.
type IngestPlatform struct {
	deliverMu sync.Mutex

	mu        sync.Mutex
	available map[Kind]bool
	regs      map[Kind]map[uint64]registration
	nextID    uint64
}

// NewIngestPlatform creates a platform with the given sensors available.
func NewIngestPlatform(kinds ...Kind) *IngestPlatform {
	p := &IngestPlatform{
		available: make(map[Kind]bool),
		regs:      make(map[Kind]map[uint64]registration),
	}
	p.SetAvailable(kinds...)
	return p
}

// SetAvailable replaces the set of sensors the device reports.
func (p *IngestPlatform) SetAvailable(kinds ...Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		p.available[k] = true
	}
}

// AvailableKinds lists the sensors the device reports.
func (p *IngestPlatform) AvailableKinds() []Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Kind
	for _, k := range AllKinds {
		if p.available[k] {
			out = append(out, k)
		}
	}
	return out
}

func (p *IngestPlatform) Available(k Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available[k]
}

func (p *IngestPlatform) Register(k Kind, rate Rate, deliver func(Sample)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.available[k] {
		return nil, ErrUnavailable
	}

	id := p.nextID
	p.nextID++
	if p.regs[k] == nil {
		p.regs[k] = make(map[uint64]registration)
	}
	p.regs[k][id] = registration{rate: rate, deliver: deliver}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Wait for any in-flight delivery so no callback fires after
			// unregister returns.
			p.deliverMu.Lock()
			defer p.deliverMu.Unlock()
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.regs[k], id)
		})
	}, nil
}

// Rate returns the fastest rate currently requested for k.
func (p *IngestPlatform) Rate(k Kind) (Rate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	regs := p.regs[k]
	if len(regs) == 0 {
		return 0, false
	}
	best := RateNormal
	for _, r := range regs {
		if r.rate > best {
			best = r.rate
		}
	}
	return best, true
}

// Emit delivers samples in order to every callback registered for their kind
// and returns how many callbacks ran. Samples of an unregistered kind are
// discarded.
func (p *IngestPlatform) Emit(samples ...Sample) int {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	n := 0
	for _, s := range samples {
		p.mu.Lock()
		targets := make([]func(Sample), 0, len(p.regs[s.Kind]))
		for _, r := range p.regs[s.Kind] {
			targets = append(targets, r.deliver)
		}
		p.mu.Unlock()

		for _, deliver := range targets {
			deliver(s)
			n++
		}
	}
	return n
}
