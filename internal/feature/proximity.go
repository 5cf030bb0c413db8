package feature

import (
	"context"

	"github.com/i474232898/sensor-multitool/internal/classify"
	"github.com/i474232898/sensor-multitool/internal/pubsub"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/state"
)

type ProximityState struct {
	IsNear   bool    `json:"isNear"`
	Distance float64 `json:"distance"`
}

// ProximityController raises IsNear while the proximity sensor is covered.
type ProximityController struct {
	*scope
	store *state.Store[ProximityState]
}

func NewProximity(ctx context.Context, deps Deps) *ProximityController {
	p := &ProximityController{
		scope: newScope(ctx, deps.Hub, sensor.Proximity),
		store: state.New(ProximityState{}),
	}
	sub := p.subscribe(deps.Hub, sensor.Proximity)
	p.start()
	p.consume(sub, func(s sensor.Sample) {
		p.store.Set(ProximityState{IsNear: classify.IsNear(s.Value), Distance: s.Value})
	})
	return p
}

func (p *ProximityController) Feature() Feature { return FeatureProximity }

func (p *ProximityController) State() ProximityState { return p.store.Value() }

func (p *ProximityController) Snapshot() any { return p.store.Value() }

func (p *ProximityController) Subscribe() *pubsub.Subscription[ProximityState] {
	return p.store.Subscribe()
}

func (p *ProximityController) Watch(ctx context.Context) <-chan any { return watch(ctx, p.store) }

func (p *ProximityController) Close() {
	if p.close() {
		p.store.Close()
	}
}
