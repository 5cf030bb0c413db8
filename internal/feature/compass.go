package feature

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i474232898/sensor-multitool/internal/classify"
	"github.com/i474232898/sensor-multitool/internal/fusion"
	"github.com/i474232898/sensor-multitool/internal/metrics"
	"github.com/i474232898/sensor-multitool/internal/pubsub"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/state"
	"github.com/i474232898/sensor-multitool/internal/users"
)

// CompassState is the dashboard view: the fused heading and who is looking.
type CompassState struct {
	Heading       float64                `json:"heading"`
	Rotation      float64                `json:"rotation"`
	Pitch         float64                `json:"pitch"`
	Roll          float64                `json:"roll"`
	AngleText     string                 `json:"angleText"`
	CardinalPoint classify.CardinalPoint `json:"cardinalPoint"`
	Fixed         bool                   `json:"fixed"`
	User          *users.User            `json:"user,omitempty"`
	Guest         bool                   `json:"guest"`
}

func (c CompassState) withEstimate(e fusion.Estimate) CompassState {
	c.Heading = e.Heading
	c.Rotation = e.Rotation()
	c.Pitch = e.Pitch
	c.Roll = e.Roll
	c.AngleText = fmt.Sprintf("%d°", int(e.Heading))
	c.CardinalPoint = classify.CardinalPointOf(e.Heading)
	c.Fixed = true
	return c
}

// CompassController fuses accelerometer and magnetometer samples into a
// heading. An unstable pair leaves the last good heading in place.
type CompassController struct {
	*scope
	store   *state.Store[CompassState]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCompass opens a compass scope for userID. users.GuestID (or a nil
// lookup) means no one is signed in.
func NewCompass(ctx context.Context, deps Deps, lookup users.Lookup, userID int) *CompassController {
	initial := CompassState{AngleText: "0°", CardinalPoint: classify.North, Guest: userID == users.GuestID || lookup == nil}
	c := &CompassController{
		scope:   newScope(ctx, deps.Hub, sensor.Acceleration, sensor.MagneticField),
		store:   state.New(initial),
		logger:  deps.logger(FeatureCompass),
		metrics: deps.Metrics,
	}

	if !initial.Guest {
		c.spawn(func(ctx context.Context) { c.loadUser(ctx, lookup, userID) })
	} else {
		c.logger.Debug("guest mode", "user_id", userID)
	}

	accel := c.subscribe(deps.Hub, sensor.Acceleration)
	mag := c.subscribe(deps.Hub, sensor.MagneticField)
	c.start()
	c.spawn(func(ctx context.Context) { c.fuse(ctx, accel, mag) })
	return c
}

func (c *CompassController) loadUser(ctx context.Context, lookup users.Lookup, id int) {
	u, err := lookup.GetByID(ctx, id)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Warn("user lookup failed", "user_id", id, "error", err)
		return
	}
	if u == nil {
		c.logger.Warn("user not found", "user_id", id)
		return
	}
	c.store.Update(func(s CompassState) CompassState {
		s.User = u
		return s
	})
}

func (c *CompassController) fuse(ctx context.Context, accel, mag *pubsub.Subscription[sensor.Sample]) {
	pubsub.CombineLatest(ctx, accel.C(), mag.C(), func(a, m sensor.Sample) {
		est, ok := fusion.Fuse(fusion.Vec3(a.Vector), fusion.Vec3(m.Vector))
		if !ok {
			c.metrics.Unstable()
			return
		}
		c.store.Update(func(s CompassState) CompassState {
			return s.withEstimate(est)
		})
	})
}

func (c *CompassController) Feature() Feature { return FeatureCompass }

func (c *CompassController) State() CompassState { return c.store.Value() }

func (c *CompassController) Snapshot() any { return c.store.Value() }

func (c *CompassController) Subscribe() *pubsub.Subscription[CompassState] {
	return c.store.Subscribe()
}

func (c *CompassController) Watch(ctx context.Context) <-chan any { return watch(ctx, c.store) }

// Close stops fusing, releases the sensors and ends every observer.
func (c *CompassController) Close() {
	if c.close() {
		c.store.Close()
	}
}
