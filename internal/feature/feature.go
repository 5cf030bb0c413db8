// Package feature contains the screen-scoped controllers. Each controller owns
// one state.Store, holds its sensor kinds through a shared hub Listener while
// open, and releases everything synchronously in Close.
package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/i474232898/sensor-multitool/internal/metrics"
	"github.com/i474232898/sensor-multitool/internal/pubsub"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/state"
)

// Feature names a controller type.
type Feature string

const (
	FeatureCompass   Feature = "compass"
	FeatureStation   Feature = "station"
	FeatureTheme     Feature = "theme"
	FeatureProximity Feature = "proximity"
)

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	switch f := Feature(s); f {
	case FeatureCompass, FeatureStation, FeatureTheme, FeatureProximity:
		return f, nil
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// Controller is the transport-facing view of any feature controller.
type Controller interface {
	Feature() Feature
	// Snapshot returns the current state.
	Snapshot() any
	// Watch delivers the current state and then every later one until ctx
	// ends or the controller closes.
	Watch(ctx context.Context) <-chan any
	Close()
}

// Deps are the process-wide collaborators every controller needs.
type Deps struct {
	Hub     *sensor.Hub
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (d Deps) logger(f Feature) *slog.Logger {
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("feature", string(f))
}

// scope is a controller's lifetime: a context cancelled on close, the hub
// listener, the subscriptions it reads and the goroutines it runs.
type scope struct {
	ctx      context.Context
	cancel   context.CancelFunc
	listener *sensor.Listener
	subs     []*pubsub.Subscription[sensor.Sample]

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newScope(parent context.Context, hub *sensor.Hub, kinds ...sensor.Kind) *scope {
	ctx, cancel := context.WithCancel(parent)
	s := &scope{ctx: ctx, cancel: cancel}
	if hub != nil && len(kinds) > 0 {
		s.listener = hub.Listener(kinds...)
	}
	return s
}

// subscribe opens a stream of k. Call before start so no sample in between
// is missed.
func (s *scope) subscribe(hub *sensor.Hub, k sensor.Kind) *pubsub.Subscription[sensor.Sample] {
	sub := hub.Subscribe(k)
	s.subs = append(s.subs, sub)
	return sub
}

func (s *scope) start() {
	if s.listener != nil {
		s.listener.Start()
	}
}

// spawn runs fn in the scope. It reports false once the scope is closed.
func (s *scope) spawn(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

// consume feeds every sample of sub to fn until the scope ends.
func (s *scope) consume(sub *pubsub.Subscription[sensor.Sample], fn func(sensor.Sample)) {
	s.spawn(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-sub.C():
				if !ok {
					return
				}
				fn(v)
			}
		}
	})
}

// close stops the listener and waits for every goroutine. After it returns
// nothing in the scope touches the controller's store again.
func (s *scope) close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.listener != nil {
		s.listener.Stop()
	}
	for _, sub := range s.subs {
		sub.Close()
	}
	s.wg.Wait()
	return true
}

func (s *scope) done() bool {
	return s.ctx.Err() != nil
}

// watch adapts a typed store to Controller.Watch.
func watch[T any](ctx context.Context, st *state.Store[T]) <-chan any {
	sub := st.Subscribe()
	out := make(chan any)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-sub.C():
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Status is the lifecycle of one independently loaded field.
type Status string

const (
	NotLoaded Status = "not_loaded"
	Loading   Status = "loading"
	Loaded    Status = "loaded"
	Failed    Status = "failed"
)

// Field is a value with its own load lifecycle. Value is meaningful only when
// Status is Loaded and Reason only when it is Failed.
type Field[T any] struct {
	Status Status `json:"status"`
	Value  T      `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func loadingField[T any]() Field[T] { return Field[T]{Status: Loading} }

func loadedField[T any](v T) Field[T] { return Field[T]{Status: Loaded, Value: v} }

func failedField[T any](reason string) Field[T] { return Field[T]{Status: Failed, Reason: reason} }
