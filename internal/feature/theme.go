package feature

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i474232898/sensor-multitool/internal/classify"
	"github.com/i474232898/sensor-multitool/internal/pubsub"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/state"
)

// ThemeMode says who decides the theme: the light sensor or the user.
type ThemeMode int

const (
	Automatic ThemeMode = iota
	Manual
)

func (m ThemeMode) String() string {
	if m == Manual {
		return "manual"
	}
	return "automatic"
}

func (m ThemeMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ThemeMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "automatic":
		*m = Automatic
	case "manual":
		*m = Manual
	default:
		return fmt.Errorf("unknown theme mode %q", b)
	}
	return nil
}

// ThemeState is the app-wide light/dark decision.
type ThemeState struct {
	IsDark bool      `json:"isDark"`
	Mode   ThemeMode `json:"mode"`
	// Holds counts open scopes that pinned the theme to Manual.
	Holds int `json:"holds"`
}

// ThemeEventKind enumerates the inputs of the theme state machine.
type ThemeEventKind int

const (
	LightSample ThemeEventKind = iota
	Toggle
	SetAutomatic
	SetManual
	ScopeEntered
	ScopeExited
)

func (k ThemeEventKind) String() string {
	switch k {
	case LightSample:
		return "light"
	case Toggle:
		return "toggle"
	case SetAutomatic:
		return "set_automatic"
	case SetManual:
		return "set_manual"
	case ScopeEntered:
		return "scope_entered"
	case ScopeExited:
		return "scope_exited"
	}
	return fmt.Sprintf("ThemeEventKind(%d)", int(k))
}

// ThemeEvent is one input. Lux is set only for LightSample.
type ThemeEvent struct {
	Kind ThemeEventKind
	Lux  float64
}

// Apply is the theme transition function.
//
// A light sample recomputes IsDark only in Automatic mode. Toggle flips IsDark
// and pins Manual. Entering a pinning scope forces Manual; leaving the last
// one returns to Automatic.
func (s ThemeState) Apply(e ThemeEvent) ThemeState {
	switch e.Kind {
	case LightSample:
		if s.Mode == Automatic {
			s.IsDark = classify.IsDark(e.Lux)
		}
	case Toggle:
		s.IsDark = !s.IsDark
		s.Mode = Manual
	case SetAutomatic:
		s.Mode = Automatic
	case SetManual:
		s.Mode = Manual
	case ScopeEntered:
		s.Holds++
		s.Mode = Manual
	case ScopeExited:
		if s.Holds > 0 {
			s.Holds--
		}
		if s.Holds == 0 {
			s.Mode = Automatic
		}
	}
	return s
}

// InitialTheme is dark and automatic.
var InitialTheme = ThemeState{IsDark: true, Mode: Automatic}

// ThemeController follows the light sensor for the whole process lifetime.
type ThemeController struct {
	*scope
	store  *state.Store[ThemeState]
	logger *slog.Logger
}

// NewTheme starts listening to the light sensor.
func NewTheme(ctx context.Context, deps Deps) *ThemeController {
	t := &ThemeController{
		scope:  newScope(ctx, deps.Hub, sensor.Light),
		store:  state.New(InitialTheme),
		logger: deps.logger(FeatureTheme),
	}
	light := t.subscribe(deps.Hub, sensor.Light)
	t.start()
	t.consume(light, func(s sensor.Sample) {
		t.Dispatch(ThemeEvent{Kind: LightSample, Lux: s.Value})
	})
	return t
}

// Dispatch applies e atomically and returns the resulting state.
func (t *ThemeController) Dispatch(e ThemeEvent) ThemeState {
	next := t.store.Update(func(s ThemeState) ThemeState { return s.Apply(e) })
	if e.Kind != LightSample {
		t.logger.Debug("theme event", "event", e.Kind.String(), "dark", next.IsDark, "mode", next.Mode.String())
	}
	return next
}

func (t *ThemeController) Toggle() ThemeState { return t.Dispatch(ThemeEvent{Kind: Toggle}) }

func (t *ThemeController) SetAutomatic() ThemeState {
	return t.Dispatch(ThemeEvent{Kind: SetAutomatic})
}

func (t *ThemeController) SetManual() ThemeState { return t.Dispatch(ThemeEvent{Kind: SetManual}) }

// ScopeEntered pins the theme while a scope that needs a stable theme is open.
func (t *ThemeController) ScopeEntered() ThemeState {
	return t.Dispatch(ThemeEvent{Kind: ScopeEntered})
}

// ScopeExited releases one ScopeEntered.
func (t *ThemeController) ScopeExited() ThemeState {
	return t.Dispatch(ThemeEvent{Kind: ScopeExited})
}

func (t *ThemeController) Feature() Feature { return FeatureTheme }

func (t *ThemeController) State() ThemeState { return t.store.Value() }

func (t *ThemeController) Snapshot() any { return t.store.Value() }

func (t *ThemeController) Subscribe() *pubsub.Subscription[ThemeState] {
	return t.store.Subscribe()
}

func (t *ThemeController) Watch(ctx context.Context) <-chan any { return watch(ctx, t.store) }

func (t *ThemeController) Close() {
	if t.close() {
		t.store.Close()
	}
}
