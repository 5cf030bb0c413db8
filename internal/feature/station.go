package feature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/sensor-multitool/internal/classify"
	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/pubsub"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/state"
	"github.com/i474232898/sensor-multitool/internal/weather"
)

// Messages shown in a failed weather field.
const (
	MsgPermissionRequired = "El permiso de ubicación es necesario."
	MsgNoFix              = "No se pudo obtener la ubicación.\n¿GPS activado?"
	MsgOffline            = "Sin conexión a internet."
)

// Reading is a scalar hardware value and its display text.
type Reading struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

// LightReading adds the illuminance band to a light Reading.
type LightReading struct {
	Reading
	Level       classify.LightLevel `json:"level"`
	Description string              `json:"description"`
}

// WeatherView is a report with the texts the station shows.
type WeatherView struct {
	Report      weather.Report `json:"report"`
	Temperature string         `json:"temperature"`
	Humidity    string         `json:"humidity"`
	Sunrise     string         `json:"sunrise"`
	Sunset      string         `json:"sunset"`
}

// StationState combines the hardware readings with the network lookup. Every
// field loads on its own; any combination of statuses is valid.
type StationState struct {
	Pressure    Field[Reading]      `json:"pressure"`
	Light       Field[LightReading] `json:"light"`
	Temperature Field[Reading]      `json:"temperature"`
	Weather     Field[WeatherView]  `json:"weather"`
	// RequestLocationEnable asks the client to prompt for location services.
	// It stays set until LocationEnableHandled.
	RequestLocationEnable bool `json:"requestLocationEnable"`
}

// Locator is the position lookup the station needs.
type Locator interface {
	CurrentPosition(ctx context.Context) *location.Position
	Enabled() bool
}

// StationController backs the weather station screen.
type StationController struct {
	*scope
	store   *state.Store[StationState]
	logger  *slog.Logger
	locator Locator
	lookup  weather.Lookup
	clock   *time.Location

	loadMu     sync.Mutex
	loadGen    uint64
	cancelLoad context.CancelFunc
}

// NewStation starts the pressure, light and temperature listeners. The
// weather field stays NotLoaded until a permission result or LoadWeather.
// tz is the zone sunrise and sunset are shown in; nil means local time.
func NewStation(ctx context.Context, deps Deps, locator Locator, lookup weather.Lookup, tz *time.Location) *StationController {
	s := &StationController{
		scope:   newScope(ctx, deps.Hub, sensor.Pressure, sensor.Light, sensor.AmbientTemperature),
		logger:  deps.logger(FeatureStation),
		locator: locator,
		lookup:  lookup,
		clock:   tz,
	}

	pressure := s.subscribe(deps.Hub, sensor.Pressure)
	light := s.subscribe(deps.Hub, sensor.Light)
	temp := s.subscribe(deps.Hub, sensor.AmbientTemperature)
	s.start()

	initial := StationState{
		Pressure:    hardwareField[Reading](deps.Hub, sensor.Pressure),
		Light:       hardwareField[LightReading](deps.Hub, sensor.Light),
		Temperature: hardwareField[Reading](deps.Hub, sensor.AmbientTemperature),
		Weather:     Field[WeatherView]{Status: NotLoaded},
	}
	s.store = state.New(initial)

	s.consume(pressure, func(v sensor.Sample) {
		r := Reading{Value: v.Value, Text: fmt.Sprintf("%d hPa", int(v.Value))}
		s.store.Update(func(st StationState) StationState {
			st.Pressure = loadedField(r)
			return st
		})
	})
	s.consume(light, func(v sensor.Sample) {
		level := classify.LightLevelOf(v.Value)
		r := LightReading{
			Reading:     Reading{Value: v.Value, Text: fmt.Sprintf("%d lux", int(v.Value))},
			Level:       level,
			Description: level.String(),
		}
		s.store.Update(func(st StationState) StationState {
			st.Light = loadedField(r)
			return st
		})
	})
	s.consume(temp, func(v sensor.Sample) {
		r := Reading{Value: v.Value, Text: fmt.Sprintf("%d °C", int(v.Value))}
		s.store.Update(func(st StationState) StationState {
			st.Temperature = loadedField(r)
			return st
		})
	})
	return s
}

// hardwareField is Loading while the hub holds a registration for k and
// NotLoaded when the device has no such sensor.
func hardwareField[T any](hub *sensor.Hub, k sensor.Kind) Field[T] {
	if hub != nil && hub.Registered(k) {
		return loadingField[T]()
	}
	return Field[T]{Status: NotLoaded}
}

// OnPermissionResult handles the answer to the location permission prompt.
func (s *StationController) OnPermissionResult(granted bool) {
	if s.done() {
		return
	}
	if !granted {
		s.store.Update(func(st StationState) StationState {
			st.Weather = failedField[WeatherView](MsgPermissionRequired)
			return st
		})
		return
	}
	if !s.locator.Enabled() {
		s.store.Update(func(st StationState) StationState {
			st.RequestLocationEnable = true
			return st
		})
		return
	}
	s.LoadWeather()
}

// LocationEnableHandled clears the one-shot enable request.
func (s *StationController) LocationEnableHandled() {
	s.store.Update(func(st StationState) StationState {
		st.RequestLocationEnable = false
		return st
	})
}

// LoadWeather sets the weather field to Loading and resolves it in the
// background. A newer call supersedes and cancels an older one; Close cancels
// whatever is in flight and nothing is written afterwards.
func (s *StationController) LoadWeather() {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.done() {
		return
	}
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelLoad = cancel
	s.loadGen++
	gen := s.loadGen

	s.store.Update(func(st StationState) StationState {
		st.Weather = loadingField[WeatherView]()
		return st
	})

	if !s.spawn(func(context.Context) {
		defer cancel()
		s.resolveWeather(ctx, gen)
	}) {
		cancel()
	}
}

func (s *StationController) resolveWeather(ctx context.Context, gen uint64) {
	result := s.fetchWeather(ctx)
	if ctx.Err() != nil {
		return
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if gen != s.loadGen {
		return
	}
	s.store.Update(func(st StationState) StationState {
		st.Weather = result
		return st
	})
}

// RefreshWeather reloads the weather if it was loaded before or failed for a
// reason other than missing permission. It reports whether a load started.
func (s *StationController) RefreshWeather() bool {
	w := s.store.Value().Weather
	switch {
	case w.Status == Loaded:
	case w.Status == Failed && w.Reason != MsgPermissionRequired:
	default:
		return false
	}
	if s.done() {
		return false
	}
	s.LoadWeather()
	return true
}

func (s *StationController) fetchWeather(ctx context.Context) Field[WeatherView] {
	pos := s.locator.CurrentPosition(ctx)
	if pos == nil {
		return failedField[WeatherView](MsgNoFix)
	}
	r, err := s.lookup.WeatherAt(ctx, *pos)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Info("weather unavailable", "position", pos.String(), "error", err)
		}
		return failedField[WeatherView](MsgOffline)
	}
	return loadedField(WeatherView{
		Report:      r,
		Temperature: r.TemperatureText(),
		Humidity:    r.HumidityText(),
		Sunrise:     weather.ClockText(r.Sunrise, s.clock),
		Sunset:      weather.ClockText(r.Sunset, s.clock),
	})
}

func (s *StationController) Feature() Feature { return FeatureStation }

func (s *StationController) State() StationState { return s.store.Value() }

func (s *StationController) Snapshot() any { return s.store.Value() }

func (s *StationController) Subscribe() *pubsub.Subscription[StationState] {
	return s.store.Subscribe()
}

func (s *StationController) Watch(ctx context.Context) <-chan any { return watch(ctx, s.store) }

// Close releases the sensors, abandons any weather lookup in flight and ends
// every observer.
func (s *StationController) Close() {
	if s.close() {
		s.store.Close()
	}
}
