package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/i474232898/sensor-multitool/internal/feature"
	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/metrics"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/session"
	"github.com/i474232898/sensor-multitool/internal/store"
	"github.com/i474232898/sensor-multitool/internal/users"
	"github.com/i474232898/sensor-multitool/internal/weather"
)

type fixedWeather struct{}

func (fixedWeather) WeatherAt(_ context.Context, pos location.Position) (weather.Report, error) {
	return weather.Report{
		Position:     pos,
		Timestamp:    time.Now().UTC(),
		TemperatureC: 21.4,
		HumidityPct:  40,
		Condition:    weather.ConditionClear,
	}, nil
}

type fixture struct {
	app      *fiber.App
	platform *sensor.IngestPlatform
	hub      *sensor.Hub
	tracker  *location.Tracker
	sessions *session.Registry
	theme    *feature.ThemeController
	history  *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := prometheus.NewRegistry()
	m := metrics.New()
	require.NoError(t, m.Register(reg))

	platform := sensor.NewIngestPlatform(sensor.Acceleration, sensor.MagneticField, sensor.Proximity)
	hub := sensor.NewHub(platform, sensor.WithLogger(logger), sensor.WithMetrics(m))
	t.Cleanup(hub.Close)

	deps := feature.Deps{Hub: hub, Logger: logger, Metrics: m}
	theme := feature.NewTheme(context.Background(), deps)
	t.Cleanup(theme.Close)

	tracker := location.NewTracker()
	history := store.NewMemoryStore(10, 0)
	svc := weather.NewService(fixedWeather{}, history, logger, m)
	repo := users.NewMemoryRepository(bcrypt.MinCost)

	sessions := session.NewRegistry(context.Background(), session.Config{
		Deps:     deps,
		Theme:    theme,
		Users:    repo,
		Locator:  location.NewProvider(tracker, tracker, 100*time.Millisecond, logger),
		Weather:  svc,
		TimeZone: time.UTC,
	})
	t.Cleanup(sessions.CloseAll)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, Deps{
		Platform:  platform,
		Hub:       hub,
		Tracker:   tracker,
		Sessions:  sessions,
		Theme:     theme,
		Users:     repo,
		History:   svc,
		Gatherer:  reg,
		Logger:    logger,
		KeepAlive: time.Second,
	})

	return &fixture{
		app:      app,
		platform: platform,
		hub:      hub,
		tracker:  tracker,
		sessions: sessions,
		theme:    theme,
		history:  history,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type openedSession struct {
	ID      string `json:"id"`
	Feature string `json:"feature"`
	UserID  int    `json:"userId"`
}

func (f *fixture) open(t *testing.T, feat string) openedSession {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"feature": feat})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[openedSession](t, resp)
}

func TestErrorHandler_JSONShape(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.True(t, body.Error)
	assert.Equal(t, "invalid session id", body.Message)
}

func TestDeviceSensors(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.hub.Registered(sensor.Light))

	resp := f.do(t, http.MethodPut, "/api/v1/device/sensors", map[string]any{"available": []string{"barometer"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/v1/device/sensors", map[string]any{"available": []string{"light", "pressure"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Registered int               `json:"registered"`
		Units      map[string]string `json:"units"`
	}](t, resp)
	assert.Equal(t, 1, body.Registered, "the theme already holds light")
	assert.Equal(t, "lx", body.Units["light"])
	assert.Contains(t, body.Units, "pressure")
	assert.True(t, f.hub.Registered(sensor.Light))
}

func TestDeviceSamples_DriveTheTheme(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, "/api/v1/device/sensors", map[string]any{"available": []string{"light"}})

	resp := f.do(t, http.MethodPost, "/api/v1/device/samples", map[string]any{
		"samples": []map[string]any{{"kind": "light", "value": 800}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode[struct {
		Accepted  int `json:"accepted"`
		Delivered int `json:"delivered"`
	}](t, resp)
	assert.Equal(t, 1, body.Accepted)
	assert.Equal(t, 1, body.Delivered)

	assert.Eventually(t, func() bool { return !f.theme.State().IsDark }, 2*time.Second, 5*time.Millisecond)
}

func TestDeviceSamples_RejectsMalformedBatch(t *testing.T) {
	f := newFixture(t)

	cases := map[string]any{
		"empty":          map[string]any{"samples": []any{}},
		"unknown kind":   map[string]any{"samples": []map[string]any{{"kind": "humidity", "value": 1}}},
		"missing vector": map[string]any{"samples": []map[string]any{{"kind": "acceleration", "value": 1}}},
		"short vector":   map[string]any{"samples": []map[string]any{{"kind": "magnetic_field", "vector": []float64{1, 2}}}},
		"missing value":  map[string]any{"samples": []map[string]any{{"kind": "light"}}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/v1/device/samples", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestDeviceLocation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/v1/device/location", map[string]any{
		"granted": true,
		"enabled": false,
		"fix":     map[string]any{"latitude": 40.4, "longitude": -3.7},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.tracker.Granted())
	assert.False(t, f.tracker.Enabled())

	pos, err := f.tracker.LastKnown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40.4, pos.Latitude)

	resp = f.do(t, http.MethodPut, "/api/v1/device/location", map[string]any{
		"fix": map[string]any{"latitude": 91, "longitude": 0},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Revoking the permission drops the cached fix.
	resp = f.do(t, http.MethodPut, "/api/v1/device/location", map[string]any{"granted": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = f.tracker.LastKnown(context.Background())
	assert.ErrorIs(t, err, location.ErrNoFix)
}

func TestSessions_Lifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"feature": "barometer"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s := f.open(t, "compass")
	assert.Equal(t, "compass", s.Feature)
	assert.Equal(t, users.GuestID, s.UserID)
	assert.True(t, f.hub.Registered(sensor.MagneticField))

	resp = f.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[struct {
		State struct {
			AngleText string `json:"angleText"`
			Guest     bool   `json:"guest"`
		} `json:"state"`
	}](t, resp)
	assert.Equal(t, "0°", got.State.AngleText)
	assert.True(t, got.State.Guest)

	resp = f.do(t, http.MethodGet, "/api/v1/sessions", nil)
	assert.Len(t, decode[[]openedSession](t, resp), 1)

	resp = f.do(t, http.MethodDelete, "/api/v1/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, f.hub.Registered(sensor.MagneticField))

	resp = f.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/v1/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type stationBody struct {
	Weather struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
		Value  struct {
			Temperature string `json:"temperature"`
		} `json:"value"`
	} `json:"weather"`
	RequestLocationEnable bool `json:"requestLocationEnable"`
}

func (f *fixture) station(t *testing.T, id string) stationBody {
	t.Helper()
	resp := f.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[struct {
		State stationBody `json:"state"`
	}](t, resp).State
}

func TestStation_PermissionLoadsWeather(t *testing.T) {
	f := newFixture(t)
	f.tracker.Report(location.Position{Latitude: 40.42, Longitude: -3.7})
	s := f.open(t, "station")

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/permission", map[string]any{"granted": true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, f.tracker.Granted())

	assert.Eventually(t, func() bool {
		return f.station(t, s.ID).Weather.Status == string(feature.Loaded)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "21 °C", f.station(t, s.ID).Weather.Value.Temperature)

	_, err := f.history.GetLatest(location.Position{Latitude: 40.42, Longitude: -3.7})
	assert.NoError(t, err, "successful lookups are kept in the history")
}

func TestStation_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "station")

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/permission", map[string]any{"granted": false})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	st := decode[stationBody](t, resp)
	assert.Equal(t, string(feature.Failed), st.Weather.Status)
	assert.Equal(t, feature.MsgPermissionRequired, st.Weather.Reason)

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/permission", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStation_LocationEnableRequest(t *testing.T) {
	f := newFixture(t)
	f.tracker.SetEnabled(false)
	s := f.open(t, "station")

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/permission", map[string]any{"granted": true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, decode[stationBody](t, resp).RequestLocationEnable)

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/location-enable-handled", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[stationBody](t, resp).RequestLocationEnable)
}

func TestStation_NoFixFails(t *testing.T) {
	f := newFixture(t)
	f.tracker.SetGranted(true)
	s := f.open(t, "station")

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/weather", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, string(feature.Loading), decode[stationBody](t, resp).Weather.Status)

	assert.Eventually(t, func() bool {
		return f.station(t, s.ID).Weather.Reason == feature.MsgNoFix
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStation_RoutesRejectOtherFeatures(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "proximity")

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/weather", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSessionEvents_StreamsUntilClosed(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "proximity")

	go func() {
		time.Sleep(100 * time.Millisecond)
		f.platform.Emit(sensor.ScalarSample(sensor.Proximity, 0))
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, f.sessions.Close(uuid.MustParse(s.ID)))
	}()

	resp := f.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID+"/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "event: state\nid: 1\n")
	assert.Contains(t, body, `"isNear":true`)
	assert.Contains(t, body, "event: closed")
}

func TestTheme(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/theme", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, feature.InitialTheme, decode[feature.ThemeState](t, resp))

	resp = f.do(t, http.MethodPost, "/api/v1/theme/toggle", nil)
	st := decode[feature.ThemeState](t, resp)
	assert.False(t, st.IsDark)
	assert.Equal(t, feature.Manual, st.Mode)

	resp = f.do(t, http.MethodPost, "/api/v1/theme/automatic", nil)
	assert.Equal(t, feature.Automatic, decode[feature.ThemeState](t, resp).Mode)
}

func TestUsers_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	reg := map[string]any{
		"email":          "Ana@Example.com",
		"fullName":       "Ana",
		"sportsActivity": "Running",
		"password":       "correct horse",
	}

	resp := f.do(t, http.MethodPost, "/api/v1/users", reg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	u := decode[users.User](t, resp)
	assert.Equal(t, "ana@example.com", u.Email)

	resp = f.do(t, http.MethodPost, "/api/v1/users", reg)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/users", map[string]any{"email": "nope", "fullName": "x", "password": "12345678"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/users/login", map[string]any{"email": "ana@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, u.ID, decode[users.User](t, resp).ID)

	resp = f.do(t, http.MethodPost, "/api/v1/users/login", map[string]any{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"feature": "compass", "userId": u.ID})
	require.Equal(t, http.StatusCreated, s.StatusCode)
	assert.Equal(t, u.ID, decode[openedSession](t, s).UserID)
}

func TestWeatherHistory(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.history.SaveReport(weather.Report{
		Position:     location.Position{Latitude: 40.42, Longitude: -3.7},
		Timestamp:    at,
		TemperatureC: 18,
	})

	resp := f.do(t, http.MethodGet, "/api/v1/weather/history?lat=40.421&lon=-3.701&from=2024-05-01T00:00:00Z&to=2024-05-02T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Cell    string           `json:"cell"`
		Reports []weather.Report `json:"reports"`
	}](t, resp)
	assert.Equal(t, "40.42:-3.70", body.Cell)
	require.Len(t, body.Reports, 1)
	assert.Equal(t, 18.0, body.Reports[0].TemperatureC)

	resp = f.do(t, http.MethodGet, "/api/v1/weather/history?lat=40.42&lon=-3.7&from=1714780800&to=1714867200", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/weather/history?lat=40.42&lon=-3.7", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/weather/history?lat=40.42&lon=-3.7&from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.open(t, "compass")

	resp := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "sensor_registrations")
}
