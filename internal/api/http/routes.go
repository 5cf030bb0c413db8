// Package httpapi is the fiber surface of the service: the device agent feeds
// sensors and location through it, and clients open screen sessions and
// observe their state.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/sensor-multitool/internal/feature"
	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/session"
	"github.com/i474232898/sensor-multitool/internal/users"
	"github.com/i474232898/sensor-multitool/internal/weather"
)

var validate = validator.New()

// DefaultKeepAlive is the comment interval on idle event streams.
const DefaultKeepAlive = 15 * time.Second

// UserStore registers and authenticates accounts.
type UserStore interface {
	Register(ctx context.Context, reg users.Registration) (*users.User, error)
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
}

// History serves stored weather reports.
type History interface {
	GetRange(pos location.Position, from, to time.Time) ([]weather.Report, error)
}

// Deps are the collaborators the handlers use. Gatherer, Users and History
// are optional; their routes are not registered when nil.
type Deps struct {
	Platform *sensor.IngestPlatform
	Hub      *sensor.Hub
	Tracker  *location.Tracker
	Sessions *session.Registry
	Theme    *feature.ThemeController
	Users    UserStore
	History  History
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	// StreamContext ends every open event stream when cancelled.
	StreamContext context.Context
	KeepAlive     time.Duration
}

type handler struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "http")
	if deps.StreamContext == nil {
		deps.StreamContext = context.Background()
	}
	if deps.KeepAlive <= 0 {
		deps.KeepAlive = DefaultKeepAlive
	}
	h := &handler{Deps: deps}

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	device := v1.Group("/device")
	device.Put("/sensors", h.putSensors)
	device.Post("/samples", h.postSamples)
	device.Put("/location", h.putLocation)

	sessions := v1.Group("/sessions")
	sessions.Post("/", h.openSession)
	sessions.Get("/", h.listSessions)
	sessions.Get("/:id", h.getSession)
	sessions.Get("/:id/events", h.sessionEvents)
	sessions.Delete("/:id", h.closeSession)
	sessions.Post("/:id/permission", h.stationPermission)
	sessions.Post("/:id/weather", h.stationWeather)
	sessions.Post("/:id/location-enable-handled", h.stationEnableHandled)

	if deps.Theme != nil {
		theme := v1.Group("/theme")
		theme.Get("/", h.getTheme)
		theme.Get("/events", h.themeEvents)
		theme.Post("/toggle", h.toggleTheme)
		theme.Post("/automatic", h.automaticTheme)
	}

	if deps.Users != nil {
		v1.Post("/users", h.register)
		v1.Post("/users/login", h.login)
	}

	if deps.History != nil {
		v1.Get("/weather/history", h.weatherHistory)
	}
}

// ErrorHandler renders every handler error as the JSON error body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// bind parses the JSON body into v and validates it.
func bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
