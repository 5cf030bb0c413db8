package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/i474232898/sensor-multitool/internal/api/http"
	"github.com/i474232898/sensor-multitool/internal/config"
	"github.com/i474232898/sensor-multitool/internal/feature"
	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/metrics"
	"github.com/i474232898/sensor-multitool/internal/scheduler"
	"github.com/i474232898/sensor-multitool/internal/sensor"
	"github.com/i474232898/sensor-multitool/internal/session"
	"github.com/i474232898/sensor-multitool/internal/store"
	"github.com/i474232898/sensor-multitool/internal/users"
	"github.com/i474232898/sensor-multitool/internal/weather"
	"github.com/i474232898/sensor-multitool/internal/weather/providers"
)

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	case "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	default:
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
	}
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(os.Stderr, cfg.LogFormat, cfg.SlogLevel())
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return err
	}

	// Device sensors arrive through the ingest API.
	platform := sensor.NewIngestPlatform()
	hub := sensor.NewHub(platform, sensor.WithLogger(log), sensor.WithMetrics(m))
	defer hub.Close()

	// Device fixes first, then the configured city if there is one.
	tracker := location.NewTracker()
	locator := location.NewProvider(tracker, tracker, cfg.FixWait, log.With("component", "location"))
	if cfg.HasFallbackLocation() {
		locator.WithFallback(location.NewGeocodedSource(cfg.GeocoderAPIKey, cfg.FallbackCity, cfg.FallbackCountry))
		log.Info("fallback location configured", "city", cfg.FallbackCity, "country", cfg.FallbackCountry)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	openWeather := providers.NewOpenWeatherProvider(httpClient, providers.OpenWeatherConfig{
		APIKey:  cfg.OpenWeatherAPIKey,
		BaseURL: cfg.OpenWeatherBaseURL,
		Units:   cfg.WeatherUnits,
		Lang:    cfg.WeatherLang,
	})
	log.Info("weather provider configured", "provider", openWeather.Name(), "units", cfg.WeatherUnits, "lang", cfg.WeatherLang)

	// In-memory history with configured retention.
	history := store.NewMemoryStore(cfg.HistoryMax, cfg.HistoryMaxAge)
	weatherSvc := weather.NewService(openWeather, history, log, m)

	accounts := users.NewMemoryRepository(cfg.BcryptCost)

	deps := feature.Deps{Hub: hub, Logger: log, Metrics: m}
	theme := feature.NewTheme(ctx, deps)
	defer theme.Close()

	sessions := session.NewRegistry(ctx, session.Config{
		Deps:     deps,
		Theme:    theme,
		Users:    accounts,
		Locator:  locator,
		Weather:  weatherSvc,
		TimeZone: cfg.Location(),
	})
	defer sessions.CloseAll()

	// Scheduler that periodically refreshes open stations.
	if cfg.RefreshInterval > 0 {
		sched := scheduler.New(sessions, cfg.RefreshInterval, log)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	} else {
		log.Info("periodic weather refresh disabled")
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "sensor-multitool",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "sensor-multitool",
			"sessions": sessions.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Platform:      platform,
		Hub:           hub,
		Tracker:       tracker,
		Sessions:      sessions,
		Theme:         theme,
		Users:         accounts,
		History:       weatherSvc,
		Gatherer:      reg,
		Logger:        log,
		StreamContext: ctx,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Wait for termination signal
		<-gctx.Done()
		log.Info("shutting down")

		// Open event streams end with their sessions.
		sessions.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}
