// Package config loads the process configuration from the environment. A .env
// file in the working directory is read first; variables already set in the
// environment win over it.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrorType categorizes configuration failures.
type ErrorType string

const (
	ErrParsing    ErrorType = "PARSING_FAILED"
	ErrValidation ErrorType = "VALIDATION_FAILED"
)

// ConfigError is returned by Load when the environment cannot be turned into
// a valid AppConfig.
type ConfigError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type AppConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"tint" validate:"oneof=text tint json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	OpenWeatherAPIKey  string        `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	OpenWeatherBaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5/weather" validate:"required,url"`
	WeatherLang        string        `envconfig:"WEATHER_LANG" default:"es" validate:"required"`
	WeatherUnits       string        `envconfig:"WEATHER_UNITS" default:"metric" validate:"oneof=standard metric imperial"`
	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`

	// RefreshInterval controls how often open stations reload their weather.
	// Zero disables the periodic refresh.
	RefreshInterval time.Duration `envconfig:"WEATHER_REFRESH_INTERVAL" default:"15m" validate:"gte=0"`

	// Retention of successful reports: max reports per location cell
	// (0 = unlimited) and max age (0 = unlimited).
	HistoryMax    int           `envconfig:"WEATHER_HISTORY_MAX" default:"96" validate:"gte=0"`
	HistoryMaxAge time.Duration `envconfig:"WEATHER_HISTORY_MAX_AGE" default:"24h" validate:"gte=0"`

	// FixWait bounds the wait for a fresh fix when none is cached.
	FixWait time.Duration `envconfig:"LOCATION_FIX_WAIT" default:"10s" validate:"gt=0"`

	// Optional city used when the device cannot produce a fix.
	FallbackCity    string `envconfig:"LOCATION_FALLBACK_CITY"`
	FallbackCountry string `envconfig:"LOCATION_FALLBACK_COUNTRY" validate:"required_with=FallbackCity"`
	GeocoderAPIKey  string `envconfig:"GEOCODER_API_KEY" validate:"required_with=FallbackCity"`

	TimeZone   string `envconfig:"TIME_ZONE" default:"Local"`
	BcryptCost int    `envconfig:"BCRYPT_COST" default:"0" validate:"gte=0,lte=31"`

	location *time.Location
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "unknown TIME_ZONE " + cfg.TimeZone, Err: err}
	}
	cfg.location = loc

	return &cfg, nil
}

// Location is the zone sunrise and sunset are shown in.
func (c *AppConfig) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// HasFallbackLocation reports whether a geocoded fallback city is configured.
func (c *AppConfig) HasFallbackLocation() bool {
	return c.FallbackCity != ""
}

// SlogLevel maps LogLevel to a slog level.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
