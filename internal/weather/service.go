package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/metrics"
)

// ErrLookupFailed is the only failure WeatherAt reports besides cancellation.
// Transport errors, non-2xx statuses, timeouts and malformed bodies all become
// this error.
var ErrLookupFailed = errors.New("weather lookup failed")

// Service wraps a Lookup, collapses its failures and records successful
// reports in the history store.
type Service struct {
	lookup  Lookup
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a new Service. store and m may be nil.
func NewService(lookup Lookup, store Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		lookup:  lookup,
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// WeatherAt performs one lookup. It returns ctx.Err() if ctx ended, otherwise
// ErrLookupFailed for any failure.
func (s *Service) WeatherAt(ctx context.Context, pos location.Position) (Report, error) {
	start := time.Now()
	r, err := s.lookup.WeatherAt(ctx, pos)
	if err != nil {
		if ctx.Err() != nil {
			s.metrics.WeatherLookup("cancelled")
			return Report{}, ctx.Err()
		}
		s.metrics.WeatherLookup("failed")
		s.logger.Warn("weather lookup failed", "position", pos.String(), "error", err)
		return Report{}, ErrLookupFailed
	}

	s.metrics.WeatherLookup("ok")
	s.logger.Debug("weather lookup", "position", pos.String(), "temp", r.TemperatureC, "took", time.Since(start))
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if s.store != nil {
		s.store.SaveReport(r)
	}
	return r, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(pos location.Position) (Report, error) {
	if s.store == nil {
		return Report{}, ErrNoHistory
	}
	return s.store.GetLatest(pos)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(pos location.Position, from, to time.Time) ([]Report, error) {
	if s.store == nil {
		return nil, ErrNoHistory
	}
	return s.store.GetRange(pos, from, to)
}

// ErrNoHistory is returned by the history accessors when no store is wired.
var ErrNoHistory = errors.New("weather history not configured")
