package weather

import (
	"context"
	"time"

	"github.com/i474232898/sensor-multitool/internal/location"
)

// Lookup fetches the current weather at a position.
type Lookup interface {
	WeatherAt(ctx context.Context, pos location.Position) (Report, error)
}

// Store is the contract the in-memory report history (and any future
// persistent store) must satisfy.
type Store interface {
	SaveReport(report Report)
	GetLatest(pos location.Position) (Report, error)
	GetRange(pos location.Position, from, to time.Time) ([]Report, error)
}
