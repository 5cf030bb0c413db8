// Package location resolves the device's current position for the weather
// lookup.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Position is a WGS84 coordinate.
type Position struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

func (p Position) String() string {
	return fmt.Sprintf("%.4f,%.4f", p.Latitude, p.Longitude)
}

// ErrNoFix means a source has no position to offer.
var ErrNoFix = errors.New("no location fix")

// Source yields position fixes. LastKnown answers immediately from whatever
// the source has cached; Await blocks for one fresh fix.
type Source interface {
	LastKnown(ctx context.Context) (Position, error)
	Await(ctx context.Context) (Position, error)
}

// Permissions reports the device's location settings.
type Permissions interface {
	// Granted reports whether the app may read the location at all.
	Granted() bool
	// Enabled reports whether location services are switched on.
	Enabled() bool
}

// Provider implements the single-shot position lookup: the cached fix if
// there is one, otherwise one fresh fix waited for at most FixWait.
type Provider struct {
	perms   Permissions
	source  Source
	fixWait time.Duration
	logger  *slog.Logger

	fallback Source
}

// DefaultFixWait bounds the wait for a fresh fix.
const DefaultFixWait = 10 * time.Second

// NewProvider creates a Provider. A non-positive fixWait uses DefaultFixWait.
func NewProvider(perms Permissions, source Source, fixWait time.Duration, logger *slog.Logger) *Provider {
	if fixWait <= 0 {
		fixWait = DefaultFixWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{perms: perms, source: source, fixWait: fixWait, logger: logger}
}

// WithFallback sets a source consulted when the fresh-fix wait runs out.
// The fallback answers from LastKnown under the caller's context.
func (p *Provider) WithFallback(s Source) *Provider {
	p.fallback = s
	return p
}

// Enabled reports whether location services are on.
func (p *Provider) Enabled() bool {
	return p.perms.Enabled()
}

// CurrentPosition returns nil when permission is missing, when ctx ends, or
// when no fix arrives within the wait and the fallback has none either. It
// never returns an error; every failure becomes nil.
func (p *Provider) CurrentPosition(ctx context.Context) *Position {
	if !p.perms.Granted() {
		p.logger.Debug("location permission not granted")
		return nil
	}

	pos, err := p.source.LastKnown(ctx)
	if err == nil {
		return &pos
	}
	if !errors.Is(err, ErrNoFix) {
		p.logger.Warn("last known location failed", "error", err)
		if ctx.Err() != nil {
			return nil
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.fixWait)
	defer cancel()

	pos, err = p.source.Await(waitCtx)
	if err == nil {
		return &pos
	}
	p.logger.Info("no fresh location fix", "wait", p.fixWait, "error", err)
	if p.fallback == nil || ctx.Err() != nil {
		return nil
	}

	pos, err = p.fallback.LastKnown(ctx)
	if err != nil {
		p.logger.Warn("fallback location failed", "error", err)
		return nil
	}
	return &pos
}
