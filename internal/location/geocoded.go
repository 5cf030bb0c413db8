package location

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"
	"golang.org/x/sync/singleflight"
)

// GeocodeFunc resolves an address to coordinates.
type GeocodeFunc func(geocoder.Address) (geocoder.Location, error)

// GeocodedSource offers a fixed fallback position: a configured city resolved
// once through the Google geocoding API.
type GeocodedSource struct {
	address geocoder.Address
	geocode GeocodeFunc
	group   singleflight.Group

	mu       sync.Mutex
	resolved *Position
}

// NewGeocodedSource configures the geocoder with apiKey and returns a source
// for city, country.
func NewGeocodedSource(apiKey, city, country string) *GeocodedSource {
	geocoder.ApiKey = apiKey
	return newGeocodedSource(geocoder.Address{City: city, Country: country}, geocoder.Geocoding)
}

func newGeocodedSource(addr geocoder.Address, fn GeocodeFunc) *GeocodedSource {
	return &GeocodedSource{address: addr, geocode: fn}
}

// LastKnown returns the resolved position, geocoding it on first use. The
// geocoder takes no context, so the call runs on its own goroutine and the
// caller stops waiting when ctx ends. A lookup that finishes after that still
// fills the cache.
func (g *GeocodedSource) LastKnown(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}

	g.mu.Lock()
	if g.resolved != nil {
		p := *g.resolved
		g.mu.Unlock()
		return p, nil
	}
	g.mu.Unlock()

	ch := g.group.DoChan("resolve", g.resolve)
	select {
	case <-ctx.Done():
		return Position{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Position{}, res.Err
		}
		return res.Val.(Position), nil
	}
}

// Await is LastKnown: the fallback position never changes.
func (g *GeocodedSource) Await(ctx context.Context) (Position, error) {
	return g.LastKnown(ctx)
}

func (g *GeocodedSource) resolve() (interface{}, error) {
	loc, err := g.geocode(g.address)
	if err != nil {
		return nil, fmt.Errorf("geocode %s, %s: %w", g.address.City, g.address.Country, err)
	}
	p := Position{Latitude: loc.Latitude, Longitude: loc.Longitude}

	g.mu.Lock()
	g.resolved = &p
	g.mu.Unlock()
	return p, nil
}
