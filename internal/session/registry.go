// Package session tracks the open screen scopes. Opening a session builds the
// feature controller for it; closing the session tears the controller down.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/sensor-multitool/internal/feature"
	"github.com/i474232898/sensor-multitool/internal/metrics"
	"github.com/i474232898/sensor-multitool/internal/users"
	"github.com/i474232898/sensor-multitool/internal/weather"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("session registry closed")
)

// Session is one open screen.
type Session struct {
	ID       uuid.UUID       `json:"id"`
	Feature  feature.Feature `json:"feature"`
	UserID   int             `json:"userId"`
	OpenedAt time.Time       `json:"openedAt"`

	Controller feature.Controller `json:"-"`
}

// Station returns the station controller, or nil for other features.
func (s *Session) Station() *feature.StationController {
	if st, ok := s.Controller.(*stationScope); ok {
		return st.StationController
	}
	return nil
}

// Config wires the collaborators controllers are built from.
type Config struct {
	Deps     feature.Deps
	Theme    *feature.ThemeController
	Users    users.Lookup
	Locator  feature.Locator
	Weather  weather.Lookup
	TimeZone *time.Location
}

// Registry owns every open session.
type Registry struct {
	ctx     context.Context
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	closed   bool
}

// NewRegistry creates a registry. Controllers live under ctx; cancelling it
// ends their scopes, though Close is still needed to release them.
func NewRegistry(ctx context.Context, cfg Config) *Registry {
	logger := cfg.Deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger.With("component", "sessions"),
		metrics:  cfg.Deps.Metrics,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// themeView exposes the process-wide theme to a session without letting the
// session close it.
type themeView struct {
	*feature.ThemeController
}

func (themeView) Close() {}

// stationScope pins the theme for as long as a station screen is open.
type stationScope struct {
	*feature.StationController
	theme *feature.ThemeController
	once  sync.Once
}

func (s *stationScope) Close() {
	s.once.Do(func() {
		s.StationController.Close()
		if s.theme != nil {
			s.theme.ScopeExited()
		}
	})
}

func (r *Registry) build(f feature.Feature, userID int) (feature.Controller, error) {
	switch f {
	case feature.FeatureCompass:
		return feature.NewCompass(r.ctx, r.cfg.Deps, r.cfg.Users, userID), nil
	case feature.FeatureProximity:
		// Opening the proximity screen hands the theme back to the light
		// sensor, unless a station is pinning it.
		if r.cfg.Theme != nil && r.cfg.Theme.State().Holds == 0 {
			r.cfg.Theme.SetAutomatic()
		}
		return feature.NewProximity(r.ctx, r.cfg.Deps), nil
	case feature.FeatureStation:
		if r.cfg.Locator == nil || r.cfg.Weather == nil {
			return nil, errors.New("station needs a locator and a weather lookup")
		}
		if r.cfg.Theme != nil {
			r.cfg.Theme.ScopeEntered()
		}
		st := feature.NewStation(r.ctx, r.cfg.Deps, r.cfg.Locator, r.cfg.Weather, r.cfg.TimeZone)
		return &stationScope{StationController: st, theme: r.cfg.Theme}, nil
	case feature.FeatureTheme:
		if r.cfg.Theme == nil {
			return nil, errors.New("theme controller not configured")
		}
		return themeView{r.cfg.Theme}, nil
	}
	return nil, errors.New("unknown feature " + string(f))
}

// Open creates a session and its controller.
func (r *Registry) Open(f feature.Feature, userID int) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	c, err := r.build(f, userID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:         uuid.New(),
		Feature:    f,
		UserID:     userID,
		OpenedAt:   time.Now().UTC(),
		Controller: c,
	}
	r.sessions[s.ID] = s
	r.metrics.SessionOpened(string(f))
	r.logger.Info("session opened", "id", s.ID, "feature", f, "user_id", userID)
	return s, nil
}

// Get returns an open session.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close ends a session. Its controller is fully torn down when Close returns.
func (r *Registry) Close(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.Controller.Close()
	r.metrics.SessionClosed(string(s.Feature))
	r.logger.Info("session closed", "id", id, "feature", s.Feature, "open_for", time.Since(s.OpenedAt).Round(time.Millisecond))
	return nil
}

// List returns the open sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Stations returns the station controllers of every open session.
func (r *Registry) Stations() []*feature.StationController {
	var out []*feature.StationController
	for _, s := range r.List() {
		if st := s.Station(); st != nil {
			out = append(out, st)
		}
	}
	return out
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll ends every session and refuses new ones.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.Close(id)
	}
}
