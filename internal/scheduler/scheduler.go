package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/sensor-multitool/internal/feature"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 15 * time.Minute

// StationLister returns the station screens currently open.
type StationLister interface {
	Stations() []*feature.StationController
}

// Scheduler periodically refreshes the weather of every open station.
type Scheduler struct {
	scheduler *gocron.Scheduler
	stations  StationLister
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(stations StationLister, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		stations:  stations,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Interval returns the refresh period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// RunOnce refreshes every eligible station and returns how many started a
// reload.
func (s *Scheduler) RunOnce() int {
	stations := s.stations.Stations()
	refreshed := 0
	for _, st := range stations {
		if st.RefreshWeather() {
			refreshed++
		}
	}
	s.logger.Debug("weather refresh", "stations", len(stations), "refreshed", refreshed)
	return refreshed
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens one interval after Start.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Do(func() { s.RunOnce() })
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
