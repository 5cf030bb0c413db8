package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

// ReportHistory holds a time-ordered list of weather reports for a location cell.
type ReportHistory struct {
	Reports []weather.Report
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: weather.CellKey, value: history
	data map[string]*ReportHistory

	// retention configuration
	maxHistory int           // max number of reports per cell
	maxAge     time.Duration // optional max age for reports

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ReportHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveReport appends a report to its cell and enforces retention.
func (s *MemoryStore) SaveReport(report weather.Report) {
	key := weather.CellKey(report.Position)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ReportHistory{}
		s.data[key] = history
	}

	// Keep the slice ordered by timestamp; reports almost always arrive in order.
	i := len(history.Reports)
	for i > 0 && history.Reports[i-1].Timestamp.After(report.Timestamp) {
		i--
	}
	history.Reports = append(history.Reports, weather.Report{})
	copy(history.Reports[i+1:], history.Reports[i:])
	history.Reports[i] = report

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Reports) > s.maxHistory {
		over := len(history.Reports) - s.maxHistory
		history.Reports = history.Reports[over:]
	}

	// Enforce retention by age. The newest report always survives.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Reports)-1; i++ {
			if !history.Reports[i].Timestamp.Before(cutoff) {
				break
			}
		}
		history.Reports = history.Reports[i:]
	}
}

// GetLatest returns the most recent report for the cell containing pos.
func (s *MemoryStore) GetLatest(pos location.Position) (weather.Report, error) {
	key := weather.CellKey(pos)

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Reports) == 0 {
		return weather.Report{}, ErrNotFound
	}
	return history.Reports[len(history.Reports)-1], nil
}

// GetRange returns all reports for the cell containing pos between from and
// to (inclusive).
func (s *MemoryStore) GetRange(pos location.Position, from, to time.Time) ([]weather.Report, error) {
	key := weather.CellKey(pos)

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Reports) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Report
	for _, r := range history.Reports {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Cells returns the number of location cells with history.
func (s *MemoryStore) Cells() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
