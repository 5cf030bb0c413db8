package weather

import (
	"fmt"
	"time"

	"github.com/i474232898/sensor-multitool/internal/location"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Report is one successful weather lookup. A Report is only ever built from a
// complete response; there are no partially filled reports.
type Report struct {
	Position     location.Position `json:"position"`
	Timestamp    time.Time         `json:"timestamp"` // always UTC
	TemperatureC float64           `json:"temperatureC"`
	HumidityPct  float64           `json:"humidityPercent"`
	PressureHpa  float64           `json:"pressureHpa"`
	Sunrise      time.Time         `json:"sunrise"`
	Sunset       time.Time         `json:"sunset"`
	Condition    Condition         `json:"condition"`
	Description  string            `json:"description,omitempty"`
}

// TemperatureText renders the temperature truncated to whole degrees, e.g. "21 °C".
func (r Report) TemperatureText() string {
	return fmt.Sprintf("%d °C", int(r.TemperatureC))
}

// HumidityText renders the relative humidity, e.g. "64 %".
func (r Report) HumidityText() string {
	return fmt.Sprintf("%d %%", int(r.HumidityPct))
}

// ClockText renders t as a 12-hour wall clock time in loc, e.g. "6:42 AM".
// A nil loc means local time.
func ClockText(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("3:04 PM")
}

// CellKey returns the canonical key for indexing reports in stores. Positions
// are bucketed to two decimals (about 1 km) so nearby fixes share a history.
func CellKey(p location.Position) string {
	return fmt.Sprintf("%.2f:%.2f", p.Latitude, p.Longitude)
}
