package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/sensor-multitool/internal/location"
	"github.com/i474232898/sensor-multitool/internal/weather"
	"github.com/sony/gobreaker"
)

// DefaultOpenWeatherURL is the current-weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

var errMalformed = errors.New("malformed weather response")

// OpenWeatherConfig holds the request parameters sent with every lookup.
type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string
	Units   string
	Lang    string
}

// OpenWeatherProvider implements weather.Lookup for OpenWeatherMap. Each lookup
// is exactly one round trip; the breaker only short-circuits while the API is
// known to be down.
type OpenWeatherProvider struct {
	name    string
	cfg     OpenWeatherConfig
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, cfg OpenWeatherConfig) *OpenWeatherProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenWeatherURL
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Lang == "" {
		cfg.Lang = "es"
	}

	return &OpenWeatherProvider{
		name: "openweathermap",
		cfg:  cfg,
		httpCfg: HTTPClientConfig{Client: client},
		circuit: newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPayload struct {
	Dt   int64 `json:"dt"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
		Pressure float64  `json:"pressure"`
	} `json:"main"`
	Sys *struct {
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (p *OpenWeatherProvider) WeatherAt(ctx context.Context, pos location.Position) (weather.Report, error) {
	if p.cfg.APIKey == "" {
		return weather.Report{}, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
		values.Set("appid", p.cfg.APIKey)
		values.Set("units", p.cfg.Units)
		values.Set("lang", p.cfg.Lang)

		u := fmt.Sprintf("%s?%s", p.cfg.BaseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Report{}, err
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Report{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return p.toReport(pos, payload)
}

func (p *OpenWeatherProvider) toReport(pos location.Position, payload openWeatherPayload) (weather.Report, error) {
	switch {
	case payload.Main == nil:
		return weather.Report{}, fmt.Errorf("%w: missing main", errMalformed)
	case payload.Sys == nil:
		return weather.Report{}, fmt.Errorf("%w: missing sys", errMalformed)
	case payload.Main.Temp == nil || payload.Main.Humidity == nil:
		return weather.Report{}, fmt.Errorf("%w: missing main.temp or main.humidity", errMalformed)
	case payload.Sys.Sunrise == nil || payload.Sys.Sunset == nil:
		return weather.Report{}, fmt.Errorf("%w: missing sys.sunrise or sys.sunset", errMalformed)
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	r := weather.Report{
		Position:     pos,
		Timestamp:    ts,
		TemperatureC: *payload.Main.Temp,
		HumidityPct:  *payload.Main.Humidity,
		PressureHpa:  payload.Main.Pressure,
		Sunrise:      time.Unix(*payload.Sys.Sunrise, 0).UTC(),
		Sunset:       time.Unix(*payload.Sys.Sunset, 0).UTC(),
		Condition:    weather.ConditionUnknown,
	}
	if len(payload.Weather) > 0 {
		r.Condition = mapOpenWeatherCondition(payload.Weather[0].Main)
		r.Description = payload.Weather[0].Description
	}
	return r, nil
}

func mapOpenWeatherCondition(main string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
