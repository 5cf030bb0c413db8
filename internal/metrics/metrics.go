// Package metrics defines the Prometheus collectors for the sensor pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the service exports.
type Metrics struct {
	SamplesReceived *prometheus.CounterVec
	SamplesDropped  *prometheus.CounterVec
	Registrations   *prometheus.GaugeVec
	FusionUnstable  prometheus.Counter
	WeatherLookups  *prometheus.CounterVec
	OpenSessions    *prometheus.GaugeVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		SamplesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "multitool",
				Subsystem: "sensor",
				Name:      "samples_received_total",
				Help:      "Samples delivered by the platform to the hub",
			},
			[]string{"kind"},
		),
		SamplesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "multitool",
				Subsystem: "sensor",
				Name:      "samples_dropped_total",
				Help:      "Samples that arrived while no subscriber was attached",
			},
			[]string{"kind"},
		),
		Registrations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "multitool",
				Subsystem: "sensor",
				Name:      "registrations",
				Help:      "Owners currently holding a platform registration, per kind",
			},
			[]string{"kind"},
		),
		FusionUnstable: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "multitool",
				Subsystem: "fusion",
				Name:      "unstable_total",
				Help:      "Accelerometer/magnetometer pairs that produced no stable heading",
			},
		),
		WeatherLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "multitool",
				Subsystem: "weather",
				Name:      "lookups_total",
				Help:      "Weather lookups by outcome",
			},
			[]string{"outcome"},
		),
		OpenSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "multitool",
				Subsystem: "session",
				Name:      "open",
				Help:      "Open feature sessions",
			},
			[]string{"feature"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range []prometheus.Collector{
		m.SamplesReceived,
		m.SamplesDropped,
		m.Registrations,
		m.FusionUnstable,
		m.WeatherLookups,
		m.OpenSessions,
	} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Metrics) SampleReceived(kind string) {
	if m != nil {
		m.SamplesReceived.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SampleDropped(kind string) {
	if m != nil {
		m.SamplesDropped.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SetRegistrations(kind string, n int) {
	if m != nil {
		m.Registrations.WithLabelValues(kind).Set(float64(n))
	}
}

func (m *Metrics) Unstable() {
	if m != nil {
		m.FusionUnstable.Inc()
	}
}

func (m *Metrics) WeatherLookup(outcome string) {
	if m != nil {
		m.WeatherLookups.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SessionOpened(feature string) {
	if m != nil {
		m.OpenSessions.WithLabelValues(feature).Inc()
	}
}

func (m *Metrics) SessionClosed(feature string) {
	if m != nil {
		m.OpenSessions.WithLabelValues(feature).Dec()
	}
}
