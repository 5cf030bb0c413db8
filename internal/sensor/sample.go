// Package sensor owns the registration with the device sensor platform and
// republishes raw readings as one multi-subscriber stream per sensor kind.
package sensor

import (
	"fmt"
	"strings"
)

// Kind identifies a hardware sensor type.
type Kind int

const (
	Acceleration Kind = iota + 1
	MagneticField
	Light
	AmbientTemperature
	Pressure
	Proximity
)

// AllKinds lists every kind the hub knows about.
var AllKinds = []Kind{Acceleration, MagneticField, Light, AmbientTemperature, Pressure, Proximity}

var kindNames = map[Kind]string{
	Acceleration:       "acceleration",
	MagneticField:      "magnetic_field",
	Light:              "light",
	AmbientTemperature: "ambient_temperature",
	Pressure:           "pressure",
	Proximity:          "proximity",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsVector reports whether samples of this kind carry three axes.
func (k Kind) IsVector() bool {
	return k == Acceleration || k == MagneticField
}

// Unit is the unit the platform reports this kind in.
func (k Kind) Unit() string {
	switch k {
	case Acceleration:
		return "m/s²"
	case MagneticField:
		return "μT"
	case Light:
		return "lx"
	case AmbientTemperature:
		return "°C"
	case Pressure:
		return "hPa"
	case Proximity:
		return "cm"
	default:
		return ""
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor kind %q", s)
}

// MarshalText renders the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Sample is one immutable hardware reading. Vector kinds use Vector, scalar
// kinds use Value. Samples carry no timestamp; arrival order is the order.
type Sample struct {
	Kind   Kind
	Vector [3]float64
	Value  float64
}

// VectorSample builds an acceleration or magnetic field sample.
func VectorSample(k Kind, x, y, z float64) Sample {
	return Sample{Kind: k, Vector: [3]float64{x, y, z}}
}

// ScalarSample builds a light, temperature, pressure or proximity sample.
func ScalarSample(k Kind, v float64) Sample {
	return Sample{Kind: k, Value: v}
}

// Rate is a sampling-rate hint passed to the platform. It is not a guarantee.
type Rate int

const (
	// RateNormal suits slowly changing readings such as pressure.
	RateNormal Rate = iota
	// RateUI is fast enough for an interactive display.
	RateUI
)

func (r Rate) String() string {
	if r == RateUI {
		return "ui"
	}
	return "normal"
}

// DefaultRate is the hint used for each kind: normal for pressure, UI rate
// for everything else.
func DefaultRate(k Kind) Rate {
	switch k {
	case Acceleration, MagneticField, Light, AmbientTemperature, Proximity:
		return RateUI
	default:
		return RateNormal
	}
}
