// Package classify maps continuous sensor values onto the discrete labels shown
// to the user. Every function here is total and pure.
package classify

import "math"

// CardinalPoint is one of the eight compass directions.
type CardinalPoint int

const (
	North CardinalPoint = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// Labels are the app's locale labels; west is "O" (oeste).
var cardinalLabels = [8]string{"N", "NE", "E", "SE", "S", "SW", "O", "NO"}

func (c CardinalPoint) String() string {
	if c < North || c > NorthWest {
		return "?"
	}
	return cardinalLabels[c]
}

// MarshalText renders the label.
func (c CardinalPoint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// NormalizeHeading wraps any finite angle into [0,360). Negative zero comes
// back as positive zero.
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h == 0 {
		return 0
	}
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// CardinalPointOf returns the 45° sector that heading falls in, with sectors
// centred on each direction (N covers [337.5,22.5)).
func CardinalPointOf(heading float64) CardinalPoint {
	h := NormalizeHeading(heading)
	return CardinalPoint(int((h+22.5)/45) % 8)
}

// LightLevel describes an illuminance band.
type LightLevel int

const (
	Darkness LightLevel = iota
	VeryDark
	Indoor
	BrightLight
	IndirectLight
	DirectSunlight
)

var lightLabels = [...]string{
	Darkness:       "Oscuridad",
	VeryDark:       "Muy oscuro",
	Indoor:         "Interior",
	BrightLight:    "Luz Fuerte",
	IndirectLight:  "Luz indirecta",
	DirectSunlight: "Luz solar directa",
}

func (l LightLevel) String() string {
	if l < Darkness || l > DirectSunlight {
		return "?"
	}
	return lightLabels[l]
}

// MarshalText renders the label.
func (l LightLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// LightLevelOf looks lux up in the band table as if truncated to an integer.
// Bands are inclusive at the upper end: 0, 1-50, 51-500, 501-4000,
// 4001-15000, above. Negative and NaN readings count as darkness. The
// comparisons stay in floating point so huge readings cannot overflow.
func LightLevelOf(lux float64) LightLevel {
	switch {
	case math.IsNaN(lux) || lux < 1:
		return Darkness
	case lux < 51:
		return VeryDark
	case lux < 501:
		return Indoor
	case lux < 4001:
		return BrightLight
	case lux < 15001:
		return IndirectLight
	default:
		return DirectSunlight
	}
}

// DarkThreshold is the lux below which the automatic theme goes dark.
const DarkThreshold = 50

// IsDark reports lux < 50.
func IsDark(lux float64) bool {
	return lux < DarkThreshold
}

// NearDistance is the proximity reading that means "covered".
const NearDistance = 0.0

// IsNear reports whether a proximity reading is exactly the sensor's minimum.
//
// This is exact equality on purpose: the sensors this was tuned on report
// either 0 or their maximum range, and a "< 5cm" band misfired on at least one
// device. Do not turn it into a threshold without re-testing on hardware.
func IsNear(distance float64) bool {
	return distance == NearDistance
}
