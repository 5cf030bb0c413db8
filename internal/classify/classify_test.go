package classify

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLightLevelOf_Boundaries(t *testing.T) {
	cases := []struct {
		lux  float64
		want LightLevel
	}{
		{0, Darkness},
		{0.99, Darkness},
		{1, VeryDark},
		{50, VeryDark},
		{50.9, VeryDark},
		{51, Indoor},
		{500, Indoor},
		{501, BrightLight},
		{4000, BrightLight},
		{4001, IndirectLight},
		{15000, IndirectLight},
		{15001, DirectSunlight},
		{120000, DirectSunlight},
		{-3, Darkness},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v lux", tc.lux), func(t *testing.T) {
			assert.Equal(t, tc.want, LightLevelOf(tc.lux))
		})
	}
}

func TestLightLevelOf_ExhaustiveAndOrdered(t *testing.T) {
	prev := Darkness
	for lux := 0; lux <= 20000; lux++ {
		got := LightLevelOf(float64(lux))
		assert.GreaterOrEqual(t, got, prev, "bands must not go backwards at %d lux", lux)
		assert.LessOrEqual(t, got, DirectSunlight)
		prev = got
	}
}

func TestLightLevelOf_HugeAndOddReadings(t *testing.T) {
	assert.Equal(t, DirectSunlight, LightLevelOf(1e18))
	assert.Equal(t, DirectSunlight, LightLevelOf(1e19))
	assert.Equal(t, DirectSunlight, LightLevelOf(math.MaxFloat64))
	assert.Equal(t, DirectSunlight, LightLevelOf(math.Inf(1)))
	assert.Equal(t, Darkness, LightLevelOf(math.Inf(-1)))
	assert.Equal(t, Darkness, LightLevelOf(math.NaN()))
	assert.Equal(t, Darkness, LightLevelOf(-1e19))
}

func TestLightLevel_Labels(t *testing.T) {
	assert.Equal(t, "Oscuridad", Darkness.String())
	assert.Equal(t, "Muy oscuro", VeryDark.String())
	assert.Equal(t, "Interior", Indoor.String())
	assert.Equal(t, "Luz Fuerte", BrightLight.String())
	assert.Equal(t, "Luz indirecta", IndirectLight.String())
	assert.Equal(t, "Luz solar directa", DirectSunlight.String())
}

func TestCardinalPointOf(t *testing.T) {
	cases := []struct {
		heading float64
		want    string
	}{
		{0, "N"},
		{22.49, "N"},
		{22.51, "NE"},
		{45, "NE"},
		{90, "E"},
		{135, "SE"},
		{180, "S"},
		{225, "SW"},
		{270, "O"},
		{315, "NO"},
		{337.49, "NO"},
		{337.5, "N"},
		{359.99, "N"},
		{-90, "O"},
		{-22.6, "NO"},
		{720 + 90, "E"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v deg", tc.heading), func(t *testing.T) {
			assert.Equal(t, tc.want, CardinalPointOf(tc.heading).String())
		})
	}
}

func TestCardinalPointOf_AlwaysOneOfEight(t *testing.T) {
	for h := 0.0; h < 360; h += 0.25 {
		c := CardinalPointOf(h)
		assert.GreaterOrEqual(t, int(c), int(North))
		assert.LessOrEqual(t, int(c), int(NorthWest))
	}
}

func TestNormalizeHeading(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeHeading(360))
	assert.Equal(t, 270.0, NormalizeHeading(-90))
	assert.InDelta(t, 179.5, NormalizeHeading(-180.5), 1e-9)
	assert.Equal(t, 10.0, NormalizeHeading(370))
}

func TestNormalizeHeading_NoNegativeZero(t *testing.T) {
	for _, deg := range []float64{math.Copysign(0, -1), -360, -720} {
		h := NormalizeHeading(deg)
		assert.Equal(t, 0.0, h)
		assert.False(t, math.Signbit(h), "heading for %v", deg)
	}
}

func TestIsDark(t *testing.T) {
	assert.True(t, IsDark(0))
	assert.True(t, IsDark(49.9))
	assert.False(t, IsDark(50.0))
	assert.False(t, IsDark(300))
}

func TestIsNear_ExactEquality(t *testing.T) {
	assert.True(t, IsNear(0.0))
	assert.False(t, IsNear(0.01))
	assert.False(t, IsNear(4.9))
	assert.False(t, IsNear(5))
}
