package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_FlatDevice(t *testing.T) {
	gravity := Vec3{0, 0, 9.81}

	cases := []struct {
		name     string
		magnetic Vec3
		heading  float64
	}{
		{"top points north", Vec3{0, 20, -40}, 0},
		{"top points east", Vec3{-20, 0, -40}, 90},
		{"top points south", Vec3{0, -20, -40}, 180},
		{"top points west", Vec3{20, 0, -40}, 270},
		{"top points north-east", Vec3{-14.142, 14.142, -40}, 45},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, ok := Fuse(gravity, tc.magnetic)
			require.True(t, ok)
			assert.InDelta(t, tc.heading, e.Heading, 0.01)
			assert.InDelta(t, 0, e.Pitch, 0.01)
			assert.InDelta(t, 0, e.Roll, 0.01)
			assert.GreaterOrEqual(t, e.Heading, 0.0)
			assert.Less(t, e.Heading, 360.0)
		})
	}
}

func TestFuse_UprightDeviceIsDefined(t *testing.T) {
	h, ok := Heading(Vec3{0, 9.8, 0}, Vec3{0, 0, -30})
	require.True(t, ok)
	assert.False(t, math.IsNaN(h))
	assert.GreaterOrEqual(t, h, 0.0)
	assert.Less(t, h, 360.0)
	assert.False(t, math.Signbit(h), "heading must not be negative zero")
}

func TestFuse_Unstable(t *testing.T) {
	cases := []struct {
		name              string
		gravity, magnetic Vec3
	}{
		{"zero gravity", Vec3{0, 0, 0}, Vec3{0, 20, -40}},
		{"free fall", Vec3{0.3, 0.2, 0.5}, Vec3{0, 20, -40}},
		{"field parallel to gravity", Vec3{0, 0, 9.81}, Vec3{0, 0, -30}},
		{"no magnetic field", Vec3{0, 0, 9.81}, Vec3{0, 0, 0}},
		{"nan input", Vec3{math.NaN(), 0, 9.81}, Vec3{0, 20, -40}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Fuse(tc.gravity, tc.magnetic)
			assert.False(t, ok)
		})
	}
}

func TestRotationMatrix_IsOrthonormal(t *testing.T) {
	r, ok := NewRotationMatrix(Vec3{1.2, 3.4, 8.9}, Vec3{12, -5, -33})
	require.True(t, ok)

	rows := [3]Vec3{
		{r[0], r[1], r[2]},
		{r[3], r[4], r[5]},
		{r[6], r[7], r[8]},
	}
	for i := range rows {
		assert.InDelta(t, 1, rows[i].Norm(), 1e-9)
		for j := i + 1; j < len(rows); j++ {
			dot := rows[i][0]*rows[j][0] + rows[i][1]*rows[j][1] + rows[i][2]*rows[j][2]
			assert.InDelta(t, 0, dot, 1e-9)
		}
	}
}

func TestEstimate_RotationIsNegatedHeading(t *testing.T) {
	e := Estimate{Heading: 123.5}
	assert.Equal(t, -123.5, e.Rotation())
}
