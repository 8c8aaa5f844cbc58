package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineSymmetry(t *testing.T) {
	miraflores := Point{Lat: -12.1203, Lng: -77.0282}
	barranco := Point{Lat: -12.1406, Lng: -77.0214}

	ab := Haversine(miraflores, barranco)
	ba := Haversine(barranco, miraflores)

	assert.InDelta(t, ab, ba, 1e-12)
	assert.Greater(t, ab, 0.0)
}

func TestHaversineZeroDistance(t *testing.T) {
	p := Point{Lat: -12.0464, Lng: -77.0428}
	assert.InDelta(t, 0.0, Haversine(p, p), 1e-12)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Miraflores to Barranco is roughly 2.4 km as the crow flies.
	d := HaversineCoords(-12.1203, -77.0282, -12.1406, -77.0214)
	assert.InDelta(t, 2.4, d, 0.2)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(-12.0464, -77.0428))
	assert.Error(t, Validate(-91, 0))
	assert.Error(t, Validate(91, 0))
	assert.Error(t, Validate(0, -181))
	assert.Error(t, Validate(0, 181))
}

func TestBoundingBox(t *testing.T) {
	lima := BoundingBox{Left: -77.20, Top: -11.90, Right: -76.80, Bottom: -12.25}

	assert.Equal(t, "-77.20,-11.90,-76.80,-12.25", lima.Viewbox())
	assert.True(t, lima.Contains(Point{Lat: -12.0464, Lng: -77.0428}))
	assert.False(t, lima.Contains(Point{Lat: -13.53, Lng: -71.97})) // Cusco
}
