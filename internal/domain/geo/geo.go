package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate returns an error if the coordinates are outside valid ranges.
func Validate(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lng)
	}
	return nil
}

// Haversine returns the great-circle distance between two points in kilometers.
func Haversine(a, b Point) float64 {
	return HaversineCoords(a.Lat, a.Lng, b.Lat, b.Lng)
}

// HaversineCoords returns the great-circle distance between two coordinate
// pairs in kilometers.
func HaversineCoords(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	lat1Rad := degreesToRadians(lat1)
	lat2Rad := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// BoundingBox is a rectangular coordinate bound, expressed the way Nominatim
// expects its viewbox parameter: left (west), top (north), right (east),
// bottom (south).
type BoundingBox struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Viewbox renders the box as a Nominatim viewbox query value.
func (b BoundingBox) Viewbox() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.Left, b.Top, b.Right, b.Bottom)
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lng >= b.Left && p.Lng <= b.Right && p.Lat <= b.Top && p.Lat >= b.Bottom
}
