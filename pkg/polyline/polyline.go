// Package polyline implements Google's encoded polyline algorithm and the
// corridor-distance math used for route deviation checks.
// The algorithm is documented at:
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/safetrail/safetrail/pkg/geo"
)

// Coordinate represents a geographic point with latitude and longitude.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Decode decodes a polyline-encoded string into a slice of coordinates.
// Uses precision of 5 decimal places (standard Google format).
func Decode(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	var coords []Coordinate
	index := 0
	lat := 0
	lng := 0

	for index < len(encoded) {
		latDelta, newIndex := decodeValue(encoded, index)
		index = newIndex
		lat += latDelta

		lngDelta, newIndex := decodeValue(encoded, index)
		index = newIndex
		lng += lngDelta

		coords = append(coords, Coordinate{
			Lat: float64(lat) / 1e5,
			Lng: float64(lng) / 1e5,
		})
	}

	return coords
}

// decodeValue decodes a single delta value starting at index.
func decodeValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Two's complement for negative values
	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// Encode encodes a slice of coordinates into a polyline string.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*4)
	prevLat := 0
	prevLng := 0

	for _, coord := range coords {
		lat := int(math.Round(coord.Lat * 1e5))
		lng := int(math.Round(coord.Lng * 1e5))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lng-prevLng)

		prevLat = lat
		prevLng = lng
	}

	return string(encoded)
}

// encodeValue encodes a single integer delta in 5-bit chunks.
func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}

// Length returns the total length of a polyline in meters.
func Length(coords []Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(coords); i++ {
		total += geo.Haversine(coords[i-1].Lat, coords[i-1].Lng, coords[i].Lat, coords[i].Lng)
	}
	return total
}

// DistanceTo returns the shortest distance in meters from the given point
// to the polyline, measured perpendicular to the nearest segment. A
// single-point polyline degrades to plain point distance. Returns +Inf
// for an empty polyline.
func DistanceTo(coords []Coordinate, lat, lng float64) float64 {
	switch len(coords) {
	case 0:
		return math.Inf(1)
	case 1:
		return geo.Haversine(lat, lng, coords[0].Lat, coords[0].Lng)
	}

	best := math.Inf(1)
	for i := 1; i < len(coords); i++ {
		d := geo.DistanceToSegment(lat, lng,
			coords[i-1].Lat, coords[i-1].Lng,
			coords[i].Lat, coords[i].Lng)
		if d < best {
			best = d
		}
	}
	return best
}
