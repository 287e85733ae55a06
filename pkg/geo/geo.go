// Package geo provides great-circle distance and bearing primitives used
// by the geofence registry and the anomaly detection engine.
package geo

import "math"

// EarthRadiusMeters is the mean radius of the Earth.
const EarthRadiusMeters = 6371000

// Haversine returns the great-circle distance in meters between two
// lat/lng pairs in degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)

	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Bearing returns the initial bearing in degrees [0, 360) from the first
// point to the second.
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// HeadingDelta returns the absolute angular difference in degrees between
// two headings, normalized to [0, 180].
func HeadingDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// DistanceToSegment returns the shortest distance in meters from point p
// to the great-circle segment between a and b. For the segment lengths
// this system deals with (route corridors within a city or region) the
// equirectangular projection around the segment is accurate to well
// under a meter.
func DistanceToSegment(pLat, pLng, aLat, aLng, bLat, bLng float64) float64 {
	// Project onto a local plane centered on a.
	cosLat := math.Cos(aLat * math.Pi / 180)
	ax, ay := 0.0, 0.0
	bx := (bLng - aLng) * cosLat
	by := bLat - aLat
	px := (pLng - aLng) * cosLat
	py := pLat - aLat

	segLenSq := (bx-ax)*(bx-ax) + (by-ay)*(by-ay)
	if segLenSq == 0 {
		return Haversine(pLat, pLng, aLat, aLng)
	}

	// Clamp the projection to the segment.
	t := ((px-ax)*(bx-ax) + (py-ay)*(by-ay)) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	nearLng := aLng + t*(bLng-aLng)
	nearLat := aLat + t*(bLat-aLat)
	return Haversine(pLat, pLng, nearLat, nearLng)
}
