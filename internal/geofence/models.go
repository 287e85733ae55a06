// Package geofence provides the registry of named circular safety zones
// consulted by the anomaly detection engine.
package geofence

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrZoneNotFound = errors.New("zone not found")
)

// SafetyLevel classifies how safe a zone is considered.
type SafetyLevel string

const (
	SafetySafe      SafetyLevel = "safe"
	SafetyModerate  SafetyLevel = "moderate"
	SafetyDangerous SafetyLevel = "dangerous"
)

// ZoneType describes the character of the area a zone covers.
type ZoneType string

const (
	ZoneTourist      ZoneType = "tourist"
	ZoneResidential  ZoneType = "residential"
	ZoneCommercial   ZoneType = "commercial"
	ZoneConstruction ZoneType = "construction"
	ZoneTraffic      ZoneType = "traffic"
	ZoneIndustrial   ZoneType = "industrial"
	ZoneMedical      ZoneType = "medical"
	ZonePolice       ZoneType = "police"
)

// Zone is a named circular region with a safety classification.
// Maintained by the authority console; read-only to the detection engine.
type Zone struct {
	ID           string
	Name         string
	CenterLat    float64
	CenterLng    float64
	RadiusMeters float64
	SafetyLevel  SafetyLevel
	ZoneType     ZoneType
	Description  string
	RiskFactors  []string
	LastUpdated  time.Time
}

// Match is a zone containing a queried point, with the distance from the
// point to the zone center.
type Match struct {
	Zone           Zone
	DistanceMeters float64
}
