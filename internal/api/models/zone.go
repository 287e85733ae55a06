package models

// Zone is the API view of a geofence zone.
type Zone struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Center         Point     `json:"center"`
	RadiusMeters   float64   `json:"radiusMeters"`
	SafetyLevel    string    `json:"safetyLevel"`
	ZoneType       string    `json:"zoneType"`
	Description    string    `json:"description,omitempty"`
	RiskFactors    []string  `json:"riskFactors,omitempty"`
	DistanceMeters *float64  `json:"distanceMeters,omitempty"`
	LastUpdated    Timestamp `json:"lastUpdated"`
}

// ZoneList is a list of zones.
type ZoneList struct {
	Items []Zone `json:"items"`
}

// ZoneUpsertRequest creates or replaces a geofence zone.
type ZoneUpsertRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=120"`
	Center       Point    `json:"center" validate:"required"`
	RadiusMeters float64  `json:"radiusMeters" validate:"required,gt=0"`
	SafetyLevel  string   `json:"safetyLevel" validate:"required"`
	ZoneType     string   `json:"zoneType" validate:"required"`
	Description  string   `json:"description,omitempty" validate:"omitempty,max=500"`
	RiskFactors  []string `json:"riskFactors,omitempty"`
}

// Validate validates the zone upsert request. Safety level and zone
// type values are checked by the geofence service.
func (r *ZoneUpsertRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{
			Field:   "name",
			Message: "name is required",
			Code:    "REQUIRED",
		})
	}
	if !r.Center.Valid() {
		errors = append(errors, FieldError{
			Field:   "center",
			Message: "coordinates out of range",
			Code:    "OUT_OF_RANGE",
		})
	}
	if r.RadiusMeters <= 0 {
		errors = append(errors, FieldError{
			Field:   "radiusMeters",
			Message: "radius must be positive",
			Code:    "OUT_OF_RANGE",
		})
	}
	if r.SafetyLevel == "" {
		errors = append(errors, FieldError{
			Field:   "safetyLevel",
			Message: "safety level is required",
			Code:    "REQUIRED",
		})
	}
	if r.ZoneType == "" {
		errors = append(errors, FieldError{
			Field:   "zoneType",
			Message: "zone type is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}

// Route is the API view of a route corridor.
type Route struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Polyline    string    `json:"polyline"`
	LastUpdated Timestamp `json:"lastUpdated"`
}

// RouteList is a list of route corridors.
type RouteList struct {
	Items []Route `json:"items"`
}

// RouteUpsertRequest creates or replaces a route corridor.
type RouteUpsertRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Polyline string `json:"polyline" validate:"required"`
}

// Validate validates the route upsert request. Polyline decoding is
// checked by the route registry.
func (r *RouteUpsertRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{
			Field:   "name",
			Message: "name is required",
			Code:    "REQUIRED",
		})
	}
	if r.Polyline == "" {
		errors = append(errors, FieldError{
			Field:   "polyline",
			Message: "polyline is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}
