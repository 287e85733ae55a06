package models

// LocationSampleRequest is the request body for reporting a position.
type LocationSampleRequest struct {
	Lat            float64  `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng            float64  `json:"lng" validate:"required,gte=-180,lte=180"`
	Timestamp      Timestamp `json:"timestamp" validate:"required"`
	AccuracyMeters float64  `json:"accuracyMeters,omitempty" validate:"omitempty,gte=0"`
	SpeedKmh       *float64 `json:"speedKmh,omitempty" validate:"omitempty,gte=0"`
	HeadingDegrees *float64 `json:"headingDegrees,omitempty" validate:"omitempty,gte=0,lt=360"`
}

// Validate validates the location sample request.
func (r *LocationSampleRequest) Validate() []FieldError {
	var errors []FieldError

	if !(Point{Lat: r.Lat, Lng: r.Lng}).Valid() {
		errors = append(errors, FieldError{
			Field:   "lat",
			Message: "coordinates out of range",
			Code:    "OUT_OF_RANGE",
		})
	}
	if r.Timestamp.Time().IsZero() {
		errors = append(errors, FieldError{
			Field:   "timestamp",
			Message: "timestamp is required",
			Code:    "REQUIRED",
		})
	}
	if r.AccuracyMeters < 0 {
		errors = append(errors, FieldError{
			Field:   "accuracyMeters",
			Message: "accuracy must not be negative",
			Code:    "OUT_OF_RANGE",
		})
	}
	if r.SpeedKmh != nil && *r.SpeedKmh < 0 {
		errors = append(errors, FieldError{
			Field:   "speedKmh",
			Message: "speed must not be negative",
			Code:    "OUT_OF_RANGE",
		})
	}
	if r.HeadingDegrees != nil && (*r.HeadingDegrees < 0 || *r.HeadingDegrees >= 360) {
		errors = append(errors, FieldError{
			Field:   "headingDegrees",
			Message: "heading must be in [0, 360)",
			Code:    "OUT_OF_RANGE",
		})
	}

	return errors
}

// CommunicationPingRequest is the request body for a device heartbeat
// without a position fix.
type CommunicationPingRequest struct {
	Timestamp Timestamp `json:"timestamp" validate:"required"`
}

// Validate validates the communication ping request.
func (r *CommunicationPingRequest) Validate() []FieldError {
	if r.Timestamp.Time().IsZero() {
		return []FieldError{{
			Field:   "timestamp",
			Message: "timestamp is required",
			Code:    "REQUIRED",
		}}
	}
	return nil
}

// TouristProfile is the API view of a tourist's behavioral profile.
type TouristProfile struct {
	TouristID                     string    `json:"touristId"`
	BaselineSpeedKmh              float64   `json:"baselineSpeedKmh"`
	ActivityPattern               string    `json:"activityPattern"`
	RiskLevel                     int       `json:"riskLevel"`
	PreferredRouteIDs             []string  `json:"preferredRouteIds,omitempty"`
	LastActivityAt                Timestamp `json:"lastActivityAt"`
	LastCommunicationAt           Timestamp `json:"lastCommunicationAt"`
	CommunicationFrequencyPerHour float64   `json:"communicationFrequencyPerHour"`
	LastKnownLocation             *Point    `json:"lastKnownLocation,omitempty"`
	CreatedAt                     Timestamp `json:"createdAt"`
	UpdatedAt                     Timestamp `json:"updatedAt"`
}

// IngestResponse is returned after a location sample is accepted.
type IngestResponse struct {
	Profile *TouristProfile `json:"profile"`
	Alerts  []Alert         `json:"alerts,omitempty"`
}

// PreferredRoutesRequest sets the route corridors a tourist intends to
// follow.
type PreferredRoutesRequest struct {
	RouteIDs []string `json:"routeIds" validate:"required"`
}

// Validate validates the preferred routes request.
func (r *PreferredRoutesRequest) Validate() []FieldError {
	if r.RouteIDs == nil {
		return []FieldError{{
			Field:   "routeIds",
			Message: "routeIds is required",
			Code:    "REQUIRED",
		}}
	}
	return nil
}
