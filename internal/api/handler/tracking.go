// Package handler provides HTTP handlers for the SafeTrail API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safetrail/safetrail/internal/api/models"
	"github.com/safetrail/safetrail/internal/api/response"
	"github.com/safetrail/safetrail/internal/monitor"
	"github.com/safetrail/safetrail/internal/profile"
)

// TrackingHandler handles device telemetry and profile endpoints.
type TrackingHandler struct {
	monitor  *monitor.Service
	profiles *profile.Store
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(mon *monitor.Service, profiles *profile.Store) *TrackingHandler {
	return &TrackingHandler{monitor: mon, profiles: profiles}
}

// ReportLocation handles POST /v1/tourists/{touristId}/locations -
// record a position sample and run a detection cycle.
func (h *TrackingHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	var input models.LocationSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if fieldErrors := input.Validate(); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid location sample", fieldErrors)
		return
	}

	p, created, err := h.monitor.IngestLocation(r.Context(), touristID, profile.LocationPoint{
		Lat:            input.Lat,
		Lng:            input.Lng,
		Timestamp:      input.Timestamp.Time(),
		AccuracyMeters: input.AccuracyMeters,
		SpeedKmh:       input.SpeedKmh,
		HeadingDegrees: input.HeadingDegrees,
	})
	if err != nil {
		if errors.Is(err, profile.ErrStaleLocation) {
			response.Conflict(w, r, "sample is older than the last recorded sample")
			return
		}
		response.InternalError(w, r, "failed to record location")
		return
	}

	resp := models.IngestResponse{
		Profile: profileToAPI(p),
		Alerts:  alertsToAPI(created),
	}
	response.JSON(w, r, http.StatusAccepted, resp)
}

// ReportPing handles POST /v1/tourists/{touristId}/pings - record
// device contact without a position fix.
func (h *TrackingHandler) ReportPing(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	var input models.CommunicationPingRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if fieldErrors := input.Validate(); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid ping", fieldErrors)
		return
	}

	if err := h.monitor.IngestCommunicationPing(r.Context(), touristID, input.Timestamp.Time()); err != nil {
		response.InternalError(w, r, "failed to record ping")
		return
	}
	response.NoContent(w, r)
}

// GetProfile handles GET /v1/tourists/{touristId}/profile.
func (h *TrackingHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	p, err := h.profiles.Get(r.Context(), touristID)
	if err != nil {
		if errors.Is(err, profile.ErrUnknownTourist) {
			response.NotFound(w, r, "no active profile for tourist")
			return
		}
		response.InternalError(w, r, "failed to load profile")
		return
	}
	response.JSON(w, r, http.StatusOK, profileToAPI(p))
}

// SetPreferredRoutes handles PUT /v1/tourists/{touristId}/routes.
func (h *TrackingHandler) SetPreferredRoutes(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	var input models.PreferredRoutesRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if fieldErrors := input.Validate(); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid preferred routes", fieldErrors)
		return
	}

	if err := h.profiles.SetPreferredRoutes(r.Context(), touristID, input.RouteIDs); err != nil {
		if errors.Is(err, profile.ErrUnknownTourist) {
			response.NotFound(w, r, "no active profile for tourist")
			return
		}
		response.InternalError(w, r, "failed to set preferred routes")
		return
	}
	response.NoContent(w, r)
}

// Archive handles DELETE /v1/tourists/{touristId} - end monitoring.
func (h *TrackingHandler) Archive(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	if err := h.profiles.Archive(r.Context(), touristID); err != nil {
		if errors.Is(err, profile.ErrUnknownTourist) {
			response.NotFound(w, r, "no active profile for tourist")
			return
		}
		response.InternalError(w, r, "failed to archive profile")
		return
	}
	response.NoContent(w, r)
}

func profileToAPI(p *profile.Profile) *models.TouristProfile {
	out := &models.TouristProfile{
		TouristID:                     p.TouristID,
		BaselineSpeedKmh:              p.BaselineSpeedKmh,
		ActivityPattern:               string(p.ActivityPattern),
		RiskLevel:                     p.RiskLevel,
		PreferredRouteIDs:             p.PreferredRouteIDs,
		LastActivityAt:                models.Timestamp(p.LastActivityAt),
		LastCommunicationAt:           models.Timestamp(p.LastCommunicationAt),
		CommunicationFrequencyPerHour: p.CommunicationFrequencyPerHour,
		CreatedAt:                     models.Timestamp(p.CreatedAt),
		UpdatedAt:                     models.Timestamp(p.UpdatedAt),
	}
	if loc := p.LastLocation(); loc != nil {
		out.LastKnownLocation = &models.Point{Lat: loc.Lat, Lng: loc.Lng}
	}
	return out
}
