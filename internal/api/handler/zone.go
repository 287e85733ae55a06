package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safetrail/safetrail/internal/api/models"
	"github.com/safetrail/safetrail/internal/api/response"
	"github.com/safetrail/safetrail/internal/geofence"
)

// ZoneHandler handles geofence zone management endpoints.
type ZoneHandler struct {
	zones *geofence.Service
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(zones *geofence.Service) *ZoneHandler {
	return &ZoneHandler{zones: zones}
}

// ListZones handles GET /v1/zones. With lat and lng query parameters it
// returns only the zones containing that point, nearest first.
func (h *ZoneHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") != "" || q.Get("lng") != "" {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		if errLat != nil || errLng != nil {
			response.BadRequest(w, r, "lat and lng must both be valid coordinates", nil)
			return
		}

		matches, err := h.zones.ZonesContaining(r.Context(), lat, lng)
		if err != nil {
			response.InternalError(w, r, "failed to query zones")
			return
		}

		items := make([]models.Zone, 0, len(matches))
		for _, m := range matches {
			z := zoneToAPI(&m.Zone)
			dist := m.DistanceMeters
			z.DistanceMeters = &dist
			items = append(items, z)
		}
		response.JSON(w, r, http.StatusOK, models.ZoneList{Items: items})
		return
	}

	zones, err := h.zones.List(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list zones")
		return
	}

	items := make([]models.Zone, 0, len(zones))
	for _, z := range zones {
		items = append(items, zoneToAPI(z))
	}
	response.JSON(w, r, http.StatusOK, models.ZoneList{Items: items})
}

// GetZone handles GET /v1/zones/{zoneId}.
func (h *ZoneHandler) GetZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneId")

	z, err := h.zones.Get(r.Context(), zoneID)
	if err != nil {
		if errors.Is(err, geofence.ErrZoneNotFound) {
			response.NotFound(w, r, "zone not found")
			return
		}
		response.InternalError(w, r, "failed to load zone")
		return
	}
	response.JSON(w, r, http.StatusOK, zoneToAPI(z))
}

// CreateZone handles POST /v1/zones.
func (h *ZoneHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}

	zone := upsertToZone("zn_"+uuid.New().String()[:22], input)
	if err := h.zones.Upsert(r.Context(), zone); err != nil {
		if errors.Is(err, geofence.ErrInvalidZone) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "failed to create zone")
		return
	}

	location := fmt.Sprintf("/v1/zones/%s", zone.ID)
	response.Created(w, r, location, zoneToAPI(zone))
}

// UpdateZone handles PUT /v1/zones/{zoneId}.
func (h *ZoneHandler) UpdateZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneId")

	input, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}

	zone := upsertToZone(zoneID, input)
	if err := h.zones.Upsert(r.Context(), zone); err != nil {
		if errors.Is(err, geofence.ErrInvalidZone) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "failed to update zone")
		return
	}
	response.JSON(w, r, http.StatusOK, zoneToAPI(zone))
}

// DeleteZone handles DELETE /v1/zones/{zoneId}.
func (h *ZoneHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneId")

	if err := h.zones.Remove(r.Context(), zoneID); err != nil {
		if errors.Is(err, geofence.ErrZoneNotFound) {
			response.NotFound(w, r, "zone not found")
			return
		}
		response.InternalError(w, r, "failed to delete zone")
		return
	}
	response.NoContent(w, r)
}

func (h *ZoneHandler) decodeUpsert(w http.ResponseWriter, r *http.Request) (*models.ZoneUpsertRequest, bool) {
	var input models.ZoneUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return nil, false
	}
	if fieldErrors := input.Validate(); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid zone", fieldErrors)
		return nil, false
	}
	return &input, true
}

func upsertToZone(id string, input *models.ZoneUpsertRequest) *geofence.Zone {
	return &geofence.Zone{
		ID:           id,
		Name:         input.Name,
		CenterLat:    input.Center.Lat,
		CenterLng:    input.Center.Lng,
		RadiusMeters: input.RadiusMeters,
		SafetyLevel:  geofence.SafetyLevel(input.SafetyLevel),
		ZoneType:     geofence.ZoneType(input.ZoneType),
		Description:  input.Description,
		RiskFactors:  input.RiskFactors,
	}
}

func zoneToAPI(z *geofence.Zone) models.Zone {
	return models.Zone{
		ID:           z.ID,
		Name:         z.Name,
		Center:       models.Point{Lat: z.CenterLat, Lng: z.CenterLng},
		RadiusMeters: z.RadiusMeters,
		SafetyLevel:  string(z.SafetyLevel),
		ZoneType:     string(z.ZoneType),
		Description:  z.Description,
		RiskFactors:  z.RiskFactors,
		LastUpdated:  models.Timestamp(z.LastUpdated),
	}
}
