package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safetrail/safetrail/internal/api/models"
	"github.com/safetrail/safetrail/internal/api/response"
	"github.com/safetrail/safetrail/internal/route"
)

// RouteHandler handles route corridor management endpoints.
type RouteHandler struct {
	routes *route.Registry
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(routes *route.Registry) *RouteHandler {
	return &RouteHandler{routes: routes}
}

// ListRoutes handles GET /v1/routes.
func (h *RouteHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes := h.routes.List(r.Context())

	items := make([]models.Route, 0, len(routes))
	for _, rt := range routes {
		items = append(items, routeToAPI(rt))
	}
	response.JSON(w, r, http.StatusOK, models.RouteList{Items: items})
}

// GetRoute handles GET /v1/routes/{routeId}.
func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")

	rt, err := h.routes.Get(r.Context(), routeID)
	if err != nil {
		if errors.Is(err, route.ErrRouteNotFound) {
			response.NotFound(w, r, "route not found")
			return
		}
		response.InternalError(w, r, "failed to load route")
		return
	}
	response.JSON(w, r, http.StatusOK, routeToAPI(rt))
}

// CreateRoute handles POST /v1/routes.
func (h *RouteHandler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}

	routeID := "rt_" + uuid.New().String()[:22]
	rt, err := h.routes.Upsert(r.Context(), routeID, input.Name, input.Polyline)
	if err != nil {
		if errors.Is(err, route.ErrInvalidRoute) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "failed to create route")
		return
	}

	location := fmt.Sprintf("/v1/routes/%s", routeID)
	response.Created(w, r, location, routeToAPI(rt))
}

// UpdateRoute handles PUT /v1/routes/{routeId}.
func (h *RouteHandler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")

	input, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}

	rt, err := h.routes.Upsert(r.Context(), routeID, input.Name, input.Polyline)
	if err != nil {
		if errors.Is(err, route.ErrInvalidRoute) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "failed to update route")
		return
	}
	response.JSON(w, r, http.StatusOK, routeToAPI(rt))
}

// DeleteRoute handles DELETE /v1/routes/{routeId}.
func (h *RouteHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")

	if err := h.routes.Remove(r.Context(), routeID); err != nil {
		if errors.Is(err, route.ErrRouteNotFound) {
			response.NotFound(w, r, "route not found")
			return
		}
		response.InternalError(w, r, "failed to delete route")
		return
	}
	response.NoContent(w, r)
}

func (h *RouteHandler) decodeUpsert(w http.ResponseWriter, r *http.Request) (*models.RouteUpsertRequest, bool) {
	var input models.RouteUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return nil, false
	}
	if fieldErrors := input.Validate(); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid route", fieldErrors)
		return nil, false
	}
	return &input, true
}

func routeToAPI(rt *route.Route) models.Route {
	return models.Route{
		ID:          rt.ID,
		Name:        rt.Name,
		Polyline:    rt.Polyline,
		LastUpdated: models.Timestamp(rt.LastUpdated),
	}
}
