package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/api/models"
	"github.com/safetrail/safetrail/internal/api/response"
)

// AlertHandler handles alert lifecycle endpoints.
type AlertHandler struct {
	alerts *alert.Service
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(alerts *alert.Service) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// ListAlerts handles GET /v1/alerts - list alerts, newest first.
// Supports touristId, status and limit query parameters.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	opts := alert.ListOptions{
		TouristID: r.URL.Query().Get("touristId"),
		Status:    alert.Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			response.BadRequest(w, r, "limit must be an integer in [1, 500]", nil)
			return
		}
		opts.Limit = limit
	}

	alerts, err := h.alerts.List(r.Context(), opts)
	if err != nil {
		response.InternalError(w, r, "failed to list alerts")
		return
	}

	items := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, *alertToAPI(a))
	}
	response.JSON(w, r, http.StatusOK, models.AlertList{Items: items})
}

// GetAlert handles GET /v1/alerts/{alertId}.
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertId")

	a, err := h.alerts.Get(r.Context(), alertID)
	if err != nil {
		if errors.Is(err, alert.ErrAlertNotFound) {
			response.NotFound(w, r, "alert not found")
			return
		}
		response.InternalError(w, r, "failed to load alert")
		return
	}
	response.JSON(w, r, http.StatusOK, alertToAPI(a))
}

// Acknowledge handles POST /v1/alerts/{alertId}:acknowledge.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.alerts.Acknowledge)
}

// Investigate handles POST /v1/alerts/{alertId}:investigate.
func (h *AlertHandler) Investigate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.alerts.Investigate)
}

// Resolve handles POST /v1/alerts/{alertId}:resolve.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.alerts.Resolve)
}

func (h *AlertHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*alert.Alert, error)) {
	alertID := chi.URLParam(r, "alertId")

	a, err := op(r.Context(), alertID)
	if err != nil {
		switch {
		case errors.Is(err, alert.ErrAlertNotFound):
			response.NotFound(w, r, "alert not found")
		case errors.Is(err, alert.ErrInvalidTransition):
			response.Conflict(w, r, err.Error())
		default:
			response.InternalError(w, r, "failed to update alert")
		}
		return
	}
	response.JSON(w, r, http.StatusOK, alertToAPI(a))
}

func alertToAPI(a *alert.Alert) *models.Alert {
	return &models.Alert{
		ID:          a.ID,
		Type:        string(a.Type),
		TouristID:   a.TouristID,
		Severity:    string(a.Severity),
		Location:    models.Point{Lat: a.Lat, Lng: a.Lng},
		Description: a.Description,
		Confidence:  a.Confidence,
		Status:      string(a.Status),
		DetectedAt:  models.Timestamp(a.DetectedAt),
		UpdatedAt:   models.Timestamp(a.UpdatedAt),
	}
}

func alertsToAPI(alerts []*alert.Alert) []models.Alert {
	if len(alerts) == 0 {
		return nil
	}
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, *alertToAPI(a))
	}
	return out
}
