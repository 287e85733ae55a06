package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safetrail/safetrail/internal/api/models"
	"github.com/safetrail/safetrail/internal/api/response"
	"github.com/safetrail/safetrail/internal/sos"
)

// SOSHandler handles panic-button endpoints.
type SOSHandler struct {
	controller *sos.Controller
	countdown  float64
}

// NewSOSHandler creates a new SOSHandler.
func NewSOSHandler(controller *sos.Controller, countdown float64) *SOSHandler {
	return &SOSHandler{controller: controller, countdown: countdown}
}

// Trigger handles POST /v1/tourists/{touristId}/sos - start the
// emergency countdown.
func (h *SOSHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	state := h.controller.Trigger(r.Context(), touristID)
	response.JSON(w, r, http.StatusAccepted, models.SOSState{
		TouristID:        touristID,
		State:            string(state),
		CountdownSeconds: h.countdown,
	})
}

// Cancel handles POST /v1/tourists/{touristId}/sos:cancel - abort a
// running countdown. Always succeeds; cancelling when idle or after
// dispatch is a no-op.
func (h *SOSHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	state := h.controller.Cancel(r.Context(), touristID)
	response.JSON(w, r, http.StatusOK, models.SOSState{
		TouristID: touristID,
		State:     string(state),
	})
}

// GetState handles GET /v1/tourists/{touristId}/sos.
func (h *SOSHandler) GetState(w http.ResponseWriter, r *http.Request) {
	touristID := chi.URLParam(r, "touristId")
	if touristID == "" {
		response.BadRequest(w, r, "touristId is required", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, models.SOSState{
		TouristID: touristID,
		State:     string(h.controller.State(touristID)),
	})
}
