package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/safetrail/safetrail/internal/api/models"
	"github.com/safetrail/safetrail/internal/api/response"
)

// ReadinessCheck verifies one dependency. Returns nil when healthy.
type ReadinessCheck func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    map[string]ReadinessCheck
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, checks map[string]ReadinessCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		checks:    checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Probes
// each registered dependency with a short timeout.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := models.HealthStatusOK
	subsystems := make([]models.SubsystemStatus, 0, len(h.checks))
	for name, check := range h.checks {
		sub := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err := check(ctx); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status = models.HealthStatusFail
		}
		subsystems = append(subsystems, sub)
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Readiness{
		Status:     status,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
	})
}
