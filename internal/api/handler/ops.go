package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/reelhaven/reelhaven/internal/api/models"
	"github.com/reelhaven/reelhaven/internal/api/response"
	"github.com/reelhaven/reelhaven/internal/worker"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version    string
	buildTime  string
	sweeper    *worker.Sweeper
	readyCheck func(ctx context.Context) error
}

// NewOpsHandler creates a new OpsHandler. readyCheck is optional; when set it
// gates the readiness endpoint (typically a database ping).
func NewOpsHandler(version, buildTime string, sweeper *worker.Sweeper, readyCheck func(ctx context.Context) error) *OpsHandler {
	return &OpsHandler{
		version:    version,
		buildTime:  buildTime,
		sweeper:    sweeper,
		readyCheck: readyCheck,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.readyCheck != nil {
		if err := h.readyCheck(r.Context()); err != nil {
			response.ServiceUnavailable(w, r, "dependency check failed")
			return
		}
	}
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now(),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SweepStatus handles GET /v1/admin/sweep - report sweeper progress.
func (h *OpsHandler) SweepStatus(w http.ResponseWriter, r *http.Request) {
	status := h.sweeper.Status()
	response.JSON(w, r, http.StatusOK, models.SweepStatusResponse{
		Running:  status.Running,
		Progress: status.Progress,
		Total:    status.Total,
	})
}

// TriggerSweep handles POST /v1/admin/sweep - run a sweep on demand.
func (h *OpsHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, worker.ErrSweepInProgress) {
			response.Conflict(w, r, "a sweep is already running")
			return
		}
		response.InternalError(w, r, "sweep failed")
		return
	}
	response.JSON(w, r, http.StatusOK, models.SweepResultResponse{
		Expired:   result.Expired,
		Resolved:  result.Resolved,
		Failed:    result.Failed,
		Cancelled: result.Cancelled,
	})
}

// CancelSweep handles DELETE /v1/admin/sweep - cancel the active sweep.
func (h *OpsHandler) CancelSweep(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Cancel()
	response.NoContent(w, r)
}
