// Package handler provides HTTP handlers for the CauldronWatch API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cauldronwatch/cauldronwatch/internal/api/models"
	"github.com/cauldronwatch/cauldronwatch/internal/api/response"
	"github.com/cauldronwatch/cauldronwatch/internal/feed/resilience"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	feeds     *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. db and feeds may be nil when the
// corresponding subsystem is not wired (e.g. in tests).
func NewOpsHandler(version, buildTime string, db Pinger, feeds *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		feeds:     feeds,
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

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = models.HealthStatusFail
		}
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and feed status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	overall := models.HealthStatusOK

	var subsystems []models.SubsystemStatus
	if h.db != nil {
		dbStatus := models.HealthStatusOK
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = models.HealthStatusFail
			overall = models.HealthStatusDegraded
		}
		cancel()
		subsystems = append(subsystems, models.SubsystemStatus{
			Name:   "postgres",
			Status: dbStatus,
		})
	}

	var feeds []models.FeedStatus
	if h.feeds != nil {
		for _, fh := range h.feeds.GetAllHealth() {
			status := models.HealthStatusOK
			switch {
			case fh.IsUnhealthy():
				status = models.HealthStatusFail
				overall = models.HealthStatusDegraded
			case fh.IsDegraded():
				status = models.HealthStatusDegraded
			}

			fs := models.FeedStatus{
				Feed:   fh.Name,
				Status: status,
			}
			if fh.LastSuccessAt != nil {
				ts := models.Timestamp(*fh.LastSuccessAt)
				fs.LastSuccessAt = &ts
			}
			if fh.LastFailureAt != nil {
				ts := models.Timestamp(*fh.LastFailureAt)
				fs.LastFailureAt = &ts
			}
			if fh.LastError != "" {
				msg := fh.LastError
				fs.Message = &msg
			}
			feeds = append(feeds, fs)
		}
	}

	status := models.SystemStatus{
		Status:     overall,
		Time:       now,
		Subsystems: subsystems,
		Feeds:      feeds,
	}
	response.JSON(w, r, http.StatusOK, status)
}
