package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/api/middleware"
	"github.com/cauldronwatch/cauldronwatch/internal/api/models"
	"github.com/cauldronwatch/cauldronwatch/internal/api/response"
	"github.com/cauldronwatch/cauldronwatch/internal/planner"
)

// PlanService computes and stores collection plans.
type PlanService interface {
	ComputePlan(ctx context.Context) (*planner.Plan, error)
	LatestPlan(ctx context.Context) (*planner.Plan, error)
}

// PlanHandler handles planning endpoints.
type PlanHandler struct {
	service PlanService
	metrics *middleware.PlanMetrics
	log     zerolog.Logger
}

// NewPlanHandler creates a new PlanHandler. Metrics may be nil.
func NewPlanHandler(service PlanService, metrics *middleware.PlanMetrics, log zerolog.Logger) *PlanHandler {
	return &PlanHandler{service: service, metrics: metrics, log: log}
}

// ComputePlan handles POST /v1/plans:compute - run the planner against the
// current snapshot and return the resulting plan.
func (h *PlanHandler) ComputePlan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	plan, err := h.service.ComputePlan(r.Context())
	if h.metrics != nil {
		trips, overflows := 0, 0
		if plan != nil {
			trips = plan.Stats.TotalTrips
			overflows = len(plan.Verification.Overflows)
		}
		h.metrics.RecordRun(time.Since(start), trips, overflows, err)
	}
	if err != nil {
		switch {
		case errors.Is(err, planner.ErrMarketNotInGraph),
			errors.Is(err, planner.ErrNoCouriers),
			errors.Is(err, planner.ErrNoneReachable):
			response.Conflict(w, r, err.Error())
		default:
			h.log.Error().Err(err).Msg("plan computation failed")
			response.InternalError(w, r, "plan computation failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.FromPlan(plan))
}

// LatestPlan handles GET /v1/plans/latest - return the most recently
// computed plan.
func (h *PlanHandler) LatestPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.LatestPlan(r.Context())
	if err != nil {
		if errors.Is(err, planner.ErrNoPlan) {
			response.NotFound(w, r, "no plan has been computed yet")
			return
		}
		h.log.Error().Err(err).Msg("fetching latest plan failed")
		response.InternalError(w, r, "fetching latest plan failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.FromPlan(plan))
}
