package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/plan"
	"github.com/voltroute/planner/core/route"
)

func (s *Server) handlePlan(c *gin.Context) {
	var req plan.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.plans.PlanRoute(c.Request.Context(), req)
	if err != nil {
		status := planErrorStatus(err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// planErrorStatus maps the planning error taxonomy onto HTTP codes.
// Infeasible routes are not errors: they come back 200 with feasible=false.
func planErrorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidProfile), errors.Is(err, plan.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, route.ErrNoPathFound), errors.Is(err, plan.ErrNoCandidates):
		return http.StatusNotFound
	case errors.Is(err, plan.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
