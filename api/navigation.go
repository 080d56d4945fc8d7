package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/navigation"
)

type startNavigationRequest struct {
	Route   model.AugmentedRoute `json:"route"`
	Profile model.VehicleProfile `json:"vehicle_profile"`
	SoC     float64              `json:"soc"`
}

type positionUpdateRequest struct {
	Position model.LatLng `json:"position"`
	SoC      float64      `json:"soc"`
	// Timestamp is the client's monotonic clock in milliseconds.
	Timestamp int64 `json:"timestamp"`
}

func (s *Server) handleStartNavigation(c *gin.Context) {
	var req startNavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.nav.Start(req.Route, req.Profile, req.SoC)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (s *Server) handleGetNavigation(c *gin.Context) {
	view, err := s.nav.Get(c.Param("id"))
	if err != nil {
		c.JSON(navErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleUpdatePosition(c *gin.Context) {
	var req positionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.nav.UpdatePosition(c.Param("id"), req.Position, req.SoC, req.Timestamp)
	if err != nil {
		c.JSON(navErrorStatus(err), gin.H{"error": err.Error(), "status": res.Status})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCancelNavigation(c *gin.Context) {
	if err := s.nav.Cancel(c.Param("id")); err != nil {
		c.JSON(navErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func navErrorStatus(err error) int {
	switch {
	case errors.Is(err, navigation.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, navigation.ErrStaleUpdate):
		return http.StatusConflict
	case errors.Is(err, navigation.ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}
