package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voltroute/planner/core/model"
)

const defaultStationRadiusM = 5000

func (s *Server) handleStationsNear(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}
	radius := float64(defaultStationRadiusM)
	if r := c.Query("radius_m"); r != "" {
		v, err := strconv.ParseFloat(r, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_m"})
			return
		}
		radius = v
	}
	var connector model.ConnectorType
	if ct := c.Query("connector"); ct != "" {
		parsed, err := model.ParseConnectorType(ct)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		connector = parsed
	}

	sts := s.index.StationsNear(model.LatLng{Lat: lat, Lng: lng}, radius, connector)
	c.JSON(http.StatusOK, gin.H{"stations": sts})
}

func (s *Server) handleRegisterStation(c *gin.Context) {
	if s.registrar == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "station registration disabled"})
		return
	}
	var st model.ChargingStation
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.registrar.Register(st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.refresh != nil {
		s.refresh(c.Request.Context())
	}
	c.JSON(http.StatusCreated, st)
}
