// Package api exposes the planner over HTTP: route planning, live
// navigation sessions, station lookup and registration, and a websocket
// stream of session transitions.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voltroute/planner/core/logger"
	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/navigation"
	"github.com/voltroute/planner/core/plan"
	"github.com/voltroute/planner/core/stations"
	"github.com/voltroute/planner/internal/eventbus"
)

// PlanService is the planning pipeline surface the API needs.
type PlanService interface {
	PlanRoute(ctx context.Context, req plan.Request) (plan.Result, error)
}

// NavManager is the session manager surface the API needs.
type NavManager interface {
	Start(route model.AugmentedRoute, profile model.VehicleProfile, soc float64) (string, error)
	UpdatePosition(id string, pos model.LatLng, soc float64, ts int64) (navigation.UpdateResult, error)
	Cancel(id string) error
	Get(id string) (navigation.View, error)
}

// StationRegistrar accepts operator-submitted stations.
type StationRegistrar interface {
	Register(st model.ChargingStation) error
}

// Server holds the wired dependencies behind the HTTP surface.
type Server struct {
	plans     PlanService
	nav       NavManager
	index     stations.Index
	registrar StationRegistrar
	// refresh rebuilds the station snapshot, so a registered station is
	// queryable without waiting for the next cycle. May be nil.
	refresh func(context.Context)
	bus     eventbus.EventBus
	log     logger.Logger
}

// NewServer wires the HTTP surface. registrar, refresh and bus may be nil;
// the corresponding endpoints degrade accordingly.
func NewServer(plans PlanService, nav NavManager, index stations.Index, registrar StationRegistrar, refresh func(context.Context), bus eventbus.EventBus, log logger.Logger) *Server {
	return &Server{plans: plans, nav: nav, index: index, registrar: registrar, refresh: refresh, bus: bus, log: log}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/routes/plan", s.handlePlan)

		apiGroup.POST("/navigation", s.handleStartNavigation)
		apiGroup.GET("/navigation/:id", s.handleGetNavigation)
		apiGroup.POST("/navigation/:id/position", s.handleUpdatePosition)
		apiGroup.DELETE("/navigation/:id", s.handleCancelNavigation)
		apiGroup.GET("/navigation/:id/stream", s.handleStream)

		apiGroup.GET("/stations", s.handleStationsNear)
		apiGroup.POST("/stations", s.handleRegisterStation)
	}
	return r
}

// Run serves the API on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}
