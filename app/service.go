package app

import (
	"context"
	"fmt"
	"time"

	"github.com/voltroute/planner/api"
	"github.com/voltroute/planner/config"
	"github.com/voltroute/planner/core/energy"
	"github.com/voltroute/planner/core/graph"
	coremetrics "github.com/voltroute/planner/core/metrics"
	"github.com/voltroute/planner/core/navigation"
	"github.com/voltroute/planner/core/plan"
	"github.com/voltroute/planner/core/planlog"
	"github.com/voltroute/planner/core/route"
	"github.com/voltroute/planner/core/stations"
	"github.com/voltroute/planner/infra/logger"
	"github.com/voltroute/planner/infra/metrics"
	"github.com/voltroute/planner/infra/stationfeed"
	"github.com/voltroute/planner/internal/eventbus"
)

// Service wires the planner pipeline, the navigation manager and the HTTP
// boundary from a loaded configuration.
type Service struct {
	Planner  *plan.Service
	Nav      *navigation.Manager
	server   *api.Server
	store    *stations.Store
	refresh  *stations.Refresher
	registry *stations.Registry
	feed     *stationfeed.AvailabilityFeed
	planLog  planlog.Store
	bus      eventbus.EventBus
	sink     coremetrics.MetricsSink
	cfg      *config.Config
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	g, err := graph.LoadFile(cfg.Graph.Path)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	logg.Infof("road graph loaded: %d nodes, %d segments", g.NodeCount(), g.SegmentCount())

	registry := stations.NewRegistry()
	feeds := stations.MultiFeed{}
	if cfg.Stations.Path != "" {
		feeds = append(feeds, stations.StaticFeed{Path: cfg.Stations.Path})
	}
	if cfg.Stations.Provider.Enabled {
		provider, err := stationfeed.NewHTTPFeed(cfg.Stations.Provider)
		if err != nil {
			return nil, fmt.Errorf("station provider: %w", err)
		}
		feeds = append(feeds, provider)
	}
	feeds = append(feeds, registry)

	var liveFeed *stationfeed.AvailabilityFeed
	if cfg.StationFeed.Enabled {
		liveFeed, err = stationfeed.NewAvailabilityFeed(cfg.StationFeed, feeds)
		if err != nil {
			return nil, fmt.Errorf("station feed: %w", err)
		}
	}

	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	store := stations.NewStore()
	var feed stations.Feed = feeds
	if liveFeed != nil {
		feed = liveFeed
	}
	var snapSink coremetrics.SnapshotRecorder
	if sr, ok := sink.(coremetrics.SnapshotRecorder); ok {
		snapSink = sr
	}
	refresher := stations.NewRefresher(
		store,
		feed,
		time.Duration(cfg.Stations.RefreshIntervalS)*time.Second,
		time.Duration(cfg.Stations.TimeoutS)*time.Second,
		logger.New("stations"),
		snapSink,
	)

	bus := eventbus.New()
	em := energy.NewModel()
	gen := route.NewGenerator(g, em)
	planner := plan.NewPlanner(em, store, cfg.Planner.Insertion)
	planSvc := plan.NewService(g, gen, planner, cfg.Planner.Service, bus, logger.New("plan"))
	nav := navigation.NewManager(planSvc, store, em, cfg.Navigation, bus, logger.New("navigation"))

	planStore, err := newPlanLogStore(cfg.PlanLog)
	if err != nil {
		return nil, fmt.Errorf("plan log: %w", err)
	}

	server := api.NewServer(planSvc, nav, store, registry, refresher.RefreshOnce, bus, logger.New("api"))

	return &Service{
		Planner:  planSvc,
		Nav:      nav,
		server:   server,
		store:    store,
		refresh:  refresher,
		registry: registry,
		feed:     liveFeed,
		planLog:  planStore,
		bus:      bus,
		sink:     sink,
		cfg:      cfg,
		log:      logg,
	}, nil
}

func newPlanLogStore(cfg config.PlanLogConfig) (planlog.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return planlog.NewSQLiteStore(cfg.Path)
	case "jsonl":
		if cfg.MaxSizeMB > 0 {
			return planlog.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return planlog.NewJSONLStore(cfg.Path)
	default:
		return nil, nil
	}
}

// RefreshStations rebuilds the station snapshot immediately. Used by the
// one-shot plan command, which never starts the refresh loop.
func (s *Service) RefreshStations(ctx context.Context) { s.refresh.RefreshOnce(ctx) }

// Run starts the background loops and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	go s.refresh.Run(ctx)
	go s.Nav.Run(ctx)
	coremetrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.planLog != nil {
		planlog.StartRecorder(ctx, s.bus, s.planLog, logger.New("planlog"))
	}
	if s.cfg.Metrics.PrometheusEnabled {
		metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr, logger.New("metrics"))
	}
	return s.server.Run(ctx, s.cfg.Server.Addr)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.feed != nil {
		s.feed.Close()
	}
	if s.planLog != nil {
		if err := s.planLog.Close(); err != nil {
			return fmt.Errorf("plan log close: %w", err)
		}
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.bus.Close()
	return nil
}
