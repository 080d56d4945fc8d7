package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltroute/planner/core/events"
	"github.com/voltroute/planner/core/graph"
	"github.com/voltroute/planner/core/logger"
	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/internal/eventbus"
)

// ErrInvalidRequest is wrapped by request validation failures other than the
// vehicle profile itself (which wraps model.ErrInvalidProfile).
var ErrInvalidRequest = errors.New("invalid plan request")

// ErrNoFeasibleRoute is returned by Replan when every candidate comes back
// infeasible; full PlanRoute calls return the marked routes instead.
var ErrNoFeasibleRoute = errors.New("no feasible route")

// CandidateFinder abstracts the candidate generator.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, src, dst int32, k int, profile model.VehicleProfile) ([]model.RouteCandidate, error)
}

// ServiceConfig holds pipeline policy.
type ServiceConfig struct {
	// DefaultK is the candidate count when the request does not set one.
	DefaultK int `json:"default_k"`
	// MaxK caps the candidate count a request may ask for.
	MaxK int `json:"max_k"`
	// TimeoutMS bounds one full planning request.
	TimeoutMS int `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *ServiceConfig) SetDefaults() {
	if c.DefaultK <= 0 {
		c.DefaultK = 3
	}
	if c.MaxK <= 0 {
		c.MaxK = 5
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 3000
	}
}

// Request is one planning call.
type Request struct {
	Source      model.LatLng         `json:"source"`
	Destination model.LatLng         `json:"destination"`
	Profile     model.VehicleProfile `json:"vehicle_profile"`
	// StartSoC is the current state of charge as a fraction in [0,1].
	StartSoC float64 `json:"start_soc"`
	K        int     `json:"k,omitempty"`
}

// Validate rejects malformed input before planning starts.
func (r Request) Validate() error {
	if err := r.Profile.Validate(); err != nil {
		return err
	}
	if r.StartSoC < 0 || r.StartSoC > 1 {
		return fmt.Errorf("%w: start_soc must be in [0,1], got %f", ErrInvalidRequest, r.StartSoC)
	}
	return nil
}

// Result is the response of one planning call.
type Result struct {
	PlanID string                 `json:"plan_id"`
	Routes []model.AugmentedRoute `json:"routes"`
	// RecommendedIndex is -1 when no feasible route exists.
	RecommendedIndex int `json:"recommended_index"`
	// Partial is true when the planning budget expired and the result holds
	// only the candidates processed so far.
	Partial bool `json:"partial,omitempty"`
}

// Service runs the full pipeline: candidate generation, stop insertion,
// ranking. Requests are independent and read-only over the shared graph and
// station snapshot, so any number may run concurrently.
type Service struct {
	graph   graph.Provider
	finder  CandidateFinder
	planner *Planner
	cfg     ServiceConfig
	bus     eventbus.EventBus
	log     logger.Logger
}

// NewService wires the pipeline. bus may be nil in tests.
func NewService(g graph.Provider, finder CandidateFinder, planner *Planner, cfg ServiceConfig, bus eventbus.EventBus, log logger.Logger) *Service {
	cfg.SetDefaults()
	return &Service{graph: g, finder: finder, planner: planner, cfg: cfg, bus: bus, log: log}
}

// PlanRoute resolves the request endpoints to graph nodes and runs the
// pipeline under the configured timeout. Cancellation is cooperative: the
// deadline is checked between candidate generation, each insertion, and
// ranking. If the budget expires after at least one augmented route exists
// the partial result is returned instead of an error.
func (s *Service) PlanRoute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := Result{PlanID: uuid.NewString(), RecommendedIndex: -1}

	if err := req.Validate(); err != nil {
		return res, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutMS)*time.Millisecond)
	defer cancel()

	src := s.graph.NearestNode(req.Source)
	dst := s.graph.NearestNode(req.Destination)
	if src < 0 || dst < 0 {
		return res, fmt.Errorf("%w: empty road graph", ErrNoCandidates)
	}

	k := req.K
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	if k > s.cfg.MaxK {
		k = s.cfg.MaxK
	}

	candidates, err := s.finder.FindCandidates(ctx, src, dst, k, req.Profile)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		s.publish(res, req, start, err)
		return res, err
	}
	if len(candidates) == 0 {
		err := ErrNoCandidates
		s.publish(res, req, start, err)
		return res, err
	}

	augmented := make([]model.AugmentedRoute, 0, len(candidates))
	for _, c := range candidates {
		if ctx.Err() != nil {
			res.Partial = true
			break
		}
		augmented = append(augmented, s.planner.Plan(c, req.StartSoC, req.Profile))
	}
	if len(augmented) == 0 {
		s.publish(res, req, start, ErrTimeout)
		return res, ErrTimeout
	}

	res.Routes = Rank(augmented)
	if res.Routes[0].Feasible {
		res.RecommendedIndex = 0
	}
	s.publish(res, req, start, nil)
	return res, nil
}

// Replan produces a single fresh route for live navigation from the current
// position and battery state. It returns ErrNoFeasibleRoute when every
// candidate is infeasible: navigation retries rather than following a route
// that strands the vehicle.
func (s *Service) Replan(ctx context.Context, from model.LatLng, startSoC float64, to model.LatLng, profile model.VehicleProfile) (model.AugmentedRoute, error) {
	res, err := s.PlanRoute(ctx, Request{
		Source:      from,
		Destination: to,
		Profile:     profile,
		StartSoC:    startSoC,
		K:           1,
	})
	if err != nil {
		return model.AugmentedRoute{}, err
	}
	if res.RecommendedIndex < 0 {
		return model.AugmentedRoute{}, ErrNoFeasibleRoute
	}
	return res.Routes[res.RecommendedIndex], nil
}

func (s *Service) publish(res Result, req Request, start time.Time, err error) {
	if s.log != nil {
		if err != nil {
			s.log.Warnf("plan %s failed after %s: %v", res.PlanID, time.Since(start), err)
		} else {
			s.log.Infof("plan %s: %d routes, recommended=%d, partial=%t, took %s",
				res.PlanID, len(res.Routes), res.RecommendedIndex, res.Partial, time.Since(start))
		}
	}
	if s.bus == nil {
		return
	}
	feasible := 0
	for _, r := range res.Routes {
		if r.Feasible {
			feasible++
		}
	}
	stops := -1
	if res.RecommendedIndex >= 0 {
		stops = len(res.Routes[res.RecommendedIndex].Stops)
	}
	s.bus.Publish(events.PlanCompleted{
		PlanID:      res.PlanID,
		Source:      fmt.Sprintf("%.5f,%.5f", req.Source.Lat, req.Source.Lng),
		Destination: fmt.Sprintf("%.5f,%.5f", req.Destination.Lat, req.Destination.Lng),
		Candidates:  len(res.Routes),
		Feasible:    feasible,
		Stops:       stops,
		Duration:    time.Since(start),
		TimedOut:    res.Partial || errors.Is(err, ErrTimeout),
		Err:         err,
		Time:        time.Now(),
	})
}
