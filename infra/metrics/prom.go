package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/voltroute/planner/core/metrics"
)

// PromSink records planning and navigation activity in Prometheus metrics.
type PromSink struct {
	plans       *prometheus.CounterVec
	planLatency prometheus.Histogram
	transitions *prometheus.CounterVec
	stations    prometheus.Gauge
}

// NewPromSink registers the planner metrics on the default registerer. The
// scrape server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	plans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_requests_total",
		Help: "Total number of planning requests",
	}, []string{"feasible", "timed_out"})
	planLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plan_duration_seconds",
		Help:    "Time spent producing one plan response",
		Buckets: prometheus.DefBuckets,
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navigation_transitions_total",
		Help: "Total number of navigation session state transitions",
	}, []string{"from", "to"})
	stations := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_index_stations_total",
		Help: "Number of charging stations in the current index snapshot",
	})

	if err := register(reg, &plans); err != nil {
		return nil, err
	}
	if err := registerHist(reg, &planLatency); err != nil {
		return nil, err
	}
	if err := register(reg, &transitions); err != nil {
		return nil, err
	}
	if err := registerGauge(reg, &stations); err != nil {
		return nil, err
	}
	return &PromSink{plans: plans, planLatency: planLatency, transitions: transitions, stations: stations}, nil
}

func register(reg prometheus.Registerer, cv **prometheus.CounterVec) error {
	if err := reg.Register(*cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*cv = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	return nil
}

func registerHist(reg prometheus.Registerer, h *prometheus.Histogram) error {
	if err := reg.Register(*h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*h = are.ExistingCollector.(prometheus.Histogram)
			return nil
		}
		return err
	}
	return nil
}

func registerGauge(reg prometheus.Registerer, g *prometheus.Gauge) error {
	if err := reg.Register(*g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*g = are.ExistingCollector.(prometheus.Gauge)
			return nil
		}
		return err
	}
	return nil
}

// RecordPlanResult counts the request and observes its latency.
func (s *PromSink) RecordPlanResult(res coremetrics.PlanResult) error {
	s.plans.WithLabelValues(strconv.FormatBool(res.Feasible > 0), strconv.FormatBool(res.TimedOut)).Inc()
	s.planLatency.Observe(res.Duration.Seconds())
	return nil
}

// RecordSessionTransition counts one state machine transition.
func (s *PromSink) RecordSessionTransition(ev coremetrics.SessionTransition) error {
	s.transitions.WithLabelValues(ev.From, ev.To).Inc()
	return nil
}

// RecordSnapshotRefresh sets the station gauge after each refresh cycle.
func (s *PromSink) RecordSnapshotRefresh(ev coremetrics.SnapshotRefresh) error {
	if ev.Err == "" {
		s.stations.Set(float64(ev.Stations))
	}
	return nil
}
