package navigation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltroute/planner/core/energy"
	"github.com/voltroute/planner/core/events"
	"github.com/voltroute/planner/core/geo"
	"github.com/voltroute/planner/core/logger"
	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/stations"
	"github.com/voltroute/planner/internal/eventbus"
)

var (
	// ErrSessionNotFound is returned for unknown or already destroyed sessions.
	ErrSessionNotFound = errors.New("navigation session not found")
	// ErrStaleUpdate is returned when an update's monotonic timestamp is not
	// newer than the last applied one. The update is dropped.
	ErrStaleUpdate = errors.New("stale position update")
	// ErrSessionClosed is returned for updates against a terminal session.
	ErrSessionClosed = errors.New("navigation session closed")
)

// Replanner produces a fresh route from a live position. *plan.Service
// satisfies it.
type Replanner interface {
	Replan(ctx context.Context, from model.LatLng, startSoC float64, to model.LatLng, profile model.VehicleProfile) (model.AugmentedRoute, error)
}

// Config holds session policy.
type Config struct {
	// DeviationToleranceM is the band around the planned path within which
	// the vehicle counts as on track.
	DeviationToleranceM float64 `json:"deviation_tolerance_m"`
	// DeviationDebounceMS is how long a deviation must persist, in update
	// timestamp milliseconds, before a reroute starts.
	DeviationDebounceMS int64 `json:"deviation_debounce_ms"`
	// ArrivalRadiusM is the distance to the destination at which the
	// session arrives.
	ArrivalRadiusM float64 `json:"arrival_radius_m"`
	// StopApproachM is the distance to the next planned stop at which its
	// live availability is checked.
	StopApproachM float64 `json:"stop_approach_m"`
	// ReserveFloorPct mirrors the planner's reserve floor for shortfall
	// projection.
	ReserveFloorPct float64 `json:"reserve_floor_pct"`
	// LowBatteryPct is the state of charge below which updates carry a
	// warning.
	LowBatteryPct float64 `json:"low_battery_pct"`
	// MaxReplanRetries bounds consecutive replan failures before the
	// session aborts.
	MaxReplanRetries int `json:"max_replan_retries"`
	// IdleTimeout removes sessions that stopped sending updates.
	IdleTimeout time.Duration `json:"idle_timeout"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DeviationToleranceM <= 0 {
		c.DeviationToleranceM = 150
	}
	if c.DeviationDebounceMS <= 0 {
		c.DeviationDebounceMS = 10_000
	}
	if c.ArrivalRadiusM <= 0 {
		c.ArrivalRadiusM = 75
	}
	if c.StopApproachM <= 0 {
		c.StopApproachM = 500
	}
	if c.ReserveFloorPct <= 0 {
		c.ReserveFloorPct = 0.05
	}
	if c.LowBatteryPct <= 0 {
		c.LowBatteryPct = 0.30
	}
	if c.MaxReplanRetries <= 0 {
		c.MaxReplanRetries = 3
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
}

// UpdateResult is the reply to one position update.
type UpdateResult struct {
	Status string `json:"status"`
	// Route is set when the route changed since the client last saw it,
	// after a successful reroute or a fallback station swap.
	Route *model.AugmentedRoute `json:"route,omitempty"`
	// Warning carries non-fatal conditions: low battery, failed replan
	// attempts.
	Warning string `json:"warning,omitempty"`
}

// Manager owns all live navigation sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	replanner Replanner
	index     stations.Index
	energy    energy.Model
	cfg       Config
	bus       eventbus.EventBus
	log       logger.Logger
}

// NewManager wires a session manager. bus and log may be nil in tests.
func NewManager(replanner Replanner, index stations.Index, em energy.Model, cfg Config, bus eventbus.EventBus, log logger.Logger) *Manager {
	cfg.SetDefaults()
	return &Manager{
		sessions:  make(map[string]*Session),
		replanner: replanner,
		index:     index,
		energy:    em,
		cfg:       cfg,
		bus:       bus,
		log:       log,
	}
}

// Start creates a session following route, positioned at its first point.
func (m *Manager) Start(route model.AugmentedRoute, profile model.VehicleProfile, soc float64) (string, error) {
	if err := profile.Validate(); err != nil {
		return "", err
	}
	if len(route.Candidate.Points) == 0 {
		return "", fmt.Errorf("route has no geometry")
	}
	if soc < 0 || soc > 1 {
		return "", fmt.Errorf("soc must be in [0,1], got %f", soc)
	}

	s := &Session{
		ID:       uuid.NewString(),
		status:   StatusOnTrack,
		route:    route,
		profile:  profile,
		pos:      route.Candidate.Points[0],
		soc:      soc,
		lastSeen: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.log != nil {
		m.log.Infof("navigation %s started: %.1f km, %d stops", s.ID, route.Candidate.DistanceM/1000, len(route.Stops))
	}
	return s.ID, nil
}

// Get returns a read-only view of a session.
func (m *Manager) Get(id string) (View, error) {
	s, ok := m.lookup(id)
	if !ok {
		return View{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// Cancel aborts and destroys a session.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelReplan()
	if !s.status.Terminal() {
		m.setStatus(s, StatusAborted)
	}
	return nil
}

// UpdatePosition applies one position/battery update. Updates must carry a
// strictly increasing monotonic timestamp in milliseconds; out-of-order
// updates are dropped with ErrStaleUpdate.
func (m *Manager) UpdatePosition(id string, pos model.LatLng, soc float64, ts int64) (UpdateResult, error) {
	s, ok := m.lookup(id)
	if !ok {
		return UpdateResult{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return UpdateResult{Status: s.status.String()}, ErrSessionClosed
	}
	if ts <= s.lastTS {
		return UpdateResult{Status: s.status.String()}, ErrStaleUpdate
	}
	s.lastTS = ts
	s.lastSeen = time.Now()
	s.pos = pos
	s.soc = soc
	if p := nearestPointIndex(s.route.Candidate.Points, pos); p > s.progress {
		s.progress = p
	}

	res := UpdateResult{}
	if s.warning != "" {
		res.Warning = s.warning
		s.warning = ""
	}
	if soc <= m.cfg.LowBatteryPct && res.Warning == "" {
		res.Warning = fmt.Sprintf("battery low: %.0f%%", soc*100)
	}

	// Arrival wins over everything else.
	if geo.HaversineM(pos, s.destination()) <= m.cfg.ArrivalRadiusM {
		s.cancelReplan()
		m.setStatus(s, StatusArrived)
		res.Status = s.status.String()
		return res, nil
	}

	if s.status == StatusRerouting {
		// A newer position supersedes the in-flight replan.
		m.startReplanLocked(s)
		res.Status = s.status.String()
		return res, nil
	}

	if m.checkNextStop(s) {
		if s.routeDirty {
			r := s.route
			res.Route = &r
			s.routeDirty = false
		}
		res.Status = s.status.String()
		return res, nil
	}

	m.checkDeviation(s, ts)
	if s.status == StatusOnTrack {
		m.checkShortfall(s)
	}

	if s.routeDirty {
		r := s.route
		res.Route = &r
		s.routeDirty = false
	}
	res.Status = s.status.String()
	return res, nil
}

// Run sweeps idle and finished sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.mu.Lock()
		stale := s.status.Terminal() || s.lastSeen.Before(cutoff)
		if stale {
			s.cancelReplan()
			if !s.status.Terminal() {
				m.setStatus(s, StatusAborted)
			}
		}
		s.mu.Unlock()
		if stale {
			delete(m.sessions, id)
			if m.log != nil {
				m.log.Debugf("navigation %s swept", id)
			}
		}
	}
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// checkNextStop looks at the live availability of the next planned stop once
// the vehicle is close to it. Returns true when it handled the update.
func (m *Manager) checkNextStop(s *Session) bool {
	idx, stop, ok := s.nextStop()
	if !ok {
		return false
	}
	if geo.HaversineM(s.pos, stop.Station.Pos) > m.cfg.StopApproachM {
		return false
	}
	live, found := m.index.Station(stop.Station.ID)
	if !found || live.Availability == model.StationAvailable {
		return false
	}

	if stop.Fallback != nil {
		if fb, ok := m.index.Station(stop.Fallback.ID); ok && fb.Availability == model.StationAvailable {
			m.setStatus(s, StatusRerouting)
			m.swapToFallback(s, idx, fb)
			m.setStatus(s, StatusOnTrack)
			return true
		}
	}
	m.setStatus(s, StatusRerouting)
	m.startReplanLocked(s)
	return true
}

// swapToFallback rebinds a charge stop to its recorded fallback station,
// keeping the charge target and resizing the dwell for the new power curve.
func (m *Manager) swapToFallback(s *Session, idx int, fb model.ChargingStation) {
	stop := s.route.Stops[idx]
	dwell, gained := m.energy.DwellFor(fb, stop.ArrivalKWh, stop.DepartureKWh-stop.ArrivalKWh, s.profile)
	routePoint := s.route.Candidate.Points[stop.SegmentIndex]

	stop.Station = fb
	stop.Fallback = nil
	stop.Dwell = dwell
	stop.DepartureKWh = stop.ArrivalKWh + gained
	stop.DetourM = 2 * geo.HaversineM(routePoint, fb.Pos)

	stops := make([]model.ChargeStop, len(s.route.Stops))
	copy(stops, s.route.Stops)
	stops[idx] = stop
	s.route.Stops = stops
	s.routeDirty = true

	if m.log != nil {
		m.log.Infof("navigation %s: stop %d switched to fallback %s", s.ID, idx, fb.ID)
	}
}

func (m *Manager) checkDeviation(s *Session, ts int64) {
	dev := geo.PointToPolylineM(s.pos, s.route.Candidate.Points)
	switch {
	case dev > m.cfg.DeviationToleranceM:
		if s.status == StatusOnTrack {
			m.setStatus(s, StatusDeviated)
			s.deviatedAt = ts
		} else if s.status == StatusDeviated && ts-s.deviatedAt >= m.cfg.DeviationDebounceMS {
			m.setStatus(s, StatusRerouting)
			m.startReplanLocked(s)
		}
	case s.status == StatusDeviated:
		m.setStatus(s, StatusOnTrack)
		s.deviatedAt = 0
	}
}

// checkShortfall projects energy needed to the next stop, or the destination
// when none remains, and reroutes before the reserve floor is breached.
func (m *Manager) checkShortfall(s *Session) {
	target := len(s.route.Candidate.Points) - 1
	if _, stop, ok := s.nextStop(); ok {
		target = stop.SegmentIndex
	}
	need := 0.0
	for i := s.progress; i < target && i < len(s.route.Candidate.Segments); i++ {
		need += m.energy.ForSegment(s.route.Candidate.Segments[i], s.profile)
	}
	capKWh := s.profile.BatteryCapacityKWh
	if s.soc*capKWh-need < m.cfg.ReserveFloorPct*capKWh {
		m.setStatus(s, StatusRerouting)
		m.startReplanLocked(s)
	}
}

// startReplanLocked launches a background replan from the session's current
// position, cancelling any in-flight one. Caller holds s.mu.
func (m *Manager) startReplanLocked(s *Session) {
	s.cancelReplan()
	ctx, cancel := context.WithCancel(context.Background())
	s.replanCancel = cancel
	s.replanGen++

	gen := s.replanGen
	from, soc, dest, profile := s.pos, s.soc, s.destination(), s.profile
	go m.runReplan(s, gen, ctx, from, soc, dest, profile)
}

func (m *Manager) runReplan(s *Session, gen uint64, ctx context.Context, from model.LatLng, soc float64, dest model.LatLng, profile model.VehicleProfile) {
	route, err := m.replanner.Replan(ctx, from, soc, dest, profile)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.replanGen || s.status != StatusRerouting {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.retries++
		if m.log != nil {
			m.log.Warnf("navigation %s: replan attempt %d failed: %v", s.ID, s.retries, err)
		}
		if s.retries >= m.cfg.MaxReplanRetries {
			s.replanCancel = nil
			m.setStatus(s, StatusAborted)
			return
		}
		s.warning = fmt.Sprintf("replan attempt %d of %d failed", s.retries, m.cfg.MaxReplanRetries)
		m.startReplanLocked(s)
		return
	}

	s.route = route
	s.routeDirty = true
	s.retries = 0
	s.progress = 0
	s.deviatedAt = 0
	s.replanCancel = nil
	m.setStatus(s, StatusOnTrack)
	if m.log != nil {
		m.log.Infof("navigation %s: rerouted, %d stops", s.ID, len(route.Stops))
	}
}

// setStatus applies a guarded transition. Caller holds s.mu.
func (m *Manager) setStatus(s *Session, to Status) {
	if !s.status.canTransition(to) {
		return
	}
	from := s.status
	s.status = to
	if m.log != nil {
		m.log.Infof("navigation %s: %s -> %s", s.ID, from, to)
	}
	if m.bus != nil {
		m.bus.Publish(events.SessionTransitioned{
			SessionID: s.ID,
			From:      from.String(),
			To:        to.String(),
			Time:      time.Now(),
		})
	}
}

// nearestPointIndex returns the index of the segment start closest to pos.
func nearestPointIndex(points []model.LatLng, pos model.LatLng) int {
	best := 0
	min := math.Inf(1)
	for i, p := range points {
		if d := geo.HaversineM(pos, p); d < min {
			min = d
			best = i
		}
	}
	return best
}
