package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltroute/planner/core/events"
	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/navigation"
	"github.com/voltroute/planner/core/plan"
	"github.com/voltroute/planner/core/route"
	"github.com/voltroute/planner/core/stations"
	"github.com/voltroute/planner/internal/eventbus"
)

type stubPlans struct {
	res plan.Result
	err error
}

func (s stubPlans) PlanRoute(context.Context, plan.Request) (plan.Result, error) {
	return s.res, s.err
}

type stubNav struct {
	startID   string
	startErr  error
	updateRes navigation.UpdateResult
	updateErr error
	cancelErr error
	view      navigation.View
	getErr    error
}

func (s stubNav) Start(model.AugmentedRoute, model.VehicleProfile, float64) (string, error) {
	return s.startID, s.startErr
}

func (s stubNav) UpdatePosition(string, model.LatLng, float64, int64) (navigation.UpdateResult, error) {
	return s.updateRes, s.updateErr
}

func (s stubNav) Cancel(string) error                 { return s.cancelErr }
func (s stubNav) Get(string) (navigation.View, error) { return s.view, s.getErr }

func testIndex(sts ...model.ChargingStation) *stations.Store {
	store := stations.NewStore()
	store.Swap(stations.BuildSnapshot(sts))
	return store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func validProfile() model.VehicleProfile {
	return model.VehicleProfile{
		BatteryCapacityKWh: 40,
		ConsumptionCurve:   []model.CurvePoint{{X: 40, Y: 0.18}, {X: 110, Y: 0.18}},
		ChargingCurve:      []model.CurvePoint{{X: 0, Y: 150}, {X: 1, Y: 20}},
		Connectors:         []model.ConnectorType{model.ConnectorCCS},
	}
}

func TestHealth(t *testing.T) {
	srv := NewServer(stubPlans{}, stubNav{}, testIndex(), nil, nil, nil, nil)
	w := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}

func TestPlanEndpoint(t *testing.T) {
	res := plan.Result{PlanID: "p1", RecommendedIndex: 0, Routes: []model.AugmentedRoute{{Feasible: true}}}
	srv := NewServer(stubPlans{res: res}, stubNav{}, testIndex(), nil, nil, nil, nil)

	w := doJSON(t, srv.Router(), http.MethodPost, "/api/routes/plan", plan.Request{
		Profile: validProfile(), StartSoC: 0.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("plan = %d: %s", w.Code, w.Body)
	}
	var got plan.Result
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PlanID != "p1" || got.RecommendedIndex != 0 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestPlanErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{plan.ErrInvalidRequest, http.StatusBadRequest},
		{model.ErrInvalidProfile, http.StatusBadRequest},
		{route.ErrNoPathFound, http.StatusNotFound},
		{plan.ErrNoCandidates, http.StatusNotFound},
		{plan.ErrTimeout, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		srv := NewServer(stubPlans{err: tc.err}, stubNav{}, testIndex(), nil, nil, nil, nil)
		w := doJSON(t, srv.Router(), http.MethodPost, "/api/routes/plan", plan.Request{Profile: validProfile()})
		if w.Code != tc.code {
			t.Fatalf("%v mapped to %d, want %d", tc.err, w.Code, tc.code)
		}
	}
}

func TestNavigationEndpoints(t *testing.T) {
	nav := stubNav{
		startID:   "s1",
		updateRes: navigation.UpdateResult{Status: "on_track"},
		view:      navigation.View{ID: "s1", Status: "on_track"},
	}
	srv := NewServer(stubPlans{}, nav, testIndex(), nil, nil, nil, nil)
	r := srv.Router()

	w := doJSON(t, r, http.MethodPost, "/api/navigation", startNavigationRequest{
		Route:   model.AugmentedRoute{Candidate: model.RouteCandidate{Points: []model.LatLng{{Lat: 48, Lng: 2}}}},
		Profile: validProfile(), SoC: 0.5,
	})
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "s1") {
		t.Fatalf("start = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodGet, "/api/navigation/s1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/navigation/s1/position", positionUpdateRequest{
		Position: model.LatLng{Lat: 48, Lng: 2}, SoC: 0.5, Timestamp: 1000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/navigation/s1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel = %d", w.Code)
	}
}

func TestNavigationErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{navigation.ErrSessionNotFound, http.StatusNotFound},
		{navigation.ErrStaleUpdate, http.StatusConflict},
		{navigation.ErrSessionClosed, http.StatusGone},
	}
	for _, tc := range cases {
		srv := NewServer(stubPlans{}, stubNav{updateErr: tc.err}, testIndex(), nil, nil, nil, nil)
		w := doJSON(t, srv.Router(), http.MethodPost, "/api/navigation/s1/position", positionUpdateRequest{Timestamp: 1})
		if w.Code != tc.code {
			t.Fatalf("%v mapped to %d, want %d", tc.err, w.Code, tc.code)
		}
	}
}

func TestStationsNear(t *testing.T) {
	st := model.ChargingStation{
		ID: "st-1", Pos: model.LatLng{Lat: 48.0, Lng: 2.0},
		Connector: model.ConnectorCCS, RatedPowerKW: 150,
		Availability: model.StationAvailable, PricePerKWh: 0.40,
	}
	srv := NewServer(stubPlans{}, stubNav{}, testIndex(st), nil, nil, nil, nil)
	r := srv.Router()

	w := doJSON(t, r, http.MethodGet, "/api/stations?lat=48.0&lng=2.0&radius_m=1000", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "st-1") {
		t.Fatalf("stations = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodGet, "/api/stations?lat=48.0&lng=2.0&connector=type2", nil)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "st-1") {
		t.Fatalf("connector filter: %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodGet, "/api/stations?lng=2.0", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing lat = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/stations?lat=48.0&lng=2.0&connector=tesla", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad connector = %d", w.Code)
	}
}

func TestRegisterStation(t *testing.T) {
	reg := stations.NewRegistry()
	refreshed := false
	srv := NewServer(stubPlans{}, stubNav{}, testIndex(), reg, func(context.Context) { refreshed = true }, nil, nil)

	st := model.ChargingStation{
		ID: "st-new", Pos: model.LatLng{Lat: 48.0, Lng: 2.0},
		Connector: model.ConnectorCCS, RatedPowerKW: 150,
	}
	w := doJSON(t, srv.Router(), http.MethodPost, "/api/stations", st)
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body)
	}
	if !refreshed {
		t.Fatal("refresh hook not invoked")
	}
	sts, _ := reg.Fetch(context.Background())
	if len(sts) != 1 || sts[0].ID != "st-new" {
		t.Fatalf("registry holds %v", sts)
	}
}

func TestRegisterStationDisabled(t *testing.T) {
	srv := NewServer(stubPlans{}, stubNav{}, testIndex(), nil, nil, nil, nil)
	w := doJSON(t, srv.Router(), http.MethodPost, "/api/stations", model.ChargingStation{ID: "x"})
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("register = %d", w.Code)
	}
}

func TestStreamDeliversTransitions(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	nav := stubNav{view: navigation.View{ID: "s1", Status: "on_track"}}
	srv := NewServer(stubPlans{}, nav, testIndex(), nil, nil, bus, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/navigation/s1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	var msg streamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "snapshot" || msg.Session == nil || msg.Session.ID != "s1" {
		t.Fatalf("unexpected snapshot: %+v", msg)
	}

	bus.Publish(events.SessionTransitioned{SessionID: "other", From: "on_track", To: "deviated", Time: time.Now()})
	bus.Publish(events.SessionTransitioned{SessionID: "s1", From: "on_track", To: "deviated", Time: time.Now()})

	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read transition: %v", err)
	}
	if msg.Type != "transition" || msg.To != "deviated" {
		t.Fatalf("unexpected transition: %+v", msg)
	}

	// Terminal transition ends the stream.
	bus.Publish(events.SessionTransitioned{SessionID: "s1", From: "rerouting", To: "aborted", Time: time.Now()})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read terminal: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatal("stream should close after terminal transition")
	}
}

func TestRunShutsDownCleanly(t *testing.T) {
	srv := NewServer(stubPlans{}, stubNav{}, testIndex(), nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
