package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `server:
  addr: ":8090"
graph:
  path: "testdata/graph.json"
stations:
  path: "testdata/stations.json"
  refresh_interval_s: 30
planner:
  insertion:
    reserve_floor_pct: 0.08
    corridor_radius_m: 4000
  service:
    default_k: 4
    timeout_ms: 2000
navigation:
  deviation_tolerance_m: 200
  idle_timeout: "45m"
station_feed:
  enabled: true
  broker: "tcp://localhost:1883"
  topic: "stations/live/#"
metrics:
  prometheus_enabled: true
plan_log:
  backend: "sqlite"
  path: "plans.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"addr", cfg.Server.Addr, ":8090"},
		{"graph path", cfg.Graph.Path, "testdata/graph.json"},
		{"refresh interval", cfg.Stations.RefreshIntervalS, 30},
		{"stations timeout default", cfg.Stations.TimeoutS, 10},
		{"reserve floor", cfg.Planner.Insertion.ReserveFloorPct, 0.08},
		{"corridor radius", cfg.Planner.Insertion.CorridorRadiusM, 4000.0},
		{"default k", cfg.Planner.Service.DefaultK, 4},
		{"max k default", cfg.Planner.Service.MaxK, 5},
		{"timeout", cfg.Planner.Service.TimeoutMS, 2000},
		{"deviation tolerance", cfg.Navigation.DeviationToleranceM, 200.0},
		{"idle timeout", cfg.Navigation.IdleTimeout.String(), "45m0s"},
		{"feed enabled", cfg.StationFeed.Enabled, true},
		{"feed topic", cfg.StationFeed.Topic, "stations/live/#"},
		{"prometheus", cfg.Metrics.PrometheusEnabled, true},
		{"prometheus addr default", cfg.Metrics.PrometheusAddr, ":9464"},
		{"plan log backend", cfg.PlanLog.Backend, "sqlite"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `graph:
  path: "testdata/graph.json"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VR_SERVER__ADDR", ":7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Fatalf("env override not applied: %s", cfg.Server.Addr)
	}
}

func TestLoadRejectsMissingGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing graph path")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
