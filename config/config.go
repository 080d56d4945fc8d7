package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/voltroute/planner/core/metrics"
	"github.com/voltroute/planner/core/navigation"
	"github.com/voltroute/planner/core/plan"
	"github.com/voltroute/planner/infra/stationfeed"
)

type Config struct {
	Server      ServerConfig       `json:"server"`
	Graph       GraphConfig        `json:"graph"`
	Stations    StationsConfig     `json:"stations"`
	Planner     PlannerConfig      `json:"planner"`
	Navigation  navigation.Config  `json:"navigation"`
	StationFeed stationfeed.Config `json:"station_feed"`
	Metrics     metrics.Config     `json:"metrics"`
	PlanLog     PlanLogConfig      `json:"plan_log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// GraphConfig locates the road graph data.
type GraphConfig struct {
	Path string `json:"path"`
}

// Validate checks mandatory fields.
func (c GraphConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("graph path is required")
	}
	return nil
}

// StationsConfig controls the station index and its refresh cycle.
type StationsConfig struct {
	// Path is an optional static station file loaded at startup.
	Path string `json:"path"`
	// Provider is an optional external catalogue endpoint.
	Provider stationfeed.HTTPConfig `json:"provider"`
	// RefreshIntervalS is the snapshot rebuild period in seconds.
	RefreshIntervalS int `json:"refresh_interval_s"`
	// TimeoutS bounds one feed fetch in seconds.
	TimeoutS int `json:"timeout_s"`
}

// SetDefaults applies sane defaults.
func (c *StationsConfig) SetDefaults() {
	c.Provider.SetDefaults()
	if c.RefreshIntervalS <= 0 {
		c.RefreshIntervalS = 60
	}
	if c.TimeoutS <= 0 {
		c.TimeoutS = 10
	}
}

// PlannerConfig groups the stop insertion and pipeline policies.
type PlannerConfig struct {
	Insertion plan.Config        `json:"insertion"`
	Service   plan.ServiceConfig `json:"service"`
}

// Load reads the configuration file at path, applies VR_ environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides: VR_SERVER__ADDR=:9090 etc.
	if err := k.Load(env.Provider("VR_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "vr_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Stations.SetDefaults()
	cfg.Planner.Service.SetDefaults()
	cfg.Navigation.SetDefaults()
	cfg.StationFeed.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.PlanLog.SetDefaults()
	if err := cfg.Graph.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.PlanLog.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
