// Package stationfeed provides live charging station feeds backed by
// external transports. The MQTT feed layers broker-pushed availability
// updates over a base feed, so the station index refresher picks them up on
// its next cycle.
package stationfeed

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltroute/planner/core/logger"
	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/stations"
	infralogger "github.com/voltroute/planner/infra/logger"
)

// Config defines the connection parameters for the availability feed.
type Config struct {
	Enabled    bool   `json:"enabled"`
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Topic      string `json:"topic"`
	QoS        byte   `json:"qos"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "stations/availability/#"
	}
	if c.ClientID == "" {
		c.ClientID = "voltroute-planner"
	}
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.CABundle != "" {
		ca, err := os.ReadFile(c.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("parse ca bundle %s", c.CABundle)
		}
		tlsCfg.RootCAs = pool
	}
	if c.ClientCert != "" && c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// availabilityUpdate is the wire format of one broker message.
type availabilityUpdate struct {
	StationID    string             `json:"station_id"`
	Availability model.Availability `json:"availability"`
	PricePerKWh  *float64           `json:"price_per_kwh,omitempty"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// AvailabilityFeed merges broker-pushed availability and price updates over
// a base station feed.
type AvailabilityFeed struct {
	base stations.Feed
	log  logger.Logger

	mu        sync.RWMutex
	overrides map[string]availabilityUpdate

	cli pahoClient
}

// NewAvailabilityFeed connects to the broker and subscribes to the
// availability topic.
func NewAvailabilityFeed(cfg Config, base stations.Feed) (*AvailabilityFeed, error) {
	cfg.SetDefaults()

	f := &AvailabilityFeed{
		base:      base,
		log:       infralogger.New("station-feed"),
		overrides: make(map[string]availabilityUpdate),
	}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.ResumeSubs = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		f.log.Errorf("connection lost: %v", err)
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := cli.Subscribe(cfg.Topic, cfg.QoS, f.onMessage); token.Wait() && token.Error() != nil {
		cli.Disconnect(0)
		return nil, token.Error()
	}
	f.cli = cli
	f.log.Infof("subscribed to %s", cfg.Topic)
	return f, nil
}

func (f *AvailabilityFeed) onMessage(_ paho.Client, msg paho.Message) {
	var upd availabilityUpdate
	if err := json.Unmarshal(msg.Payload(), &upd); err != nil {
		f.log.Warnf("drop malformed update on %s: %v", msg.Topic(), err)
		return
	}
	if upd.StationID == "" {
		f.log.Warnf("drop update without station id on %s", msg.Topic())
		return
	}
	f.mu.Lock()
	f.overrides[upd.StationID] = upd
	f.mu.Unlock()
	f.log.Debugf("station %s now %s", upd.StationID, upd.Availability)
}

// Fetch returns the base stations with the latest broker updates applied.
// Updates for stations the base feed does not know are ignored.
func (f *AvailabilityFeed) Fetch(ctx context.Context) ([]model.ChargingStation, error) {
	sts, err := f.base.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.overrides) == 0 {
		return sts, nil
	}
	out := make([]model.ChargingStation, len(sts))
	copy(out, sts)
	for i := range out {
		if upd, ok := f.overrides[out[i].ID]; ok {
			out[i].Availability = upd.Availability
			if upd.PricePerKWh != nil {
				out[i].PricePerKWh = *upd.PricePerKWh
			}
		}
	}
	return out, nil
}

// Close disconnects from the broker.
func (f *AvailabilityFeed) Close() {
	if f.cli != nil && f.cli.IsConnected() {
		f.cli.Disconnect(250)
	}
}
