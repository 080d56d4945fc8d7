package stationfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/infra/auth"
)

// HTTPConfig defines the connection parameters for a provider catalogue
// endpoint.
type HTTPConfig struct {
	Enabled bool `json:"enabled"`
	// URL returns the full station catalogue as a JSON array.
	URL      string    `json:"url"`
	TimeoutS int       `json:"timeout_s"`
	Auth     auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.TimeoutS <= 0 {
		c.TimeoutS = 10
	}
}

// HTTPFeed fetches station records from a provider catalogue endpoint,
// authenticating with OAuth2 client credentials when configured.
type HTTPFeed struct {
	url    string
	client *http.Client
	cred   *auth.ClientCred
}

// NewHTTPFeed builds a feed for the configured endpoint.
func NewHTTPFeed(cfg HTTPConfig) (*HTTPFeed, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("provider url is required")
	}
	f := &HTTPFeed{
		url:    cfg.URL,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second},
	}
	if cfg.Auth.Enabled() {
		f.cred = auth.NewClientCred(cfg.Auth)
	}
	return f, nil
}

// Fetch implements stations.Feed. A 401 response forces one token refresh
// and a single retry.
func (f *HTTPFeed) Fetch(ctx context.Context) ([]model.ChargingStation, error) {
	records, status, err := f.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && f.cred != nil {
		if _, err := f.cred.ForceRefresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		records, status, err = f.fetch(ctx)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", status)
	}
	return records, nil
}

func (f *HTTPFeed) fetch(ctx context.Context) ([]model.ChargingStation, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if f.cred != nil {
		if err := f.cred.SetAuthHeader(ctx, req); err != nil {
			return nil, 0, fmt.Errorf("set auth header: %w", err)
		}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch catalogue: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	var records []model.ChargingStation
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, 0, fmt.Errorf("decode catalogue: %w", err)
	}
	return records, resp.StatusCode, nil
}
