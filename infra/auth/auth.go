// Package auth handles OAuth2 client-credentials authentication for
// external station providers.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Conf holds the client-credentials settings of one provider.
type Conf struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_url"`
}

// Enabled reports whether credentials are configured.
func (c Conf) Enabled() bool { return c.AuthURL != "" }

func (c Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
	}
}

// ClientCred caches an access token and refreshes it when it expires.
type ClientCred struct {
	conf  clientcredentials.Config
	token *oauth2.Token
}

func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{conf: conf.toOauth2Config()}
}

// GetToken returns a valid access token, requesting a new one from the
// token endpoint when the cached token has expired.
func (c *ClientCred) GetToken(ctx context.Context) (string, error) {
	if c.token != nil && c.token.Valid() {
		return c.token.AccessToken, nil
	}
	if err := c.getToken(ctx); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// SetAuthHeader puts the bearer token on r, fetching one first if needed.
func (c *ClientCred) SetAuthHeader(ctx context.Context, r *http.Request) error {
	if c.token == nil || !c.token.Valid() {
		if err := c.getToken(ctx); err != nil {
			return err
		}
	}
	c.token.SetAuthHeader(r)
	return nil
}

// ForceRefresh discards the cached token and requests a new one.
func (c *ClientCred) ForceRefresh(ctx context.Context) (string, error) {
	if err := c.getToken(ctx); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

func (c *ClientCred) getToken(ctx context.Context) error {
	var err error
	c.token, err = c.conf.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	return nil
}
