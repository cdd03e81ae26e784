package connector

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// ClientCredentials configures the OAuth2 client-credentials grant
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	// EndpointParams are sent with every token request
	EndpointParams url.Values
}

func (cc ClientCredentials) validate() error {
	var missing []string
	if cc.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if cc.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if cc.TokenURL == "" {
		missing = append(missing, "token_url")
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrorTypeConfig, "oauth2 client credentials are incomplete").
			WithDetail("missing", missing)
	}
	return nil
}

// NewOAuth2 creates an APIConnector whose requests carry a bearer token from
// the client-credentials grant. Tokens are fetched on first use and
// refreshed when they expire. ctx governs token requests, not API requests.
func NewOAuth2(ctx context.Context, baseURL string, creds ClientCredentials, opts ...Option) (*APIConnector, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	c := New(baseURL, opts...)

	cfg := clientcredentials.Config{
		ClientID:       creds.ClientID,
		ClientSecret:   creds.ClientSecret,
		TokenURL:       creds.TokenURL,
		Scopes:         creds.Scopes,
		EndpointParams: creds.EndpointParams,
	}
	base := c.client
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	c.client = &http.Client{
		Transport: &oauth2.Transport{
			Source: cfg.TokenSource(tokenCtx),
			Base:   base.Transport,
		},
		Timeout:       base.Timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
	}
	return c, nil
}
