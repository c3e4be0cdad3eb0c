package config

import (
	"errors"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/infra/mapsapi"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultClientSecrets is where the OAuth client secrets file is looked up
const DefaultClientSecrets = "client_secrets.json"

// OAuth holds the OAuth 2.0 client configuration
type OAuth struct {
	ClientSecrets string
	ClientID      string
	ClientSecret  string `masq:"secret"`
	RedirectURL   string
}

// Flags returns CLI flags for OAuth configuration
func (c *OAuth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "oauth-client-secrets",
			Usage:       "Path to the OAuth client secrets JSON file downloaded from the developer console",
			Value:       DefaultClientSecrets,
			Destination: &c.ClientSecrets,
			Sources:     cli.EnvVars("MAPSDROP_OAUTH_CLIENT_SECRETS"),
		},
		&cli.StringFlag{
			Name:        "oauth-client-id",
			Usage:       "OAuth client ID, overrides the client secrets file",
			Destination: &c.ClientID,
			Sources:     cli.EnvVars("MAPSDROP_OAUTH_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:        "oauth-client-secret",
			Usage:       "OAuth client secret, used with --oauth-client-id",
			Destination: &c.ClientSecret,
			Sources:     cli.EnvVars("MAPSDROP_OAUTH_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:        "oauth-redirect-url",
			Usage:       "OAuth redirect URL, defaults to {base-url}/oauth2callback",
			Destination: &c.RedirectURL,
			Sources:     cli.EnvVars("MAPSDROP_OAUTH_REDIRECT_URL"),
		},
	}
}

// Configure returns the OAuth client, or nil when neither a client ID nor a
// client secrets file is available. defaultRedirect is used when no redirect
// URL is configured.
func (c *OAuth) Configure(defaultRedirect string) (*oauth2.Config, error) {
	var cfg *oauth2.Config

	switch {
	case c.ClientID != "":
		if c.ClientSecret == "" {
			return nil, goerr.New("oauth-client-secret is required with oauth-client-id")
		}
		cfg = &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{mapsapi.Scope},
		}

	case c.ClientSecrets != "":
		raw, err := os.ReadFile(c.ClientSecrets)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read client secrets", goerr.V("path", c.ClientSecrets))
		}

		cfg, err = google.ConfigFromJSON(raw, mapsapi.Scope)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse client secrets", goerr.V("path", c.ClientSecrets))
		}

	default:
		return nil, nil
	}

	switch {
	case c.RedirectURL != "":
		cfg.RedirectURL = c.RedirectURL
	case cfg.RedirectURL == "":
		cfg.RedirectURL = defaultRedirect
	}

	return cfg, nil
}
