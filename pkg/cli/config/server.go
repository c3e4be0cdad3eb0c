package config

import (
	"crypto/rand"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// DefaultMaxUploadSize is the default upper bound of an uploaded archive
const DefaultMaxUploadSize int64 = 256 << 20

// Server holds server configuration
type Server struct {
	Addr          string
	BaseURL       string
	SessionKey    string `masq:"secret"`
	MaxUploadSize int64
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("MAPSDROP_ADDR"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Public URL of the server, used for the OAuth redirect and links in notifications",
			Value:       "http://localhost:8080",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("MAPSDROP_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "session-key",
			Usage:       "Key to sign session cookies. A random key is generated if empty, which logs everybody out on restart",
			Destination: &c.SessionKey,
			Sources:     cli.EnvVars("MAPSDROP_SESSION_KEY"),
		},
		&cli.Int64Flag{
			Name:        "max-upload-size",
			Usage:       "Maximum size of an uploaded archive in bytes",
			Value:       DefaultMaxUploadSize,
			Destination: &c.MaxUploadSize,
			Sources:     cli.EnvVars("MAPSDROP_MAX_UPLOAD_SIZE"),
		},
	}
}

// SecureCookie reports whether the session cookie should be HTTPS only
func (c *Server) SecureCookie() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// RedirectURL returns the OAuth callback URL under BaseURL
func (c *Server) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/oauth2callback"
}

// StatusURL returns the status page URL under BaseURL
func (c *Server) StatusURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/status"
}

// Key returns the session signing key
func (c *Server) Key() ([]byte, error) {
	if c.SessionKey != "" {
		return []byte(c.SessionKey), nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, goerr.Wrap(err, "failed to generate session key")
	}
	return key, nil
}
