package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/infra/tokenstore"
	"github.com/m-mizutani/mapsdrop/pkg/utils/metrics"
	"golang.org/x/oauth2"
)

// DefaultMaxUploadSize limits the size of an uploaded archive
const DefaultMaxUploadSize int64 = 256 << 20

// config holds internal HTTP server configuration
type config struct {
	addr          string
	oauth         *oauth2.Config
	sessionKey    []byte
	secureCookie  bool
	tokenStore    interfaces.TokenStore
	maxUploadSize int64
	metrics       *metrics.Metrics
	clientSecrets string
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithOAuthConfig sets the OAuth client. Without it every page explains how
// to configure one.
func WithOAuthConfig(cfg *oauth2.Config) Option {
	return func(c *config) {
		c.oauth = cfg
	}
}

// WithSessionKey sets the key that signs session cookies and OAuth state
func WithSessionKey(key []byte) Option {
	return func(c *config) {
		c.sessionKey = key
	}
}

// WithSecureCookie marks the session cookie as HTTPS only
func WithSecureCookie(secure bool) Option {
	return func(c *config) {
		c.secureCookie = secure
	}
}

// WithTokenStore sets where OAuth tokens are kept
func WithTokenStore(store interfaces.TokenStore) Option {
	return func(c *config) {
		c.tokenStore = store
	}
}

// WithMaxUploadSize sets the upper bound of an uploaded archive in bytes
func WithMaxUploadSize(size int64) Option {
	return func(c *config) {
		c.maxUploadSize = size
	}
}

// WithMetrics enables request metrics and the /metrics endpoint
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithClientSecretsPath sets the path shown on the page for a missing OAuth client
func WithClientSecretsPath(path string) Option {
	return func(c *config) {
		c.clientSecrets = path
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	uploadUC interfaces.UploadUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr:          "localhost:8080",
		maxUploadSize: DefaultMaxUploadSize,
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.tokenStore == nil {
		cfg.tokenStore = tokenstore.NewMemory()
	}
	if cfg.oauth != nil && len(cfg.sessionKey) == 0 {
		return nil, goerr.New("session key is required when OAuth is configured")
	}

	render, err := newRenderer()
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(SentryMiddleware)
	router.Use(MetricsMiddleware(cfg.metrics))
	router.Use(middleware.Recoverer)

	// Health check
	router.Get("/health", handleHealth)
	if cfg.metrics != nil {
		router.Handle("/metrics", cfg.metrics.Handler())
	}

	if cfg.oauth == nil {
		missing := func(w http.ResponseWriter, r *http.Request) {
			render.page(w, r, http.StatusServiceUnavailable, "missing_client.html", &missingClientPage{
				ClientSecrets: cfg.clientSecrets,
			})
		}
		router.NotFound(missing)
		router.MethodNotAllowed(missing)
	} else {
		sessions := newSessionManager(cfg.sessionKey, cfg.secureCookie)
		authHandler := newAuthHandler(cfg.oauth, sessions, cfg.tokenStore, render)
		uploadHandler := newUploadHandler(uploadUC, authHandler, render, cfg.maxUploadSize)

		router.Get("/", authHandler.Home)
		router.Get("/oauth2callback", authHandler.Callback)
		router.Get("/logout", authHandler.Logout)

		router.Group(func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.Get("/upload", uploadHandler.Form)
			r.Post("/upload", uploadHandler.Submit)
			r.Get("/status", uploadHandler.Status)
			r.Get("/projects", uploadHandler.Projects)
		})
	}

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
