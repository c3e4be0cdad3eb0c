package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/cli/config"
	controller "github.com/m-mizutani/mapsdrop/pkg/controller/http"
	"github.com/m-mizutani/mapsdrop/pkg/usecase"
	"github.com/m-mizutani/mapsdrop/pkg/utils/metrics"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		oauthCfg  config.OAuth
		mapsCfg   config.MapsAPI
		uploadCfg config.Upload
		storeCfg  config.TokenStore
		slackCfg  config.Slack
	)

	flags := append(serverCfg.Flags(), oauthCfg.Flags()...)
	flags = append(flags, mapsCfg.Flags()...)
	flags = append(flags, uploadCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting mapsdrop server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("server", serverCfg),
				slog.Any("oauth", oauthCfg),
				slog.Any("token_store", storeCfg),
			)

			oauth, err := oauthCfg.Configure(serverCfg.RedirectURL())
			if err != nil {
				return err
			}
			if oauth == nil {
				logger.Warn("OAuth client is not configured, serving setup instructions only",
					slog.String("client_secrets", oauthCfg.ClientSecrets),
				)
			}

			sessionKey, err := serverCfg.Key()
			if err != nil {
				return err
			}
			if serverCfg.SessionKey == "" {
				logger.Warn("No session key configured, sessions do not survive a restart")
			}

			settings, err := uploadCfg.Load()
			if err != nil {
				return err
			}

			store, closeStore, err := storeCfg.New(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			m := metrics.New()

			// Create use cases
			uploadUC := usecase.NewUpload(
				mapsCfg.NewFactory(m, settings.UserIP),
				usecase.WithNotifier(slackCfg.Notifier(serverCfg.StatusURL())),
				usecase.WithUploadDefaults(settings.Defaults),
				usecase.WithUploadInterval(settings.Interval),
				usecase.WithMetrics(m),
			)

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				uploadUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithOAuthConfig(oauth),
				controller.WithSessionKey(sessionKey),
				controller.WithSecureCookie(serverCfg.SecureCookie()),
				controller.WithTokenStore(store),
				controller.WithMaxUploadSize(serverCfg.MaxUploadSize),
				controller.WithMetrics(m),
				controller.WithClientSecretsPath(oauthCfg.ClientSecrets),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
