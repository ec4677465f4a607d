package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/fx"

	"listing-gateway/internal/client"
	"listing-gateway/internal/config"
	"listing-gateway/internal/handler"
	"listing-gateway/internal/logging"
	"listing-gateway/internal/metrics"
	"listing-gateway/internal/server"
	"listing-gateway/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("listing-gateway"),
		kong.Description("Same-origin gateway relaying /api/proxy/* to the listings backend API."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			server.NewEcho,
			fx.Annotate(client.NewBackendClient, fx.As(new(service.Upstream))),
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, server.Start),
	).Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*slog.Logger, error) {
	logger, closeLog, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error { return closeLog() },
	})
	return logger, nil
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}
