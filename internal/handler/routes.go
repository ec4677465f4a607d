package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"listing-gateway/internal/config"
	"listing-gateway/internal/metrics"
	"listing-gateway/internal/middleware"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	sec := middleware.SecurityHeaders()

	e.GET("/healthz", health.Healthz, sec)
	e.GET("/proxy/status", health.Status, sec)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})), sec)
	}

	for _, method := range ProxyMethods {
		e.Add(method, ProxyPrefix, proxy.Handle)
		e.Add(method, ProxyPrefix+"/*", proxy.Handle)
	}
}
