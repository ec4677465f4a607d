// Package handler contains the Echo handlers and route wiring.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"listing-gateway/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information. The backend location is left
// out on purpose: hiding it from browser code is the point of the gateway.
func (h *HealthHandler) Status(c echo.Context) error {
	allowList := "disabled"
	if len(h.cfg.Upstream.AllowedPrefixes) > 0 {
		allowList = "enabled"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":          "ok",
		"version":         string(h.version),
		"proxy_prefix":    ProxyPrefix,
		"route_allowlist": allowList,
	})
}
