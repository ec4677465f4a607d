package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"listing-gateway/internal/client"
	"listing-gateway/internal/model"
	"listing-gateway/internal/service"
)

// ProxyPrefix is the local path under which the backend API is mirrored.
const ProxyPrefix = "/api/proxy"

// ProxyMethods are the methods routed to the proxy.
var ProxyMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodOptions,
}

const (
	errUpstreamFailed  = "Upstream request failed"
	errRouteNotAllowed = "Route not allowed"
)

// ProxyHandler forwards /api/proxy/* requests to the backend API.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle relays the request to the backend and writes the backend's status,
// filtered headers and body back to the caller.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Segments: pathSegments(req.URL.EscapedPath()),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	// The caller sees the backend's headers only; anything middleware set
	// (e.g. X-Request-Id) is dropped.
	header := c.Response().Header()
	clear(header)
	for key, vals := range resp.Header {
		header[key] = vals
	}
	if resp.Body != nil {
		header.Set(echo.HeaderContentLength, strconv.Itoa(len(resp.Body)))
	}

	c.Response().WriteHeader(resp.StatusCode)
	if resp.Body == nil || req.Method == http.MethodHead {
		return nil
	}

	// The status is already sent; a failed write means the caller went away.
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Warn("writing response body",
			"err", err,
			"method", req.Method,
			"path", req.URL.Path,
		)
	}
	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	req := c.Request()

	if errors.Is(err, service.ErrRouteNotAllowed) {
		h.logger.Warn("route not allowed",
			"method", req.Method,
			"path", req.URL.RequestURI(),
		)
		return c.JSON(http.StatusForbidden, map[string]string{"error": errRouteNotAllowed})
	}

	// Raised by middleware while the body was being read, e.g. BodyLimit on
	// a chunked request. Echo renders it with its own status.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	h.logger.Error("upstream request failed",
		"method", req.Method,
		"path", req.URL.RequestURI(),
		"cause", client.FailureCause(err),
		"err", err,
	)
	return c.JSON(http.StatusBadGateway, map[string]string{"error": errUpstreamFailed})
}

// pathSegments splits the escaped path below ProxyPrefix into its non-empty
// segments. "/api/proxy" and "/api/proxy/" both yield no segments.
func pathSegments(escapedPath string) []string {
	rest := strings.TrimPrefix(escapedPath, ProxyPrefix)
	var segments []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
