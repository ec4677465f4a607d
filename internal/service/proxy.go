// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"listing-gateway/internal/config"
	"listing-gateway/internal/model"
)

// ErrRouteNotAllowed is returned when an allow-list is configured and the
// forwarded path does not start with one of its prefixes.
var ErrRouteNotAllowed = errors.New("route not allowed")

// hopByHopHeaders are dropped in both directions. Keys are canonical.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Host":                {},
	"Content-Length":      {},
}

// Upstream performs a single backend call.
type Upstream interface {
	Do(ctx context.Context, method, target string, header http.Header, body io.Reader) (*model.UpstreamResponse, error)
}

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	upstream Upstream
	logger   *slog.Logger
	baseURL  string
	allowed  map[string]bool
}

// NewProxyService creates a ProxyService targeting cfg.Upstream.BaseURL.
func NewProxyService(up Upstream, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	if _, err := url.Parse(cfg.Upstream.BaseURL); err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	var allowed map[string]bool
	if len(cfg.Upstream.AllowedPrefixes) > 0 {
		allowed = make(map[string]bool, len(cfg.Upstream.AllowedPrefixes))
		for _, p := range cfg.Upstream.AllowedPrefixes {
			allowed[p] = true
		}
	}

	return &ProxyService{
		upstream: up,
		logger:   logger.With("component", "proxy_service"),
		baseURL:  strings.TrimSuffix(cfg.Upstream.BaseURL, "/"),
		allowed:  allowed,
	}, nil
}

// Forward relays pr to the backend and returns the filtered, fully read
// response. Backend 4xx/5xx replies are returned as successful forwards;
// only transport or translation failures produce an error. Exactly one
// backend attempt is made.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if !s.routeAllowed(pr.Segments) {
		return nil, ErrRouteNotAllowed
	}

	target := s.ResolveTarget(pr.Segments, pr.RawQuery)

	body, err := requestBody(pr.Method, pr.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"segments", len(pr.Segments),
	)

	resp, err := s.upstream.Do(pr.Ctx, pr.Method, target, FilterHeaders(pr.Header), body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if len(data) == 0 {
		data = nil
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     FilterHeaders(resp.Header),
		Body:       data,
	}, nil
}

// ResolveTarget joins the base URL, the path segments and the raw query.
// No segments forwards to the bare base URL.
func (s *ProxyService) ResolveTarget(segments []string, rawQuery string) string {
	var b strings.Builder
	b.WriteString(s.baseURL)
	if len(segments) > 0 {
		b.WriteByte('/')
		b.WriteString(strings.Join(segments, "/"))
	}
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String()
}

// routeAllowed matches the first decoded segment against the allow-list.
// With a list configured, dot segments (plain or percent-encoded) are refused
// since backends resolve them and could land outside the allowed prefix.
func (s *ProxyService) routeAllowed(segments []string) bool {
	if s.allowed == nil {
		return true
	}
	if len(segments) == 0 {
		return false
	}
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil || decoded == "." || decoded == ".." {
			return false
		}
		if i == 0 && !s.allowed[decoded] {
			return false
		}
	}
	return true
}

// FilterHeaders returns a copy of src without the hop-by-hop set.
func FilterHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if IsHopByHop(key) {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}

// IsHopByHop reports whether the header must not cross the proxy.
func IsHopByHop(key string) bool {
	_, ok := hopByHopHeaders[http.CanonicalHeaderKey(key)]
	return ok
}

// requestBody returns the body to send upstream, or nil when none must be
// sent: always for GET, HEAD and OPTIONS, and for empty bodies otherwise.
func requestBody(method string, src io.Reader) (io.Reader, error) {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil, nil
	}
	if src == nil {
		return nil, nil
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return bytes.NewReader(data), nil
}
