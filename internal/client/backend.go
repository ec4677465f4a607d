// Package client provides the HTTP client used to reach the backend API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"listing-gateway/internal/config"
	"listing-gateway/internal/metrics"
	"listing-gateway/internal/model"
)

// BackendClient sends requests to the backend API.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling.
// No overall timeout is set unless upstream.timeout_seconds is configured.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost:   cfg.Upstream.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do executes one request against the backend. A nil body sends no body.
// The caller is responsible for closing the response body. The context
// bounds the call: when the inbound caller goes away the backend call is
// abandoned too.
func (c *BackendClient) Do(ctx context.Context, method, target string, header http.Header, body io.Reader) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	c.logger.Debug("upstream request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	if err != nil {
		c.metrics.ObserveUpstreamFailure(method, FailureCause(err), time.Since(start))
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	c.metrics.ObserveUpstream(method, resp.StatusCode, time.Since(start))

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// FailureCause classifies a transport error into a bounded label used in
// logs and metrics: canceled, dns, timeout, connect or other.
func FailureCause(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connect"
	}

	return "other"
}
