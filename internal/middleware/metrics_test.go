package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"listing-gateway/internal/metrics"
)

// requestSeries returns the inbound request counter whose labels match want,
// or nil when no such series was recorded.
func requestSeries(t *testing.T, m *metrics.Metrics, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "listing_gateway_http_requests_total" {
			continue
		}
	series:
		for _, metric := range f.GetMetric() {
			got := make(map[string]string, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if got[k] != v {
					continue series
				}
			}
			return metric
		}
	}
	return nil
}

func assertRequestCount(t *testing.T, m *metrics.Metrics, want map[string]string, count float64) {
	t.Helper()
	metric := requestSeries(t, m, want)
	if metric == nil {
		t.Fatalf("no listing_gateway_http_requests_total series with labels %v", want)
	}
	if v := metric.GetCounter().GetValue(); v != count {
		t.Errorf("requests_total%v = %v, want %v", want, v, count)
	}
}

// newProxyEcho routes every method under /api/proxy to h behind the metrics middleware.
func newProxyEcho(m *metrics.Metrics, h echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/api/proxy/*", h)
	return e
}

func TestMetricsMiddleware_RelayedBackendStatus(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			m := metrics.New()
			e := newProxyEcho(m, func(c echo.Context) error {
				return c.NoContent(code)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/properties/42", http.NoBody))
			if rec.Code != code {
				t.Fatalf("status = %d, want %d", rec.Code, code)
			}

			assertRequestCount(t, m, map[string]string{
				"method":      "GET",
				"status_code": strconv.Itoa(code),
				"path_prefix": "/api/proxy",
			}, 1)
		})
	}
}

func TestMetricsMiddleware_AllowListRejection(t *testing.T) {
	m := metrics.New()
	e := newProxyEcho(m, func(c echo.Context) error {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Route not allowed"})
	})

	for range 3 {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/proxy/admin/users/7", http.NoBody))
	}

	assertRequestCount(t, m, map[string]string{"method": "DELETE", "status_code": "403", "path_prefix": "/api/proxy"}, 3)
	if requestSeries(t, m, map[string]string{"path_prefix": "other"}) != nil {
		t.Error("backend path leaked into path_prefix label")
	}
}

func TestMetricsMiddleware_MethodLabels(t *testing.T) {
	m := metrics.New()
	e := newProxyEcho(m, func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for _, method := range []string{http.MethodHead, http.MethodOptions, "PROPFIND"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, "/api/proxy/properties", http.NoBody))
	}

	for _, label := range []string{"HEAD", "OPTIONS", "other"} {
		assertRequestCount(t, m, map[string]string{"method": label, "status_code": "204", "path_prefix": "/api/proxy"}, 1)
	}
	if requestSeries(t, m, map[string]string{"method": "PROPFIND"}) != nil {
		t.Error("unrouted method used as a label value")
	}
}

func TestMetricsMiddleware_HTTPErrorCode(t *testing.T) {
	m := metrics.New()
	e := newProxyEcho(m, func(echo.Context) error {
		return echo.ErrStatusRequestEntityTooLarge
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/proxy/properties", http.NoBody))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	assertRequestCount(t, m, map[string]string{"method": "POST", "status_code": "413"}, 1)
}

func TestMetricsMiddleware_UnroutedPath(t *testing.T) {
	m := metrics.New()
	e := newProxyEcho(m, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/properties/42", http.NoBody))

	assertRequestCount(t, m, map[string]string{"method": "GET", "status_code": "404", "path_prefix": "other"}, 1)
}

func TestMetricsMiddleware_InFlightSettles(t *testing.T) {
	m := metrics.New()
	var during float64
	e := newProxyEcho(m, func(c echo.Context) error {
		var g dto.Metric
		if err := m.RequestsInFlight.Write(&g); err != nil {
			return err
		}
		during = g.GetGauge().GetValue()
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/proxy/properties", http.NoBody))

	var after dto.Metric
	if err := m.RequestsInFlight.Write(&after); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if during != 1 || after.GetGauge().GetValue() != 0 {
		t.Errorf("in flight during = %v, after = %v; want 1 and 0", during, after.GetGauge().GetValue())
	}
}

func TestMetricsMiddleware_WithRequestLogger(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Use(RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	e.POST("/api/proxy/properties", func(c echo.Context) error {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Upstream request failed"})
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/proxy/properties", http.NoBody))

	assertRequestCount(t, m, map[string]string{"method": "POST", "status_code": "502", "path_prefix": "/api/proxy"}, 1)
}
