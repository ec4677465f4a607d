package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestRequestID_Generates(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/test", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	id := rec.Header().Get(echo.HeaderXRequestID)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-Id = %q, want a UUID: %v", id, err)
	}
}

func TestRequestID_KeepsInbound(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/test", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "trace-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderXRequestID); got != "trace-123" {
		t.Errorf("X-Request-Id = %q, want %q", got, "trace-123")
	}
}

func TestRequestID_StoredInContext(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	var stored any
	e.GET("/test", func(c echo.Context) error {
		stored = c.Get(RequestIDKey)
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	if stored == nil || stored != rec.Header().Get(echo.HeaderXRequestID) {
		t.Errorf("context request ID = %v, header = %q", stored, rec.Header().Get(echo.HeaderXRequestID))
	}
}
