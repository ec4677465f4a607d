package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestIDKey is the echo context key holding the request ID.
const RequestIDKey = "request_id"

// RequestID returns Echo's request ID middleware generating UUIDv4 values.
// An inbound X-Request-Id is kept as is and still forwarded upstream. The ID
// is also stored under RequestIDKey, since relayed responses drop the header
// the middleware sets.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(RequestIDKey, id)
		},
	})
}
