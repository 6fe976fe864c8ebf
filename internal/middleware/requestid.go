package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the canonical HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request ID string is stored so
	// that handlers and other middleware can retrieve it without reading the response header.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware tags every request with an identifier for log
// correlation. An inbound X-Request-ID (from the app gateway in front of the
// control plane) is reused unchanged; otherwise a fresh UUID is minted. The ID
// lands in the gin context under RequestIDKey, where LoggerMiddleware and the
// audit recorder pick it up, and is echoed in the response header so a client
// error report can be matched to its server-side log lines. Registered first
// in router.go so nothing logs without it.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		// Store in context for use by handlers and other middleware (e.g. logging).
		c.Set(RequestIDKey, id)

		// Echo back to caller so they can correlate their request with server-side logs.
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
