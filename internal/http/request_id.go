package http

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/librarian/internal/audit"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each request with an id, reusing a well-formed
// incoming X-Request-ID, and stores it with the client IP in the request
// context so that audit events can be correlated.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = audit.NewRequestID()
		}

		c.Request = c.Request.WithContext(audit.WithRequest(c.Request.Context(), requestID, c.ClientIP()))
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}
