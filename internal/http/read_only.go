package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ReadOnlyMode blocks write operations while the library is closed for
// stock-taking or a migration. Reads keep working, and so does signing in.
type ReadOnlyMode struct {
	enabled bool
}

func NewReadOnlyMode(enabled bool) *ReadOnlyMode {
	return &ReadOnlyMode{enabled: enabled}
}

// IsEnabled returns whether read-only mode is active.
func (m *ReadOnlyMode) IsEnabled() bool {
	return m.enabled
}

// Handler returns a Gin middleware that rejects writes with 503.
func (m *ReadOnlyMode) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if m.isAllowedPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.Header("Retry-After", "3600")
		respondError(c, http.StatusServiceUnavailable, "the library is in read-only mode", "read_only")
	}
}

// isAllowedPath lists the writes that stay open: authentication only.
func (m *ReadOnlyMode) isAllowedPath(path string) bool {
	return strings.HasPrefix(path, "/api/auth/")
}
