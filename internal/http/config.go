package http

import (
	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/lending"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Lending  *lending.Service
	Catalog  *lending.Catalog

	// Audit log (optional). When set, account administration is recorded
	// and GET /api/audit is exposed.
	AuditService *audit.Service

	// Authentication. AuthMiddleware and AuthController are required.
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	AuthController *auth.AuthController
	SessionManager *auth.SessionManager
	CSRFSecret     []byte
	SecureCookies  bool

	// ReadOnly rejects every write outside /api/auth/ with 503.
	ReadOnly bool

	// Task queue client (optional)
	TaskQueue TaskQueue
	TaskPing  Pinger

	// Application info
	Version string
}
