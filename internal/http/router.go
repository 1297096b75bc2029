package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(NewReadOnlyMode(cfg.ReadOnly).Handler())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.Middleware())
	}

	router.Use(cfg.AuthMiddleware.Handler())

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "route not found", "not_found")
	})

	// Health endpoints
	var dbPing Pinger
	if cfg.Database != nil {
		dbPing = cfg.Database
	}
	health := NewHealthController(dbPing, cfg.TaskPing, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	// Login, logout, tokens, first-admin setup
	cfg.AuthController.RegisterRoutes(router)

	api := router.Group("/api")
	admin := api.Group("", auth.RequireRole(entities.UserRoleAdmin))

	// Catalog: members browse, admins manage
	books := NewBooksController(cfg.Catalog)
	api.GET("/books", books.ListBooks)
	api.GET("/books/:id", books.GetBook)
	admin.POST("/books", books.CreateBook)
	admin.PUT("/books/:id", books.UpdateBook)
	admin.PUT("/books/:id/copies", books.SetCopies)
	admin.POST("/books/:id/deactivate", books.DeactivateBook)
	admin.POST("/books/:id/reactivate", books.ReactivateBook)

	// Loans: ownership checks live in the lending service
	loans := NewLoansController(cfg.Lending)
	api.POST("/loans", loans.Borrow)
	api.GET("/loans", loans.ListLoans)
	admin.GET("/loans/overdue", loans.ListOverdue)
	api.GET("/loans/:id", loans.GetLoan)
	api.POST("/loans/:id/return", loans.Return)
	api.POST("/loans/:id/renew", loans.Renew)
	admin.POST("/loans/:id/lost", loans.MarkLost)
	admin.POST("/loans/:id/pay", loans.PayFine)

	// Account administration
	var userAuditor UserAuditor
	if cfg.AuditService != nil {
		userAuditor = cfg.AuditService
	}
	users := NewUsersController(cfg.AuthService, userAuditor)
	admin.GET("/users", users.ListUsers)
	admin.POST("/users", users.CreateUser)
	admin.GET("/users/:id", users.GetUser)
	admin.PUT("/users/:id/active", users.SetActive)

	if cfg.AuditService != nil {
		auditController := NewAuditController(cfg.AuditService)
		admin.GET("/audit", auditController.GetAuditEvents)
	}

	// Task management endpoints
	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue)
		admin.GET("/tasks/types", tasksController.ListTaskTypes)
		admin.GET("/tasks/:id", tasksController.GetTaskStatus)
		admin.POST("/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
