package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/users"
	http_controllers "github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/lending"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before tearing down what handlers depend on
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

// resolveSecret returns the configured secret, or a random one when unset.
// Hex values are decoded; anything else is used as raw bytes.
func resolveSecret(configured, envName string) ([]byte, error) {
	if configured != "" {
		if decoded, err := hex.DecodeString(configured); err == nil {
			return decoded, nil
		}
		return []byte(configured), nil
	}

	secret, err := auth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	log.Printf("Generated %s for this run (set it to persist across restarts)", envName)
	decoded, err := hex.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated %s: %w", envName, err)
	}
	return decoded, nil
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Librarian v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))

	lendingService := lending.NewService(db.DB, cfg.Lending, lending.WithAuditor(auditService))
	catalog := lending.NewCatalog(db.DB, auditService)
	policy := lendingService.Policy()
	log.Printf("Lending policy: loan period %v, %d active loans, %d renewals, fine %d/day",
		policy.LoanPeriod, policy.MaxActiveLoans, policy.MaxRenewals, policy.FinePerDay)

	// Authentication is always on: bearer tokens for API clients, sessions for browsers
	jwtSecret, err := resolveSecret(cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	if err != nil {
		log.Fatalf("Failed to generate token secret: %v", err)
	}
	csrfSecret, err := resolveSecret(cfg.Auth.SessionSecret, "AUTH_SESSION_SECRET")
	if err != nil {
		log.Fatalf("Failed to generate session secret: %v", err)
	}

	authService := auth.NewService(
		users.NewRepository(db.DB),
		auth.NewTokenIssuer(string(jwtSecret), cfg.Auth.TokenExpiry),
		cfg.Auth,
	)

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get SQL DB for sessions: %v", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}
	authController := auth.NewAuthController(authService, sessionManager, auditService, cfg.Auth)

	if hasUsers, err := authService.HasUsers(); err == nil && !hasUsers {
		log.Printf("No users found. POST /api/setup or run 'librarian create-user -role admin' to create an administrator.")
	}

	// Background task queue and the scheduler feeding it
	var taskClient *tasks.Client
	var maintenance *scheduler.MaintenanceScheduler
	taskCtx, taskCancel := context.WithCancel(context.Background())
	defer taskCancel()

	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromAppConfig(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewCleanupAuditEventsQueue(auditService),
			tasks.NewOverdueNoticeQueue(lendingService, auditService),
		)
		taskClient.Start(taskCtx)

		maintenance = scheduler.NewMaintenanceScheduler(taskClient, cfg.Maintenance, cfg.Audit)
		if err := maintenance.Start(taskCtx); err != nil {
			log.Fatalf("Failed to start maintenance scheduler: %v", err)
		}
	} else {
		log.Printf("Task queue disabled; audit cleanup and overdue notices will not run")
	}

	if cfg.Global.ReadOnly {
		log.Printf("READ_ONLY is set: catalog, loan and account changes are refused")
	}

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Lending:        lendingService,
		Catalog:        catalog,
		AuditService:   auditService,
		AuthService:    authService,
		AuthMiddleware: auth.NewMiddleware(authService, sessionManager),
		AuthController: authController,
		SessionManager: sessionManager,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		ReadOnly:       cfg.Global.ReadOnly,
		Version:        version,
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
		routerCfg.TaskPing = taskClient
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil {
			if !taskClient.Stop(ctx) {
				log.Printf("Task workers did not finish before the shutdown deadline")
			}
			taskCancel()
		}
		authController.Stop()
		sessionManager.Close()
		auditService.Wait()
	}

	Serve(router, cfg, onShutdown)
}
