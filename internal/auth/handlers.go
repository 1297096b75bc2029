package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

// Audit actions recorded by the controller.
const (
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionSetup  = "setup"
)

// setupMutex serializes setup requests to prevent race conditions.
var setupMutex sync.Mutex

// Auditor records authentication events.
type Auditor interface {
	LogAuth(ctx context.Context, userID uint, action string, success bool)
}

type noopAuditor struct{}

func (noopAuditor) LogAuth(context.Context, uint, string, bool) {}

// AuthController handles authentication-related HTTP endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	rateLimiter    *RateLimiter
	auditor        Auditor
}

// NewAuthController creates a new authentication controller.
// sessionManager and auditor may be nil.
func NewAuthController(service *Service, sessionManager *SessionManager, auditor Auditor, cfg config.Auth) *AuthController {
	if auditor == nil {
		auditor = noopAuditor{}
	}

	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		auditor:        auditor,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	router.POST("/api/auth/login", ac.Login)
	router.POST("/api/auth/logout", ac.Logout)
	router.POST("/api/auth/token", ac.Token)
	router.GET("/api/auth/me", ac.Me)
	router.PUT("/api/auth/password", ac.ChangePassword)
	router.GET("/api/auth/csrf", ac.CSRF)
	router.POST("/api/setup", ac.Setup)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type setupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// TokenResponse is returned by login, setup and token refresh.
type TokenResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *entities.User `json:"user"`
}

// Login authenticates credentials, starts a browser session when sessions
// are enabled and returns a bearer token.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "login and password are required", "invalid_request")
		return
	}
	clientIP := c.ClientIP()

	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, req.Login); !allowed {
		c.Header("Retry-After", retryAfter.String())
		abortJSON(c, http.StatusTooManyRequests, "too many login attempts", "rate_limited")
		return
	}

	user, err := ac.service.Authenticate(req.Login, req.Password)
	if err != nil {
		ac.rateLimiter.RecordFailure(clientIP, req.Login)
		ac.auditor.LogAuth(c.Request.Context(), 0, ActionLogin, false)

		switch {
		case errors.Is(err, ErrAccountLocked):
			abortJSON(c, http.StatusLocked, "account is locked, try again later", "account_locked")
		case errors.Is(err, ErrUserInactive):
			abortJSON(c, http.StatusForbidden, "account is inactive", "user_inactive")
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInvalidPassword):
			abortJSON(c, http.StatusUnauthorized, "invalid credentials", "invalid_credentials")
		default:
			log.Printf("Login failed: %v", err)
			abortJSON(c, http.StatusInternalServerError, "login failed", "internal")
		}
		return
	}

	ac.rateLimiter.RecordSuccess(clientIP, req.Login)
	ac.auditor.LogAuth(c.Request.Context(), user.ID, ActionLogin, true)
	if ac.startSession(c, user) {
		ac.respondWithToken(c, http.StatusOK, user)
	}
}

// Logout destroys the browser session. Bearer tokens expire on their own.
func (ac *AuthController) Logout(c *gin.Context) {
	if ac.sessionManager != nil {
		if err := ac.sessionManager.DestroySession(c.Request); err != nil {
			log.Printf("Failed to destroy session: %v", err)
		}
	}
	ac.auditor.LogAuth(c.Request.Context(), GetUserID(c), ActionLogout, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Token issues a fresh bearer token for the authenticated user.
func (ac *AuthController) Token(c *gin.Context) {
	user, ok := ac.currentUser(c)
	if !ok {
		return
	}
	ac.respondWithToken(c, http.StatusOK, user)
}

// Me returns the authenticated account.
func (ac *AuthController) Me(c *gin.Context) {
	user, ok := ac.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the authenticated user's password.
func (ac *AuthController) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "current_password and new_password are required", "invalid_request")
		return
	}

	err := ac.service.ChangePassword(GetUserID(c), req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	case errors.Is(err, ErrInvalidPassword):
		abortJSON(c, http.StatusUnauthorized, "current password is incorrect", "invalid_credentials")
	case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
		abortJSON(c, http.StatusBadRequest, err.Error(), "invalid_password")
	case errors.Is(err, ErrUserNotFound):
		abortJSON(c, http.StatusUnauthorized, "authentication required", "unauthenticated")
	default:
		log.Printf("Failed to change password for user %d: %v", GetUserID(c), err)
		abortJSON(c, http.StatusInternalServerError, "failed to change password", "internal")
	}
}

// CSRF returns the token browser clients must echo in the X-CSRF-Token header.
func (ac *AuthController) CSRF(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"csrf_token": GetCSRFToken(c), "header": CSRFTokenHeader})
}

// Setup creates the first administrator account. It is only available
// while no users exist.
func (ac *AuthController) Setup(c *gin.Context) {
	// Serialize so that concurrent requests cannot both pass HasUsers()
	setupMutex.Lock()
	defer setupMutex.Unlock()

	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		log.Printf("Setup failed to count users: %v", err)
		abortJSON(c, http.StatusInternalServerError, "database error", "internal")
		return
	}
	if hasUsers {
		abortJSON(c, http.StatusConflict, ErrSetupCompleted.Error(), "setup_completed")
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "username, email and password are required", "invalid_request")
		return
	}

	user, err := ac.service.CreateUser(req.Username, req.Email, req.Password, entities.UserRoleAdmin)
	if err != nil {
		if status, code, ok := UserErrorStatus(err); ok {
			abortJSON(c, status, err.Error(), code)
			return
		}
		log.Printf("Setup failed to create admin: %v", err)
		abortJSON(c, http.StatusInternalServerError, "failed to create user", "internal")
		return
	}

	log.Printf("Initial admin %q created", user.Username)
	ac.auditor.LogAuth(c.Request.Context(), user.ID, ActionSetup, true)
	if ac.startSession(c, user) {
		ac.respondWithToken(c, http.StatusCreated, user)
	}
}

// UserErrorStatus maps account validation failures to a status and code.
func UserErrorStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, ErrUserExists):
		return http.StatusConflict, "user_exists", true
	case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
		return http.StatusBadRequest, "invalid_password", true
	case errors.Is(err, ErrUsernameRequired), errors.Is(err, ErrUsernameInvalid):
		return http.StatusBadRequest, "invalid_username", true
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrEmailInvalid):
		return http.StatusBadRequest, "invalid_email", true
	case errors.Is(err, ErrPasswordRequired):
		return http.StatusBadRequest, "invalid_password", true
	case errors.Is(err, ErrInvalidRole):
		return http.StatusBadRequest, "invalid_role", true
	}
	return 0, "", false
}

func (ac *AuthController) currentUser(c *gin.Context) (*entities.User, bool) {
	user, err := ac.service.GetUserByID(GetUserID(c))
	if err != nil {
		abortJSON(c, http.StatusUnauthorized, "authentication required", "unauthenticated")
		return nil, false
	}
	return user, true
}

// startSession creates a browser session when sessions are enabled.
func (ac *AuthController) startSession(c *gin.Context, user *entities.User) bool {
	if ac.sessionManager == nil {
		return true
	}
	if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
		log.Printf("Failed to create session for user %d: %v", user.ID, err)
		abortJSON(c, http.StatusInternalServerError, "failed to create session", "internal")
		return false
	}
	return true
}

func (ac *AuthController) respondWithToken(c *gin.Context, status int, user *entities.User) {
	token, expiresAt, err := ac.service.IssueToken(user)
	if err != nil {
		log.Printf("Failed to issue token for user %d: %v", user.ID, err)
		abortJSON(c, http.StatusInternalServerError, "failed to issue token", "internal")
		return
	}

	c.JSON(status, TokenResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func abortJSON(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
