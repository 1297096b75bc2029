package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/entities"
)

// Audit actions for account administration.
const (
	ActionUserCreate     = "user_create"
	ActionUserActivate   = "user_activate"
	ActionUserDeactivate = "user_deactivate"
)

// UserAuditor records account administration events.
type UserAuditor interface {
	LogUser(ctx context.Context, userID uint, action string, targetID uint, description string, err error)
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Username string            `json:"username" binding:"required"`
	Email    string            `json:"email" binding:"required"`
	Password string            `json:"password" binding:"required"`
	Role     entities.UserRole `json:"role"`
}

// SetActiveRequest is the body of PUT /api/users/:id/active.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// UsersController exposes account administration to admins.
type UsersController struct {
	authService *auth.Service
	auditor     UserAuditor
}

func NewUsersController(authService *auth.Service, auditor UserAuditor) *UsersController {
	return &UsersController{authService: authService, auditor: auditor}
}

// CreateUser handles POST /api/users
// Role defaults to member.
func (uc *UsersController) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if req.Role == "" {
		req.Role = entities.UserRoleMember
	}

	user, err := uc.authService.CreateUser(req.Username, req.Email, req.Password, req.Role)
	uc.log(c, ActionUserCreate, user, fmt.Sprintf("Created %s account %q", req.Role, req.Username), err)
	if err != nil {
		if status, code, ok := auth.UserErrorStatus(err); ok {
			respondError(c, status, err.Error(), code)
			return
		}
		respondInternalError(c, err, "create user")
		return
	}
	respondCreated(c, user)
}

// ListUsers handles GET /api/users
func (uc *UsersController) ListUsers(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	users, total, err := uc.authService.ListUsers(limit, offset)
	if err != nil {
		respondInternalError(c, err, "list users")
		return
	}
	respondPage(c, users, total, limit, offset, len(users))
}

// GetUser handles GET /api/users/:id
func (uc *UsersController) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := uc.authService.GetUserByID(id)
	if errors.Is(err, auth.ErrUserNotFound) {
		respondNotFound(c, "user")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetActive handles PUT /api/users/:id/active
// Deactivated users cannot log in or borrow; their open loans are untouched.
func (uc *UsersController) SetActive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if !*req.Active && id == auth.GetUserID(c) {
		respondBadRequest(c, "cannot deactivate your own account")
		return
	}

	action := ActionUserDeactivate
	if *req.Active {
		action = ActionUserActivate
	}

	user, err := uc.authService.SetActive(id, *req.Active)
	uc.log(c, action, &entities.User{ID: id}, fmt.Sprintf("Set user %d active=%t", id, *req.Active), err)
	if errors.Is(err, auth.ErrUserNotFound) {
		respondNotFound(c, "user")
		return
	}
	if err != nil {
		respondInternalError(c, err, "set user active")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UsersController) log(c *gin.Context, action string, target *entities.User, description string, err error) {
	if uc.auditor == nil {
		return
	}
	var targetID uint
	if target != nil {
		targetID = target.ID
	}
	uc.auditor.LogUser(c.Request.Context(), auth.GetUserID(c), action, targetID, description, err)
}
