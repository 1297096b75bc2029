package auth

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
)

// Validation patterns
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrUserInactive     = errors.New("user account is inactive")
	ErrAuthRequired     = errors.New("authentication required")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUsernameRequired = errors.New("username is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid     = errors.New("invalid email format")
	ErrSetupCompleted   = errors.New("setup already completed")
)

// UserRepository defines the user storage the service depends on.
type UserRepository interface {
	CreateUser(user *entities.User) error
	GetUserByID(id uint) (*entities.User, error)
	GetUserByUsername(username string) (*entities.User, error)
	GetUserByEmail(email string) (*entities.User, error)
	ListUsers(limit, offset int) ([]entities.User, int64, error)
	CountUsers() (int64, error)
	SetActive(id uint, active bool) error
	UpdatePassword(id uint, hash string) error
	RecordFailedLogin(id uint, maxAttempts int, lockUntil time.Time) error
	RecordSuccessfulLogin(id uint, at time.Time) error
}

// Service handles authentication and user management.
type Service struct {
	users  UserRepository
	tokens *TokenIssuer
	config config.Auth
}

// NewService creates a new authentication service.
func NewService(repo UserRepository, tokens *TokenIssuer, cfg config.Auth) *Service {
	return &Service{
		users:  repo,
		tokens: tokens,
		config: cfg,
	}
}

// CreateUser creates a new user with password authentication.
func (s *Service) CreateUser(username, email, password string, role entities.UserRole) (*entities.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	// Validate username format: 3-64 chars, alphanumeric + underscore/hyphen
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}

	// Validate email format and length (RFC 5321 limit is 254)
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, ErrEmailInvalid
	}

	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
	}

	if err := s.users.CreateUser(user); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate validates credentials and returns the user.
// Implements account lockout after too many failed attempts.
func (s *Service) Authenticate(login, password string) (*entities.User, error) {
	user, err := s.lookup(strings.TrimSpace(login))
	if err != nil {
		return nil, err
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(user)
		return nil, err
	}

	if !user.Active {
		return nil, ErrUserInactive
	}

	now := time.Now()
	if err := s.users.RecordSuccessfulLogin(user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now
	user.FailedLoginCount = 0
	user.LockedUntil = nil

	return user, nil
}

func (s *Service) lookup(login string) (*entities.User, error) {
	var (
		user *entities.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetUserByEmail(strings.ToLower(login))
	} else {
		user, err = s.users.GetUserByUsername(login)
	}
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// recordFailedLogin increments the failed login counter and locks the account if threshold reached.
func (s *Service) recordFailedLogin(user *entities.User) {
	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	lockoutDuration := s.config.LockoutDuration
	if lockoutDuration <= 0 {
		lockoutDuration = 30 * time.Minute
	}

	if err := s.users.RecordFailedLogin(user.ID, maxAttempts, time.Now().Add(lockoutDuration)); err != nil {
		// Login still fails; only the counter is lost.
		log.Printf("Failed to record failed login for user %d: %v", user.ID, err)
	}
}

// IssueToken returns a bearer access token for user.
func (s *Service) IssueToken(user *entities.User) (string, time.Time, error) {
	return s.tokens.Issue(user)
}

// ValidateToken checks a bearer token and returns the associated user.
// The role is taken from the stored account, not the token, so that
// demotions and deactivations apply immediately.
func (s *Service) ValidateToken(token string) (*entities.User, error) {
	id, _, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.users.GetUserByID(id)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns a page of accounts.
func (s *Service) ListUsers(limit, offset int) ([]entities.User, int64, error) {
	return s.users.ListUsers(limit, offset)
}

// SetActive enables or disables an account.
func (s *Service) SetActive(id uint, active bool) (*entities.User, error) {
	if err := s.users.SetActive(id, active); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByID(id)
}

// ChangePassword updates a user's password.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}

	return s.users.UpdatePassword(userID, newHash)
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers() (bool, error) {
	count, err := s.users.CountUsers()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
