package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
)

const testPassword = "correct-horse-battery"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	db       *database.Database
	repo     *users.Repository
	service  *Service
	sessions *SessionManager
	cfg      config.Auth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewSilentDatabase(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Auth{
		BcryptCost:       bcrypt.MinCost,
		SessionLifetime:  time.Hour,
		TokenExpiry:      time.Hour,
		MaxLoginAttempts: 3,
		RateLimitWindow:  15 * time.Minute,
		LockoutDuration:  30 * time.Minute,
	}

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sm, err := NewSessionManager(sqlDB, cfg)
	require.NoError(t, err)
	t.Cleanup(sm.Close)

	repo := users.NewRepository(db.DB)
	return &testEnv{
		db:       db,
		repo:     repo,
		service:  NewService(repo, NewTokenIssuer("test-secret", cfg.TokenExpiry), cfg),
		sessions: sm,
		cfg:      cfg,
	}
}

func (e *testEnv) createUser(t *testing.T, username string, role entities.UserRole) *entities.User {
	t.Helper()
	user, err := e.service.CreateUser(username, username+"@example.com", testPassword, role)
	require.NoError(t, err)
	return user
}

func (e *testEnv) token(t *testing.T, user *entities.User) string {
	t.Helper()
	token, _, err := e.service.IssueToken(user)
	require.NoError(t, err)
	return token
}

// router wires sessions, authentication and the auth controller the way
// the server does, minus CSRF.
func (e *testEnv) router(t *testing.T) *gin.Engine {
	t.Helper()

	controller := NewAuthController(e.service, e.sessions, nil, e.cfg)
	t.Cleanup(controller.Stop)

	r := gin.New()
	r.Use(e.sessions.Middleware())
	r.Use(NewMiddleware(e.service, e.sessions).Handler())
	controller.RegisterRoutes(r)
	return r
}

func doJSON(r http.Handler, method, path, body string, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
