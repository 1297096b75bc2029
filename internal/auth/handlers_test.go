package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/entities"
)

type authEvent struct {
	userID  uint
	action  string
	success bool
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []authEvent
}

func (a *recordingAuditor) LogAuth(_ context.Context, userID uint, action string, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, authEvent{userID, action, success})
}

func decodeToken(t *testing.T, body []byte) TokenResponse {
	t.Helper()
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	return resp
}

func TestAuthController_Setup(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(t)

	body := `{"username":"root","email":"root@example.com","password":"` + testPassword + `"}`
	w := doJSON(r, http.MethodPost, "/api/setup", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeToken(t, w.Body.Bytes())
	assert.Equal(t, entities.UserRoleAdmin, resp.User.Role)
	assert.NotContains(t, w.Body.String(), "password_hash")

	// The issued token works right away
	w = doJSON(r, http.MethodGet, "/api/auth/me", "", bearer(resp.Token))
	assert.Equal(t, http.StatusOK, w.Code)

	// Second setup is refused
	body = `{"username":"intruder","email":"x@example.com","password":"` + testPassword + `"}`
	w = doJSON(r, http.MethodPost, "/api/setup", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"setup_completed"`)
}

func TestAuthController_SetupValidation(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing fields", `{"username":"root"}`, "invalid_request"},
		{"short password", `{"username":"root","email":"root@example.com","password":"short"}`, "invalid_password"},
		{"bad username", `{"username":"r","email":"root@example.com","password":"` + testPassword + `"}`, "invalid_username"},
		{"bad email", `{"username":"root","email":"nope","password":"` + testPassword + `"}`, "invalid_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/setup", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.wantCode+`"`)
		})
	}

	has, err := env.service.HasUsers()
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAuthController_SetupConcurrent(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(t)

	var wg sync.WaitGroup
	codes := make(chan int, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "root" + string(rune('a'+i))
			body := `{"username":"` + name + `","email":"` + name + `@example.com","password":"` + testPassword + `"}`
			codes <- doJSON(r, http.MethodPost, "/api/setup", body, nil).Code
		}(i)
	}
	wg.Wait()
	close(codes)

	created := 0
	for code := range codes {
		if code == http.StatusCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestAuthController_Login(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", entities.UserRoleMember)

	auditor := &recordingAuditor{}
	controller := NewAuthController(env.service, env.sessions, auditor, env.cfg)
	t.Cleanup(controller.Stop)
	r := gin.New()
	r.Use(env.sessions.Middleware())
	r.Use(NewMiddleware(env.service, env.sessions).Handler())
	controller.RegisterRoutes(r)

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"wrong-password-123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"invalid_credentials"`)

	w = doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"nobody","password":"wrong-password-123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unknown users look like bad passwords")

	w = doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"`+testPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeToken(t, w.Body.Bytes())
	assert.Equal(t, user.ID, resp.User.ID)

	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	require.Len(t, auditor.events, 3)
	assert.False(t, auditor.events[0].success)
	assert.Equal(t, authEvent{user.ID, ActionLogin, true}, auditor.events[2])
}

func TestAuthController_LoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", entities.UserRoleMember)
	r := env.router(t)

	for i := 0; i < env.cfg.MaxLoginAttempts; i++ {
		w := doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"wrong-password-123"}`, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"`+testPassword+`"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAuthController_LoginLockedAccount(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", entities.UserRoleMember)
	r := env.router(t)

	// Exhaust the account counter directly so the per-IP limiter stays open
	for i := 0; i < env.cfg.MaxLoginAttempts; i++ {
		_, err := env.service.Authenticate("alice", "wrong-password-123")
		require.Error(t, err)
	}

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"`+testPassword+`"}`, nil)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"account_locked"`)
}

func TestAuthController_LoginInactive(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", entities.UserRoleMember)
	_, err := env.service.SetActive(user.ID, false)
	require.NoError(t, err)
	r := env.router(t)

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"`+testPassword+`"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthController_TokenAndMe(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", entities.UserRoleMember)
	r := env.router(t)
	token := env.token(t, user)

	w := doJSON(r, http.MethodPost, "/api/auth/token", "", bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	refreshed := decodeToken(t, w.Body.Bytes())

	w = doJSON(r, http.MethodGet, "/api/auth/me", "", bearer(refreshed.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	w = doJSON(r, http.MethodPost, "/api/auth/token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthController_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", entities.UserRoleMember)
	r := env.router(t)
	token := env.token(t, user)

	w := doJSON(r, http.MethodPut, "/api/auth/password",
		`{"current_password":"wrong-password-123","new_password":"brand-new-password"}`, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPut, "/api/auth/password",
		`{"current_password":"`+testPassword+`","new_password":"short"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/api/auth/password",
		`{"current_password":"`+testPassword+`","new_password":"brand-new-password"}`, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)

	_, err := env.service.Authenticate("alice", "brand-new-password")
	assert.NoError(t, err)
}
