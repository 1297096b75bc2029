package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/entities"
)

func TestSessionManager_Config(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, "librarian_session", env.sessions.Cookie.Name)
	assert.True(t, env.sessions.Cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, env.sessions.Cookie.SameSite)
	assert.Equal(t, env.cfg.SessionLifetime, env.sessions.Lifetime)
}

func TestSession_LoginMeLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", entities.UserRoleMember)
	r := env.router(t)

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"`+testPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookie := findCookie(w, env.sessions.Cookie.Name)
	require.NotNil(t, cookie, "login should set a session cookie")

	w = doJSON(r, http.MethodGet, "/api/auth/me", "", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	w = doJSON(r, http.MethodPost, "/api/auth/logout", "", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/auth/me", "", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_DeactivatedUserLosesAccess(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", entities.UserRoleMember)
	r := env.router(t)

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"login":"alice","password":"`+testPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := findCookie(w, env.sessions.Cookie.Name)
	require.NotNil(t, cookie)

	_, err := env.service.SetActive(user.ID, false)
	require.NoError(t, err)

	w = doJSON(r, http.MethodGet, "/api/auth/me", "", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_UnknownCookie(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(t)

	w := doJSON(r, http.MethodGet, "/api/auth/me", "", nil, &http.Cookie{Name: env.sessions.Cookie.Name, Value: "bogus"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
