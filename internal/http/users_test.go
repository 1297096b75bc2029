package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/entities"
)

func TestUsersController_CreateUser(t *testing.T) {
	s := newTestServer(t)

	t.Run("defaults to member role", func(t *testing.T) {
		w := s.do(t, s.admin, "POST", "/api/users",
			`{"username":"carol","email":"carol@example.com","password":"long-enough-password"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		user := decode[entities.User](t, w)
		assert.Equal(t, "carol", user.Username)
		assert.Equal(t, entities.UserRoleMember, user.Role)
		assert.True(t, user.Active)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("duplicate username", func(t *testing.T) {
		w := s.do(t, s.admin, "POST", "/api/users",
			`{"username":"carol","email":"other@example.com","password":"long-enough-password"}`)
		assertError(t, w, http.StatusConflict, "user_exists")
	})

	t.Run("invalid role", func(t *testing.T) {
		w := s.do(t, s.admin, "POST", "/api/users",
			`{"username":"dave","email":"dave@example.com","password":"long-enough-password","role":"owner"}`)
		assertError(t, w, http.StatusBadRequest, "invalid_role")
	})

	t.Run("members cannot create users", func(t *testing.T) {
		w := s.do(t, s.alice, "POST", "/api/users",
			`{"username":"erin","email":"erin@example.com","password":"long-enough-password"}`)
		assertError(t, w, http.StatusForbidden, "forbidden")
	})
}

func TestUsersController_ListAndGet(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, s.admin, "GET", "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[page[entities.User]](t, w).Total)

	w = s.do(t, s.admin, "GET", fmt.Sprintf("/api/users/%d", s.bob.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", decode[entities.User](t, w).Username)

	w = s.do(t, s.admin, "GET", "/api/users/999", "")
	assertError(t, w, http.StatusNotFound, "not_found")
}

func TestUsersController_SetActive(t *testing.T) {
	s := newTestServer(t)
	book := s.addBook(t, "9780000000001", 2)
	loan := s.borrow(t, s.bob, book)

	w := s.do(t, s.admin, "PUT", fmt.Sprintf("/api/users/%d/active", s.bob.ID), `{"active":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[entities.User](t, w).Active)

	// Bearer tokens of a deactivated account stop working immediately.
	w = s.do(t, s.bob, "GET", "/api/loans", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The open loan is untouched and can still be handled by staff.
	w = s.do(t, s.admin, "GET", fmt.Sprintf("/api/loans/%d", loan.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entities.LoanStatusBorrowed, decode[LoanResponse](t, w).Status)

	w = s.do(t, s.admin, "PUT", fmt.Sprintf("/api/users/%d/active", s.bob.ID), `{"active":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	s.borrow(t, s.bob, s.addBook(t, "9780000000002", 1))

	t.Run("admins cannot lock themselves out", func(t *testing.T) {
		w := s.do(t, s.admin, "PUT", fmt.Sprintf("/api/users/%d/active", s.admin.ID), `{"active":false}`)
		assertError(t, w, http.StatusBadRequest, "invalid_request")
	})

	t.Run("active is required", func(t *testing.T) {
		w := s.do(t, s.admin, "PUT", fmt.Sprintf("/api/users/%d/active", s.bob.ID), `{}`)
		assertError(t, w, http.StatusBadRequest, "invalid_request")
	})

	t.Run("unknown user", func(t *testing.T) {
		w := s.do(t, s.admin, "PUT", "/api/users/999/active", `{"active":true}`)
		assertError(t, w, http.StatusNotFound, "not_found")
	})
}
