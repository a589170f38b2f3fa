package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testController() *Controller {
	return &Controller{
		AdminToken: "test-token",
		JWTSecret:  []byte("test-secret"),
	}
}

func TestValidateToken(t *testing.T) {
	c := testController()

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
	assert.False(t, c.ValidateToken(r))

	r.Header.Set("Authorization", "Bearer test-token")
	assert.True(t, c.ValidateToken(r))

	r.Header.Set("Authorization", "Bearer wrong")
	assert.False(t, c.ValidateToken(r))

	r.Header.Set("Authorization", "test-token")
	assert.False(t, c.ValidateToken(r))
}

func TestSessionCookieRoundTrip(t *testing.T) {
	c := testController()

	rec := httptest.NewRecorder()
	c.IssueSession(rec, "operator")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "gx_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
	r.AddCookie(cookies[0])
	assert.True(t, c.ValidateSessionCookie(r))
	assert.Equal(t, "operator", c.currentUser(r))

	// A cookie signed with a different secret is rejected.
	other := &Controller{JWTSecret: []byte("another-secret")}
	assert.False(t, other.ValidateSessionCookie(r))
}

func TestRequireAuth(t *testing.T) {
	c := testController()

	var called bool
	handler := c.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
	r.Header.Set("Authorization", "Bearer test-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	// Session cookies pass the same gate.
	issued := httptest.NewRecorder()
	c.IssueSession(issued, "operator")
	r = httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
	r.AddCookie(issued.Result().Cookies()[0])
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCurrentUserToken(t *testing.T) {
	c := testController()

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
	r.Header.Set("Authorization", "Bearer test-token")
	assert.Equal(t, "api-token", c.currentUser(r))

	r = httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil)
	assert.Equal(t, "unknown", c.currentUser(r))
}

func TestLogoutClearsCookie(t *testing.T) {
	c := testController()

	rec := httptest.NewRecorder()
	c.HandleAdminLogout(rec, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "gx_session", cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
