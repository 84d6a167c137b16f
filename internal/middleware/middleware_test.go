package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/mintaro/internal/auth"
)

const caller = "0x1111111111111111111111111111111111111111"

func newServer(issuer *auth.Issuer) *echo.Echo {
	e := echo.New()
	g := e.Group("")
	g.Use(JWT(issuer))
	g.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"address": c.Get("address"), "role": c.Get("role")})
	})
	g.GET("/users", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRoles(auth.RoleUser))
	admin := e.Group("/admin")
	admin.Use(JWT(issuer))
	admin.Use(AdminGuard)
	admin.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func do(e *echo.Echo, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, issuer *auth.Issuer, role string) string {
	t.Helper()
	tok, _, err := issuer.Issue(caller, role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestJWT(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	e := newServer(issuer)

	rec := do(e, "/me", token(t, issuer, auth.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"address":"`+caller+`","role":"user"}`, rec.Body.String())

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"garbage", "Bearer not.a.jwt"},
		{"foreign secret", token(t, auth.NewIssuer("other", time.Hour), auth.RoleUser)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, do(e, "/me", tt.header).Code)
		})
	}
}

func TestJWT_QueryTokenOnlyForUpgrades(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	e := newServer(issuer)
	tok, _, err := issuer.Issue(caller, auth.RoleUser)
	require.NoError(t, err)

	rec := do(e, "/me?access_token="+tok, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me?access_token="+tok, nil)
	req.Header.Set(echo.HeaderUpgrade, "websocket")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	e := newServer(issuer)

	assert.Equal(t, http.StatusNoContent, do(e, "/users", token(t, issuer, auth.RoleUser)).Code)
	assert.Equal(t, http.StatusForbidden, do(e, "/users", token(t, issuer, auth.RoleAdmin)).Code)
	assert.Equal(t, http.StatusForbidden, do(e, "/users", token(t, issuer, "")).Code)
}

func TestAdminGuard(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	e := newServer(issuer)

	assert.Equal(t, http.StatusNoContent, do(e, "/admin/ping", token(t, issuer, auth.RoleAdmin)).Code)
	rec := do(e, "/admin/ping", token(t, issuer, auth.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin access only")
	assert.Equal(t, http.StatusUnauthorized, do(e, "/admin/ping", "").Code)
}
