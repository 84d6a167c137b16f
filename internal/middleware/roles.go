package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/auth"
)

// RequireRoles lets a request through only when the role JWT stored for the
// caller is one of roles.
//
//	g.Use(RequireRoles(auth.RoleUser, auth.RoleAdmin))
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return requireRoles("role not permitted for this route", roles...)
}

// AdminGuard restricts a group to callers signed in with an admin address.
var AdminGuard = requireRoles("admin access only", auth.RoleAdmin)

func requireRoles(denied string, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" || !slices.Contains(roles, role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": denied, "code": "forbidden"})
			}
			return next(c)
		}
	}
}
