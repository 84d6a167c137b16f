package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/auth"
)

// bearerToken pulls the token from the Authorization header. Browsers
// cannot set headers on a websocket handshake, so upgrade requests may pass
// it as the access_token query parameter instead.
func bearerToken(c echo.Context) (string, bool) {
	req := c.Request()
	header := req.Header.Get(echo.HeaderAuthorization)
	if header == "" && strings.EqualFold(req.Header.Get(echo.HeaderUpgrade), "websocket") {
		tok := c.QueryParam("access_token")
		return tok, tok != ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// JWT verifies the bearer token and stores the caller's "address" and
// "role" in the context.
func JWT(issuer *auth.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or malformed Authorization header"})
			}
			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set("address", claims.Address)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}
