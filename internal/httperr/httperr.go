// Package httperr renders escrow failures as HTTP responses.
package httperr

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/escrow"
)

// Status maps an escrow error code to an HTTP status.
func Status(code escrow.Code) int {
	switch code {
	case escrow.CodeNotFound:
		return http.StatusNotFound
	case escrow.CodeInvalidParty, escrow.CodeInvalidAmount:
		return http.StatusBadRequest
	case escrow.CodeNotApproved, escrow.CodeAlreadyReleased:
		return http.StatusConflict
	case escrow.CodeAuthority:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Escrow writes err as {"error", "code"}. Server-side failures are logged
// with the request id and their details are kept out of the body.
func Escrow(c echo.Context, logger *slog.Logger, err error) error {
	code := escrow.CodeOf(err)
	status := Status(code)
	msg := err.Error()

	var e *escrow.Error
	if status >= http.StatusInternalServerError {
		logger.Error("escrow request failed",
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"path", c.Path(),
			"code", code,
			"error", err,
		)
		msg = "escrow operation failed"
		if errors.As(err, &e) && e.Reason != "" {
			msg = "authority rejected the operation: " + e.Reason
		}
	}
	return c.JSON(status, echo.Map{"error": msg, "code": string(code)})
}

// ParseAmount reads a non-negative integer amount given either as a JSON
// number or as a decimal string.
func ParseAmount(raw []byte) (*big.Int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
