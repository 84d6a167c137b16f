// Package auth signs parties in with their wallet and issues access tokens.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/address"
)

type ChallengeRequest struct {
	Address string `json:"address"`
}

type ChallengeResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest carries the challenge message exactly as it was signed.
type LoginRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler serves the sign-in routes.
type Handler struct {
	challenges *Challenges
	issuer     *Issuer
	admins     map[string]bool
	logger     *slog.Logger
}

// NewHandler creates the sign-in handler. admins must already be valid
// addresses; they are normalized here.
func NewHandler(challenges *Challenges, issuer *Issuer, admins []string, logger *slog.Logger) *Handler {
	h := &Handler{
		challenges: challenges,
		issuer:     issuer,
		admins:     make(map[string]bool, len(admins)),
		logger:     logger,
	}
	for _, a := range admins {
		if norm, err := address.Normalize(a); err == nil {
			h.admins[norm] = true
		}
	}
	return h
}

// ===== Challenge =====
func (h *Handler) Challenge(c echo.Context) error {
	req := new(ChallengeRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	addr, err := address.Normalize(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	msg, exp, err := h.challenges.Issue(addr)
	if err != nil {
		h.logger.Error("challenge generation failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "challenge generation failed"})
	}
	return c.JSON(http.StatusOK, ChallengeResponse{Message: msg, ExpiresAt: exp})
}

// ===== Login =====
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	addr, err := address.Normalize(req.Address)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.challenges.Verify(addr, req.Message, req.Signature); err != nil {
		if errors.Is(err, ErrNoChallenge) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "challenge missing or expired"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	role := RoleUser
	if h.admins[addr] {
		role = RoleAdmin
	}
	token, exp, err := h.issuer.Issue(addr, role)
	if err != nil {
		h.logger.Error("token generation failed", "address", addr, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	h.logger.Info("party signed in", "address", addr, "role", role)
	return c.JSON(http.StatusOK, LoginResponse{Token: token, Address: addr, Role: role, ExpiresAt: exp})
}

// Me returns the authenticated caller as set by the JWT middleware.
func (h *Handler) Me(c echo.Context) error {
	addr, _ := c.Get("address").(string)
	if addr == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role, _ := c.Get("role").(string)
	return c.JSON(http.StatusOK, echo.Map{"address": addr, "role": role})
}
