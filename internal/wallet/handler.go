// Package wallet serves balance and withdrawal routes.
package wallet

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/escrow"
	"github.com/sudo-init-do/mintaro/internal/httperr"
)

type Handler struct {
	engine *escrow.Engine
	logger *slog.Logger
}

func NewHandler(engine *escrow.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/wallet/balance", h.Balance)
	g.GET("/wallet/balance/:address", h.BalanceOf)
	g.POST("/wallet/withdraw", h.Withdraw)
}

// Balance returns the caller's withdrawable balance
func (h *Handler) Balance(c echo.Context) error {
	addr, _ := c.Get("address").(string)
	if addr == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.balance(c, addr)
}

// BalanceOf returns any party's withdrawable balance
func (h *Handler) BalanceOf(c echo.Context) error {
	return h.balance(c, c.Param("address"))
}

func (h *Handler) balance(c echo.Context, raw string) error {
	addr, err := escrow.ParseAddress(raw)
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	bal, err := h.engine.BalanceOf(c.Request().Context(), addr)
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"address": addr,
		"balance": escrow.AmountOf(bal),
	})
}

// Withdraw pays out the caller's whole balance. An empty balance withdraws 0.
func (h *Handler) Withdraw(c echo.Context) error {
	addr, _ := c.Get("address").(string)
	if addr == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	amount, err := h.engine.Withdraw(c.Request().Context(), escrow.Address(addr))
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "withdrawal completed",
		"address": addr,
		"amount":  escrow.AmountOf(amount),
	})
}
