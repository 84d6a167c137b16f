package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/httperr"
)

// FundMilestone - the job's client creates a milestone and locks its amount.
func (h *Handler) FundMilestone(c echo.Context) error {
	job, ok, err := h.clientJob(c)
	if !ok {
		return err
	}
	req := new(FundMilestoneRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	amount, ok := httperr.ParseAmount(req.Amount)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a non-negative integer", "code": "INVALID_AMOUNT"})
	}

	m, err := h.engine.CreateMilestone(c.Request().Context(), job.ID, amount)
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// GetMilestone returns one milestone.
func (h *Handler) GetMilestone(c echo.Context) error {
	id, ok := jobParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	mid, ok := milestoneParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid milestone id"})
	}
	m, err := h.engine.GetMilestone(c.Request().Context(), id, mid)
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ApproveMilestone - the job's client approves a milestone for release.
func (h *Handler) ApproveMilestone(c echo.Context) error {
	job, ok, err := h.clientJob(c)
	if !ok {
		return err
	}
	mid, ok := milestoneParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid milestone id"})
	}
	m, err := h.engine.ApproveMilestone(c.Request().Context(), job.ID, mid)
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ReleasePayment - the job's client releases an approved milestone to the
// freelancer's balance.
func (h *Handler) ReleasePayment(c echo.Context) error {
	job, ok, err := h.clientJob(c)
	if !ok {
		return err
	}
	mid, ok := milestoneParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid milestone id"})
	}
	r, err := h.engine.ReleasePayment(c.Request().Context(), job.ID, mid)
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "payment released", "release": r})
}
