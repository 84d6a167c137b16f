package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/escrow"
	"github.com/sudo-init-do/mintaro/internal/httperr"
)

// CreateJob - the caller opens a job with a freelancer. No funds move.
func (h *Handler) CreateJob(c echo.Context) error {
	client, ok := caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req := new(CreateJobRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	job, err := h.engine.CreateJob(c.Request().Context(), client, escrow.Address(req.Freelancer))
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, job)
}

// GetJob returns a job with its milestones.
func (h *Handler) GetJob(c echo.Context) error {
	id, ok := jobParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	ctx := c.Request().Context()
	job, err := h.engine.GetJob(ctx, id)
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}

	milestones := make([]escrow.Milestone, 0, job.MilestoneCount)
	for m := escrow.MilestoneID(1); uint64(m) <= job.MilestoneCount; m++ {
		ms, err := h.engine.GetMilestone(ctx, id, m)
		if err != nil {
			return httperr.Escrow(c, h.logger, err)
		}
		milestones = append(milestones, ms)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": job, "milestones": milestones})
}
