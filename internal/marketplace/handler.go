// Package marketplace serves the job and milestone routes.
package marketplace

import (
	"log/slog"
	"net/http"
	"strconv"

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

func caller(c echo.Context) (escrow.Address, bool) {
	addr, ok := c.Get("address").(string)
	if !ok || addr == "" {
		return "", false
	}
	return escrow.Address(addr), true
}

func jobParam(c echo.Context) (escrow.JobID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return escrow.JobID(id), true
}

func milestoneParam(c echo.Context) (escrow.MilestoneID, bool) {
	id, err := strconv.ParseUint(c.Param("mid"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return escrow.MilestoneID(id), true
}

// clientJob loads the job in the path and checks that the caller is its
// client. It writes the response itself when ok is false.
func (h *Handler) clientJob(c echo.Context) (job escrow.Job, ok bool, err error) {
	who, ok := caller(c)
	if !ok {
		return escrow.Job{}, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := jobParam(c)
	if !ok {
		return escrow.Job{}, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	job, err = h.engine.GetJob(c.Request().Context(), id)
	if err != nil {
		return escrow.Job{}, false, httperr.Escrow(c, h.logger, err)
	}
	if job.Client != who {
		return escrow.Job{}, false, c.JSON(http.StatusForbidden, echo.Map{"error": "only the job's client can do this"})
	}
	return job, true, nil
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/jobs", h.CreateJob)
	g.GET("/jobs/:id", h.GetJob)
	g.POST("/jobs/:id/milestones", h.FundMilestone)
	g.GET("/jobs/:id/milestones/:mid", h.GetMilestone)
	g.POST("/jobs/:id/milestones/:mid/approve", h.ApproveMilestone)
	g.POST("/jobs/:id/milestones/:mid/release", h.ReleasePayment)
}
