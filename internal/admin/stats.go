// Package admin serves operator views of the escrow ledger.
package admin

import (
	"encoding/json"
	"log/slog"
	"math/big"
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

// Register mounts the routes on the admin group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/snapshot", h.Snapshot)
	g.GET("/stats", h.Stats)
}

// GET /admin/snapshot
func (h *Handler) Snapshot(c echo.Context) error {
	snap, err := h.engine.Snapshot(c.Request().Context())
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Stats summarizes a snapshot.
type Stats struct {
	Backend       string   `json:"backend"`
	Jobs          int      `json:"jobs"`
	Milestones    int      `json:"milestones"`
	Approved      int      `json:"approved"`
	Released      int      `json:"released"`
	LockedTotal   *big.Int `json:"locked_total"`
	ReleasedTotal *big.Int `json:"released_total"`
	BalanceTotal  *big.Int `json:"balance_total"`
	Payees        int      `json:"payees"`
}

// MarshalJSON writes the totals as decimal strings.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	return json.Marshal(struct {
		plain
		LockedTotal   *escrow.Amount `json:"locked_total"`
		ReleasedTotal *escrow.Amount `json:"released_total"`
		BalanceTotal  *escrow.Amount `json:"balance_total"`
	}{plain(s), escrow.AmountOf(s.LockedTotal), escrow.AmountOf(s.ReleasedTotal), escrow.AmountOf(s.BalanceTotal)})
}

// Summarize counts a snapshot's entities and totals its amounts.
func Summarize(backend string, snap escrow.Snapshot) Stats {
	s := Stats{
		Backend:       backend,
		Jobs:          len(snap.Jobs),
		Milestones:    len(snap.Milestones),
		LockedTotal:   new(big.Int),
		ReleasedTotal: new(big.Int),
		BalanceTotal:  new(big.Int),
		Payees:        len(snap.Balances),
	}
	for _, j := range snap.Jobs {
		s.LockedTotal.Add(s.LockedTotal, j.Locked)
	}
	for _, m := range snap.Milestones {
		if m.Approved {
			s.Approved++
		}
		if m.Released {
			s.Released++
			s.ReleasedTotal.Add(s.ReleasedTotal, m.Amount)
		}
	}
	for _, b := range snap.Balances {
		s.BalanceTotal.Add(s.BalanceTotal, b)
	}
	return s
}

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	snap, err := h.engine.Snapshot(c.Request().Context())
	if err != nil {
		return httperr.Escrow(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, Summarize(h.engine.Backend().Name(), snap))
}
