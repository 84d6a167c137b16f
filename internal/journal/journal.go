// Package journal records escrow events in Postgres.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sudo-init-do/mintaro/internal/escrow"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertEvent = `
	INSERT INTO escrow_events
		(id, kind, backend, job_id, milestone_id, client, freelancer, amount, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9)`

// Journal is an escrow.Observer that appends every event to escrow_events.
// A failed insert is logged and never fails the escrow operation.
type Journal struct {
	db      Execer
	logger  *slog.Logger
	timeout time.Duration
	newID   func() uuid.UUID
}

var _ escrow.Observer = (*Journal)(nil)

func New(db Execer, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		db:      db,
		logger:  logger,
		timeout: 5 * time.Second,
		newID:   uuid.New,
	}
}

func (j *Journal) Observe(ctx context.Context, ev escrow.Event) {
	if err := j.Record(ctx, ev); err != nil {
		j.logger.Error("failed to journal escrow event",
			"kind", ev.Kind,
			"job_id", ev.JobID,
			"milestone_id", ev.MilestoneID,
			"error", err,
		)
	}
}

// Record inserts ev and returns the database error, if any.
func (j *Journal) Record(ctx context.Context, ev escrow.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
	defer cancel()

	_, err := j.db.Exec(ctx, insertEvent,
		j.newID(),
		string(ev.Kind),
		ev.Backend,
		optionalID(uint64(ev.JobID)),
		optionalID(uint64(ev.MilestoneID)),
		optionalText(string(ev.Client)),
		optionalText(string(ev.Freelancer)),
		optionalAmount(ev),
		ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", ev.Kind, err)
	}
	return nil
}

func optionalID(id uint64) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}

func optionalText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optionalAmount(ev escrow.Event) any {
	if ev.Amount == nil {
		return nil
	}
	return ev.Amount.String()
}
