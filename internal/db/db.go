// Package db connects to Postgres and keeps the escrow journal schema in place.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects to Postgres, checks the connection and ensures the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to postgres")

	if err := ensureEventsTable(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ensureEventsTable creates escrow_events if it doesn't exist
func ensureEventsTable(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'escrow_events'
		)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	if exists {
		return nil
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS escrow_events (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN (
				'job_created', 'milestone_created', 'milestone_approved',
				'payment_released', 'withdrawn'
			)),
			backend TEXT NOT NULL,
			job_id BIGINT NULL,
			milestone_id BIGINT NULL,
			client TEXT NULL,
			freelancer TEXT NULL,
			amount NUMERIC(78, 0) NULL,
			occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_escrow_events_job ON escrow_events(job_id, milestone_id);
		CREATE INDEX IF NOT EXISTS idx_escrow_events_freelancer ON escrow_events(freelancer);
	`)
	if err != nil {
		return fmt.Errorf("create escrow_events table: %w", err)
	}
	logger.Info("escrow_events table ensured")
	return nil
}
