package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the DDL for the session report table. Applied on startup via
// Migrate; statements are idempotent so repeated startups are safe.
const schema = `
CREATE TABLE IF NOT EXISTS session_reports (
    session_id     TEXT PRIMARY KEY,
    started_at     TIMESTAMPTZ NOT NULL,
    ended_at       TIMESTAMPTZ NOT NULL,
    duration_ms    BIGINT NOT NULL,
    total_words    INTEGER NOT NULL,
    average_wpm    DOUBLE PRECISION NOT NULL,
    peak_wpm       DOUBLE PRECISION NOT NULL,
    target_wpm     DOUBLE PRECISION NOT NULL,
    pause_count    INTEGER NOT NULL,
    filler_count   INTEGER NOT NULL,
    filler_rate    DOUBLE PRECISION NOT NULL,
    common_fillers JSONB NOT NULL DEFAULT '{}'::jsonb,
    segments       JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_reports_started_at
    ON session_reports (started_at DESC);
`

// Migrate applies the report schema to the database behind pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("report store: apply schema: %w", err)
	}
	return nil
}
