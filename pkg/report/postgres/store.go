// Package postgres implements [report.Store] backed by PostgreSQL using the
// pgx driver. The schema is applied automatically on store construction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptwheel/promptwheel/pkg/report"
)

// Store is a PostgreSQL-backed report store.
type Store struct {
	pool *pgxpool.Pool
}

var _ report.Store = (*Store)(nil)

// NewStore connects to the database at dsn, verifies connectivity and applies
// the schema. The caller owns the returned store and must call Close.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("report store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("report store: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("report store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("report store: ping: %w", err)
	}
	return nil
}

// Save upserts the report keyed by session ID.
func (s *Store) Save(ctx context.Context, r report.Report) error {
	const q = `
		INSERT INTO session_reports (
			session_id, started_at, ended_at, duration_ms,
			total_words, average_wpm, peak_wpm, target_wpm, pause_count,
			filler_count, filler_rate, common_fillers, segments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			duration_ms = EXCLUDED.duration_ms,
			total_words = EXCLUDED.total_words,
			average_wpm = EXCLUDED.average_wpm,
			peak_wpm = EXCLUDED.peak_wpm,
			target_wpm = EXCLUDED.target_wpm,
			pause_count = EXCLUDED.pause_count,
			filler_count = EXCLUDED.filler_count,
			filler_rate = EXCLUDED.filler_rate,
			common_fillers = EXCLUDED.common_fillers,
			segments = EXCLUDED.segments`

	fillers := r.CommonFillers
	if fillers == nil {
		fillers = map[string]int{}
	}
	segments := r.Segments
	if segments == nil {
		segments = []report.Segment{}
	}

	_, err := s.pool.Exec(ctx, q,
		r.SessionID, r.StartedAt, r.EndedAt, r.DurationMs,
		r.TotalWords, r.AverageWPM, r.PeakWPM, r.TargetWPM, r.PauseCount,
		r.FillerCount, r.FillerRate, fillers, segments,
	)
	if err != nil {
		return fmt.Errorf("report store: save %s: %w", r.SessionID, err)
	}
	return nil
}

// Get returns the report for sessionID, or ok=false when no row exists.
func (s *Store) Get(ctx context.Context, sessionID string) (report.Report, bool, error) {
	const q = `
		SELECT session_id, started_at, ended_at, duration_ms,
		       total_words, average_wpm, peak_wpm, target_wpm, pause_count,
		       filler_count, filler_rate, common_fillers, segments
		FROM session_reports
		WHERE session_id = $1`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return report.Report{}, false, fmt.Errorf("report store: get %s: %w", sessionID, err)
	}

	r, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[reportRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Report{}, false, nil
		}
		return report.Report{}, false, fmt.Errorf("report store: get %s: %w", sessionID, err)
	}
	return r.toReport(), true, nil
}

// List returns reports matching opts, newest first.
func (s *Store) List(ctx context.Context, opts report.ListOpts) ([]report.Report, error) {
	q := `
		SELECT session_id, started_at, ended_at, duration_ms,
		       total_words, average_wpm, peak_wpm, target_wpm, pause_count,
		       filler_count, filler_rate, common_fillers, segments
		FROM session_reports
		WHERE ($1::timestamptz IS NULL OR started_at > $1)
		  AND ($2::timestamptz IS NULL OR started_at < $2)
		ORDER BY started_at DESC`

	var after, before any
	if !opts.After.IsZero() {
		after = opts.After
	}
	if !opts.Before.IsZero() {
		before = opts.Before
	}
	args := []any{after, before}
	if opts.Limit > 0 {
		q += ` LIMIT $3`
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("report store: list: %w", err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByPos[reportRow])
	if err != nil {
		return nil, fmt.Errorf("report store: list: %w", err)
	}

	out := make([]report.Report, len(collected))
	for i, row := range collected {
		out[i] = row.toReport()
	}
	return out, nil
}

// reportRow mirrors the session_reports column order for pgx row collection.
type reportRow struct {
	SessionID     string
	StartedAt     time.Time
	EndedAt       time.Time
	DurationMs    int64
	TotalWords    int
	AverageWPM    float64
	PeakWPM       float64
	TargetWPM     float64
	PauseCount    int
	FillerCount   int
	FillerRate    float64
	CommonFillers map[string]int
	Segments      []report.Segment
}

func (r reportRow) toReport() report.Report {
	return report.Report{
		SessionID:     r.SessionID,
		StartedAt:     r.StartedAt,
		EndedAt:       r.EndedAt,
		DurationMs:    r.DurationMs,
		TotalWords:    r.TotalWords,
		AverageWPM:    r.AverageWPM,
		PeakWPM:       r.PeakWPM,
		TargetWPM:     r.TargetWPM,
		PauseCount:    r.PauseCount,
		FillerCount:   r.FillerCount,
		FillerRate:    r.FillerRate,
		CommonFillers: r.CommonFillers,
		Segments:      r.Segments,
	}
}
