// Package report defines the session summary persistence contract.
//
// A [Report] is the frozen end-of-session record produced by the pacing
// meter, enriched with filler statistics by the session orchestrator.
// Implementations live in subpackages: [postgres] for production, [mock] for
// tests. Saves are best-effort: a failed save is logged, it never fails the
// session teardown.
package report

import (
	"context"
	"time"
)

// Segment is one fixed-length slice of a session's pace history.
type Segment struct {
	StartMs int64   `json:"start_ms"`
	EndMs   int64   `json:"end_ms"`
	Words   int     `json:"words"`
	WPM     float64 `json:"wpm"`
}

// Report is a complete session summary.
type Report struct {
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`

	TotalWords int     `json:"total_words"`
	AverageWPM float64 `json:"average_wpm"`
	PeakWPM    float64 `json:"peak_wpm"`
	TargetWPM  float64 `json:"target_wpm"`
	PauseCount int     `json:"pause_count"`

	FillerCount   int            `json:"filler_count"`
	FillerRate    float64        `json:"filler_rate"`
	CommonFillers map[string]int `json:"common_fillers,omitempty"`

	Segments []Segment `json:"segments,omitempty"`
}

// ListOpts filters a [Store.List] call. Zero fields are ignored.
type ListOpts struct {
	// After restricts results to sessions started after this time.
	After time.Time

	// Before restricts results to sessions started before this time.
	Before time.Time

	// Limit caps the number of results. 0 means no limit.
	Limit int
}

// Store persists session summaries.
type Store interface {
	// Save writes report. Saving the same session ID twice replaces the
	// earlier record.
	Save(ctx context.Context, r Report) error

	// Get returns the report for sessionID, or (zero, false, nil) when no
	// such session exists.
	Get(ctx context.Context, sessionID string) (Report, bool, error)

	// List returns reports matching opts, newest first.
	List(ctx context.Context, opts ListOpts) ([]Report, error)
}
