// Package mock provides an in-memory [report.Store] for tests.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/promptwheel/promptwheel/pkg/report"
)

// Store is a thread-safe in-memory report store.
type Store struct {
	mu      sync.Mutex
	reports map[string]report.Report

	// SaveErr, when set, is returned from Save. Useful for testing the
	// best-effort persistence path.
	SaveErr error
}

var _ report.Store = (*Store)(nil)

// NewStore returns an empty mock store.
func NewStore() *Store {
	return &Store{reports: make(map[string]report.Report)}
}

// Save stores the report, replacing any earlier record for the session.
func (s *Store) Save(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.reports[r.SessionID] = r
	return nil
}

// Get returns the stored report for sessionID.
func (s *Store) Get(_ context.Context, sessionID string) (report.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[sessionID]
	return r, ok, nil
}

// List returns stored reports matching opts, newest first.
func (s *Store) List(_ context.Context, opts report.ListOpts) ([]report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []report.Report
	for _, r := range s.reports {
		if !opts.After.IsZero() && !r.StartedAt.After(opts.After) {
			continue
		}
		if !opts.Before.IsZero() && !r.StartedAt.Before(opts.Before) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Len returns the number of stored reports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}
