package models

import (
	"time"
)

// Run kinds, matching adapter methods
const (
	RunKindProviders = "providers"
	RunKindScrapers  = "scrapers"
)

// SourceResult captures the outcome of one adapter within a run
type SourceResult struct {
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	New     int    `json:"new"`
	Updated int    `json:"updated"`
	Dupes   int    `json:"dupes"`
	Errors  int    `json:"errors"`
	Skipped bool   `json:"skipped,omitempty"` // compliance or circuit kept the adapter out
	Err     string `json:"error,omitempty"`   // fetch-phase failure, if any
}

// RunSummary aggregates a full orchestrator run
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Kind       string         `json:"kind"` // "providers" or "scrapers"
	Sources    int            `json:"sources"`
	Fetched    int            `json:"fetched"`
	New        int            `json:"new"`
	Updated    int            `json:"updated"`
	Dupes      int            `json:"dupes"`
	Errors     int            `json:"errors"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []SourceResult `json:"results,omitempty"`
}

// Add folds a per-source result into the run totals
func (s *RunSummary) Add(r SourceResult) {
	s.Sources++
	s.Fetched += r.Fetched
	s.New += r.New
	s.Updated += r.Updated
	s.Dupes += r.Dupes
	s.Errors += r.Errors
	s.Results = append(s.Results, r)
}

// SweepResult reports a maintenance pass (semantic dedup, URL health, back-fill)
type SweepResult struct {
	Task        string    `json:"task"`
	Scanned     int       `json:"scanned"`
	Updated     int       `json:"updated"`
	Deactivated int       `json:"deactivated,omitempty"`
	Errors      int       `json:"errors"`
	FinishedAt  time.Time `json:"finished_at"`
}
