package sync

import (
	"fmt"
	"strings"
)

// Failure records one per-item write failure with its diagnostic.
type Failure struct {
	Service string `json:"service"`
	Message string `json:"message"`
}

// Result is the summary of one pipeline run. It is built incrementally
// during the run and never mutated after Run returns.
type Result struct {
	// Found is the size of the discovered service set.
	Found int `json:"found"`
	// Updated counts catalog definitions written (or projected, in dry run).
	Updated int `json:"updated"`
	// Skipped counts services with no team even after gap filling.
	Skipped int `json:"skipped"`
	// Failed counts catalog upserts that returned a failure.
	Failed int `json:"failed"`
	// RowsCreated counts mapping rows persisted by the gap filler.
	RowsCreated int `json:"rows_created"`

	DryRun bool `json:"dry_run"`

	// MissingTeams lists skipped services in sorted order so an operator
	// can assign owners out-of-band.
	MissingTeams []string `json:"missing_teams,omitempty"`

	// Failures are catalog upsert failures; RowFailures are mapping row
	// creation failures. Both are data, not faults: the run continues
	// past them and the process still exits zero.
	Failures    []Failure `json:"failures,omitempty"`
	RowFailures []Failure `json:"row_failures,omitempty"`
}

// HasFailures reports whether any per-item write failed.
func (r *Result) HasFailures() bool {
	return len(r.Failures) > 0 || len(r.RowFailures) > 0
}

// Summary returns a human-readable one-line summary of the run.
func (r *Result) Summary() string {
	var parts []string
	if r.DryRun {
		parts = append(parts, "(dry run)")
	}

	summary := fmt.Sprintf("%d services found, %d updated, %d skipped, %d failed",
		r.Found, r.Updated, r.Skipped, r.Failed)
	if r.RowsCreated > 0 {
		summary += fmt.Sprintf(", %d mapping rows created", r.RowsCreated)
	}
	if len(parts) > 0 {
		summary += " " + strings.Join(parts, " ")
	}
	return summary
}
