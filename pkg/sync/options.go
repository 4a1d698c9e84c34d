// Package sync runs the reconciliation pipeline: discover services from
// recent events, resolve team ownership from the mapping store, backfill
// missing mappings with placeholder teams, and upsert one catalog
// definition per service.
package sync

import (
	"github.com/agentstation/ownersync/pkg/errors"
)

// Options controls one run of the pipeline.
type Options struct {
	// DryRun suppresses every mutating call (row creation and catalog
	// upserts) while still performing all reads. Counts report what a
	// live run would do, as a uniform optimistic projection.
	DryRun bool

	// PlaceholderTeams is the rotation assigned to services with no
	// resolved mapping, round-robin in sorted order.
	PlaceholderTeams []string
}

// Defaults returns the default run options.
func Defaults() *Options {
	return &Options{
		DryRun:           false,
		PlaceholderTeams: PlaceholderTeams,
	}
}

// Apply applies the given options in order.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks if the run options are valid.
func (o *Options) Validate() error {
	if len(o.PlaceholderTeams) == 0 {
		return &errors.ValidationError{
			Field:   "PlaceholderTeams",
			Value:   o.PlaceholderTeams,
			Message: "at least one placeholder team is required",
		}
	}
	return nil
}

// Option is a function that configures run Options.
type Option func(*Options)

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithPlaceholderTeams overrides the placeholder team rotation.
func WithPlaceholderTeams(teams ...string) Option {
	return func(opts *Options) {
		opts.PlaceholderTeams = teams
	}
}
