package sync

import (
	"context"
	"strings"

	"github.com/agentstation/ownersync/pkg/logging"
)

// Stage names the strictly sequential phases of a run.
type Stage string

// Run stages, in order. No backward transitions, no partial restart.
const (
	StageDiscovering Stage = "discovering"
	StageResolving   Stage = "resolving"
	StageFilling     Stage = "filling"
	StageUpserting   Stage = "upserting"
	StageSummarizing Stage = "summarizing"
)

// EventSource discovers the set of services referenced by recent events.
type EventSource interface {
	DiscoverServices(ctx context.Context) (map[string]struct{}, error)
}

// MappingStore resolves and persists service-to-team mapping entries.
type MappingStore interface {
	// Lookup may omit entries it cannot resolve; a miss is not an error.
	Lookup(ctx context.Context, serviceIDs []string) (map[string]string, error)
	// Create persists one mapping row; an already-existing row is a no-op.
	Create(ctx context.Context, service, team string) error
}

// CatalogSink writes one normalized definition per service.
type CatalogSink interface {
	Upsert(ctx context.Context, service, team string) error
}

// Syncer sequences the reconciliation pipeline over its collaborators.
type Syncer struct {
	events  EventSource
	store   MappingStore
	catalog CatalogSink
}

// New creates a Syncer from the three collaborators.
func New(events EventSource, store MappingStore, catalog CatalogSink) *Syncer {
	return &Syncer{events: events, store: store, catalog: catalog}
}

// Run executes one full pipeline pass and returns its summary.
// Read errors abort the run; per-item write failures are accumulated into
// the result and processing continues.
func (s *Syncer) Run(ctx context.Context, opts ...Option) (*Result, error) {
	options := Defaults().Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}

	result := &Result{DryRun: options.DryRun}

	logging.Info().Str("stage", string(StageDiscovering)).Msg("Discovering services from events")
	services, err := s.events.DiscoverServices(ctx)
	if err != nil {
		return nil, err
	}
	result.Found = len(services)
	if result.Found == 0 {
		return result, nil
	}
	sorted := sortedSet(services)

	logging.Info().Str("stage", string(StageResolving)).Int("services", len(sorted)).Msg("Resolving team mappings")
	mapping, err := s.store.Lookup(ctx, sorted)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("stage", string(StageFilling)).Msg("Backfilling missing mappings")
	s.fillGaps(ctx, options, sorted, mapping, result)

	logging.Info().Str("stage", string(StageUpserting)).Msg("Upserting catalog definitions")
	for _, svc := range sorted {
		team := strings.TrimSpace(mapping[svc])
		if team == "" {
			result.Skipped++
			result.MissingTeams = append(result.MissingTeams, svc)
			continue
		}
		if options.DryRun {
			result.Updated++
			continue
		}
		if err := s.catalog.Upsert(ctx, svc, team); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, Failure{Service: svc, Message: err.Error()})
			logging.Warn().Str("service", svc).Str("error", err.Error()).Msg("Catalog upsert failed")
			continue
		}
		result.Updated++
	}

	logging.Info().Str("stage", string(StageSummarizing)).Msg(result.Summary())
	return result, nil
}

// fillGaps assigns placeholder teams to unmapped services and persists the
// new rows unless dry-run. The in-memory mapping gains every placeholder
// assignment, including ones whose row creation failed, so the upsert pass
// still covers those services.
func (s *Syncer) fillGaps(ctx context.Context, options *Options, sorted []string, mapping map[string]string, result *Result) {
	var unmapped []string
	for _, svc := range sorted {
		if _, ok := mapping[svc]; !ok {
			unmapped = append(unmapped, svc)
		}
	}

	placeholder := Fill(unmapped, options.PlaceholderTeams)
	if len(placeholder) == 0 {
		return
	}

	if options.DryRun {
		logging.Info().Int("rows", len(placeholder)).Msg("Dry run: would create mapping rows")
	} else {
		for _, svc := range unmapped {
			team := placeholder[svc]
			if err := s.store.Create(ctx, svc, team); err != nil {
				result.RowFailures = append(result.RowFailures, Failure{Service: svc, Message: err.Error()})
				logging.Warn().Str("service", svc).Str("error", err.Error()).Msg("Mapping row creation failed")
				continue
			}
			result.RowsCreated++
		}
	}

	for svc, team := range placeholder {
		mapping[svc] = team
	}
}
