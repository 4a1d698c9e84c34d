package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ownersync/pkg/errors"
)

type fakeEvents struct {
	services map[string]struct{}
	err      error
}

func (f *fakeEvents) DiscoverServices(_ context.Context) (map[string]struct{}, error) {
	return f.services, f.err
}

// fakeStore is a stateful in-memory mapping store: created rows become
// visible to subsequent lookups, and re-creating an existing row counts as
// a conflict, which the real store treats as success.
type fakeStore struct {
	mapping   map[string]string
	createErr map[string]error

	lookups   [][]string
	creates   []string
	conflicts int
	lookupErr error
}

func newFakeStore(mapping map[string]string) *fakeStore {
	copied := make(map[string]string, len(mapping))
	for k, v := range mapping {
		copied[k] = v
	}
	return &fakeStore{mapping: copied}
}

func (f *fakeStore) Lookup(_ context.Context, serviceIDs []string) (map[string]string, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	f.lookups = append(f.lookups, serviceIDs)
	out := make(map[string]string)
	for _, id := range serviceIDs {
		if team, ok := f.mapping[id]; ok {
			out[id] = team
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, service, team string) error {
	if err := f.createErr[service]; err != nil {
		return err
	}
	if _, exists := f.mapping[service]; exists {
		f.conflicts++
		return nil
	}
	f.creates = append(f.creates, service)
	f.mapping[service] = team
	return nil
}

type fakeCatalog struct {
	upserts []string
	teams   map[string]string
	failOn  map[string]error
}

func (f *fakeCatalog) Upsert(_ context.Context, service, team string) error {
	if err := f.failOn[service]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, service)
	if f.teams == nil {
		f.teams = make(map[string]string)
	}
	f.teams[service] = team
	return nil
}

func services(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestRunBackfillsAndUpserts(t *testing.T) {
	events := &fakeEvents{services: services("a", "b", "c")}
	store := newFakeStore(map[string]string{"a": "team 1"})
	catalog := &fakeCatalog{}

	result, err := New(events, store, catalog).Run(context.Background())
	require.NoError(t, err)

	// Sorted gap filling round-robins over the placeholder rotation.
	assert.Equal(t, "team 1", store.mapping["b"])
	assert.Equal(t, "team 2", store.mapping["c"])
	assert.Equal(t, []string{"b", "c"}, store.creates)

	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.RowsCreated)
	assert.Empty(t, result.MissingTeams)

	// Upserts go out in sorted identifier order.
	assert.Equal(t, []string{"a", "b", "c"}, catalog.upserts)
	assert.Equal(t, "team 1", catalog.teams["a"])
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore(map[string]string{"a": "team 1"})

	run := func() *Result {
		events := &fakeEvents{services: services("a", "b", "c")}
		result, err := New(events, store, &fakeCatalog{}).Run(context.Background())
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	// The second run resolves everything from the store; its creates all
	// land as conflicts (none here, since lookup already resolved them).
	assert.Equal(t, first.Found, second.Found)
	assert.Equal(t, first.Updated, second.Updated)
	assert.Equal(t, first.Skipped, second.Skipped)
	assert.Equal(t, first.Failed, second.Failed)
	assert.Equal(t, 2, first.RowsCreated)
	assert.Equal(t, 0, second.RowsCreated)
	assert.Len(t, store.creates, 2, "no duplicate rows on re-run")
}

func TestRunSkipsServicesWithEmptyTeam(t *testing.T) {
	events := &fakeEvents{services: services("a", "b")}
	// "b" has a row whose team column is blank: gap filling does not touch
	// it, and it must be skipped rather than upserted.
	store := newFakeStore(map[string]string{"a": "team 1", "b": "   "})
	catalog := &fakeCatalog{}

	result, err := New(events, store, catalog).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{"b"}, result.MissingTeams)
	assert.Equal(t, []string{"a"}, catalog.upserts)
}

func TestRunIsolatesUpsertFailures(t *testing.T) {
	events := &fakeEvents{services: services("a", "x", "z")}
	store := newFakeStore(map[string]string{"a": "team 1", "x": "team 2", "z": "team 1"})
	catalog := &fakeCatalog{failOn: map[string]error{
		"x": &errors.APIError{Endpoint: "/api/v2/services/definitions", StatusCode: 500, Message: "boom"},
	}}

	result, err := New(events, store, catalog).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "x", result.Failures[0].Service)
	assert.Contains(t, result.Failures[0].Message, "500")

	// Processing continued past the failure in sorted order.
	assert.Equal(t, []string{"a", "z"}, catalog.upserts)
}

func TestRunIsolatesRowCreationFailures(t *testing.T) {
	events := &fakeEvents{services: services("a", "b")}
	store := newFakeStore(nil)
	store.createErr = map[string]error{
		"a": &errors.APIError{Endpoint: "reference table rows", StatusCode: 400, Message: "bad row"},
	}
	catalog := &fakeCatalog{}

	result, err := New(events, store, catalog).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.RowFailures, 1)
	assert.Equal(t, "a", result.RowFailures[0].Service)
	assert.Equal(t, 1, result.RowsCreated)

	// The placeholder assignment still feeds the upsert pass even though
	// persisting the row failed.
	assert.Equal(t, []string{"a", "b"}, catalog.upserts)
	assert.Equal(t, 2, result.Updated)
}

func TestRunDryRunSuppressesWrites(t *testing.T) {
	live := func() *Result {
		events := &fakeEvents{services: services("a", "b", "c")}
		store := newFakeStore(map[string]string{"a": "team 1"})
		result, err := New(events, store, &fakeCatalog{}).Run(context.Background())
		require.NoError(t, err)
		return result
	}()

	events := &fakeEvents{services: services("a", "b", "c")}
	store := newFakeStore(map[string]string{"a": "team 1"})
	catalog := &fakeCatalog{}

	dry, err := New(events, store, catalog).Run(context.Background(), WithDryRun(true))
	require.NoError(t, err)

	assert.Empty(t, store.creates, "dry run must not create rows")
	assert.Empty(t, catalog.upserts, "dry run must not upsert definitions")
	assert.True(t, dry.DryRun)

	// Projected counts match what the live run produced.
	assert.Equal(t, live.Found, dry.Found)
	assert.Equal(t, live.Updated, dry.Updated)
	assert.Equal(t, live.Skipped, dry.Skipped)
}

func TestRunNoServicesShortCircuits(t *testing.T) {
	events := &fakeEvents{services: services()}
	store := newFakeStore(map[string]string{"a": "team 1"})

	result, err := New(events, store, &fakeCatalog{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Found)
	assert.Empty(t, store.lookups, "mapping store must not be queried")
}

func TestRunAbortsOnDiscoveryError(t *testing.T) {
	events := &fakeEvents{err: &errors.AuthenticationError{Endpoint: "/api/v2/events/search", Message: "401"}}

	result, err := New(events, newFakeStore(nil), &fakeCatalog{}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsAuthentication(err))
}

func TestRunAbortsOnLookupError(t *testing.T) {
	events := &fakeEvents{services: services("a")}
	store := newFakeStore(nil)
	store.lookupErr = &errors.APIError{Endpoint: "reference table rows", StatusCode: 500, Message: "oops"}

	result, err := New(events, store, &fakeCatalog{}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunCustomPlaceholderTeams(t *testing.T) {
	events := &fakeEvents{services: services("a", "b", "c")}
	store := newFakeStore(nil)

	_, err := New(events, store, &fakeCatalog{}).Run(context.Background(),
		WithPlaceholderTeams("ops"))
	require.NoError(t, err)

	assert.Equal(t, "ops", store.mapping["a"])
	assert.Equal(t, "ops", store.mapping["b"])
	assert.Equal(t, "ops", store.mapping["c"])
}

func TestRunRejectsEmptyRotation(t *testing.T) {
	events := &fakeEvents{services: services("a")}

	_, err := New(events, newFakeStore(nil), &fakeCatalog{}).Run(context.Background(),
		WithPlaceholderTeams())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
