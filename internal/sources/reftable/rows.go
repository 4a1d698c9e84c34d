package reftable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/ownersync/internal/transport"
	"github.com/agentstation/ownersync/pkg/errors"
	"github.com/agentstation/ownersync/pkg/logging"
)

// chunkSize is the row-read batch limit imposed by the API.
const chunkSize = 100

// valueBagAliases are the attribute names that may carry a row's value bag,
// in precedence order. The first non-empty bag wins; when none match the
// attribute map itself is the bag.
var valueBagAliases = []string{"values", "value", "columns"}

type rowItem struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

type rowsResponse struct {
	Data []rowItem `json:"data"`
}

// notFoundMeta distinguishes a whole-chunk miss from a missing endpoint:
// some deployments answer 404 with meta.not_found listing the absent ids.
type notFoundMeta struct {
	Meta struct {
		NotFound json.RawMessage `json:"not_found"`
	} `json:"meta"`
}

// rowValues extracts a row's value bag, trying each alias in order.
func rowValues(item rowItem) map[string]string {
	for _, alias := range valueBagAliases {
		if bag, ok := item.Attributes[alias].(map[string]any); ok && len(bag) > 0 {
			return stringValues(bag)
		}
	}
	return stringValues(item.Attributes)
}

// stringValues keeps the string-typed entries of a bag.
func stringValues(bag map[string]any) map[string]string {
	out := make(map[string]string, len(bag))
	for key, value := range bag {
		if s, ok := value.(string); ok {
			out[key] = s
		}
	}
	return out
}

// Lookup resolves team assignments for the given service identifiers,
// issuing one batch read per chunk of 100. Identifiers the store does not
// know are simply absent from the result; a whole-chunk not-found answer
// contributes nothing and is not an error.
func (s *RowStore) Lookup(ctx context.Context, serviceIDs []string) (map[string]string, error) {
	mapping := make(map[string]string)

	ids := make([]string, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return mapping, nil
	}

	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.lookupChunk(ctx, ids[start:end], mapping); err != nil {
			return nil, err
		}
	}

	return mapping, nil
}

// lookupChunk issues one batch read and folds the rows into mapping.
func (s *RowStore) lookupChunk(ctx context.Context, chunk []string, mapping map[string]string) error {
	params := url.Values{}
	for _, id := range chunk {
		params.Add("row_id", id)
	}
	requestURL := s.client.rowsURL(s.tableID) + "?" + params.Encode()

	logging.Debug().Int("ids", len(chunk)).Msg("Reading reference table rows")

	resp, err := s.client.transport.Get(ctx, requestURL)
	if err != nil {
		return err
	}

	body, err := transport.ReadBody(resp)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &errors.AuthenticationError{
			Endpoint: "reference table rows",
			Message:  "unauthorized (401); check API and application key permissions",
		}
	case resp.StatusCode == http.StatusNotFound:
		var meta notFoundMeta
		if err := json.Unmarshal(body, &meta); err == nil && meta.Meta.NotFound != nil {
			// The whole chunk is unknown to the store. A soft miss.
			return nil
		}
		return &errors.APIError{
			Endpoint:   "reference table rows",
			StatusCode: resp.StatusCode,
			Message:    "rows endpoint not found; verify the table id and rows path",
		}
	case resp.StatusCode >= 400:
		return &errors.APIError{
			Endpoint:   "reference table rows",
			StatusCode: resp.StatusCode,
			Message:    transport.ErrorBody(body),
		}
	}

	var payload rowsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return errors.WrapParse("jsonapi", "reference table rows", err)
	}

	for _, item := range payload.Data {
		values := rowValues(item)
		service := strings.TrimSpace(values[s.serviceColumn])
		team := strings.TrimSpace(values[s.teamColumn])
		if service != "" {
			mapping[service] = team
		}
	}
	return nil
}

// createRowRequest is the JSON:API document for a single-row create.
type createRowRequest struct {
	Data []createRowData `json:"data"`
}

type createRowData struct {
	Type       string        `json:"type"`
	ID         string        `json:"id"`
	Attributes rowAttributes `json:"attributes"`
}

type rowAttributes struct {
	Values map[string]string `json:"values"`
}

// Create persists one mapping row keyed by the service identifier.
// An HTTP 409 means the row already exists, which is success for an
// idempotent backfill; any other non-2xx is returned for the caller to
// record as a per-item failure.
func (s *RowStore) Create(ctx context.Context, service, team string) error {
	payload := createRowRequest{
		Data: []createRowData{{
			Type: "row",
			ID:   service,
			Attributes: rowAttributes{
				Values: map[string]string{
					s.serviceColumn: service,
					s.teamColumn:    team,
				},
			},
		}},
	}

	resp, err := s.client.transport.Post(ctx, s.client.rowsURL(s.tableID), payload)
	if err != nil {
		return err
	}

	body, err := transport.ReadBody(resp)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusConflict:
		logging.Debug().Str("service", service).Msg("Mapping row already exists")
		return nil
	default:
		return &errors.APIError{
			Endpoint:   "reference table rows",
			StatusCode: resp.StatusCode,
			Message:    transport.ErrorBody(body),
		}
	}
}
