// Package events discovers service identifiers from the Datadog event
// stream. It drives cursor-based pagination over POST /api/v2/events/search
// and extracts normalized service identifiers from each returned record.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentstation/ownersync/internal/transport"
	"github.com/agentstation/ownersync/pkg/logging"
)

const searchPath = "/api/v2/events/search"

// Window is the event-time interval a run queries.
type Window struct {
	From time.Time
	To   time.Time
}

// LastDays returns a window covering the given number of days up to now.
func LastDays(days int) Window {
	now := time.Now().UTC()
	return Window{From: now.AddDate(0, 0, -days), To: now}
}

// Query describes one event search.
type Query struct {
	Window    Window
	Query     string
	PageLimit int
	// MaxPages stops pagination early when positive. Zero means no limit.
	MaxPages int
}

// Event is one raw record from the event stream.
type Event struct {
	ID         string          `json:"id"`
	Attributes EventAttributes `json:"attributes"`
}

// EventAttributes carries the nested attribute payload and the tag list.
type EventAttributes struct {
	Attributes NestedAttributes `json:"attributes"`
	Tags       []string         `json:"tags"`
}

// NestedAttributes is the inner attribute document of an event.
type NestedAttributes struct {
	Service string `json:"service"`
}

// Client talks to the event search API.
type Client struct {
	transport *transport.Client
	baseURL   string
}

// New creates an events client against the given API base URL.
func New(t *transport.Client, baseURL string) *Client {
	return &Client{transport: t, baseURL: baseURL}
}

// searchRequest is the POST body for one page.
type searchRequest struct {
	Filter searchFilter `json:"filter"`
	Page   pageRequest  `json:"page"`
}

type searchFilter struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Query string `json:"query"`
}

// pageRequest omits the cursor key entirely on the first page.
type pageRequest struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

type searchResponse struct {
	Data []Event `json:"data"`
	// Meta is decoded separately: a malformed paging block means
	// end-of-stream, not a failed page.
	Meta json.RawMessage `json:"meta"`
}

// searchPage fetches a single page given the current cursor and returns the
// records plus the next cursor, empty when the stream is exhausted.
func (c *Client) searchPage(ctx context.Context, q Query, cursor string) ([]Event, string, error) {
	body := searchRequest{
		Filter: searchFilter{
			From:  q.Window.From.Format(time.RFC3339),
			To:    q.Window.To.Format(time.RFC3339),
			Query: q.Query,
		},
		Page: pageRequest{Limit: q.PageLimit, Cursor: cursor},
	}

	resp, err := c.transport.Post(ctx, c.baseURL+searchPath, body)
	if err != nil {
		return nil, "", err
	}

	var result searchResponse
	if err := transport.DecodeResponse(resp, &result); err != nil {
		return nil, "", err
	}

	return result.Data, nextCursor(result.Meta), nil
}

// nextCursor pulls meta.page.after out of the paging metadata. Any parse
// failure reads as no cursor, which ends the stream.
func nextCursor(meta json.RawMessage) string {
	if len(meta) == 0 {
		return ""
	}
	var parsed struct {
		Page struct {
			After string `json:"after"`
		} `json:"page"`
	}
	if err := json.Unmarshal(meta, &parsed); err != nil {
		return ""
	}
	return parsed.Page.After
}

// Iterator lazily walks the pages of one search. It is finite and
// non-restartable; create a new one per search.
type Iterator struct {
	client *Client
	query  Query
	cursor string
	page   int
	done   bool
}

// Search returns an iterator over the pages matching the query.
func (c *Client) Search(q Query) *Iterator {
	return &Iterator{client: c, query: q}
}

// Next fetches the next page of records. The second return value is false
// once the stream is exhausted or the page cap is reached.
func (it *Iterator) Next(ctx context.Context) ([]Event, bool, error) {
	if it.done {
		return nil, false, nil
	}
	if it.query.MaxPages > 0 && it.page >= it.query.MaxPages {
		logging.Debug().Int("pages", it.page).Msg("Stopping pagination at configured page cap")
		it.done = true
		return nil, false, nil
	}

	it.page++
	logging.Debug().Int("page", it.page).Msg("Fetching events page")

	records, next, err := it.client.searchPage(ctx, it.query, it.cursor)
	if err != nil {
		it.done = true
		return nil, false, err
	}

	it.cursor = next
	if next == "" {
		it.done = true
	}
	return records, true, nil
}

// DiscoverServices runs the search to completion and accumulates the
// extracted service identifiers into a set.
func (c *Client) DiscoverServices(ctx context.Context, q Query) (map[string]struct{}, error) {
	services := make(map[string]struct{})

	it := c.Search(q)
	for {
		records, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for _, record := range records {
			for _, svc := range Extract(record) {
				services[svc] = struct{}{}
			}
		}
	}

	return services, nil
}
