package events

import "context"

// Source binds a client to one query so callers can discover services
// without carrying the query around.
type Source struct {
	client *Client
	query  Query
}

// Source returns a discovery source for the given query.
func (c *Client) Source(q Query) *Source {
	return &Source{client: c, query: q}
}

// DiscoverServices runs the bound query to completion.
func (s *Source) DiscoverServices(ctx context.Context) (map[string]struct{}, error) {
	return s.client.DiscoverServices(ctx, s.query)
}
