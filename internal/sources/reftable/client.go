// Package reftable talks to the Datadog reference-tables API, which backs
// the service-to-team mapping store. The endpoints speak JSON:API, page the
// table listing via links.next, and batch row reads at 100 ids per call.
package reftable

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/agentstation/ownersync/internal/transport"
	"github.com/agentstation/ownersync/pkg/errors"
)

const (
	tablesPath = "/api/v2/reference-tables/tables"

	// listPageLimit is the page size used when walking the table listing.
	listPageLimit = "100"

	// availableSample caps the table names quoted in a not-found diagnostic.
	availableSample = 30
)

// Table describes one reference table from the listing endpoint.
type Table struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Client talks to the reference-tables API.
type Client struct {
	transport *transport.Client
	baseURL   string
}

// New creates a reference-table client against the given API base URL.
func New(t *transport.Client, baseURL string) *Client {
	return &Client{transport: t, baseURL: baseURL}
}

type tableItem struct {
	ID         string `json:"id"`
	Attributes struct {
		TableName   string `json:"table_name"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"attributes"`
}

// tableName prefers the table_name attribute, an older deployment alias
// uses name.
func (item tableItem) tableName() string {
	if item.Attributes.TableName != "" {
		return strings.TrimSpace(item.Attributes.TableName)
	}
	return strings.TrimSpace(item.Attributes.Name)
}

type tablesResponse struct {
	Data  []tableItem `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// listURL builds the first-page URL for the table listing.
func (c *Client) listURL() string {
	return c.baseURL + tablesPath + "?page%5Blimit%5D=" + listPageLimit
}

// walkTables pages through the table listing, invoking visit per item.
// The next link is an absolute URL and is followed verbatim.
func (c *Client) walkTables(ctx context.Context, visit func(tableItem) bool) error {
	pageURL := c.listURL()
	for pageURL != "" {
		resp, err := c.transport.Get(ctx, pageURL)
		if err != nil {
			return err
		}

		var payload tablesResponse
		if err := transport.DecodeResponse(resp, &payload); err != nil {
			return err
		}

		for _, item := range payload.Data {
			if !visit(item) {
				return nil
			}
		}
		pageURL = payload.Links.Next
	}
	return nil
}

// Tables returns every reference table visible to the configured keys.
func (c *Client) Tables(ctx context.Context) ([]Table, error) {
	var tables []Table
	err := c.walkTables(ctx, func(item tableItem) bool {
		tables = append(tables, Table{
			ID:          item.ID,
			Name:        item.tableName(),
			Description: strings.TrimSpace(item.Attributes.Description),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// FindTable resolves a table name (or id) to the table id,
// case-insensitively. An unresolvable table is fatal; the error carries a
// sample of the available names so an operator can correct the config.
func (c *Client) FindTable(ctx context.Context, nameOrID string) (string, error) {
	want := strings.ToLower(strings.TrimSpace(nameOrID))
	var found string
	available := make(map[string]struct{})

	err := c.walkTables(ctx, func(item tableItem) bool {
		name := item.tableName()
		if name != "" {
			available[name] = struct{}{}
		}
		if strings.ToLower(name) == want || strings.ToLower(item.ID) == want {
			found = item.ID
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if found != "" {
		return found, nil
	}

	notFound := &errors.NotFoundError{Resource: "reference table", ID: nameOrID}
	if len(available) > 0 {
		names := make([]string, 0, len(available))
		for name := range available {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > availableSample {
			names = names[:availableSample]
		}
		notFound.Message = "available: " + strings.Join(names, ", ")
	}
	return "", notFound
}

// rowsURL builds the rows endpoint for a table.
func (c *Client) rowsURL(tableID string) string {
	return c.baseURL + tablesPath + "/" + url.PathEscape(tableID) + "/rows"
}

// Rows binds the client to one table's row store with the configured
// service and team column names.
func (c *Client) Rows(tableID, serviceColumn, teamColumn string) *RowStore {
	return &RowStore{
		client:        c,
		tableID:       tableID,
		serviceColumn: serviceColumn,
		teamColumn:    teamColumn,
	}
}

// RowStore reads and creates rows of a single reference table.
type RowStore struct {
	client        *Client
	tableID       string
	serviceColumn string
	teamColumn    string
}
