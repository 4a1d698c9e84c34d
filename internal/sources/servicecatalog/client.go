// Package servicecatalog upserts service definitions into the Datadog
// Service Catalog. Each service gets one normalized definition document;
// the endpoint treats a repeated POST as an update.
package servicecatalog

import (
	"context"
	"net/http"

	"github.com/agentstation/ownersync/internal/transport"
	"github.com/agentstation/ownersync/pkg/errors"
)

const (
	definitionsPath = "/api/v2/services/definitions"

	// schemaVersion pins the service definition schema.
	schemaVersion = "v2.2"
)

// Definition is the document posted per service. The endpoint expects it
// top-level, not wrapped in a JSON:API data envelope.
type Definition struct {
	SchemaVersion string `json:"schema-version"`
	Service       string `json:"dd-service"`
	Team          string `json:"team"`
}

// Client talks to the service definitions API.
type Client struct {
	transport *transport.Client
	baseURL   string
}

// New creates a service catalog client against the given API base URL.
func New(t *transport.Client, baseURL string) *Client {
	return &Client{transport: t, baseURL: baseURL}
}

// Upsert writes one service definition. A single attempt; 200 and 201 both
// mean created-or-updated, anything else is returned with the raw status
// and body so the caller can record it as a per-item failure.
func (c *Client) Upsert(ctx context.Context, service, team string) error {
	doc := Definition{
		SchemaVersion: schemaVersion,
		Service:       service,
		Team:          team,
	}

	resp, err := c.transport.Post(ctx, c.baseURL+definitionsPath, doc)
	if err != nil {
		return err
	}

	body, err := transport.ReadBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	return &errors.APIError{
		Endpoint:   definitionsPath,
		StatusCode: resp.StatusCode,
		Message:    transport.ErrorBody(body),
	}
}
