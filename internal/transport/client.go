// Package transport provides the authenticated HTTP client shared by the
// event, reference-table, and service-catalog API clients.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/agentstation/ownersync/pkg/errors"
)

// Content types used by the Datadog APIs. The reference-table endpoints
// expect JSON:API documents; everything else is plain JSON.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeJSONAPI = "application/vnd.api+json"
)

// Default timeouts bounding a single remote call.
var (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// Client provides HTTP client functionality with authentication and a
// fixed content type per client instance.
type Client struct {
	http        *http.Client
	auth        Authenticator
	contentType string
}

// Option configures a Client.
type Option func(*Client)

// WithContentType sets the Content-Type and Accept headers applied to requests.
func WithContentType(contentType string) Option {
	return func(c *Client) {
		c.contentType = contentType
	}
}

// WithTimeouts overrides the connect and read timeouts.
func WithTimeouts(connect, read time.Duration) Option {
	return func(c *Client) {
		c.http = newHTTPClient(connect, read)
	}
}

// WithHTTPClient substitutes the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a new transport client with the specified authenticator.
func New(auth Authenticator, opts ...Option) *Client {
	c := &Client{
		http:        newHTTPClient(DefaultConnectTimeout, DefaultReadTimeout),
		auth:        auth,
		contentType: ContentTypeJSON,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newHTTPClient builds an HTTP client with a connect timeout on the dialer
// and an overall deadline covering the response read.
func newHTTPClient(connect, read time.Duration) *http.Client {
	return &http.Client{
		Timeout: read,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connect}).DialContext,
		},
	}
}

// Do performs an HTTP request with authentication and content negotiation applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.auth != nil {
		c.auth.Apply(req)
	}

	req.Header.Set("Accept", c.contentType)
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", c.contentType)
	}

	return c.http.Do(req)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapAPI(url, 0, err)
	}
	return c.Do(req)
}

// Post performs a POST request with a JSON-encoded body.
func (c *Client) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapParse("json", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.WrapAPI(url, 0, err)
	}
	return c.Do(req)
}
