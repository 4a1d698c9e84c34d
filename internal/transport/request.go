package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/ownersync/pkg/errors"
)

// maxErrorBody caps the response body captured into error diagnostics.
const maxErrorBody = 2048

// ReadBody drains and closes a response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapAPI(requestURL(resp), resp.StatusCode, err)
	}
	return body, nil
}

// DecodeResponse reads a response, maps non-success statuses to typed
// errors, and unmarshals a 2xx body into the target structure.
// A 401 is an AuthenticationError, which aborts the whole run.
func DecodeResponse(resp *http.Response, target any) error {
	body, err := ReadBody(resp)
	if err != nil {
		return err
	}

	endpoint := requestURL(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return &errors.AuthenticationError{
			Endpoint: endpoint,
			Message:  "unauthorized (401); check API and application key permissions",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    ErrorBody(body),
		}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", endpoint, err)
	}

	return nil
}

// ErrorBody trims a response body for inclusion in diagnostics.
func ErrorBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}

// requestURL extracts the request URL from a response for diagnostics.
func requestURL(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.Path
	}
	return ""
}
