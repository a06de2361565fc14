// Package apiclient implements a minimal client for the optional status
// server in statusserver, grounded on the teacher's own HTTP API client
// pattern: a thin options struct, a Get helper that decodes JSON, and
// basic auth wired in when credentials are configured.
package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultUsername is used when Options.Username is empty.
const DefaultUsername = "imageintact"

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Username   string
	Password   string
}

// Client calls a running statusserver.Server.
type Client struct {
	options Options
}

// New builds a Client. The base URL should not include a trailing
// slash or the /api/v1 prefix; New appends it.
func New(options Options) *Client {
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if options.Username == "" {
		options.Username = DefaultUsername
	}
	options.BaseURL += "/api/v1"

	return &Client{options: options}
}

// Get issues a GET to path (e.g. "/status") and decodes the JSON
// response into respPayload.
func (c *Client) Get(ctx context.Context, path string, respPayload interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.options.BaseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}

	if c.options.Password != "" {
		req.SetBasicAuth(c.options.Username, c.options.Password)
	}

	resp, err := c.options.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling status server")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("status server returned %v", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(respPayload); err != nil {
		return errors.Wrap(err, "decoding status server response")
	}

	return nil
}
