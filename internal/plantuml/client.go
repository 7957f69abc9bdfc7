package plantuml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultServer renders PNG images
const DefaultServer = "https://www.plantuml.com/plantuml/png/"

// DefaultTimeout bounds one render request
const DefaultTimeout = 30 * time.Second

// ErrUnexpectedStatus is wrapped when the server answers with a non-200 status
var ErrUnexpectedStatus = errors.New("diagram server returned unexpected status")

// Client fetches rendered diagrams
type Client struct {
	Server  string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewClient returns a client for server, falling back to the defaults
func NewClient(server string, timeout time.Duration) *Client {
	if server == "" {
		server = DefaultServer
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Server: server, Timeout: timeout, HTTP: http.DefaultClient}
}

// URL returns the request URL for an encoded diagram
func (c *Client) URL(encoded string) string {
	return c.Server + encoded
}

// Fetch requests the image of an encoded diagram. On a non-200 status the
// body is still returned together with an error wrapping ErrUnexpectedStatus.
func (c *Client) Fetch(ctx context.Context, encoded string) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(encoded), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch diagram: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagram: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return body, nil
}
