// Package recallai provides a typed HTTP client for the remote calendar/bot
// provider. It wraps the paginated calendar-event listing, the idempotent
// bot scheduling endpoints, and bot/transcript retrieval.
package recallai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default client settings.
const (
	DefaultRequestTimeout = 30 * time.Second

	// maxPages bounds cursor-following so a provider bug cannot spin the
	// sync loop forever.
	maxPages = 100
)

// Client is the provider API client.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// Options configures the Client.
type Options struct {
	// BaseURL is the provider API base, e.g. https://us-east-1.recall.ai/api/v1.
	BaseURL string

	// APIKey authorizes requests via the Authorization header.
	APIKey string

	// Timeout bounds individual HTTP calls. Zero means DefaultRequestTimeout.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (used in tests).
	HTTPClient *http.Client
}

// NewClient creates a provider client from options.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing provider base URL: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    base,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
	}, nil
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if ok := asAPIError(err, &apiErr); ok {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized reports whether err is a provider 401 or 410, the statuses
// the provider uses for revoked calendar connections.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if ok := asAPIError(err, &apiErr); ok {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusGone
	}
	return false
}

func asAPIError(err error, target **APIError) bool {
	for err != nil {
		if e, ok := err.(*APIError); ok {
			*target = e
			return true
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// do issues a request with auth headers and decodes a JSON response into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, method, rawURL string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncateBody(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func truncateBody(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

// endpoint joins path elements onto the base URL.
func (c *Client) endpoint(parts ...string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(parts, "/") + "/"
	return u.String()
}

// normalizeCursor corrects the scheme of a pagination cursor. Some provider
// deployments build the `next` link from the internal request scheme, so a
// https origin can receive an http cursor; following it as-is would be
// rejected at the edge.
func (c *Client) normalizeCursor(cursor string) (string, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return "", fmt.Errorf("parsing cursor %q: %w", cursor, err)
	}
	if c.baseURL.Scheme == "https" && u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u.String(), nil
}
