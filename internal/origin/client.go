// Package origin provides an HTTP client for the municipal dataset origin.
package origin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nexus-geo/nexus-gateway/internal/geocache"
)

// Sentinel errors for common origin failures.
var (
	ErrNotFound     = errors.New("origin: resource not found")
	ErrUnauthorized = errors.New("origin: unauthorized (invalid access key)")
)

// StatusError represents a non-2xx origin response outside the sentinel set.
type StatusError struct {
	StatusCode int
	Path       string
}

// Error implements the error interface for StatusError.
func (e *StatusError) Error() string {
	return fmt.Sprintf("origin: %s returned status %d", e.Path, e.StatusCode)
}

// Client fetches JSON documents from the dataset origin. It implements
// geocache.Fetcher.
type Client struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithAccessKey sets the access key sent to the origin.
func WithAccessKey(key string) Option {
	return func(c *Client) {
		c.accessKey = key
	}
}

// NewClient creates a new origin client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Head performs a metadata-only probe and returns the resource's
// conditional-request metadata.
func (c *Client) Head(ctx context.Context, path string) (geocache.Meta, error) {
	req, err := c.newRequest(ctx, http.MethodHead, path)
	if err != nil {
		return geocache.Meta{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geocache.Meta{}, err
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()
	//nolint:errcheck
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return geocache.Meta{}, statusError(resp.StatusCode, path)
	}
	return metaFromHeader(resp.Header), nil
}

// Get fetches the full resource and returns its payload and metadata.
func (c *Client) Get(ctx context.Context, path string) ([]byte, geocache.Meta, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, geocache.Meta{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, geocache.Meta{}, err
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, geocache.Meta{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, geocache.Meta{}, statusError(resp.StatusCode, path)
	}
	if !json.Valid(body) {
		return nil, geocache.Meta{}, fmt.Errorf("origin: %s returned invalid JSON", path)
	}
	return body, metaFromHeader(resp.Header), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.accessKey != "" {
		req.Header.Set("AccessKey", c.accessKey)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func metaFromHeader(h http.Header) geocache.Meta {
	return geocache.Meta{
		ETag:         h.Get("ETag"),
		LastModified: h.Get("Last-Modified"),
	}
}

func statusError(status int, path string) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return &StatusError{StatusCode: status, Path: path}
}
