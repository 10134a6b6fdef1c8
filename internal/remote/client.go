// Package remote implements the client for the shared status store.
//
// The store is a path-addressed JSON tree reached over plain REST: reading
// "accounts" GETs <base>/accounts.json, writing "devices/x" PUTs or PATCHes
// <base>/devices/x.json. The watcher depends on the Store interface rather
// than the concrete client so tests can substitute an in-memory fake.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRequestFailed wraps non-2xx responses from the store.
var ErrRequestFailed = errors.New("remote request failed")

// Store is the read/write surface the rest of the system consumes.
type Store interface {
	// GetAll reads an entire collection in one request. A missing or empty
	// collection yields an empty map, never an error.
	GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error)

	// Get reads a single path. A missing node yields nil, nil.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Set overwrites the node at path.
	Set(ctx context.Context, path string, v interface{}) error

	// Update merges fields into the node at path.
	Update(ctx context.Context, path string, v interface{}) error

	// Push appends v under path with a server-generated key, returning the key.
	Push(ctx context.Context, path string, v interface{}) (string, error)

	// Delete removes the node at path.
	Delete(ctx context.Context, path string) error
}

// Client talks to the store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given database base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithHTTP creates a client using the supplied http.Client.
// Used by tests and callers that need custom transports.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	c := NewClient(baseURL)
	c.http = hc
	return c
}

// url builds the REST endpoint for a store path.
func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/%s.json", c.baseURL, strings.Trim(path, "/"))
}

// do performs one request and returns the raw response body.
// A JSON null body is collapsed to nil.
func (c *Client) do(ctx context.Context, method, path string, v interface{}) (json.RawMessage, error) {
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrRequestFailed, method, path, resp.Status)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return json.RawMessage(trimmed), nil
}

// Get reads a single path. Missing nodes return nil, nil.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// GetAll reads an entire collection in one request.
func (c *Client) GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	raw, err := c.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]json.RawMessage{}, nil
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding collection %s: %w", collection, err)
	}
	if out == nil {
		out = map[string]json.RawMessage{}
	}
	return out, nil
}

// Set overwrites the node at path.
func (c *Client) Set(ctx context.Context, path string, v interface{}) error {
	_, err := c.do(ctx, http.MethodPut, path, v)
	return err
}

// Update merges fields into the node at path.
func (c *Client) Update(ctx context.Context, path string, v interface{}) error {
	_, err := c.do(ctx, http.MethodPatch, path, v)
	return err
}

// Push appends v under path with a server-generated key.
func (c *Client) Push(ctx context.Context, path string, v interface{}) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, path, v)
	if err != nil {
		return "", err
	}

	var resp struct {
		Name string `json:"name"`
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", fmt.Errorf("decoding push response: %w", err)
		}
	}
	return resp.Name, nil
}

// Delete removes the node at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

var _ Store = (*Client)(nil)
